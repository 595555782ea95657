package server

import "github.com/mohammad-safakhou/pdfchat/internal/vectorstore/qdrant"

// UploadResponse acknowledges that a file was accepted and its ingestion job
// enqueued. Ingestion itself is asynchronous; this is not a completion signal.
type UploadResponse struct {
	Message string `json:"message"`
}

// ChatResponse carries the model answer together with the retrieved entries
// that were used as context.
type ChatResponse struct {
	Answer string            `json:"answer"`
	Docs   []qdrant.Document `json:"docs"`
}
