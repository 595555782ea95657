package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/pdfchat/internal/vectorstore/qdrant"
)

// Embedder captures the provider method required for query embedding.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Chatter captures the provider method required for answer generation.
type Chatter interface {
	ChatCompletion(ctx context.Context, system, user string) (string, error)
}

// Retriever captures the vector index method required for retrieval.
type Retriever interface {
	Search(ctx context.Context, vector []float32, topK int) ([]qdrant.Document, error)
}

// ChatHandler answers a query by embedding it, retrieving the nearest chunks
// and conditioning the model on them. Every call is stateless; there is no
// conversation memory.
type ChatHandler struct {
	Embedder Embedder
	LLM      Chatter
	Store    Retriever
	TopK     int
	Logger   *log.Logger
}

func (h *ChatHandler) Register(e *echo.Echo) {
	e.GET("/chat", h.chat)
}

func (h *ChatHandler) chat(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("message"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message query parameter is required")
	}
	ctx := c.Request().Context()

	vecs, err := h.Embedder.CreateEmbedding(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		h.Logger.Printf("embed query: %v", err)
		chatRequests.WithLabelValues("failed").Inc()
		return echo.NewHTTPError(http.StatusBadGateway, "embedding service failed")
	}

	docs, err := h.Store.Search(ctx, vecs[0], h.TopK)
	if err != nil {
		h.Logger.Printf("vector search: %v", err)
		chatRequests.WithLabelValues("failed").Inc()
		return echo.NewHTTPError(http.StatusBadGateway, "vector index failed")
	}

	system, err := buildSystemPrompt(docs)
	if err != nil {
		chatRequests.WithLabelValues("failed").Inc()
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	answer, err := h.LLM.ChatCompletion(ctx, system, query)
	if err != nil {
		h.Logger.Printf("chat completion: %v", err)
		chatRequests.WithLabelValues("failed").Inc()
		return echo.NewHTTPError(http.StatusBadGateway, "language model failed")
	}

	if docs == nil {
		docs = []qdrant.Document{}
	}
	chatRequests.WithLabelValues("ok").Inc()
	return c.JSON(http.StatusOK, ChatResponse{Answer: answer, Docs: docs})
}

// braceNeutralizer replaces brace characters in retrieved content so chunk
// text can never be mistaken for template syntax inside the prompt.
var braceNeutralizer = strings.NewReplacer("{", "[", "}", "]")

func buildSystemPrompt(docs []qdrant.Document) (string, error) {
	contextJSON, err := json.Marshal(docs)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("You are a helpful assistant that answers questions about the user query based on the available context from pdf files.\n")
	b.WriteString("Context:\n")
	b.WriteString(braceNeutralizer.Replace(string(contextJSON)))
	return b.String(), nil
}
