package extract

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Extractor turns a stored document into plain text. An empty result is not
// an error: image-only PDFs legitimately carry no extractable text.
type Extractor interface {
	Extract(path string) (string, error)
}

// PDFExtractor extracts text from PDF files using MuPDF.
type PDFExtractor struct{}

// NewPDFExtractor creates a new PDF extractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract opens the PDF at path and returns the text of all pages joined by
// blank lines.
func (e *PDFExtractor) Extract(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err == nil && strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}
