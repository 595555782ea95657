package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/pdfchat/internal/queue/streams"
)

// JobPublisher captures the queue method required by the upload handler.
type JobPublisher interface {
	PublishRaw(ctx context.Context, stream, eventType, version string, payload interface{}, opts ...streams.PublishOption) (string, error)
}

// UploadHandler accepts PDF uploads, persists them to the shared upload
// directory and enqueues one ingestion job per file.
type UploadHandler struct {
	Publisher JobPublisher
	Dir       string
	Stream    string
	Logger    *log.Logger
}

func (h *UploadHandler) Register(e *echo.Echo) {
	e.POST("/upload/pdf", h.upload)
}

func (h *UploadHandler) upload(c echo.Context) error {
	file, err := c.FormFile("pdf")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'pdf' with a file is required")
	}

	// Timestamp prefix keeps concurrent uploads of same-named files from colliding.
	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(file.Filename))
	dst := filepath.Join(h.Dir, name)

	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("open uploaded file: %v", err))
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("store uploaded file: %v", err))
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("store uploaded file: %v", err))
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("store uploaded file: %v", err))
	}

	payload := streams.FileReadyPayload{Filename: name, Source: h.Dir, Path: dst}
	if _, err := h.Publisher.PublishRaw(c.Request().Context(), h.Stream, streams.EventFileReady, "v1", payload); err != nil {
		h.Logger.Printf("enqueue ingestion job for %s: %v", name, err)
		return echo.NewHTTPError(http.StatusBadGateway, "failed to enqueue ingestion job")
	}

	uploadsAccepted.Inc()
	h.Logger.Printf("accepted %s (%d bytes)", name, file.Size)
	return c.JSON(http.StatusOK, UploadResponse{Message: "File uploaded successfully"})
}
