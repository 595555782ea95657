package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/pdfchat/config"
	"github.com/mohammad-safakhou/pdfchat/internal/queue/streams"
	"github.com/mohammad-safakhou/pdfchat/internal/vectorstore/qdrant"
	"github.com/mohammad-safakhou/pdfchat/provider"
)

// Run wires the gateway's shared dependencies and serves HTTP until the
// listener fails. The queue connection is established up front: the gateway
// cannot accept uploads without it.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Storage.Redis.Addr(),
		Password:    cfg.Storage.Redis.Password,
		DB:          cfg.Storage.Redis.DB,
		DialTimeout: cfg.Storage.Redis.Timeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
	}

	registry := streams.NewSchemaRegistry()
	if err := streams.RegisterBaseSchemas(registry); err != nil {
		return err
	}
	publisher := streams.NewPublisher(rdb, registry)

	if err := os.MkdirAll(cfg.Storage.Uploads.Dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir %s: %w", cfg.Storage.Uploads.Dir, err)
	}

	// One shared client per process for each external service; all of them
	// wrap a stateless http.Client and are safe for concurrent requests.
	embedder, err := provider.New(cfg.Providers.Embedding)
	if err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}
	llm, err := provider.New(cfg.Providers.LLM)
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	store := qdrant.New(qdrant.Config{
		URL:        cfg.Vector.URL,
		APIKey:     cfg.Vector.APIKey,
		Collection: cfg.Vector.Collection,
		Timeout:    cfg.Vector.Timeout,
	})

	uh := &UploadHandler{
		Publisher: publisher,
		Dir:       cfg.Storage.Uploads.Dir,
		Stream:    cfg.Worker.Stream,
		Logger:    log.New(log.Writer(), "[UPLOAD] ", log.LstdFlags),
	}
	uh.Register(e)

	ch := &ChatHandler{
		Embedder: embedder,
		LLM:      llm,
		Store:    store,
		TopK:     cfg.Vector.TopK,
		Logger:   log.New(log.Writer(), "[CHAT] ", log.LstdFlags),
	}
	ch.Register(e)

	log.Printf("listening on %s", cfg.Server.Address)
	return e.Start(cfg.Server.Address)
}
