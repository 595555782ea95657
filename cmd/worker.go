package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/pdfchat/config"
	"github.com/mohammad-safakhou/pdfchat/internal/chunk"
	"github.com/mohammad-safakhou/pdfchat/internal/extract"
	"github.com/mohammad-safakhou/pdfchat/internal/queue/streams"
	"github.com/mohammad-safakhou/pdfchat/internal/vectorstore/qdrant"
	"github.com/mohammad-safakhou/pdfchat/internal/worker"
	"github.com/mohammad-safakhou/pdfchat/provider"
)

func workerCMD() *cobra.Command {
	var cfgPath string
	var work = &cobra.Command{
		Use:   "worker",
		Short: "Run the ingestion worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			rdb := redis.NewClient(&redis.Options{
				Addr:        cfg.Storage.Redis.Addr(),
				Password:    cfg.Storage.Redis.Password,
				DB:          cfg.Storage.Redis.DB,
				DialTimeout: cfg.Storage.Redis.Timeout,
			})
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("worker redis ping: %w", err)
			}
			defer func() { _ = rdb.Close() }()

			registry := streams.NewSchemaRegistry()
			if err := streams.RegisterBaseSchemas(registry); err != nil {
				return err
			}

			if err := streams.EnsureGroup(ctx, rdb, cfg.Worker.Stream, cfg.Worker.Group); err != nil {
				return fmt.Errorf("worker ensure group: %w", err)
			}

			consumerName := fmt.Sprintf("ingest-%s", uuid.NewString()[:8])
			consumer := streams.NewConsumer(rdb, registry, cfg.Worker.Group, consumerName)

			embedder, err := provider.New(cfg.Providers.Embedding)
			if err != nil {
				return fmt.Errorf("embedding provider: %w", err)
			}
			store := qdrant.New(qdrant.Config{
				URL:        cfg.Vector.URL,
				APIKey:     cfg.Vector.APIKey,
				Collection: cfg.Vector.Collection,
				Timeout:    cfg.Vector.Timeout,
			})

			logger := log.New(os.Stdout, "[WORKER] ", log.LstdFlags)

			// The worker owns the ingest counters, so it serves its own
			// exposition endpoint.
			if addr := cfg.Worker.MetricsAddress; addr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				go func() {
					if err := http.ListenAndServe(addr, mux); err != nil {
						logger.Printf("metrics listener on %s: %v", addr, err)
					}
				}()
			}

			processor := worker.NewProcessor(
				logger,
				consumer,
				embedder,
				extract.NewPDFExtractor(),
				chunk.NewSplitter(cfg.Worker.ChunkSize, cfg.Worker.ChunkOverlap),
				store,
				cfg.Worker.Stream,
				cfg.Worker.Concurrency,
			)

			return processor.Start(ctx)
		},
	}
	work.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return work
}
