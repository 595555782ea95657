package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mohammad-safakhou/pdfchat/internal/chunk"
	"github.com/mohammad-safakhou/pdfchat/internal/extract"
	"github.com/mohammad-safakhou/pdfchat/internal/queue/streams"
	"github.com/mohammad-safakhou/pdfchat/internal/vectorstore/qdrant"
)

var (
	jobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_jobs_total",
		Help: "Ingestion jobs handled, by outcome.",
	}, []string{"status"})

	chunksIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_chunks_total",
		Help: "Chunks embedded and upserted into the vector index.",
	})
)

// Embedder captures the provider method required by the worker.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore captures the index methods required by the worker.
type VectorStore interface {
	EnsureCollection(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, points []qdrant.Point) error
}

// Consumer captures the queue methods required by the worker.
type Consumer interface {
	Read(ctx context.Context, stream string, opts ...streams.ConsumerOption) ([]streams.Message, error)
	AutoClaim(ctx context.Context, stream string, minIdle time.Duration, start string, count int64) ([]streams.Message, string, error)
	Ack(ctx context.Context, stream string, ids ...string) error
}

// Entries read by a consumer that died before acking stay pending under that
// consumer's name and are never redelivered by plain reads. The reclaim pass
// periodically claims such stalled entries for this consumer so every
// accepted job is eventually processed, even across worker restarts.
const (
	reclaimMinIdle  = time.Minute
	reclaimInterval = 30 * time.Second
)

// Processor turns file.ready jobs into vector index entries: extract, split,
// embed, upsert. Jobs are independent; up to concurrency of them run at once
// and no ordering is guaranteed between them.
type Processor struct {
	logger      *log.Logger
	consumer    Consumer
	embedder    Embedder
	extractor   extract.Extractor
	splitter    *chunk.Splitter
	store       VectorStore
	stream      string
	concurrency int
}

// NewProcessor constructs a Processor.
func NewProcessor(logger *log.Logger, consumer Consumer, embedder Embedder, extractor extract.Extractor, splitter *chunk.Splitter, store VectorStore, stream string, concurrency int) *Processor {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Processor{
		logger:      logger,
		consumer:    consumer,
		embedder:    embedder,
		extractor:   extractor,
		splitter:    splitter,
		store:       store,
		stream:      stream,
		concurrency: concurrency,
	}
}

// Start blocks, continuously processing file.ready events until the context
// is cancelled. Each message occupies one of the bounded worker slots for its
// whole pipeline. Messages are acked whether handling succeeded or failed:
// failed jobs are logged and dropped, retry policy is the queue's concern and
// none is configured.
func (p *Processor) Start(ctx context.Context) error {
	p.logger.Printf("ingestion worker starting; consuming stream %s with %d slots", p.stream, p.concurrency)

	slots := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	claimCursor := "0-0"
	var nextReclaim time.Time

	for {
		select {
		case <-ctx.Done():
			p.logger.Printf("ingestion worker stopping: %v", ctx.Err())
			return nil
		default:
		}

		if time.Now().After(nextReclaim) {
			claimed, next, err := p.consumer.AutoClaim(ctx, p.stream, reclaimMinIdle, claimCursor, int64(p.concurrency))
			if err != nil {
				if ctx.Err() != nil {
					p.logger.Printf("ingestion worker stopping: %v", ctx.Err())
					return nil
				}
				p.logger.Printf("error reclaiming stalled jobs: %v", err)
			} else {
				claimCursor = next
				if len(claimed) > 0 {
					p.logger.Printf("reclaimed %d stalled jobs", len(claimed))
				}
				if !p.dispatch(ctx, slots, &wg, claimed) {
					p.logger.Printf("ingestion worker stopping: %v", ctx.Err())
					return nil
				}
			}
			nextReclaim = time.Now().Add(reclaimInterval)
		}

		msgs, err := p.consumer.Read(ctx, p.stream, streams.WithBlock(5*time.Second), streams.WithCount(int64(p.concurrency)))
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Printf("ingestion worker stopping: %v", ctx.Err())
				return nil
			}
			p.logger.Printf("error reading stream: %v", err)
			time.Sleep(time.Second)
			continue
		}

		if !p.dispatch(ctx, slots, &wg, msgs) {
			p.logger.Printf("ingestion worker stopping: %v", ctx.Err())
			return nil
		}
	}
}

// dispatch hands each message to a worker slot, blocking while all slots are
// busy. It returns false when the context is cancelled before every message
// could be handed off.
func (p *Processor) dispatch(ctx context.Context, slots chan struct{}, wg *sync.WaitGroup, msgs []streams.Message) bool {
	for _, msg := range msgs {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			return false
		}
		wg.Add(1)
		go func(msg streams.Message) {
			defer wg.Done()
			defer func() { <-slots }()

			if err := p.handleFileReady(ctx, msg); err != nil {
				p.logger.Printf("error handling job %s: %v", msg.Envelope.EventID, err)
				jobsProcessed.WithLabelValues("failed").Inc()
			} else {
				jobsProcessed.WithLabelValues("ok").Inc()
			}
			if err := p.consumer.Ack(ctx, p.stream, msg.ID); err != nil {
				p.logger.Printf("warn: failed to ack message %s: %v", msg.ID, err)
			}
		}(msg)
	}
	return true
}

// handleFileReady runs the ingestion pipeline for one job. Embedding happens
// in one batched call and upsert in one batched request, so a mid-pipeline
// failure never leaves a partial chunk set in the index.
func (p *Processor) handleFileReady(ctx context.Context, msg streams.Message) error {
	var payload streams.FileReadyPayload
	if err := json.Unmarshal(msg.Envelope.Data, &payload); err != nil {
		return fmt.Errorf("unmarshal file.ready payload: %w", err)
	}

	p.logger.Printf("processing file %s from %s at %s", payload.Filename, payload.Source, payload.Path)

	text, err := p.extractor.Extract(payload.Path)
	if err != nil {
		return fmt.Errorf("extract %s: %w", payload.Path, err)
	}

	chunks := p.splitter.Split(text)
	if len(chunks) == 0 {
		p.logger.Printf("file %s has no extractable text; nothing to index", payload.Filename)
		return nil
	}

	vecs, err := p.embedder.CreateEmbedding(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d vectors for %d chunks", len(vecs), len(chunks))
	}

	if err := p.store.EnsureCollection(ctx, len(vecs[0])); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	points := make([]qdrant.Point, len(chunks))
	for i := range chunks {
		points[i] = qdrant.Point{
			ID:      uuid.NewString(),
			Vector:  vecs[i],
			Payload: qdrant.Payload{Text: chunks[i], Source: payload.Filename},
		}
	}
	if err := p.store.Upsert(ctx, points); err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}

	chunksIngested.Add(float64(len(points)))
	p.logger.Printf("indexed %d chunks from %s", len(points), payload.Filename)
	return nil
}
