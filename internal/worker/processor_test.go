package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/pdfchat/internal/chunk"
	"github.com/mohammad-safakhou/pdfchat/internal/queue/streams"
	"github.com/mohammad-safakhou/pdfchat/internal/vectorstore/qdrant"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(path string) (string, error) { return f.text, f.err }

type fakeEmbedder struct {
	err   error
	calls int
	seen  [][]string
}

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.seen = append(f.seen, texts)
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{float32(i), 0.5}
	}
	return vecs, nil
}

type fakeStore struct {
	mu        sync.Mutex
	ensureErr error
	upsertErr error
	ensured   []int
	upserted  [][]qdrant.Point
}

func (f *fakeStore) EnsureCollection(ctx context.Context, dimension int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, dimension)
	return f.ensureErr
}

func (f *fakeStore) Upsert(ctx context.Context, points []qdrant.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, points)
	return nil
}

// fakeConsumer serves pre-built batches from Read and pre-claimed messages
// from AutoClaim, cancelling the run context once both are drained.
type fakeConsumer struct {
	mu      sync.Mutex
	batches [][]streams.Message
	claimed []streams.Message
	acked   []string
	cancel  context.CancelFunc
}

func (f *fakeConsumer) Read(ctx context.Context, stream string, opts ...streams.ConsumerOption) ([]streams.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		f.cancel()
		return nil, ctx.Err()
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeConsumer) AutoClaim(ctx context.Context, stream string, minIdle time.Duration, start string, count int64) ([]streams.Message, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claimed := f.claimed
	f.claimed = nil
	return claimed, "0-0", nil
}

func (f *fakeConsumer) Ack(ctx context.Context, stream string, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, ids...)
	return nil
}

// slowEmbedder records the peak number of concurrent embedding calls.
type slowEmbedder struct {
	mu     sync.Mutex
	active int
	peak   int
}

func (s *slowEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.active++
	if s.active > s.peak {
		s.peak = s.active
	}
	s.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	s.mu.Lock()
	s.active--
	s.mu.Unlock()

	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{0.1, 0.2}
	}
	return vecs, nil
}

// pathExtractor fails for paths that name a corrupt file and is safe for
// concurrent use.
type pathExtractor struct {
	text string
}

func (p *pathExtractor) Extract(path string) (string, error) {
	if strings.Contains(path, "corrupt") {
		return "", errors.New("corrupt file")
	}
	return p.text, nil
}

func jobMessage(t *testing.T, id, filename string) streams.Message {
	t.Helper()
	data, err := json.Marshal(streams.FileReadyPayload{
		Filename: filename,
		Source:   "uploads",
		Path:     "uploads/" + filename,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return streams.Message{
		ID: id,
		Envelope: streams.Envelope{
			EventID:        "evt-" + id,
			EventType:      streams.EventFileReady,
			PayloadVersion: "v1",
			Data:           data,
		},
	}
}

func fileReadyMessage(t *testing.T) streams.Message {
	t.Helper()
	return jobMessage(t, "1-0", "1756500000000-manual.pdf")
}

func newTestProcessor(ex *fakeExtractor, em *fakeEmbedder, st *fakeStore) *Processor {
	logger := log.New(io.Discard, "", 0)
	return NewProcessor(logger, nil, em, ex, chunk.NewSplitter(300, 0), st, "pdf.uploads", 5)
}

func TestHandleFileReadyIndexesAllChunks(t *testing.T) {
	ex := &fakeExtractor{text: strings.Repeat("a", 900)}
	em := &fakeEmbedder{}
	st := &fakeStore{}
	p := newTestProcessor(ex, em, st)

	if err := p.handleFileReady(context.Background(), fileReadyMessage(t)); err != nil {
		t.Fatalf("handle file.ready: %v", err)
	}
	if em.calls != 1 {
		t.Fatalf("expected one batched embedding call, got %d", em.calls)
	}
	if len(em.seen[0]) != 3 {
		t.Fatalf("expected 3 chunks embedded, got %d", len(em.seen[0]))
	}
	if len(st.upserted) != 1 || len(st.upserted[0]) != 3 {
		t.Fatalf("expected one upsert of 3 points, got %+v", st.upserted)
	}
	if len(st.ensured) != 1 || st.ensured[0] != 2 {
		t.Fatalf("expected collection ensured with dimension 2, got %v", st.ensured)
	}
	for _, pt := range st.upserted[0] {
		if pt.ID == "" || pt.Payload.Text == "" {
			t.Fatalf("point missing id or text: %+v", pt)
		}
		if pt.Payload.Source != "1756500000000-manual.pdf" {
			t.Fatalf("point missing source filename: %+v", pt)
		}
	}
}

func TestHandleFileReadyZeroTextCompletesWithoutInsert(t *testing.T) {
	ex := &fakeExtractor{text: ""}
	em := &fakeEmbedder{}
	st := &fakeStore{}
	p := newTestProcessor(ex, em, st)

	if err := p.handleFileReady(context.Background(), fileReadyMessage(t)); err != nil {
		t.Fatalf("zero-text job must complete: %v", err)
	}
	if em.calls != 0 {
		t.Fatal("no embedding call expected for zero chunks")
	}
	if len(st.upserted) != 0 {
		t.Fatal("no upsert expected for zero chunks")
	}
}

func TestHandleFileReadyExtractionFailureInsertsNothing(t *testing.T) {
	ex := &fakeExtractor{err: errors.New("corrupt file")}
	em := &fakeEmbedder{}
	st := &fakeStore{}
	p := newTestProcessor(ex, em, st)

	if err := p.handleFileReady(context.Background(), fileReadyMessage(t)); err == nil {
		t.Fatal("expected extraction error to fail the job")
	}
	if em.calls != 0 || len(st.upserted) != 0 {
		t.Fatal("nothing may be embedded or inserted when extraction fails")
	}
}

func TestHandleFileReadyEmbeddingFailureInsertsNothing(t *testing.T) {
	ex := &fakeExtractor{text: strings.Repeat("c", 500)}
	em := &fakeEmbedder{err: errors.New("service unavailable")}
	st := &fakeStore{}
	p := newTestProcessor(ex, em, st)

	if err := p.handleFileReady(context.Background(), fileReadyMessage(t)); err == nil {
		t.Fatal("expected embedding error to fail the job")
	}
	if len(st.upserted) != 0 {
		t.Fatal("no points may be inserted when embedding fails")
	}
}

func TestHandleFileReadyMalformedPayload(t *testing.T) {
	p := newTestProcessor(&fakeExtractor{}, &fakeEmbedder{}, &fakeStore{})
	msg := streams.Message{
		ID: "1-0",
		Envelope: streams.Envelope{
			EventID:        "evt-bad",
			EventType:      streams.EventFileReady,
			PayloadVersion: "v1",
			Data:           json.RawMessage(`"not an object"`),
		},
	}
	if err := p.handleFileReady(context.Background(), msg); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestStartBoundsConcurrencyAndAcksEveryJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var batches [][]streams.Message
	total, corrupt := 0, 0
	for b := 0; b < 4; b++ {
		var batch []streams.Message
		for i := 0; i < 3; i++ {
			name := fmt.Sprintf("file-%d.pdf", total)
			if total%4 == 0 {
				name = fmt.Sprintf("corrupt-%d.pdf", total)
				corrupt++
			}
			batch = append(batch, jobMessage(t, fmt.Sprintf("%d-0", total+1), name))
			total++
		}
		batches = append(batches, batch)
	}

	fc := &fakeConsumer{batches: batches, cancel: cancel}
	em := &slowEmbedder{}
	st := &fakeStore{}
	p := NewProcessor(log.New(io.Discard, "", 0), fc, em, &pathExtractor{text: strings.Repeat("a", 100)}, chunk.NewSplitter(300, 0), st, "pdf.uploads", 3)

	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	if len(fc.acked) != total {
		t.Fatalf("expected all %d jobs acked regardless of outcome, got %d", total, len(fc.acked))
	}
	if em.peak > 3 {
		t.Fatalf("concurrent handlers exceeded pool size: peak %d", em.peak)
	}
	if len(st.upserted) != total-corrupt {
		t.Fatalf("expected %d successful upserts, got %d", total-corrupt, len(st.upserted))
	}
}

func TestStartReclaimsStalledJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stalled := jobMessage(t, "9-0", "stalled.pdf")
	fc := &fakeConsumer{claimed: []streams.Message{stalled}, cancel: cancel}
	st := &fakeStore{}
	p := NewProcessor(log.New(io.Discard, "", 0), fc, &slowEmbedder{}, &pathExtractor{text: "left over from a dead consumer"}, chunk.NewSplitter(300, 0), st, "pdf.uploads", 2)

	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	if len(st.upserted) != 1 {
		t.Fatalf("reclaimed job must be processed, got %d upserts", len(st.upserted))
	}
	if len(fc.acked) != 1 || fc.acked[0] != "9-0" {
		t.Fatalf("reclaimed job must be acked, got %v", fc.acked)
	}
}
