package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Store is a minimal REST client to Qdrant. Collections use cosine distance
// and are created on first use if missing. The underlying http.Client is safe
// for concurrent use, so one Store may be shared per process.
type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

// Config configures the Qdrant client.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Point is a single vector index entry to upsert.
type Point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// Payload carries the chunk text and the stored filename it came from.
type Payload struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

// Document is a retrieved entry with its similarity score.
type Document struct {
	Text   string  `json:"text"`
	Source string  `json:"source,omitempty"`
	Score  float64 `json:"score"`
}

// New creates a Store for the given endpoint and collection.
func New(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// EnsureCollection creates the collection with the given vector dimension if
// it does not already exist. An existing collection is not an error.
func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	status, err := s.send(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil)
	if err != nil {
		return err
	}
	// 409 means the collection already exists
	if status >= 300 && status != http.StatusConflict {
		return fmt.Errorf("qdrant create collection: status %d", status)
	}
	return nil
}

// Upsert writes all points in a single request. wait=true makes the call
// return only after the points are persisted, so either the whole chunk set
// of a job lands or none of it does.
func (s *Store) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	status, err := s.send(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant upsert: status %d", status)
	}
	return nil
}

// Search returns the top-k nearest entries to the given vector.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = 2
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload Payload `json:"payload"`
		} `json:"result"`
	}
	status, err := s.send(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), body, &resp)
	if err != nil {
		return nil, err
	}
	// A missing collection means nothing has been ingested yet; treat it as
	// an empty result rather than a failure.
	if status == http.StatusNotFound {
		return []Document{}, nil
	}
	if status >= 300 {
		return nil, fmt.Errorf("qdrant search: status %d", status)
	}
	docs := make([]Document, 0, len(resp.Result))
	for _, r := range resp.Result {
		docs = append(docs, Document{Text: r.Payload.Text, Source: r.Payload.Source, Score: r.Score})
	}
	return docs, nil
}

func (s *Store) send(ctx context.Context, method, url string, body any, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qdrant %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
