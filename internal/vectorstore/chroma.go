// Package vectorstore adapts a Chroma collection to the chunk model: chunks
// are keyed by their deterministic "{document_id}::{chunk_id}" ids so centers
// and neighbors can be fetched by construction instead of by query.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds the Chroma connection settings.
type Config struct {
	URL        string
	Collection string
	Timeout    time.Duration
	Logger     *logrus.Logger
}

// Store talks to a single Chroma collection over its REST API.
type Store struct {
	baseURL    string
	collection string
	httpClient *http.Client
	logger     *logrus.Logger

	mu      sync.Mutex
	ensured bool
}

// New creates a Store. The collection is created lazily on first use with
// cosine as the similarity space.
func New(cfg Config) *Store {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Store{
		baseURL:    cfg.URL,
		collection: cfg.Collection,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}
}

// Heartbeat verifies the Chroma server is reachable.
func (s *Store) Heartbeat(ctx context.Context) error {
	resp, err := s.doRequest(ctx, http.MethodGet, "/api/v1/heartbeat", nil)
	if err != nil {
		return fmt.Errorf("failed to reach chroma: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chroma heartbeat failed: status %d", resp.StatusCode)
	}
	return nil
}

// ensureCollection creates the collection if it does not exist yet. Safe
// under concurrent writers: get_or_create makes the call idempotent.
func (s *Store) ensureCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}

	body := map[string]any{
		"name":          s.collection,
		"get_or_create": true,
		"metadata":      map[string]any{"hnsw:space": "cosine"},
	}
	resp, err := s.doRequest(ctx, http.MethodPost, "/api/v1/collections", body)
	if err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to ensure collection: status %d, body: %s", resp.StatusCode, raw)
	}

	s.ensured = true
	return nil
}

func (s *Store) collectionPath(op string) string {
	return fmt.Sprintf("/api/v1/collections/%s/%s", s.collection, op)
}

func (s *Store) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return s.httpClient.Do(req)
}

// doCollectionOp runs one collection operation and decodes the response into
// out (out may be nil when the response body does not matter).
func (s *Store) doCollectionOp(ctx context.Context, op string, body, out any) error {
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	resp, err := s.doRequest(ctx, http.MethodPost, s.collectionPath(op), body)
	if err != nil {
		return fmt.Errorf("chroma %s failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chroma %s failed: status %d, body: %s", op, resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode chroma %s response: %w", op, err)
		}
	}
	return nil
}
