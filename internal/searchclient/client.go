// Package searchclient is the HTTP client for the lexical search service.
// BM25 is a best-effort signal: callers treat "no hits" and "service down"
// the same way, so SearchBM25 degrades to nil instead of returning errors.
package searchclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ali-haidir/hybrid-rag/internal/models"
)

// Client calls the search service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// New builds a client for the search service at baseURL.
func New(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// SearchBM25 runs a lexical search. Any failure (connection, status, decode)
// is logged and reported as no hits so the caller can fall back to vectors.
func (c *Client) SearchBM25(ctx context.Context, req models.SearchRequest) []models.SearchHit {
	var resp models.SearchResponse
	if err := c.post(ctx, "/search", req, &resp); err != nil {
		c.logger.WithError(err).Warn("bm25 search unavailable, continuing without lexical hits")
		return nil
	}
	return resp.Hits
}

// IndexChunk registers one chunk with the BM25 index. Chunks with empty text
// are skipped: they carry no lexical signal and OpenSearch would reject some
// of them anyway.
func (c *Client) IndexChunk(ctx context.Context, ch models.Chunk) error {
	if strings.TrimSpace(ch.Text) == "" {
		return nil
	}

	req := models.IndexRequest{
		DocumentID: ch.DocumentID,
		ChunkID:    ch.ChunkID,
		Source:     ch.Source,
		Page:       ch.Page,
		Text:       ch.Text,
		Tags:       ch.Tags,
	}
	var resp models.IndexResponse
	if err := c.post(ctx, "/index", req, &resp); err != nil {
		return fmt.Errorf("failed to index chunk %s: %w", models.VectorID(ch.DocumentID, ch.ChunkID), err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("search service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("search service returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode search service response: %w", err)
		}
	}
	return nil
}
