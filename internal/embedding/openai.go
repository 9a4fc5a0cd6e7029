// Package embedding wraps an OpenAI-compatible embeddings endpoint.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// ErrShapeMismatch is returned when the endpoint answers with a vector count
// or dimension that does not match what was asked for.
var ErrShapeMismatch = errors.New("embedding response shape mismatch")

const defaultBatchSize = 128

// Client is a typed wrapper over the embeddings endpoint. It remembers the
// vector dimension seen on the first call and rejects responses that differ,
// since mixed dimensions would silently corrupt the vector index.
type Client struct {
	api       *openai.Client
	model     string
	batchSize int
	logger    *logrus.Logger

	mu  sync.Mutex
	dim int
}

// NewClient builds an embedding client for the given endpoint and model.
func NewClient(baseURL, apiKey, model string, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:       openai.NewClientWithConfig(cfg),
		model:     model,
		batchSize: defaultBatchSize,
		logger:    logger,
	}
}

// Dimension reports the embedding dimension observed so far; 0 before any call.
func (c *Client) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dim
}

// EmbedQuery embeds a single string.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts embeds every text and returns the vectors in input order.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		if err := c.embedBatch(ctx, texts[start:end], out[start:end]); err != nil {
			return nil, err
		}
	}

	if err := c.checkDimensions(out); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"texts": len(texts),
		"dim":   c.Dimension(),
	}).Debug("embedded texts")

	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string, out [][]float32) error {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.model),
		Input: texts,
	})
	if err != nil {
		return fmt.Errorf("failed to create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return fmt.Errorf("%w: asked for %d vectors, got %d", ErrShapeMismatch, len(texts), len(resp.Data))
	}

	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return fmt.Errorf("%w: vector index %d out of range", ErrShapeMismatch, item.Index)
		}
		out[item.Index] = item.Embedding
	}
	return nil
}

// checkDimensions verifies every vector shares one dimension and records it.
func (c *Client) checkDimensions(vecs [][]float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, v := range vecs {
		if len(v) == 0 {
			return fmt.Errorf("%w: empty vector in response", ErrShapeMismatch)
		}
		if c.dim == 0 {
			c.dim = len(v)
			continue
		}
		if len(v) != c.dim {
			return fmt.Errorf("%w: got dimension %d, collection uses %d", ErrShapeMismatch, len(v), c.dim)
		}
	}
	return nil
}
