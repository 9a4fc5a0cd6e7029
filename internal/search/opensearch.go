// Package search wraps the OpenSearch BM25 index that backs lexical retrieval.
package search

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/sirupsen/logrus"

	"github.com/ali-haidir/hybrid-rag/internal/models"
)

const (
	maxTopK     = 50
	defaultTopK = 10
)

// indexMapping defines the BM25 schema. text is the only analyzed field;
// everything else is exact-match metadata used for filtering.
const indexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "properties": {
      "document_id": {"type": "keyword"},
      "chunk_id":    {"type": "integer"},
      "source":      {"type": "keyword"},
      "page":        {"type": "integer"},
      "text":        {"type": "text"},
      "tags":        {"type": "keyword"}
    }
  }
}`

// Config holds the OpenSearch connection settings.
type Config struct {
	Address  string
	Username string
	Password string
	Index    string
	Logger   *logrus.Logger
}

// Store is a thin facade over the OpenSearch client: one index, BM25 queries
// with exact-match filters.
type Store struct {
	client *opensearch.Client
	index  string
	logger *logrus.Logger

	mu      sync.Mutex
	ensured bool
}

// New connects to OpenSearch. The index itself is created lazily so the
// service can start before OpenSearch is up.
func New(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.Address},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	return &Store{
		client: client,
		index:  cfg.Index,
		logger: cfg.Logger,
	}, nil
}

// Info returns the cluster info blob, used by the health endpoint.
func (s *Store) Info(ctx context.Context) (map[string]any, error) {
	resp, err := s.client.Info(s.client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to reach opensearch: %w", err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return nil, fmt.Errorf("opensearch info failed: %s", resp.String())
	}

	var info map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode opensearch info: %w", err)
	}
	return info, nil
}

// EnsureIndex creates the BM25 index if it does not exist. A concurrent
// creation by another instance is treated as success.
func (s *Store) EnsureIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}

	exists, err := s.client.Indices.Exists(
		[]string{s.index},
		s.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to check index %q: %w", s.index, err)
	}
	exists.Body.Close()

	if exists.StatusCode == http.StatusOK {
		s.ensured = true
		return nil
	}

	create, err := s.client.Indices.Create(
		s.index,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("failed to create index %q: %w", s.index, err)
	}
	defer create.Body.Close()

	if create.IsError() {
		raw, _ := io.ReadAll(create.Body)
		if strings.Contains(string(raw), "resource_already_exists_exception") {
			s.ensured = true
			return nil
		}
		return fmt.Errorf("failed to create index %q: %s", s.index, raw)
	}

	s.logger.WithField("index", s.index).Info("created bm25 index")
	s.ensured = true
	return nil
}

// Index writes one chunk under its deterministic id so re-ingesting a
// document overwrites instead of duplicating.
func (s *Store) Index(ctx context.Context, ch models.Chunk) (models.IndexResponse, error) {
	if err := s.EnsureIndex(ctx); err != nil {
		return models.IndexResponse{}, err
	}

	doc := map[string]any{
		"document_id": ch.DocumentID,
		"chunk_id":    ch.ChunkID,
		"text":        ch.Text,
	}
	if ch.Source != "" {
		doc["source"] = ch.Source
	}
	if ch.Page > 0 {
		doc["page"] = ch.Page
	}
	if len(ch.Tags) > 0 {
		doc["tags"] = ch.Tags
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return models.IndexResponse{}, fmt.Errorf("failed to marshal chunk: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index:      s.index,
		DocumentID: models.VectorID(ch.DocumentID, ch.ChunkID),
		Body:       bytes.NewReader(raw),
	}
	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return models.IndexResponse{}, fmt.Errorf("failed to index chunk: %w", err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return models.IndexResponse{}, fmt.Errorf("failed to index chunk: %s", resp.String())
	}

	var out struct {
		Index  string `json:"_index"`
		ID     string `json:"_id"`
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.IndexResponse{}, fmt.Errorf("failed to decode index response: %w", err)
	}
	return models.IndexResponse{Index: out.Index, ID: out.ID, Result: out.Result}, nil
}

// searchResponse mirrors the slice of the OpenSearch response we care about.
type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Score  float64 `json:"_score"`
			Source struct {
				DocumentID string   `json:"document_id"`
				ChunkID    int      `json:"chunk_id"`
				Source     string   `json:"source"`
				Page       int      `json:"page"`
				Text       string   `json:"text"`
				Tags       []string `json:"tags"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a BM25 match query over chunk text with optional exact-match
// filters, returning hits best first. topK is clamped to [1, 50].
func (s *Store) Search(ctx context.Context, req models.SearchRequest) (models.SearchResponse, error) {
	if err := s.EnsureIndex(ctx); err != nil {
		return models.SearchResponse{}, err
	}

	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	boolQuery := map[string]any{
		"must": []any{
			map[string]any{"match": map[string]any{"text": req.Query}},
		},
	}
	var filters []any
	if len(req.DocumentIDs) > 0 {
		filters = append(filters, map[string]any{"terms": map[string]any{"document_id": req.DocumentIDs}})
	}
	if len(req.Sources) > 0 {
		filters = append(filters, map[string]any{"terms": map[string]any{"source": req.Sources}})
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	body, err := json.Marshal(map[string]any{
		"size":  topK,
		"query": map[string]any{"bool": boolQuery},
	})
	if err != nil {
		return models.SearchResponse{}, fmt.Errorf("failed to marshal search body: %w", err)
	}

	resp, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return models.SearchResponse{}, fmt.Errorf("bm25 search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return models.SearchResponse{}, fmt.Errorf("bm25 search failed: %s", resp.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return models.SearchResponse{}, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := make([]models.SearchHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, models.SearchHit{
			DocumentID: h.Source.DocumentID,
			ChunkID:    h.Source.ChunkID,
			Source:     h.Source.Source,
			Page:       h.Source.Page,
			Text:       h.Source.Text,
			Tags:       h.Source.Tags,
			Score:      h.Score,
		})
	}

	s.logger.WithFields(logrus.Fields{
		"query": req.Query,
		"top_k": topK,
		"hits":  len(hits),
	}).Debug("bm25 search")

	return models.SearchResponse{Hits: hits, Total: parsed.Hits.Total.Value}, nil
}
