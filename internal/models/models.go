package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Chunk is the atomic retrieval unit. The same chunk is written to both the
// vector store and the BM25 index; (DocumentID, ChunkID) identifies it in both.
type Chunk struct {
	DocumentID string    `json:"document_id"`
	ChunkID    int       `json:"chunk_id"`
	Text       string    `json:"text"`
	Page       int       `json:"page,omitempty"`
	Source     string    `json:"source,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// VectorID returns the deterministic vector-store key for a chunk.
// Neighbor expansion and idempotent upserts depend on this exact format.
func VectorID(documentID string, chunkID int) string {
	return fmt.Sprintf("%s::%d", strings.TrimSpace(documentID), chunkID)
}

// SplitVectorID is the inverse of VectorID.
func SplitVectorID(id string) (documentID string, chunkID int, err error) {
	idx := strings.LastIndex(id, "::")
	if idx < 0 {
		return "", 0, fmt.Errorf("malformed chunk id %q", id)
	}
	chunkID, err = strconv.Atoi(id[idx+2:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed chunk id %q: %w", id, err)
	}
	return id[:idx], chunkID, nil
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Question   string `json:"question" binding:"required,min=3"`
	TopK       int    `json:"top_k" binding:"omitempty,gte=1,lte=20"`
	ModelName  string `json:"model_name"`
	DocumentID string `json:"document_id"`
}

// Source is one ranked citation in a query response.
type Source struct {
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id"`
	Source     string `json:"source,omitempty"`
	Page       int    `json:"page,omitempty"`
	Snippet    string `json:"snippet,omitempty"`
}

// QueryResponse is the body of a successful POST /query.
type QueryResponse struct {
	Answer      string   `json:"answer"`
	Sources     []Source `json:"sources"`
	ContextUsed int      `json:"context_used"`
	ModelUsed   string   `json:"model_used"`
}

// SearchRequest is the body of POST /search on the search service.
type SearchRequest struct {
	Query       string   `json:"query" binding:"required,min=1"`
	TopK        int      `json:"top_k" binding:"omitempty,gte=1,lte=50"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	Sources     []string `json:"sources,omitempty"`
}

// SearchHit is one BM25 hit (one chunk).
type SearchHit struct {
	DocumentID string   `json:"document_id"`
	ChunkID    int      `json:"chunk_id"`
	Source     string   `json:"source,omitempty"`
	Page       int      `json:"page,omitempty"`
	Text       string   `json:"text"`
	Tags       []string `json:"tags"`
	Score      float64  `json:"score"`
}

// SearchResponse wraps BM25 hits.
type SearchResponse struct {
	Hits  []SearchHit `json:"hits"`
	Total int         `json:"total"`
}

// IndexRequest is the body of POST /index on the search service.
type IndexRequest struct {
	DocumentID string   `json:"document_id" binding:"required"`
	ChunkID    int      `json:"chunk_id" binding:"gte=0"`
	Source     string   `json:"source,omitempty"`
	Page       int      `json:"page,omitempty"`
	Text       string   `json:"text" binding:"required"`
	Tags       []string `json:"tags,omitempty"`
}

// IndexResponse echoes what the lexical store reported for one indexed chunk.
type IndexResponse struct {
	Index  string `json:"index"`
	ID     string `json:"id"`
	Result string `json:"result"`
}

// IngestResponse is the body of a successful POST /ingest.
type IngestResponse struct {
	Status       string `json:"status"`
	DocumentID   string `json:"document_id"`
	Characters   int    `json:"characters"`
	Chunks       int    `json:"chunks"`
	EmbeddingDim int    `json:"embedding_dim"`
	Preview      string `json:"preview,omitempty"`
}
