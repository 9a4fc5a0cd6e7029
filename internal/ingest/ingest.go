// Package ingest turns an uploaded document into indexed chunks in both
// retrieval backends.
package ingest

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/ali-haidir/hybrid-rag/internal/chunker"
	"github.com/ali-haidir/hybrid-rag/internal/models"
)

// Embedder embeds chunk texts in order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// VectorWriter persists chunks in the vector store.
type VectorWriter interface {
	Upsert(ctx context.Context, chunks []models.Chunk) error
}

// LexicalWriter registers chunks with the BM25 index.
type LexicalWriter interface {
	IndexChunk(ctx context.Context, ch models.Chunk) error
}

// Pipeline runs load -> chunk -> embed -> dual write.
type Pipeline struct {
	chunker *chunker.Chunker
	embed   Embedder
	vectors VectorWriter
	lexical LexicalWriter
	logger  *logrus.Logger
}

// Result summarizes one ingested document.
type Result struct {
	DocumentID   string
	Characters   int
	Chunks       int
	EmbeddingDim int
	Preview      string
}

// New wires an ingestion pipeline.
func New(c *chunker.Chunker, embed Embedder, vectors VectorWriter, lexical LexicalWriter, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.New()
	}
	return &Pipeline{chunker: c, embed: embed, vectors: vectors, lexical: lexical, logger: logger}
}

// Ingest chunks and indexes the pages of one document. The vector write is
// authoritative: its failure fails the ingest. BM25 indexing is best effort;
// failures are logged and the document still counts as ingested, because
// retrieval degrades to pure vector search without it.
func (p *Pipeline) Ingest(ctx context.Context, documentID, source string, tags []string, pages []chunker.Page) (Result, error) {
	chunks := p.chunker.ChunkPages(documentID, source, tags, pages)
	if len(chunks) == 0 {
		return Result{}, fmt.Errorf("document %q produced no chunks", documentID)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vecs, err := p.embed.EmbedTexts(ctx, texts)
	if err != nil {
		return Result{}, fmt.Errorf("failed to embed document %q: %w", documentID, err)
	}
	if len(vecs) != len(chunks) {
		return Result{}, fmt.Errorf("embedded %d chunks, expected %d", len(vecs), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = vecs[i]
	}

	if err := p.vectors.Upsert(ctx, chunks); err != nil {
		return Result{}, fmt.Errorf("failed to store document %q: %w", documentID, err)
	}

	indexed := 0
	for _, ch := range chunks {
		if err := p.lexical.IndexChunk(ctx, ch); err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{
				"document_id": documentID,
				"chunk_id":    ch.ChunkID,
			}).Warn("bm25 indexing failed, chunk remains vector-only")
			continue
		}
		indexed++
	}

	characters := 0
	for _, ch := range chunks {
		characters += len(ch.Text)
	}
	preview := chunks[0].Text
	if utf8.RuneCountInString(preview) > 200 {
		preview = string([]rune(preview)[:200])
	}

	p.logger.WithFields(logrus.Fields{
		"document_id":  documentID,
		"chunks":       len(chunks),
		"bm25_indexed": indexed,
		"characters":   characters,
	}).Info("ingested document")

	return Result{
		DocumentID:   documentID,
		Characters:   characters,
		Chunks:       len(chunks),
		EmbeddingDim: p.embed.Dimension(),
		Preview:      preview,
	}, nil
}
