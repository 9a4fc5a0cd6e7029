package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "documents", cfg.Chroma.Collection)
	assert.Equal(t, "docs_bm25", cfg.OpenSearch.Index)
	assert.Equal(t, 50, cfg.Hybrid.BM25Chunks)
	assert.Equal(t, 3, cfg.Hybrid.CenterK)
	assert.Equal(t, 2, cfg.Hybrid.NeighborWindow)
	assert.Equal(t, 30, cfg.Hybrid.MaxContextChunks)
	assert.InDelta(t, 0.6, cfg.Hybrid.FusionAlpha, 1e-9)
	assert.InDelta(t, 0.85, cfg.Hybrid.CenterRelThreshold, 1e-9)
	assert.InDelta(t, 0.02, cfg.Hybrid.DistancePenalty, 1e-9)
	assert.Equal(t, 12000, cfg.Hybrid.MaxContextChars)
	assert.Equal(t, 500, cfg.Ingest.ChunkSize)
	assert.Equal(t, 50, cfg.Ingest.Overlap)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HYBRID_CENTER_K", "5")
	t.Setenv("HYBRID_FUSION_ALPHA", "0.4")
	t.Setenv("OPENSEARCH_PORT", "9201")
	t.Setenv("CHROMA_COLLECTION", "mydocs")

	cfg := Load()

	assert.Equal(t, 5, cfg.Hybrid.CenterK)
	assert.InDelta(t, 0.4, cfg.Hybrid.FusionAlpha, 1e-9)
	assert.Equal(t, 9201, cfg.OpenSearch.Port)
	assert.Equal(t, "mydocs", cfg.Chroma.Collection)
}

func TestLoadIgnoresGarbageNumbers(t *testing.T) {
	t.Setenv("HYBRID_BM25_CHUNKS", "lots")
	t.Setenv("HYBRID_DISTANCE_PENALTY", "tiny")

	cfg := Load()

	assert.Equal(t, 50, cfg.Hybrid.BM25Chunks)
	assert.InDelta(t, 0.02, cfg.Hybrid.DistancePenalty, 1e-9)
}

func TestOpenSearchAddress(t *testing.T) {
	c := OpenSearchConfig{Host: "opensearch", Port: 9200, Scheme: "https"}
	assert.Equal(t, "https://opensearch:9200", c.Address())
}
