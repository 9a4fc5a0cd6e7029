package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the three services read from the environment.
// Each service only uses its slice of it, but keeping one struct means the
// tuning knobs are parsed (and defaulted) in exactly one place.
type Config struct {
	OpenAI     OpenAIConfig
	Chroma     ChromaConfig
	OpenSearch OpenSearchConfig
	Search     SearchServiceConfig
	Hybrid     HybridConfig
	Ingest     IngestConfig
}

type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	ModelEmbed string
	ModelChat  string
	Timeout    time.Duration
}

type ChromaConfig struct {
	URL        string
	PersistDir string
	Collection string
	Timeout    time.Duration
}

type OpenSearchConfig struct {
	Host     string
	Port     int
	Scheme   string
	User     string
	Password string
	Index    string
}

// Address builds the OpenSearch endpoint URL.
func (c OpenSearchConfig) Address() string {
	return fmt.Sprintf("%s://%s:%d", c.Scheme, c.Host, c.Port)
}

type SearchServiceConfig struct {
	URL     string
	Timeout time.Duration
}

// HybridConfig holds the retrieval tuning knobs (HYBRID_* variables).
type HybridConfig struct {
	BM25Chunks         int
	CenterK            int
	NeighborWindow     int
	MaxContextChunks   int
	FusionAlpha        float64
	CenterRelThreshold float64
	DistancePenalty    float64
	MaxContextChars    int
}

type IngestConfig struct {
	ChunkSize int
	Overlap   int
}

// Load reads a .env file when present and then the process environment.
func Load() Config {
	// missing .env is fine; the environment wins either way
	_ = godotenv.Load()

	return Config{
		OpenAI: OpenAIConfig{
			BaseURL:    getEnv("BASE_URL", ""),
			APIKey:     getEnv("OPENAI_API_KEY", "anything"),
			ModelEmbed: getEnv("MODEL_EMBED", ""),
			ModelChat:  getEnv("MODEL_CHAT", "ai/qwen3:latest"),
			Timeout:    getEnvDuration("OPENAI_TIMEOUT", 60*time.Second),
		},
		Chroma: ChromaConfig{
			URL:        getEnv("CHROMA_URL", "http://localhost:8000"),
			PersistDir: getEnv("CHROMA_PERSIST_DIR", "/chroma_data"),
			Collection: getEnv("CHROMA_COLLECTION", "documents"),
			Timeout:    getEnvDuration("CHROMA_TIMEOUT", 30*time.Second),
		},
		OpenSearch: OpenSearchConfig{
			Host:     getEnv("OPENSEARCH_HOST", "opensearch"),
			Port:     getEnvInt("OPENSEARCH_PORT", 9200),
			Scheme:   getEnv("OPENSEARCH_SCHEME", "http"),
			User:     getEnv("OPENSEARCH_USER", "admin"),
			Password: getEnv("OPENSEARCH_PASSWORD", ""),
			Index:    getEnv("OPENSEARCH_INDEX", "docs_bm25"),
		},
		Search: SearchServiceConfig{
			URL:     getEnv("SEARCH_SERVICE_URL", "http://search-service:8003"),
			Timeout: getEnvDuration("SEARCH_SERVICE_TIMEOUT", 5*time.Second),
		},
		Hybrid: HybridConfig{
			BM25Chunks:         getEnvInt("HYBRID_BM25_CHUNKS", 50),
			CenterK:            getEnvInt("HYBRID_CENTER_K", 3),
			NeighborWindow:     getEnvInt("HYBRID_NEIGHBOR_WINDOW", 2),
			MaxContextChunks:   getEnvInt("HYBRID_MAX_CONTEXT_CHUNKS", 30),
			FusionAlpha:        getEnvFloat("HYBRID_FUSION_ALPHA", 0.6),
			CenterRelThreshold: getEnvFloat("HYBRID_CENTER_REL_THRESHOLD", 0.85),
			DistancePenalty:    getEnvFloat("HYBRID_DISTANCE_PENALTY", 0.02),
			MaxContextChars:    getEnvInt("HYBRID_MAX_CONTEXT_CHARS", 12000),
		},
		Ingest: IngestConfig{
			ChunkSize: getEnvInt("INGEST_CHUNK_SIZE", 500),
			Overlap:   getEnvInt("INGEST_CHUNK_OVERLAP", 50),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
