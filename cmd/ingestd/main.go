package main

import (
	"flag"

	"github.com/sirupsen/logrus"

	"github.com/ali-haidir/hybrid-rag/internal/api"
	"github.com/ali-haidir/hybrid-rag/internal/chunker"
	"github.com/ali-haidir/hybrid-rag/internal/config"
	"github.com/ali-haidir/hybrid-rag/internal/embedding"
	"github.com/ali-haidir/hybrid-rag/internal/ingest"
	"github.com/ali-haidir/hybrid-rag/internal/searchclient"
	"github.com/ali-haidir/hybrid-rag/internal/vectorstore"
)

func main() {
	addr := flag.String("addr", ":8001", "listen address")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.Load()

	c, err := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.Overlap)
	if err != nil {
		logger.WithError(err).Fatal("invalid chunking configuration")
	}

	embedder := embedding.NewClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.ModelEmbed, logger)

	vectors := vectorstore.New(vectorstore.Config{
		URL:        cfg.Chroma.URL,
		Collection: cfg.Chroma.Collection,
		Timeout:    cfg.Chroma.Timeout,
		Logger:     logger,
	})

	lexical := searchclient.New(cfg.Search.URL, cfg.Search.Timeout, logger)

	pipeline := ingest.New(c, embedder, vectors, lexical, logger)

	router := api.NewIngestRouter(pipeline, logger)
	logger.WithField("addr", *addr).Info("ingestion service listening")
	if err := router.Run(*addr); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}
