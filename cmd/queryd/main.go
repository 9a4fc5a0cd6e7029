package main

import (
	"flag"

	"github.com/sirupsen/logrus"

	"github.com/ali-haidir/hybrid-rag/internal/api"
	"github.com/ali-haidir/hybrid-rag/internal/config"
	"github.com/ali-haidir/hybrid-rag/internal/embedding"
	"github.com/ali-haidir/hybrid-rag/internal/llm"
	"github.com/ali-haidir/hybrid-rag/internal/retrieval"
	"github.com/ali-haidir/hybrid-rag/internal/searchclient"
	"github.com/ali-haidir/hybrid-rag/internal/vectorstore"
)

func main() {
	addr := flag.String("addr", ":8002", "listen address")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.Load()

	embedder := embedding.NewClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.ModelEmbed, logger)

	vectors := vectorstore.New(vectorstore.Config{
		URL:        cfg.Chroma.URL,
		Collection: cfg.Chroma.Collection,
		Timeout:    cfg.Chroma.Timeout,
		Logger:     logger,
	})

	bm25 := searchclient.New(cfg.Search.URL, cfg.Search.Timeout, logger)

	engine := retrieval.NewEngine(vectors, bm25, embedder, cfg.Hybrid, logger)
	answerer := llm.NewClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.ModelChat, logger)

	router := api.NewQueryRouter(engine, answerer, vectors, cfg.OpenAI.ModelChat, cfg.Hybrid, logger)
	logger.WithField("addr", *addr).Info("query service listening")
	if err := router.Run(*addr); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}
