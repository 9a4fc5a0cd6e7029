package main

import (
	"flag"

	"github.com/sirupsen/logrus"

	"github.com/ali-haidir/hybrid-rag/internal/api"
	"github.com/ali-haidir/hybrid-rag/internal/config"
	"github.com/ali-haidir/hybrid-rag/internal/search"
)

func main() {
	addr := flag.String("addr", ":8003", "listen address")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.Load()

	store, err := search.New(search.Config{
		Address:  cfg.OpenSearch.Address(),
		Username: cfg.OpenSearch.User,
		Password: cfg.OpenSearch.Password,
		Index:    cfg.OpenSearch.Index,
		Logger:   logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to opensearch")
	}

	router := api.NewSearchRouter(store, logger)
	logger.WithField("addr", *addr).Info("search service listening")
	if err := router.Run(*addr); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}
