package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ali-haidir/hybrid-rag/internal/models"
)

// LexicalStore is the slice of the BM25 store the search service exposes.
type LexicalStore interface {
	Search(ctx context.Context, req models.SearchRequest) (models.SearchResponse, error)
	Index(ctx context.Context, ch models.Chunk) (models.IndexResponse, error)
	Info(ctx context.Context) (map[string]any, error)
}

// NewSearchRouter builds the search service routes.
func NewSearchRouter(store LexicalStore, logger *logrus.Logger) *gin.Engine {
	engine := newEngine(logger)
	h := &searchHandler{store: store, logger: logger}

	engine.POST("/search", h.search)
	engine.POST("/index", h.index)
	engine.GET("/health", h.health)
	return engine
}

type searchHandler struct {
	store  LexicalStore
	logger *logrus.Logger
}

func (h *searchHandler) search(c *gin.Context) {
	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	resp, err := h.store.Search(c.Request.Context(), req)
	if err != nil {
		h.logger.WithError(err).Error("bm25 search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	if resp.Hits == nil {
		resp.Hits = []models.SearchHit{}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *searchHandler) index(c *gin.Context) {
	var req models.IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	resp, err := h.store.Index(c.Request.Context(), models.Chunk{
		DocumentID: req.DocumentID,
		ChunkID:    req.ChunkID,
		Source:     req.Source,
		Page:       req.Page,
		Text:       req.Text,
		Tags:       req.Tags,
	})
	if err != nil {
		h.logger.WithError(err).Error("bm25 indexing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// health reports ok only when OpenSearch itself answers.
func (h *searchHandler) health(c *gin.Context) {
	info, err := h.store.Info(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"status": "degraded", "detail": err.Error()})
		return
	}

	extra := gin.H{}
	if name, ok := info["cluster_name"]; ok {
		extra["cluster_name"] = name
	}
	c.JSON(http.StatusOK, health("search", extra))
}
