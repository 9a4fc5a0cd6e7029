package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ali-haidir/hybrid-rag/internal/chunker"
	"github.com/ali-haidir/hybrid-rag/internal/ingest"
	"github.com/ali-haidir/hybrid-rag/internal/loader"
	"github.com/ali-haidir/hybrid-rag/internal/models"
)

// allowedExtensions is the upload allowlist. Everything non-PDF is read as
// plain text, so only formats that actually are plain text belong here.
var allowedExtensions = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

// Ingester runs the ingestion pipeline for already-parsed pages.
type Ingester interface {
	Ingest(ctx context.Context, documentID, source string, tags []string, pages []chunker.Page) (ingest.Result, error)
}

// NewIngestRouter builds the ingestion service routes.
func NewIngestRouter(pipeline Ingester, logger *logrus.Logger) *gin.Engine {
	engine := newEngine(logger)
	h := &ingestHandler{pipeline: pipeline, logger: logger}

	engine.POST("/ingest", h.ingest)
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, health("ingestion", nil))
	})
	return engine
}

type ingestHandler struct {
	pipeline Ingester
	logger   *logrus.Logger
}

func (h *ingestHandler) ingest(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "file is required"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "unsupported file type, expected .pdf, .txt or .md"})
		return
	}

	documentID := strings.TrimSpace(c.PostForm("document_id"))
	if documentID == "" {
		documentID = strings.TrimSuffix(filepath.Base(file.Filename), filepath.Ext(file.Filename))
	}
	if documentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "document_id could not be derived from the filename"})
		return
	}

	source := strings.TrimSpace(c.PostForm("source"))
	if source == "" {
		source = filepath.Base(file.Filename)
	}

	var tags []string
	if raw := strings.TrimSpace(c.PostForm("tags")); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	tmp, err := os.CreateTemp("", "ingest-*"+ext)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to buffer upload"})
		return
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	if err := c.SaveUploadedFile(file, tmp.Name()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to buffer upload"})
		return
	}

	pages, err := loader.LoadPages(tmp.Name(), file.Filename)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"document_id": documentID,
		"filename":    file.Filename,
		"version":     c.PostForm("version"),
		"pages":       len(pages),
	}).Info("ingesting document")

	res, err := h.pipeline.Ingest(c.Request.Context(), documentID, source, tags, pages)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.IngestResponse{
		Status:       "embedded",
		DocumentID:   res.DocumentID,
		Characters:   res.Characters,
		Chunks:       res.Chunks,
		EmbeddingDim: res.EmbeddingDim,
		Preview:      res.Preview,
	})
}
