package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ali-haidir/hybrid-rag/internal/config"
	"github.com/ali-haidir/hybrid-rag/internal/llm"
	"github.com/ali-haidir/hybrid-rag/internal/models"
	"github.com/ali-haidir/hybrid-rag/internal/retrieval"
)

// Retriever produces ranked evidence chunks for a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int, documentID string) ([]retrieval.RankedChunk, error)
}

// Answerer generates a grounded answer from retrieved context.
type Answerer interface {
	Answer(ctx context.Context, question, contextText, modelName string) (answer, modelUsed string, err error)
}

// Pinger checks that the vector store is reachable.
type Pinger interface {
	Heartbeat(ctx context.Context) error
}

// NewQueryRouter builds the query service routes. defaultModel is the chat
// model used when a request does not override it; vectors may be nil when no
// heartbeat check is wanted.
func NewQueryRouter(retriever Retriever, answerer Answerer, vectors Pinger, defaultModel string, cfg config.HybridConfig, logger *logrus.Logger) *gin.Engine {
	engine := newEngine(logger)
	h := &queryHandler{retriever: retriever, answerer: answerer, defaultModel: defaultModel, cfg: cfg, logger: logger}

	engine.POST("/query", h.query)
	engine.GET("/health", func(c *gin.Context) {
		extra := gin.H{}
		if vectors != nil {
			if err := vectors.Heartbeat(c.Request.Context()); err != nil {
				extra["vector_store"] = "unreachable"
			} else {
				extra["vector_store"] = "ok"
			}
		}
		c.JSON(http.StatusOK, health("query", extra))
	})
	return engine
}

type queryHandler struct {
	retriever    Retriever
	answerer     Answerer
	defaultModel string
	cfg          config.HybridConfig
	logger       *logrus.Logger
}

func (h *queryHandler) query(c *gin.Context) {
	var req models.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}

	ranked, err := h.retriever.Retrieve(c.Request.Context(), req.Question, topK, req.DocumentID)
	if err != nil {
		h.logger.WithError(err).Error("retrieval failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	// Nothing retrievable means nothing to ground an answer in, so the model
	// is not consulted at all.
	if len(ranked) == 0 {
		model := req.ModelName
		if model == "" {
			model = h.defaultModel
		}
		c.JSON(http.StatusOK, models.QueryResponse{
			Answer:    llm.UnknownAnswer,
			Sources:   []models.Source{},
			ModelUsed: model,
		})
		return
	}

	contextText, usedChunks := retrieval.BuildContext(ranked, h.cfg.MaxContextChars)

	answer, modelUsed, err := h.answerer.Answer(c.Request.Context(), req.Question, contextText, req.ModelName)
	if err != nil {
		h.logger.WithError(err).Error("answer generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"chunks_ranked": len(ranked),
		"chunks_used":   usedChunks,
		"context_chars": len(contextText),
		"model":         modelUsed,
	}).Info("answered query")

	c.JSON(http.StatusOK, models.QueryResponse{
		Answer:      answer,
		Sources:     retrieval.Sources(ranked, topK),
		ContextUsed: len(contextText),
		ModelUsed:   modelUsed,
	})
}
