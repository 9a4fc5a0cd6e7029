// Package api exposes the three HTTP services: ingestion, query, and lexical
// search. All error responses use the shape {"detail": "..."}.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs one line per request with method, path, status and
// latency.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("request")
	}
}

func newEngine(logger *logrus.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(logger))
	return engine
}

func health(service string, extra gin.H) gin.H {
	h := gin.H{
		"status":    "ok",
		"service":   service,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		h[k] = v
	}
	return h
}
