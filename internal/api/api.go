// Package api exposes the pipeline's operational surface: a health check and
// a per-status row summary. Not a dashboard; just enough for probes and
// operators.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dtcops/blobsync/internal/api/middleware"
	"github.com/dtcops/blobsync/internal/domain"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// StatusReader reports row counts grouped by processing status.
type StatusReader interface {
	StatusSummary(ctx context.Context) ([]domain.StatusCount, error)
}

// HealthChecker reports whether the record store is reachable.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

func NewRouter(status StatusReader, health HealthChecker) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		if err := health.Healthy(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")
	apiGroup.GET("/status", func(c *gin.Context) {
		summary, err := status.StatusSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"statuses": summary})
	})

	return router
}
