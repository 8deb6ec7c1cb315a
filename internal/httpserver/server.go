package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/streamhouse/event-aggregator/internal/auth"
	"github.com/streamhouse/event-aggregator/internal/config"
	"github.com/streamhouse/event-aggregator/internal/handlers"
	"github.com/streamhouse/event-aggregator/internal/ingest"
	"github.com/streamhouse/event-aggregator/internal/stats"
	"github.com/streamhouse/event-aggregator/internal/store"
)

// NewRouter wires public endpoints and the (optionally key-guarded) API.
// Public: /health, /ready
// API: POST+GET /events, GET /stats, POST /stats/reset
func NewRouter(cfg config.Config, st store.Store, eng *ingest.Engine, agg *stats.Aggregator, log zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// Readiness: confirms the store dependency is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	api := r.Group("/")
	api.Use(auth.APIKeyMiddleware(cfg.APIKeys))

	handlers.RegisterEventRoutes(api, eng, st, cfg.BatchSize, cfg.QueryLimit)
	handlers.RegisterStatsRoutes(api, agg)

	return r
}

// requestLogger tags each request with an ID, echoes it in X-Request-Id and
// writes one access-log line per request.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.New().String()
		c.Writer.Header().Set("X-Request-Id", id)

		start := time.Now()
		c.Next()

		log.Info().
			Str("request_id", id).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}
