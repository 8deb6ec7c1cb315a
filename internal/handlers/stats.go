package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/streamhouse/event-aggregator/internal/models"
	"github.com/streamhouse/event-aggregator/internal/stats"
	"github.com/streamhouse/event-aggregator/internal/store"
)

func statsStatus(err error) int {
	if errors.Is(err, store.ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func toStatsResponse(sn stats.Snapshot) models.StatsResponse {
	return models.StatsResponse{
		Received:          sn.Received,
		UniqueProcessed:   sn.UniqueProcessed,
		DuplicateDropped:  sn.DuplicateDropped,
		DeduplicationRate: sn.DeduplicationRate,
		Topics:            sn.Topics,
		UptimeSeconds:     sn.Uptime.Seconds(),
	}
}

// RegisterStatsRoutes registers the aggregate statistics endpoints.
//
// GET  /stats       — counters, topic set, dedup rate, uptime
// POST /stats/reset — zero the counters; idempotent, events stay put
func RegisterStatsRoutes(r gin.IRoutes, agg *stats.Aggregator) {
	r.GET("/stats", func(c *gin.Context) {
		sn, err := agg.Snapshot(c.Request.Context())
		if err != nil {
			c.JSON(statsStatus(err), gin.H{"error": "stats unavailable"})
			return
		}
		c.JSON(http.StatusOK, toStatsResponse(sn))
	})

	r.POST("/stats/reset", func(c *gin.Context) {
		if err := agg.Reset(c.Request.Context()); err != nil {
			c.JSON(statsStatus(err), gin.H{"error": "reset failed"})
			return
		}
		sn, err := agg.Snapshot(c.Request.Context())
		if err != nil {
			c.JSON(statsStatus(err), gin.H{"error": "stats unavailable"})
			return
		}
		c.JSON(http.StatusOK, toStatsResponse(sn))
	})
}
