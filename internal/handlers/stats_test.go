package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhouse/event-aggregator/internal/models"
)

func TestGetStats_CountersAndRate(t *testing.T) {
	r, _ := newTestServer(t, nil)

	// One admit, one duplicate.
	doJSON(t, r, http.MethodPost, "/events", eventBody("a", "1"))
	doJSON(t, r, http.MethodPost, "/events", eventBody("a", "1"))

	w := doJSON(t, r, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var sn models.StatsResponse
	decode(t, w, &sn)
	assert.Equal(t, int64(2), sn.Received)
	assert.Equal(t, int64(1), sn.UniqueProcessed)
	assert.Equal(t, int64(1), sn.DuplicateDropped)
	assert.Equal(t, float64(50), sn.DeduplicationRate)
	assert.Equal(t, []string{"a"}, sn.Topics)
	assert.GreaterOrEqual(t, sn.UptimeSeconds, float64(0))
}

func TestPostStatsReset(t *testing.T) {
	r, _ := newTestServer(t, nil)

	doJSON(t, r, http.MethodPost, "/events", eventBody("a", "1"))

	w := doJSON(t, r, http.MethodPost, "/stats/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var sn models.StatsResponse
	decode(t, w, &sn)
	assert.Zero(t, sn.Received)
	assert.Empty(t, sn.Topics)

	// Reset does not delete events or forget identities.
	w = doJSON(t, r, http.MethodGet, "/events", nil)
	var q models.QueryResponse
	decode(t, w, &q)
	assert.Equal(t, 1, q.Count)

	w = doJSON(t, r, http.MethodPost, "/events", eventBody("a", "1"))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodGet, "/stats", nil)
	decode(t, w, &sn)
	assert.Equal(t, int64(1), sn.Received)
	assert.Equal(t, int64(0), sn.UniqueProcessed)
	assert.Equal(t, int64(1), sn.DuplicateDropped)
}
