package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/streamhouse/event-aggregator/internal/ingest"
	"github.com/streamhouse/event-aggregator/internal/models"
	"github.com/streamhouse/event-aggregator/internal/store"
)

// parseEvent validates a wire-level event and converts it to the domain
// form. Timestamps must be RFC3339 and are normalized to UTC.
func parseEvent(req models.EventRequest) (models.Event, error) {
	ev := models.Event{
		Topic:   req.Topic,
		EventID: req.EventID,
		Source:  req.Source,
		Payload: req.Payload,
	}

	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			return models.Event{}, errors.New("timestamp must be RFC3339")
		}
		ev.Timestamp = ts.UTC()
	}

	if err := ingest.Validate(ev); err != nil {
		return models.Event{}, err
	}
	return ev, nil
}

// decodePublish accepts the three supported request shapes: a single event
// object, {"events": [...]}, or a bare array. single reports which one the
// caller used so the response shape can match.
func decodePublish(raw []byte) (events []models.EventRequest, single bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false, errors.New("no data provided")
	}

	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &events); err != nil {
			return nil, false, errors.New("invalid JSON payload")
		}
		return events, false, nil
	}

	var probe struct {
		Events *json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, false, errors.New("invalid JSON payload")
	}

	if probe.Events != nil {
		var batch models.BatchRequest
		if err := json.Unmarshal(raw, &batch); err != nil {
			return nil, false, errors.New("invalid JSON payload")
		}
		return batch.Events, false, nil
	}

	var one models.EventRequest
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, false, errors.New("invalid JSON payload")
	}
	return []models.EventRequest{one}, true, nil
}

// RegisterEventRoutes registers the ingestion and query endpoints.
//
// POST /events
//   - Accepts one event, {"events": [...]} or a bare array
//   - Durable: success is returned only after the admit transaction commits
//   - Idempotent: duplicates detected via the (topic, event_id) identity
//
// GET /events?topic=&source=&limit=
//   - Accepted events, oldest received_at first
func RegisterEventRoutes(r gin.IRoutes, eng *ingest.Engine, st store.Store, batchSize, queryLimit int) {
	r.POST("/events", func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}

		reqs, single, err := decodePublish(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(reqs) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no valid events to process"})
			return
		}
		if len(reqs) > batchSize {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("batch exceeds %d events", batchSize),
			})
			return
		}

		// Validation is all-up-front: a malformed event rejects the request
		// before anything reaches the ledger or moves a counter.
		events := make([]models.Event, 0, len(reqs))
		for i, req := range reqs {
			ev, err := parseEvent(req)
			if err != nil {
				msg := err.Error()
				if !single {
					msg = fmt.Sprintf("event at index %d: %s", i, msg)
				}
				c.JSON(http.StatusBadRequest, gin.H{"error": msg})
				return
			}
			events = append(events, ev)
		}

		if single {
			outcome, err := eng.IngestOne(c.Request.Context(), events[0])
			if err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, store.ErrUnavailable) {
					status = http.StatusServiceUnavailable
				}
				c.JSON(status, gin.H{"error": "event not resolved, retry", "detail": err.Error()})
				return
			}

			// 201 for new events, 409 for duplicates (idempotent success).
			status := http.StatusCreated
			if outcome == ingest.Duplicate {
				status = http.StatusConflict
			}
			c.JSON(status, models.EventResponse{
				Topic:   events[0].Topic,
				EventID: events[0].EventID,
				Status:  outcome.String(),
			})
			return
		}

		br := eng.IngestBatch(c.Request.Context(), events)

		resp := models.BatchResponse{
			Count:      len(br.Results),
			Admitted:   br.Admitted,
			Duplicates: br.Duplicates,
			Failed:     br.Failed,
			Results:    make([]models.BatchItemResult, 0, len(br.Results)),
		}
		for _, res := range br.Results {
			item := models.BatchItemResult{
				Topic:   res.Topic,
				EventID: res.EventID,
				Status:  res.Outcome.String(),
			}
			if res.Err != nil {
				item.Error = res.Err.Error()
			}
			resp.Results = append(resp.Results, item)
		}
		c.JSON(http.StatusOK, resp)
	})

	r.GET("/events", func(c *gin.Context) {
		limit := queryLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}

		events, err := st.Events(c.Request.Context(), store.Query{
			Topic:  c.Query("topic"),
			Source: c.Query("source"),
			Limit:  limit,
		})
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, store.ErrUnavailable) {
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, gin.H{"error": "query failed"})
			return
		}
		if events == nil {
			events = []models.Event{}
		}

		c.JSON(http.StatusOK, models.QueryResponse{
			Count:  len(events),
			Events: events,
		})
	})
}
