package models

import "time"

// Event is the unit of ingestion. Identity is (Topic, EventID): no two
// accepted events share that pair. Payload is opaque to the service and is
// stored and returned verbatim. ReceivedAt is assigned by the server at
// admission time and is non-decreasing within a process.
type Event struct {
	Topic      string                 `json:"topic"`
	EventID    string                 `json:"event_id"`
	Timestamp  time.Time              `json:"timestamp"`
	Source     string                 `json:"source"`
	Payload    map[string]interface{} `json:"payload"`
	ReceivedAt time.Time              `json:"received_at"`
}

// EventRequest is one event object in a POST /events payload. Timestamp is
// RFC3339; all fields are caller-supplied and required.
type EventRequest struct {
	Topic     string                 `json:"topic"`
	EventID   string                 `json:"event_id"`
	Timestamp string                 `json:"timestamp"`
	Source    string                 `json:"source"`
	Payload   map[string]interface{} `json:"payload"`
}

// BatchRequest is the {"events": [...]} wrapper form of POST /events.
// A bare JSON array of event objects is accepted as well.
type BatchRequest struct {
	Events []EventRequest `json:"events"`
}

// EventResponse is returned by POST /events for a single event.
// Status "duplicate" is idempotent success, not a failure.
type EventResponse struct {
	Topic   string `json:"topic"`
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}

// BatchItemResult is the resolution of one event within a batch.
type BatchItemResult struct {
	Topic   string `json:"topic"`
	EventID string `json:"event_id"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// BatchResponse enumerates every per-event outcome plus summary counts.
type BatchResponse struct {
	Count      int               `json:"count"`
	Admitted   int               `json:"admitted"`
	Duplicates int               `json:"duplicates"`
	Failed     int               `json:"failed"`
	Results    []BatchItemResult `json:"results"`
}

// QueryResponse is returned by GET /events.
type QueryResponse struct {
	Count  int     `json:"count"`
	Events []Event `json:"events"`
}

// StatsResponse is returned by GET /stats and POST /stats/reset.
type StatsResponse struct {
	Received          int64    `json:"received"`
	UniqueProcessed   int64    `json:"unique_processed"`
	DuplicateDropped  int64    `json:"duplicate_dropped"`
	DeduplicationRate float64  `json:"deduplication_rate"`
	Topics            []string `json:"topics"`
	UptimeSeconds     float64  `json:"uptime_seconds"`
}
