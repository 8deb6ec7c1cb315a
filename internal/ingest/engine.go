// Package ingest decides, for every incoming event, whether it is new or a
// repeat. Admission itself is delegated to the store's atomic conditional
// insert; this package owns validation, received_at stamping and batch
// orchestration.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamhouse/event-aggregator/internal/models"
	"github.com/streamhouse/event-aggregator/internal/store"
)

// Outcome is the per-event resolution of an ingestion attempt.
type Outcome int

const (
	// Admitted means the identity was new and the event is now durable.
	Admitted Outcome = iota
	// Duplicate means the identity was already in the ledger. This is the
	// expected result of an idempotent retry, not a failure.
	Duplicate
	// Failed means the store could not resolve the event; it is neither
	// admitted nor a duplicate and the caller should retry.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Admitted:
		return "admitted"
	case Duplicate:
		return "duplicate"
	default:
		return "failed"
	}
}

// Result pairs an event identity with its resolution. Err is set only for
// Failed outcomes.
type Result struct {
	Topic   string
	EventID string
	Outcome Outcome
	Err     error
}

// BatchResult holds per-event results in the order supplied plus summary
// counts. Admitted+Duplicates+Failed always equals len(Results).
type BatchResult struct {
	Results    []Result
	Admitted   int
	Duplicates int
	Failed     int
}

// Engine is the ingestion engine. It is safe for concurrent use; the only
// correctness-critical section, admit-plus-count, lives inside the store.
type Engine struct {
	store store.Store
	clock admissionClock
	log   zerolog.Logger
}

// New returns an Engine writing to st.
func New(st store.Store, log zerolog.Logger) *Engine {
	return &Engine{store: st, log: log}
}

// IngestOne resolves a single validated event. The caller must have run
// Validate first; ReceivedAt is assigned here.
func (e *Engine) IngestOne(ctx context.Context, ev models.Event) (Outcome, error) {
	ev.ReceivedAt = e.clock.Now()

	admitted, err := e.store.Admit(ctx, ev)
	if err != nil {
		e.log.Error().Err(err).
			Str("topic", ev.Topic).
			Str("event_id", ev.EventID).
			Msg("admission unresolved")
		return Failed, err
	}

	if admitted {
		e.log.Debug().Str("topic", ev.Topic).Str("event_id", ev.EventID).Msg("admitted")
		return Admitted, nil
	}
	e.log.Debug().Str("topic", ev.Topic).Str("event_id", ev.EventID).Msg("duplicate dropped")
	return Duplicate, nil
}

// IngestBatch resolves events one by one in the order supplied, so events
// sharing a topic keep admission order. A duplicate or store fault on one
// event never blocks the rest of the batch.
func (e *Engine) IngestBatch(ctx context.Context, evs []models.Event) BatchResult {
	br := BatchResult{Results: make([]Result, 0, len(evs))}

	for _, ev := range evs {
		out, err := e.IngestOne(ctx, ev)
		switch out {
		case Admitted:
			br.Admitted++
		case Duplicate:
			br.Duplicates++
		default:
			br.Failed++
		}
		br.Results = append(br.Results, Result{
			Topic:   ev.Topic,
			EventID: ev.EventID,
			Outcome: out,
			Err:     err,
		})
	}

	e.log.Info().
		Int("count", len(evs)).
		Int("admitted", br.Admitted).
		Int("duplicates", br.Duplicates).
		Int("failed", br.Failed).
		Msg("batch processed")
	return br
}

// maxFieldLen bounds the caller-supplied string fields.
const maxFieldLen = 255

// Validate checks the caller-supplied fields of an event. It runs at the
// boundary, before anything reaches the ledger; rejected events move no
// counters. ReceivedAt is server-assigned and not checked here.
func Validate(ev models.Event) error {
	switch {
	case ev.Topic == "":
		return errors.New("topic is required")
	case len(ev.Topic) > maxFieldLen:
		return fmt.Errorf("topic exceeds %d characters", maxFieldLen)
	case ev.EventID == "":
		return errors.New("event_id is required")
	case len(ev.EventID) > maxFieldLen:
		return fmt.Errorf("event_id exceeds %d characters", maxFieldLen)
	case ev.Source == "":
		return errors.New("source is required")
	case len(ev.Source) > maxFieldLen:
		return fmt.Errorf("source exceeds %d characters", maxFieldLen)
	case ev.Timestamp.IsZero():
		return errors.New("timestamp is required")
	case ev.Payload == nil:
		return errors.New("payload is required")
	}
	return nil
}

// admissionClock issues received_at stamps that never go backwards within a
// process, even if the wall clock steps back.
type admissionClock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *admissionClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	if now.Before(c.last) {
		now = c.last
	}
	c.last = now
	return now
}
