package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/streamhouse/event-aggregator/internal/models"
)

// ErrUnavailable marks an admission or query that could not complete because
// the backend failed. The event is neither admitted nor a duplicate and no
// counter moved; the caller decides whether to retry or surface the failure.
var ErrUnavailable = errors.New("store unavailable")

// maxQueryLimit bounds result sets when the caller supplies no limit.
const maxQueryLimit = 1000

// Counters is the durable statistics row. Received always equals
// Unique + Duplicates because all three move in the admit transaction.
type Counters struct {
	Received   int64
	Unique     int64
	Duplicates int64
}

// Query filters the event view. Zero-valued fields mean no constraint on
// that field; filters combine with AND.
type Query struct {
	Topic  string
	Source string
	Limit  int
}

// Store is the durable backend: the dedup ledger's identity index, event
// persistence, and the statistics counters, all mutated atomically together.
type Store interface {
	// Admit inserts ev if its (topic, event_id) identity is unseen and bumps
	// the counters in the same transaction. It reports false for a duplicate
	// identity, in which case only the duplicate counters move. Under
	// concurrent calls with one identity exactly one caller sees true.
	Admit(ctx context.Context, ev models.Event) (bool, error)

	// Events returns accepted events matching q in ascending received_at
	// order, ties broken by insertion order.
	Events(ctx context.Context, q Query) ([]models.Event, error)

	// Stats returns the counters and the sorted distinct topics admitted
	// since the last reset, as one consistent view.
	Stats(ctx context.Context) (Counters, []string, error)

	// ResetStats zeroes the counters and clears the topic set. Accepted
	// events and the identity index are untouched, so identities admitted
	// before a reset still resolve as duplicates after it.
	ResetStats(ctx context.Context) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
