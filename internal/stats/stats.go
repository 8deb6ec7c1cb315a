// Package stats exposes the durable ingestion counters together with
// process-level context: uptime and the derived deduplication rate.
package stats

import (
	"context"
	"time"

	"github.com/streamhouse/event-aggregator/internal/store"
)

// Snapshot is a consistent point-in-time view of the aggregate counters.
// Received always equals UniqueProcessed + DuplicateDropped.
type Snapshot struct {
	Received          int64
	UniqueProcessed   int64
	DuplicateDropped  int64
	DeduplicationRate float64
	Topics            []string
	Uptime            time.Duration
}

// Aggregator reads and resets the counters the store maintains inside its
// admission transactions. It holds no counter state of its own, so multiple
// independent instances can be created for testing.
type Aggregator struct {
	store store.Store
	start time.Time
}

// New returns an Aggregator; uptime is measured from this call.
func New(st store.Store) *Aggregator {
	return &Aggregator{store: st, start: time.Now().UTC()}
}

// Snapshot returns the current counters, topic set, uptime and derived
// deduplication rate (percent of received events dropped as duplicates,
// zero when nothing has been received).
func (a *Aggregator) Snapshot(ctx context.Context) (Snapshot, error) {
	c, topics, err := a.store.Stats(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if topics == nil {
		topics = []string{}
	}

	s := Snapshot{
		Received:         c.Received,
		UniqueProcessed:  c.Unique,
		DuplicateDropped: c.Duplicates,
		Topics:           topics,
		Uptime:           time.Since(a.start),
	}
	if c.Received > 0 {
		s.DeduplicationRate = float64(c.Duplicates) / float64(c.Received) * 100
	}
	return s, nil
}

// Reset zeroes the counters and clears the topic set. The dedup ledger and
// stored events are untouched, so replays of already-admitted identities
// still resolve as duplicates afterwards. Idempotent.
func (a *Aggregator) Reset(ctx context.Context) error {
	return a.store.ResetStats(ctx)
}
