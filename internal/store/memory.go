package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/streamhouse/event-aggregator/internal/models"
)

var errSimulatedOutage = errors.New("simulated outage")

// MemoryStore is a Store kept entirely in process memory. It backs unit
// tests and DB-less development runs; events do not survive a restart.
// A single mutex serializes admissions, which gives this backend the same
// exactly-one-admit guarantee the unique index gives Postgres, within the
// scope of one process.
type MemoryStore struct {
	mu       sync.Mutex
	seen     map[identity]struct{}
	events   []models.Event
	counters Counters
	topics   map[string]struct{}
	failing  bool
}

type identity struct {
	topic   string
	eventID string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen:   make(map[identity]struct{}),
		topics: make(map[string]struct{}),
	}
}

// SetFailing toggles simulated backend outage: while set, every operation
// returns ErrUnavailable without mutating anything.
func (m *MemoryStore) SetFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

// Admit implements the test-and-set admission under the store mutex.
func (m *MemoryStore) Admit(_ context.Context, ev models.Event) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing {
		return false, unavailable(errSimulatedOutage)
	}

	id := identity{topic: ev.Topic, eventID: ev.EventID}
	if _, dup := m.seen[id]; dup {
		m.counters.Received++
		m.counters.Duplicates++
		return false, nil
	}

	m.seen[id] = struct{}{}
	m.events = append(m.events, ev)
	m.counters.Received++
	m.counters.Unique++
	m.topics[ev.Topic] = struct{}{}
	return true, nil
}

// Events filters and orders the accepted events.
func (m *MemoryStore) Events(_ context.Context, q Query) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing {
		return nil, unavailable(errSimulatedOutage)
	}
	if q.Limit <= 0 || q.Limit > maxQueryLimit {
		q.Limit = maxQueryLimit
	}

	var out []models.Event
	for _, ev := range m.events {
		if q.Topic != "" && ev.Topic != q.Topic {
			continue
		}
		if q.Source != "" && ev.Source != q.Source {
			continue
		}
		out = append(out, ev)
	}

	// Insertion order can lag received_at order when admissions race; sort
	// stably so equal stamps keep insertion order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReceivedAt.Before(out[j].ReceivedAt)
	})

	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Stats returns a snapshot of the counters and sorted topic set.
func (m *MemoryStore) Stats(_ context.Context) (Counters, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing {
		return Counters{}, nil, unavailable(errSimulatedOutage)
	}

	topics := make([]string, 0, len(m.topics))
	for t := range m.topics {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return m.counters, topics, nil
}

// ResetStats zeroes counters and topics but keeps events and the ledger.
func (m *MemoryStore) ResetStats(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing {
		return unavailable(errSimulatedOutage)
	}
	m.counters = Counters{}
	m.topics = make(map[string]struct{})
	return nil
}

// Ping reports the simulated availability state.
func (m *MemoryStore) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return unavailable(errSimulatedOutage)
	}
	return nil
}
