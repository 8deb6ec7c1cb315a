package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhouse/event-aggregator/internal/models"
)

func memEvent(topic, id, source string, receivedAt time.Time) models.Event {
	return models.Event{
		Topic:      topic,
		EventID:    id,
		Timestamp:  receivedAt.Add(-time.Minute),
		Source:     source,
		Payload:    map[string]interface{}{"n": 1.0},
		ReceivedAt: receivedAt,
	}
}

func TestMemoryStore_AdmitIsExactlyOnce(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	ev := memEvent("t", "1", "s", time.Now().UTC())

	const workers = 64
	var wg sync.WaitGroup
	admits := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := st.Admit(ctx, ev)
			assert.NoError(t, err)
			admits <- ok
		}()
	}
	wg.Wait()
	close(admits)

	n := 0
	for ok := range admits {
		if ok {
			n++
		}
	}
	assert.Equal(t, 1, n)

	c, _, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), c.Received)
	assert.Equal(t, c.Received, c.Unique+c.Duplicates)
}

func TestMemoryStore_EventsFilterAndOrder(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	seed := []models.Event{
		memEvent("a", "1", "s1", base.Add(1*time.Second)),
		memEvent("b", "1", "s2", base.Add(2*time.Second)),
		memEvent("a", "2", "s2", base.Add(3*time.Second)),
		memEvent("a", "3", "s1", base.Add(4*time.Second)),
	}
	for _, ev := range seed {
		ok, err := st.Admit(ctx, ev)
		require.NoError(t, err)
		require.True(t, ok)
	}

	events, err := st.Events(ctx, Query{Topic: "a"})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "1", events[0].EventID)
	assert.Equal(t, "2", events[1].EventID)
	assert.Equal(t, "3", events[2].EventID)

	// Conjunctive filters.
	events, err = st.Events(ctx, Query{Topic: "a", Source: "s1"})
	require.NoError(t, err)
	require.Len(t, events, 2)

	events, err = st.Events(ctx, Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestMemoryStore_ResetKeepsLedger(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	ev := memEvent("t", "1", "s", time.Now().UTC())

	_, err := st.Admit(ctx, ev)
	require.NoError(t, err)
	require.NoError(t, st.ResetStats(ctx))

	c, topics, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, c.Received)
	assert.Empty(t, topics)

	// Identity admitted before the reset still resolves as duplicate.
	ok, err := st.Admit(ctx, ev)
	require.NoError(t, err)
	assert.False(t, ok)

	c, _, err = st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Received)
	assert.Equal(t, int64(0), c.Unique)
	assert.Equal(t, int64(1), c.Duplicates)

	// Events survive the reset.
	events, err := st.Events(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestMemoryStore_FailingMode(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	st.SetFailing(true)
	_, err := st.Admit(ctx, memEvent("t", "1", "s", time.Now().UTC()))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, st.Ping(ctx), ErrUnavailable)

	st.SetFailing(false)
	assert.NoError(t, st.Ping(ctx))

	c, _, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, c.Received, "failed operations must not move counters")
}

func TestMemoryStore_DistinctTopics(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for i, topic := range []string{"b", "a", "b", "c"} {
		_, err := st.Admit(ctx, memEvent(topic, fmt.Sprintf("%d", i), "s", now))
		require.NoError(t, err)
	}

	_, topics, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, topics)
}
