package stats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhouse/event-aggregator/internal/models"
	"github.com/streamhouse/event-aggregator/internal/store"
)

func admit(t *testing.T, st store.Store, topic, id string) {
	t.Helper()
	_, err := st.Admit(context.Background(), models.Event{
		Topic:      topic,
		EventID:    id,
		Timestamp:  time.Now().UTC(),
		Source:     "src",
		Payload:    map[string]interface{}{},
		ReceivedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestSnapshot_EmptyStore(t *testing.T) {
	agg := New(store.NewMemoryStore())

	sn, err := agg.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Zero(t, sn.Received)
	assert.Zero(t, sn.DeduplicationRate, "rate is defined as 0 when nothing was received")
	assert.NotNil(t, sn.Topics)
	assert.Empty(t, sn.Topics)
	assert.GreaterOrEqual(t, sn.Uptime, time.Duration(0))
}

func TestSnapshot_DeduplicationRate(t *testing.T) {
	st := store.NewMemoryStore()
	agg := New(st)

	// 6 submissions over 5 identities: one repeat.
	for i := 0; i < 5; i++ {
		admit(t, st, "t", fmt.Sprintf("%d", i))
	}
	admit(t, st, "t", "0")

	sn, err := agg.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(6), sn.Received)
	assert.Equal(t, int64(5), sn.UniqueProcessed)
	assert.Equal(t, int64(1), sn.DuplicateDropped)
	assert.InDelta(t, 16.67, sn.DeduplicationRate, 0.01)
}

func TestReset_IsolatedFromLedger(t *testing.T) {
	st := store.NewMemoryStore()
	agg := New(st)
	ctx := context.Background()

	admit(t, st, "t", "1")
	require.NoError(t, agg.Reset(ctx))
	require.NoError(t, agg.Reset(ctx), "reset is idempotent")

	sn, err := agg.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, sn.Received)
	assert.Empty(t, sn.Topics)

	// Post-reset replay of an admitted identity counts as a duplicate.
	admit(t, st, "t", "1")
	sn, err = agg.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sn.Received)
	assert.Equal(t, int64(0), sn.UniqueProcessed)
	assert.Equal(t, int64(1), sn.DuplicateDropped)
	assert.Equal(t, float64(100), sn.DeduplicationRate)
}

func TestSnapshot_StoreFault(t *testing.T) {
	st := store.NewMemoryStore()
	agg := New(st)

	st.SetFailing(true)
	_, err := agg.Snapshot(context.Background())
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.ErrorIs(t, agg.Reset(context.Background()), store.ErrUnavailable)
}

func TestIndependentAggregators(t *testing.T) {
	st1 := store.NewMemoryStore()
	st2 := store.NewMemoryStore()
	agg1, agg2 := New(st1), New(st2)

	admit(t, st1, "only-one", "1")

	sn1, err := agg1.Snapshot(context.Background())
	require.NoError(t, err)
	sn2, err := agg2.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), sn1.Received)
	assert.Zero(t, sn2.Received)
}
