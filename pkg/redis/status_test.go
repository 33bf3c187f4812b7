package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryKV struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryKV) Set(_ context.Context, key string, value any, expiration time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.values[key] = string(value.([]byte))
	m.ttls[key] = expiration
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestStatusKey(t *testing.T) {
	assert.Equal(t, "fern:sync:last:demo.myshopify.com:PRODUCT", StatusKey("demo.myshopify.com", "PRODUCT"))
}

func TestSyncStatusStore_SaveAndLast(t *testing.T) {
	kv := newMemoryKV()
	store := NewSyncStatusStore(kv, 0, testLogger())

	finished := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	run := models.SyncRun{
		ID:         uuid.New(),
		Shop:       "demo.myshopify.com",
		OwnerType:  "PRODUCT",
		Status:     models.SyncStatusSuccess,
		Count:      120,
		ChunkSizes: []int{50, 50, 20},
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: &finished,
	}

	require.NoError(t, store.SaveLast(context.Background(), run))
	assert.Equal(t, DefaultStatusTTL, kv.ttls[StatusKey(run.Shop, run.OwnerType)])

	got, found, err := store.Last(context.Background(), run.Shop, run.OwnerType)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, []int{50, 50, 20}, got.ChunkSizes)
	assert.True(t, finished.Equal(*got.FinishedAt))
}

func TestSyncStatusStore_LastMissing(t *testing.T) {
	store := NewSyncStatusStore(newMemoryKV(), time.Hour, testLogger())

	_, found, err := store.Last(context.Background(), "demo.myshopify.com", "PRODUCT")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSyncStatusStore_Errors(t *testing.T) {
	kv := newMemoryKV()
	kv.err = errors.New("connection refused")
	store := NewSyncStatusStore(kv, time.Hour, testLogger())

	err := store.SaveLast(context.Background(), models.SyncRun{Shop: "s", OwnerType: "PRODUCT"})
	assert.Error(t, err)

	_, found, err := store.Last(context.Background(), "s", "PRODUCT")
	assert.Error(t, err)
	assert.False(t, found)
}

func TestSyncStatusStore_CorruptValue(t *testing.T) {
	kv := newMemoryKV()
	kv.values[StatusKey("s", "PRODUCT")] = "{not json"
	store := NewSyncStatusStore(kv, time.Hour, testLogger())

	_, _, err := store.Last(context.Background(), "s", "PRODUCT")
	assert.Error(t, err)
}
