package schema

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunks(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		size  int
		sizes []int
	}{
		{name: "empty", n: 0, size: 50, sizes: []int{}},
		{name: "single partial", n: 7, size: 50, sizes: []int{7}},
		{name: "exact multiple", n: 100, size: 50, sizes: []int{50, 50}},
		{name: "remainder", n: 120, size: 50, sizes: []int{50, 50, 20}},
		{name: "size one", n: 3, size: 1, sizes: []int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := makeCommands(tt.n)
			chunks := Chunks(cmds, tt.size)

			sizes := make([]int, len(chunks))
			var flattened []models.UpsertCommand
			for i, chunk := range chunks {
				sizes[i] = len(chunk)
				flattened = append(flattened, chunk...)
			}

			assert.Equal(t, tt.sizes, sizes)
			assert.Equal(t, tt.sizes, ChunkSizes(tt.n, tt.size))
			assert.Len(t, chunks, (tt.n+tt.size-1)/tt.size)
			if tt.n > 0 {
				assert.Equal(t, cmds, flattened)
			}
		})
	}
}

func TestChunks_DoNotShareCapacity(t *testing.T) {
	cmds := makeCommands(4)
	chunks := Chunks(cmds, 2)

	chunks[0] = append(chunks[0], models.UpsertCommand{Key: "extra"})
	assert.Equal(t, "custom.field_002", cmds[2].Key)
}

func TestApply_AllChunks(t *testing.T) {
	store := newMemoryStore()
	u := NewUpserter(store, testLogger(), UpserterConfig{})

	count, err := u.Apply(context.Background(), makeCommands(120))
	require.NoError(t, err)
	assert.Equal(t, 120, count)
	assert.Equal(t, []int{50, 50, 20}, store.chunkSizes)
	assert.Len(t, store.rows, 120)
}

func TestApply_PartialFailure(t *testing.T) {
	storeErr := errors.New("deadlock detected")
	store := newMemoryStore()
	store.failOn[1] = storeErr
	u := NewUpserter(store, testLogger(), UpserterConfig{ChunkSize: 50})

	cmds := makeCommands(120)
	count, err := u.Apply(context.Background(), cmds)
	require.Error(t, err)
	assert.Equal(t, 50, count)

	var upsertErr *UpsertError
	require.ErrorAs(t, err, &upsertErr)
	assert.Equal(t, 1, upsertErr.ChunkIndex)
	assert.Equal(t, 50, upsertErr.Committed)
	assert.ErrorIs(t, err, storeErr)

	// the first chunk stays, the failing chunk and everything after is absent
	_, ok := store.get("demo.myshopify.com", "PRODUCT", cmds[49].Key)
	assert.True(t, ok)
	_, ok = store.get("demo.myshopify.com", "PRODUCT", cmds[50].Key)
	assert.False(t, ok)
	_, ok = store.get("demo.myshopify.com", "PRODUCT", cmds[119].Key)
	assert.False(t, ok)
	assert.Equal(t, []int{50, 50}, store.chunkSizes)
}

func TestApply_CancelledBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := newMemoryStore()
	store.onChunk = func(call int) {
		if call == 0 {
			cancel()
		}
	}
	u := NewUpserter(store, testLogger(), UpserterConfig{ChunkSize: 50})

	count, err := u.Apply(ctx, makeCommands(120))
	assert.Equal(t, 50, count)

	var upsertErr *UpsertError
	require.ErrorAs(t, err, &upsertErr)
	assert.Equal(t, 1, upsertErr.ChunkIndex)
	assert.ErrorIs(t, err, context.Canceled)
	// the chunk in flight when cancel happened still committed
	assert.Len(t, store.rows, 50)
}

type contextCapturingStore struct {
	deadline bool
	err      error
}

func (s *contextCapturingStore) UpsertChunk(ctx context.Context, _ []models.UpsertCommand) error {
	_, s.deadline = ctx.Deadline()
	s.err = ctx.Err()
	return nil
}

func TestApply_ChunkTimeout(t *testing.T) {
	store := &contextCapturingStore{}
	u := NewUpserter(store, testLogger(), UpserterConfig{ChunkSize: 10, ChunkTimeout: time.Minute})

	_, err := u.Apply(context.Background(), makeCommands(5))
	require.NoError(t, err)
	assert.True(t, store.deadline)
	assert.NoError(t, store.err)
}

type slowStore struct{}

func (slowStore) UpsertChunk(ctx context.Context, _ []models.UpsertCommand) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestApply_ChunkTimeoutSurfacesAsUpsertError(t *testing.T) {
	u := NewUpserter(slowStore{}, testLogger(), UpserterConfig{ChunkSize: 10, ChunkTimeout: 10 * time.Millisecond})

	count, err := u.Apply(context.Background(), makeCommands(5))
	assert.Equal(t, 0, count)

	var upsertErr *UpsertError
	require.ErrorAs(t, err, &upsertErr)
	assert.Equal(t, 0, upsertErr.ChunkIndex)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestApply_Empty(t *testing.T) {
	store := newMemoryStore()
	u := NewUpserter(store, testLogger(), UpserterConfig{})

	count, err := u.Apply(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, store.calls)
}
