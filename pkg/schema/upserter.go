package schema

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

const DefaultChunkSize = 50

// Store applies one chunk of commands in a single transaction. On error
// nothing from the chunk may be committed.
type Store interface {
	UpsertChunk(ctx context.Context, cmds []models.UpsertCommand) error
}

type UpserterConfig struct {
	ChunkSize int
	// ChunkTimeout bounds each chunk transaction. Zero means no bound.
	ChunkTimeout time.Duration
}

// Upserter applies commands in ordered chunks, one transaction per chunk.
// Chunks committed before a failure are not rolled back.
type Upserter struct {
	store        Store
	logger       ectologger.Logger
	chunkSize    int
	chunkTimeout time.Duration
}

func NewUpserter(store Store, logger ectologger.Logger, cfg UpserterConfig) *Upserter {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	return &Upserter{
		store:        store,
		logger:       logger,
		chunkSize:    cfg.ChunkSize,
		chunkTimeout: cfg.ChunkTimeout,
	}
}

func (u *Upserter) ChunkSize() int {
	return u.chunkSize
}

// Chunks partitions cmds into contiguous chunks of at most size, in order.
func Chunks(cmds []models.UpsertCommand, size int) [][]models.UpsertCommand {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]models.UpsertCommand, 0, (len(cmds)+size-1)/size)
	for start := 0; start < len(cmds); start += size {
		end := min(start+size, len(cmds))
		chunks = append(chunks, cmds[start:end:end])
	}
	return chunks
}

// ChunkSizes returns the sizes of the chunks n commands are split into.
func ChunkSizes(n, size int) []int {
	if size <= 0 {
		size = DefaultChunkSize
	}
	sizes := make([]int, 0, (n+size-1)/size)
	for remaining := n; remaining > 0; remaining -= size {
		sizes = append(sizes, min(size, remaining))
	}
	return sizes
}

// Apply commits every chunk in order and returns the number of committed
// records. Cancellation of ctx is honored between chunks only; a chunk that
// has started runs to commit or rollback under its own timeout.
func (u *Upserter) Apply(ctx context.Context, cmds []models.UpsertCommand) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "Upserter.Apply")
	defer span.End()

	chunks := Chunks(cmds, u.chunkSize)
	span.SetAttributes(
		attribute.Int("records", len(cmds)),
		attribute.Int("chunks", len(chunks)),
	)

	committed := 0
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return committed, &UpsertError{ChunkIndex: i, Committed: committed, Err: err}
		}

		if err := u.applyChunk(ctx, chunk); err != nil {
			metrics.RecordChunk("failed")
			u.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"chunk":     i,
				"size":      len(chunk),
				"committed": committed,
			}).Error("chunk transaction failed")
			span.RecordError(err)
			return committed, &UpsertError{ChunkIndex: i, Committed: committed, Err: err}
		}

		metrics.RecordChunk("committed")
		committed += len(chunk)
		u.logger.WithContext(ctx).WithFields(map[string]any{
			"chunk":     i,
			"size":      len(chunk),
			"committed": committed,
		}).Debug("chunk committed")
	}

	return committed, nil
}

func (u *Upserter) applyChunk(ctx context.Context, chunk []models.UpsertCommand) error {
	chunkCtx := context.WithoutCancel(ctx)
	if u.chunkTimeout > 0 {
		var cancel context.CancelFunc
		chunkCtx, cancel = context.WithTimeout(chunkCtx, u.chunkTimeout)
		defer cancel()
	}
	return u.store.UpsertChunk(chunkCtx, chunk)
}
