package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/models"
)

const (
	statusKeyPrefix = "fern:sync:last"

	DefaultStatusTTL = 7 * 24 * time.Hour
)

// KV is the subset of Client the status store needs.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// SyncStatusStore keeps the last sync run per shop and owner type.
type SyncStatusStore struct {
	kv     KV
	ttl    time.Duration
	logger ectologger.Logger
}

func NewSyncStatusStore(kv KV, ttl time.Duration, logger ectologger.Logger) *SyncStatusStore {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &SyncStatusStore{
		kv:     kv,
		ttl:    ttl,
		logger: logger,
	}
}

func StatusKey(shop, ownerType string) string {
	return fmt.Sprintf("%s:%s:%s", statusKeyPrefix, shop, ownerType)
}

// SaveLast stores run as the latest run for its shop and owner type.
func (s *SyncStatusStore) SaveLast(ctx context.Context, run models.SyncRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal sync run: %w", err)
	}

	if err := s.kv.Set(ctx, StatusKey(run.Shop, run.OwnerType), data, s.ttl); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"shop":       run.Shop,
			"owner_type": run.OwnerType,
		}).Warn("failed to save sync status")
		return err
	}
	return nil
}

// Last returns the latest stored run. found is false when nothing is stored.
func (s *SyncStatusStore) Last(ctx context.Context, shop, ownerType string) (run models.SyncRun, found bool, err error) {
	value, found, err := s.kv.Get(ctx, StatusKey(shop, ownerType))
	if err != nil || !found {
		return models.SyncRun{}, false, err
	}

	if err := json.Unmarshal([]byte(value), &run); err != nil {
		return models.SyncRun{}, false, fmt.Errorf("failed to decode sync status: %w", err)
	}
	return run, true, nil
}
