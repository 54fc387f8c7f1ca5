package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"GrowthOpt/pkg/cache"
	"GrowthOpt/pkg/logger"
)

// CachedModelStore persists trained weight blobs in a cache backend. Weights
// are reproducible from quotes, so eviction only costs retraining time and a
// TTL keeps stale configurations from accumulating.
type CachedModelStore struct {
	store cache.Store
	ttl   time.Duration
	log   *logger.Logger
}

func NewCachedModelStore(store cache.Store, ttl time.Duration, log *logger.Logger) *CachedModelStore {
	return &CachedModelStore{
		store: store,
		ttl:   ttl,
		log:   log.With("model_store"),
	}
}

func (s *CachedModelStore) Save(ctx context.Context, key string, blob []byte) error {
	if len(blob) == 0 {
		return fmt.Errorf("model store: refusing to save empty blob for %s", key)
	}

	if err := s.store.Set(ctx, key, blob, s.ttl); err != nil {
		return fmt.Errorf("model store: save %s: %w", key, err)
	}

	s.log.Debug("weights saved",
		logger.String("key", key),
		logger.Int("bytes", len(blob)),
	)

	return nil
}

// Load returns the stored blob, or (nil, nil) when the key is absent:
// missing weights mean the model is untrained, not broken.
func (s *CachedModelStore) Load(ctx context.Context, key string) ([]byte, error) {
	blob, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}

		return nil, fmt.Errorf("model store: load %s: %w", key, err)
	}

	return blob, nil
}

func (s *CachedModelStore) Delete(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("model store: delete %s: %w", key, err)
	}

	return nil
}

func (s *CachedModelStore) Close() error {
	return s.store.Close()
}
