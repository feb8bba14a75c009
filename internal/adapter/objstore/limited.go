package objstore

import (
	"context"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/zarr"
	"golang.org/x/sync/semaphore"
)

// LimitedStore caps the number of Gets in flight across all callers.
// Array reads already bound their own chunk fetches, but a server
// handling many requests at once needs a global ceiling too, or the
// bucket sees limit-per-read times request-count concurrent fetches.
type LimitedStore struct {
	inner zarr.Store
	sem   *semaphore.Weighted
}

// NewLimitedStore creates a concurrency-limit decorator around a store.
// A limit below one falls back to DefaultFetchLimit.
func NewLimitedStore(inner zarr.Store, limit int) *LimitedStore {
	if limit < 1 {
		limit = zarr.DefaultFetchLimit
	}
	return &LimitedStore{
		inner: inner,
		sem:   semaphore.NewWeighted(int64(limit)),
	}
}

func (s *LimitedStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)
	return s.inner.Get(ctx, key)
}
