package objstore

import (
	"context"
	"errors"
	"time"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/observability"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/zarr"
)

// InstrumentedStore counts reads, bytes, and latency on every Get.
// Missing keys count as fetches but not as errors: unwritten chunks
// are a normal part of a sparse archive.
type InstrumentedStore struct {
	inner   zarr.Store
	metrics *observability.Metrics
}

// NewInstrumentedStore creates a metrics decorator around a store.
func NewInstrumentedStore(inner zarr.Store, metrics *observability.Metrics) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, metrics: metrics}
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := s.inner.Get(ctx, key)
	s.metrics.ChunkFetches.Inc()
	s.metrics.ChunkFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, zarr.ErrNotFound) {
			s.metrics.ChunkFetchErrors.Inc()
		}
		return nil, err
	}
	s.metrics.ChunkBytes.Add(float64(len(data)))
	return data, nil
}
