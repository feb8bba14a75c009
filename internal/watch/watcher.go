// Package watch discovers model runs as they appear in the archive and
// announces each one through a publisher, in cycle order per product.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/hrrr-zarr-analysis/internal/hrrr"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/observability"
	"github.com/couchcryptid/hrrr-zarr-analysis/internal/zarr"
)

// Publisher announces a newly readable run.
type Publisher interface {
	PublishRun(ctx context.Context, event hrrr.RunEvent) error
}

// Options tune what the watcher scans for. The zero value watches
// analysis runs every minute starting from the newest published cycle.
type Options struct {
	Interval      time.Duration // poll period
	Kinds         []hrrr.Kind   // products to watch
	Lookback      int           // extra hours before the newest cycle scanned on the first poll
	ProbeLevel    string        // variable group whose metadata marks a run readable
	ProbeVariable string
	Source        string // recorded in events, normally the bucket URL
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = time.Minute
	}
	if len(o.Kinds) == 0 {
		o.Kinds = []hrrr.Kind{hrrr.Analysis}
	}
	if o.ProbeLevel == "" {
		o.ProbeLevel = "2m_above_ground"
	}
	if o.ProbeVariable == "" {
		o.ProbeVariable = "TMP"
	}
	return o
}

// Watcher polls the archive for cycles that finished publishing. It
// keeps one cursor per product kind and only advances it past a cycle
// once the cycle's event went out, so a failed publish is retried on
// the next poll instead of dropped.
type Watcher struct {
	store   zarr.Store
	pub     Publisher
	logger  *slog.Logger
	metrics *observability.Metrics
	opts    Options
	next    map[hrrr.Kind]time.Time
	ready   atomic.Bool
}

// New creates a Watcher over the given archive store and publisher.
func New(store zarr.Store, pub Publisher, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Watcher {
	return &Watcher{
		store:   store,
		pub:     pub,
		logger:  logger,
		metrics: metrics,
		opts:    opts.withDefaults(),
		next:    make(map[hrrr.Kind]time.Time),
	}
}

// CheckReadiness returns nil once the watcher has completed a poll,
// or an error describing why the service is not yet ready.
func (w *Watcher) CheckReadiness(_ context.Context) error {
	if !w.ready.Load() {
		return errors.New("watcher has not completed a poll yet")
	}
	return nil
}

// Run polls until the context is cancelled. Poll failures back off
// exponentially without stopping the loop.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("run watcher started", "interval", w.opts.Interval, "kinds", w.opts.Kinds)
	w.metrics.WatcherRunning.Set(1)
	defer w.metrics.WatcherRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		delay := w.opts.Interval
		if err := w.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				w.logger.Info("run watcher stopping", "reason", ctx.Err())
				return nil
			}
			w.logger.Error("poll failed", "error", err)
			delay = backoff
			backoff = nextBackoff(backoff, maxBackoff)
		} else {
			backoff = 200 * time.Millisecond
			w.ready.Store(true)
		}

		if !sleepWithContext(ctx, delay) {
			w.logger.Info("run watcher stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// Poll runs one scan over every watched kind: from the cursor up to
// the newest plausibly published cycle, publish runs that exist and
// stop at the first gap so events stay in cycle order.
func (w *Watcher) Poll(ctx context.Context) error {
	now := clock.Now()
	for _, kind := range w.opts.Kinds {
		latest := hrrr.LatestRunAt(now, kind)
		next, ok := w.next[kind]
		if !ok {
			next = latest.Time.Add(-time.Duration(w.opts.Lookback) * time.Hour)
		}
		for !next.After(latest.Time) {
			run := hrrr.NewRun(next, kind)
			found, err := w.probe(ctx, run)
			if err != nil {
				return err
			}
			if !found {
				// Cycles publish in order; a gap means later ones are
				// not up yet either.
				break
			}
			if err := w.publish(ctx, run); err != nil {
				return err
			}
			next = next.Add(time.Hour)
			w.next[kind] = next
		}
		w.next[kind] = next
	}
	return nil
}

// probe reports whether the run's probe group has consolidated
// metadata, the last object the archive writes when publishing a run.
func (w *Watcher) probe(ctx context.Context, run hrrr.Run) (bool, error) {
	key := path.Join(run.GroupPath(w.opts.ProbeLevel, w.opts.ProbeVariable), ".zmetadata")
	_, err := w.store.Get(ctx, key)
	switch {
	case errors.Is(err, zarr.ErrNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("probing %s: %w", run, err)
	}
	w.metrics.RunsDiscovered.Inc()
	return true, nil
}

func (w *Watcher) publish(ctx context.Context, run hrrr.Run) error {
	event := hrrr.NewRunEvent(run, w.opts.Source)
	if err := w.pub.PublishRun(ctx, event); err != nil {
		return fmt.Errorf("publishing %s: %w", run, err)
	}
	w.metrics.EventsPublished.Inc()
	w.logger.Info("run discovered", "run", run.ID(), "kind", run.Kind)
	return nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-clock.After(d):
		return true
	}
}
