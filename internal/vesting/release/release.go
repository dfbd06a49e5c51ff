// Package release unlocks every vault once the number of minted identities
// reaches the global release threshold.
package release

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"covenant/internal/ledger"
	"covenant/internal/vesting"
	id "covenant/pkg/domain"
	"covenant/pkg/platform/outbox"
	"covenant/pkg/requestcontext"
)

// MintCounter reports how many identities have minted.
type MintCounter interface {
	MintedCount(ctx context.Context) (int64, error)
}

// Invalidator drops cached vesting statuses after a batch is released.
type Invalidator interface {
	Invalidate(ctx context.Context, identityIDs ...id.IdentityID)
}

type Job struct {
	store       ledger.Store
	tx          ledger.TxRunner
	counter     MintCounter
	invalidator Invalidator
	threshold   int64
	batchSize   int
	interval    time.Duration
	metrics     *vesting.Metrics
	logger      *slog.Logger
}

type Option func(*Job)

func WithBatchSize(size int) Option {
	return func(j *Job) {
		if size > 0 {
			j.batchSize = size
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(j *Job) {
		if interval > 0 {
			j.interval = interval
		}
	}
}

func WithInvalidator(inv Invalidator) Option {
	return func(j *Job) { j.invalidator = inv }
}

func WithMetrics(m *vesting.Metrics) Option {
	return func(j *Job) { j.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) { j.logger = logger }
}

func New(store ledger.Store, counter MintCounter, threshold int64, opts ...Option) *Job {
	j := &Job{
		store:     store,
		counter:   counter,
		threshold: threshold,
		batchSize: 500,
		interval:  time.Minute,
		logger:    slog.Default(),
	}
	if tx, ok := store.(ledger.TxRunner); ok {
		j.tx = tx
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start runs RunOnce every interval until ctx is cancelled.
func (j *Job) Start(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil {
				j.logger.ErrorContext(ctx, "global release failed", "error", err)
			}
		}
	}
}

// RunOnce releases every unreleased vesting state when the threshold is
// met, batch by batch. The unlock and the release are both conditional on
// the state still being unreleased, so overlapping runs and stale listings
// move each vault once.
func (j *Job) RunOnce(ctx context.Context) (int, error) {
	minted, err := j.counter.MintedCount(ctx)
	if err != nil {
		return 0, err
	}
	if minted < j.threshold {
		return 0, nil
	}

	total := 0
	for {
		ids, err := j.store.ListUnreleased(ctx, j.batchSize)
		if err != nil {
			return total, ledger.TranslateError(err, "failed to list unreleased vesting states")
		}
		if len(ids) == 0 {
			break
		}
		released, err := j.releaseBatch(ctx, ids)
		if err != nil {
			return total, err
		}
		total += released
		if j.invalidator != nil {
			j.invalidator.Invalidate(ctx, ids...)
		}
	}

	if total > 0 {
		if j.metrics != nil {
			j.metrics.Unlocks.WithLabelValues("global_release").Add(float64(total))
		}
		j.logger.InfoContext(ctx, "global release applied", "released", total, "minted", minted)
	}
	return total, nil
}

func (j *Job) releaseBatch(ctx context.Context, ids []id.IdentityID) (int, error) {
	now := requestcontext.Now(ctx)
	released := 0
	err := ledger.Atomically(ctx, j.store, j.tx, func(store ledger.Store) error {
		released = 0
		moved, err := store.UnlockVaults(ctx, ids, now)
		if err != nil {
			return err
		}
		for _, identityID := range ids {
			ok, err := store.ReleaseVesting(ctx, identityID, moved[identityID], now)
			if err != nil {
				return err
			}
			if ok {
				released++
			}
		}
		payload, _ := json.Marshal(map[string]any{"released": released})
		return store.AppendEvent(ctx, outbox.NewEntry(outbox.AggregateTreasury, "global", "vesting.global_release", payload, now))
	})
	if err != nil {
		return 0, ledger.TranslateError(err, "failed to release vesting batch")
	}
	return released, nil
}
