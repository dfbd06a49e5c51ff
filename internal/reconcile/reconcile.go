// Package reconcile reports ledger state that needs operator attention:
// mint reservations that never completed and vaults that drifted from
// their entries. It only reads.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"covenant/internal/ledger"
	"covenant/pkg/requestcontext"
)

// Store is the read-only slice of the ledger the job inspects.
type Store interface {
	ListStaleReservations(ctx context.Context, before time.Time) ([]*ledger.Reservation, error)
	VaultDrift(ctx context.Context) ([]ledger.VaultDrift, error)
}

// Report is the outcome of one run.
type Report struct {
	StaleReservations []*ledger.Reservation
	VaultDrift        []ledger.VaultDrift
	CheckedAt         time.Time
}

// Clean reports whether nothing needs attention.
func (r *Report) Clean() bool {
	return len(r.StaleReservations) == 0 && len(r.VaultDrift) == 0
}

type Job struct {
	store    Store
	window   time.Duration
	interval time.Duration
	metrics  *Metrics
	logger   *slog.Logger
}

type Option func(*Job)

func WithInterval(interval time.Duration) Option {
	return func(j *Job) {
		if interval > 0 {
			j.interval = interval
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(j *Job) { j.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) { j.logger = logger }
}

// New builds a job that treats reservations older than window as stale.
func New(store Store, window time.Duration, opts ...Option) *Job {
	j := &Job{
		store:    store,
		window:   window,
		interval: 5 * time.Minute,
		logger:   slog.Default(),
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
				j.logger.ErrorContext(ctx, "reconciliation failed", "error", err)
			}
		}
	}
}

func (j *Job) RunOnce(ctx context.Context) (*Report, error) {
	now := requestcontext.Now(ctx)
	report := &Report{CheckedAt: now}

	stale, err := j.store.ListStaleReservations(ctx, now.Add(-j.window))
	if err != nil {
		j.countRun("error")
		return nil, ledger.TranslateError(err, "failed to list stale reservations")
	}
	report.StaleReservations = stale

	drift, err := j.store.VaultDrift(ctx)
	if err != nil {
		j.countRun("error")
		return nil, ledger.TranslateError(err, "failed to compute vault drift")
	}
	report.VaultDrift = drift

	for _, r := range stale {
		j.logger.WarnContext(ctx, "stale mint reservation",
			"attempt_id", r.AttemptID,
			"identity_id", r.IdentityID,
			"reserved_at", r.CreatedAt,
		)
	}
	for _, d := range drift {
		j.logger.WarnContext(ctx, "vault drift",
			"identity_id", d.IdentityID,
			"balance", d.Balance.String(),
			"expected", d.Expected.String(),
		)
	}

	if j.metrics != nil {
		j.metrics.StaleReservations.Set(float64(len(stale)))
		j.metrics.VaultDrift.Set(float64(len(drift)))
	}
	if report.Clean() {
		j.countRun("clean")
	} else {
		j.countRun("attention")
	}
	return report, nil
}

func (j *Job) countRun(result string) {
	if j.metrics != nil {
		j.metrics.Runs.WithLabelValues(result).Inc()
	}
}
