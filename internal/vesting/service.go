// Package vesting tracks verified qualifying events and moves an identity's
// locked balance to spendable once its vesting target is met.
package vesting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"covenant/internal/ledger"
	platformotel "covenant/internal/platform/otel"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/outbox"
	"covenant/pkg/platform/sentinel"
	"covenant/pkg/requestcontext"
)

// BiometricVerifier confirms the identity is physically present. Strictness
// rises to high once the vesting target is reached.
type BiometricVerifier interface {
	Verify(ctx context.Context, identityID id.IdentityID, strictness ledger.Strictness) (*Verification, error)
}

// StatusCache is a read-through cache for GetStatus. Get returns
// ErrCacheMiss when nothing is cached.
type StatusCache interface {
	Get(ctx context.Context, identityID id.IdentityID) (*Status, error)
	Set(ctx context.Context, status *Status) error
	Invalidate(ctx context.Context, identityID id.IdentityID) error
}

type Service struct {
	store    ledger.Store
	tx       ledger.TxRunner
	verifier BiometricVerifier
	cache    StatusCache
	policy   Policy
	target   int
	minScore decimal.Decimal
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithCache(cache StatusCache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithTarget is the target reported for identities that have not minted yet.
func WithTarget(target int) Option {
	return func(s *Service) { s.target = target }
}

// WithMinScore rejects verifications scoring below score even if they passed.
func WithMinScore(score decimal.Decimal) Option {
	return func(s *Service) { s.minScore = score }
}

func WithTxRunner(tx ledger.TxRunner) Option {
	return func(s *Service) { s.tx = tx }
}

func New(store ledger.Store, verifier BiometricVerifier, opts ...Option) *Service {
	s := &Service{
		store:    store,
		verifier: verifier,
		policy:   PolicySingleHandshake,
		target:   10,
		logger:   slog.Default(),
		tracer:   otel.Tracer("covenant/vesting"),
	}
	if tx, ok := store.(ledger.TxRunner); ok {
		s.tx = tx
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetStatus returns the vault balances and vesting progress. An identity
// that has not minted yet reports a zero counter against the default target.
func (s *Service) GetStatus(ctx context.Context, identityID id.IdentityID) (*Status, error) {
	if identityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "identity ID is required")
	}
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, identityID)
		if err == nil {
			s.recordCache("hit")
			return cached, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.WarnContext(ctx, "vesting cache read failed", "identity_id", identityID.String(), "error", err)
		}
		s.recordCache("miss")
	}

	status, err := s.load(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, status); err != nil {
			s.logger.WarnContext(ctx, "vesting cache write failed", "identity_id", identityID.String(), "error", err)
		}
	}
	return status, nil
}

// RecordQualifyingEvent verifies the identity and counts today's event. A
// second event on the same calendar day is a no-op.
func (s *Service) RecordQualifyingEvent(ctx context.Context, identityID id.IdentityID) (result *EventResult, err error) {
	ctx, span := s.tracer.Start(ctx, "vesting.RecordQualifyingEvent",
		trace.WithAttributes(attribute.String("identity_id", identityID.String())))
	defer func() { platformotel.End(span, err) }()

	if identityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "identity ID is required")
	}
	state, err := s.store.GetVestingState(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "identity has no vesting state")
		}
		return nil, ledger.TranslateError(err, "failed to load vesting state")
	}

	verification, err := s.verifier.Verify(ctx, identityID, state.Strictness)
	if err != nil {
		return nil, err
	}
	if !verification.Passed || verification.Score.LessThan(s.minScore) {
		s.recordEvent("rejected")
		return nil, dErrors.New(dErrors.CodePolicyViolation,
			fmt.Sprintf("biometric verification failed at %s strictness", state.Strictness))
	}

	now := requestcontext.Now(ctx)
	day := ledger.Day(now)
	result = &EventResult{Moved: decimal.Zero}

	err = ledger.Atomically(ctx, s.store, s.tx, func(store ledger.Store) error {
		recorded, err := store.RecordVestingEvent(ctx, identityID, day, now)
		if err != nil || !recorded {
			return err
		}
		result.Recorded = true

		advanced, err := store.AdvanceVesting(ctx, identityID, day, now)
		if err != nil {
			return err
		}
		if advanced.Released || (s.policy != PolicySingleHandshake && advanced.Counter < advanced.Target) {
			return store.AppendEvent(ctx, vestingEvent("vesting.event_recorded", advanced, decimal.Zero, now))
		}

		moved, err := store.UnlockVaults(ctx, []id.IdentityID{identityID}, now)
		if err != nil {
			return err
		}
		amount := moved[identityID]
		released, err := store.ReleaseVesting(ctx, identityID, amount, now)
		if err != nil {
			return err
		}
		if released {
			result.UnlockedJustNow = true
			result.Moved = amount
		}
		return store.AppendEvent(ctx, vestingEvent("vesting.unlocked", advanced, amount, now))
	})
	if err != nil {
		return nil, ledger.TranslateError(err, "failed to record vesting event")
	}

	if result.Recorded {
		s.invalidate(ctx, identityID)
		s.recordEvent("recorded")
	} else {
		s.recordEvent("duplicate")
	}
	if result.UnlockedJustNow {
		if s.metrics != nil {
			s.metrics.Unlocks.WithLabelValues("event").Inc()
		}
		s.logger.InfoContext(ctx, "vault unlocked",
			"identity_id", identityID.String(), "moved", result.Moved.String(), "policy", string(s.policy))
	}

	status, err := s.load(ctx, identityID)
	if err != nil {
		return nil, err
	}
	result.Status = status
	return result, nil
}

// Invalidate drops identityID's cached status. The release job calls it
// after unlocking a batch.
func (s *Service) Invalidate(ctx context.Context, identityIDs ...id.IdentityID) {
	for _, identityID := range identityIDs {
		s.invalidate(ctx, identityID)
	}
}

func (s *Service) load(ctx context.Context, identityID id.IdentityID) (*Status, error) {
	vault, err := s.store.GetVault(ctx, identityID)
	if err != nil {
		return nil, ledger.TranslateError(err, "identity not found")
	}
	status := &Status{
		IdentityID: identityID,
		Spendable:  vault.Spendable,
		Locked:     vault.Locked,
		Target:     s.target,
		Strictness: ledger.StrictnessStandard,
	}

	state, err := s.store.GetVestingState(ctx, identityID)
	switch {
	case err == nil:
		status.Counter = state.Counter
		status.Target = state.Target
		status.Strictness = state.Strictness
		status.Released = state.Released
		status.LastEventDate = state.LastEventDate
		status.Unlocked = state.Unlocked()
	case errors.Is(err, sentinel.ErrNotFound):
	default:
		return nil, ledger.TranslateError(err, "failed to load vesting state")
	}
	return status, nil
}

func (s *Service) invalidate(ctx context.Context, identityID id.IdentityID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, identityID); err != nil {
		s.logger.WarnContext(ctx, "vesting cache invalidation failed", "identity_id", identityID.String(), "error", err)
	}
}

func (s *Service) recordCache(result string) {
	if s.metrics != nil {
		s.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

func (s *Service) recordEvent(result string) {
	if s.metrics != nil {
		s.metrics.Events.WithLabelValues(result).Inc()
	}
}

func vestingEvent(eventType string, state *ledger.VestingState, moved decimal.Decimal, now time.Time) *outbox.Entry {
	payload, _ := json.Marshal(map[string]any{
		"identity_id": state.IdentityID.String(),
		"counter":     state.Counter,
		"target":      state.Target,
		"moved":       moved.String(),
	})
	return outbox.NewEntry(outbox.AggregateIdentity, state.IdentityID.String(), eventType, payload, now)
}
