// Package seigniorage issues the one-time mint for a verified identity.
//
// A mint passes the read-only guard check, the agreement and personhood
// gates, and then reserves the face and writes the entry, reserve credit,
// vault credit and vesting state in one transaction. Stores that cannot run
// transactions get an ordered fallback whose failures surface as
// partial_write for reconciliation.
package seigniorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"covenant/internal/identity/guard"
	"covenant/internal/ledger"
	platformotel "covenant/internal/platform/otel"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/outbox"
	"covenant/pkg/platform/sentinel"
	"covenant/pkg/requestcontext"
)

const confirmTimeout = 2 * time.Second

// errAlreadyMinted aborts the mint transaction when the reservation or the
// seigniorage entry already exists.
var errAlreadyMinted = errors.New("already minted")

type Service struct {
	store   ledger.Store
	tx      ledger.TxRunner
	guard   *guard.Guard
	cfg     Config
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTxRunner overrides the runner detected on the store. Passing nil
// forces the non-transactional path.
func WithTxRunner(tx ledger.TxRunner) Option {
	return func(s *Service) { s.tx = tx }
}

// New builds an engine. The store is used transactionally when it
// implements ledger.TxRunner.
func New(store ledger.Store, g *guard.Guard, cfg Config, opts ...Option) (*Service, error) {
	if store == nil || g == nil {
		return nil, fmt.Errorf("seigniorage: store and guard are required")
	}
	if err := cfg.Schedule.Validate(); err != nil {
		return nil, err
	}
	if cfg.AgreementVersion.IsNil() {
		return nil, fmt.Errorf("seigniorage: agreement version is required")
	}
	if cfg.VestingTarget < 1 {
		return nil, fmt.Errorf("seigniorage: vesting target must be positive")
	}
	if cfg.ActivationDebit.IsNegative() {
		return nil, fmt.Errorf("seigniorage: activation debit cannot be negative")
	}

	s := &Service{
		store:  store,
		guard:  g,
		cfg:    cfg,
		logger: slog.Default(),
		tracer: otel.Tracer("covenant/seigniorage"),
	}
	if tx, ok := store.(ledger.TxRunner); ok {
		s.tx = tx
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Mint issues identityID's one-time grant. A second call for the same face,
// concurrent or not, returns OutcomeAlreadyMinted and writes nothing.
func (s *Service) Mint(ctx context.Context, identityID id.IdentityID) (result *MintResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "seigniorage.Mint",
		trace.WithAttributes(attribute.String("identity_id", identityID.String())))
	defer func() {
		if result != nil {
			span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
		}
		platformotel.End(span, err)
		s.observe(result, err, start)
	}()

	if identityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "identity ID is required")
	}
	identity, err := s.store.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, ledger.TranslateError(err, "identity not found")
	}
	if identity.HasMinted() {
		return s.alreadyMinted(ctx, identity), nil
	}
	if identity.FaceFingerprint.IsNil() && identity.AnchorDigest == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "identity has neither face fingerprint nor contact anchor")
	}

	if !identity.FaceFingerprint.IsNil() {
		verdict, err := s.guard.Check(ctx, identity.FaceFingerprint)
		if err != nil {
			return nil, err
		}
		if verdict == guard.VerdictAlreadyMinted {
			return s.alreadyMinted(ctx, identity), nil
		}
	}

	if err := s.checkPreconditions(ctx, identity); err != nil {
		return nil, err
	}

	attemptID := uuid.New()
	if s.tx != nil {
		result, err = s.mintInTx(ctx, identity, attemptID)
	} else {
		result, err = s.mintSequential(ctx, identity, attemptID)
	}
	if err != nil || result.Outcome != OutcomeMinted {
		return result, err
	}

	s.loadVault(ctx, result)
	s.logger.InfoContext(ctx, "identity minted",
		"identity_id", identity.ID.String(),
		"attempt_id", attemptID.String(),
		"schedule", result.Schedule,
		"genesis", result.Genesis,
		"activated", result.Activated,
	)
	return result, nil
}

// MintedCount is the number of seigniorage entries ever written.
func (s *Service) MintedCount(ctx context.Context) (int64, error) {
	n, err := s.store.CountEntries(ctx, ledger.SourceSeigniorage)
	if err != nil {
		return 0, ledger.TranslateError(err, "failed to count mints")
	}
	return n, nil
}

func (s *Service) checkPreconditions(ctx context.Context, identity *ledger.Identity) error {
	signed, err := s.store.HasSigned(ctx, identity.ID, s.cfg.AgreementVersion)
	if err != nil {
		return ledger.TranslateError(err, "failed to check agreement")
	}
	if !signed {
		return dErrors.New(dErrors.CodeUnsignedAgreement,
			fmt.Sprintf("agreement %s must be signed before minting", s.cfg.AgreementVersion))
	}
	if identity.PersonhoodScore.LessThan(s.cfg.PersonhoodThreshold) {
		return dErrors.New(dErrors.CodeInsufficientPersonhood,
			fmt.Sprintf("personhood score %s is below the required %s",
				identity.PersonhoodScore.String(), s.cfg.PersonhoodThreshold.String()))
	}
	return nil
}

func (s *Service) mintInTx(ctx context.Context, identity *ledger.Identity, attemptID uuid.UUID) (*MintResult, error) {
	var result *MintResult
	err := s.tx.RunInTx(ctx, func(store ledger.Store) error {
		outcome, err := s.reserve(ctx, s.guard.Bind(store), identity, attemptID)
		if err != nil {
			return err
		}
		if outcome == guard.OutcomeAlreadyMinted {
			return errAlreadyMinted
		}
		result, err = s.write(ctx, store, identity, attemptID)
		return err
	})
	switch {
	case err == nil:
		return result, nil
	case errors.Is(err, errAlreadyMinted), errors.Is(err, sentinel.ErrConflict):
		return s.alreadyMinted(ctx, identity), nil
	case ambiguous(err):
		return s.resolveAmbiguous(ctx, identity, attemptID, err)
	}
	return nil, ledger.TranslateError(err, "failed to mint")
}

// resolveAmbiguous handles a transaction whose commit outcome is unknown. A
// committed attempt wrote everything, since the writes are atomic.
func (s *Service) resolveAmbiguous(ctx context.Context, identity *ledger.Identity, attemptID uuid.UUID, cause error) (*MintResult, error) {
	committed, err := s.confirm(ctx, attemptID)
	if err != nil {
		s.logger.ErrorContext(ctx, "mint outcome unknown",
			"identity_id", identity.ID.String(), "attempt_id", attemptID.String(), "error", cause)
		return nil, partialWrite(attemptID, errors.Join(cause, err))
	}
	if !committed {
		return nil, unavailable(cause)
	}

	result := &MintResult{Outcome: OutcomeMinted, IdentityID: identity.ID, AttemptID: attemptID, Schedule: s.cfg.Schedule.Name}
	entry, err := s.store.FindEntryByReference(context.WithoutCancel(ctx), ledger.SourceSeigniorage, mintReference(attemptID))
	if err == nil {
		result.Entry = entry
		if !entry.Gross.Equal(s.cfg.Schedule.Total) {
			result.Genesis = true
			result.Schedule = ledger.ScheduleGenesis
		}
	}
	return result, nil
}

// mintSequential runs the writes one by one. Everything after a successful
// reservation is reported as partial_write on failure; the attempt is never
// replayed under a new attempt ID.
func (s *Service) mintSequential(ctx context.Context, identity *ledger.Identity, attemptID uuid.UUID) (*MintResult, error) {
	outcome, err := s.reserve(ctx, s.guard, identity, attemptID)
	if err != nil {
		if !ambiguous(err) {
			return nil, err
		}
		committed, confirmErr := s.confirm(ctx, attemptID)
		switch {
		case confirmErr != nil:
			return nil, partialWrite(attemptID, errors.Join(err, confirmErr))
		case !committed:
			return nil, unavailable(err)
		}
		outcome = guard.OutcomeReserved
	}
	if outcome == guard.OutcomeAlreadyMinted {
		return s.alreadyMinted(ctx, identity), nil
	}

	result, err := s.write(ctx, s.store, identity, attemptID)
	if err != nil {
		s.logger.ErrorContext(ctx, "mint partially applied",
			"identity_id", identity.ID.String(), "attempt_id", attemptID.String(), "error", err)
		return nil, partialWrite(attemptID, err)
	}
	return result, nil
}

func (s *Service) reserve(ctx context.Context, g *guard.Guard, identity *ledger.Identity, attemptID uuid.UUID) (guard.ReserveOutcome, error) {
	if !identity.FaceFingerprint.IsNil() {
		return g.RejectIfAlreadyMinted(ctx, identity.FaceFingerprint, identity.ID, attemptID)
	}
	return g.RejectIfDigestMinted(ctx, identity.AnchorDigest, identity.ID, attemptID)
}

// write applies every mint effect after the reservation. The order matters
// only for the sequential path, where the reservation completion and mint
// status come last so a stale reservation marks an incomplete mint.
func (s *Service) write(ctx context.Context, store ledger.Store, identity *ledger.Identity, attemptID uuid.UUID) (*MintResult, error) {
	now := requestcontext.Now(ctx)

	genesis, err := store.ClaimGenesis(ctx, identity.ID, now)
	if err != nil {
		return nil, err
	}
	schedule := s.cfg.Schedule
	if genesis {
		schedule = ledger.GenesisSchedule()
	}

	entry := &ledger.Entry{
		ID:              uuid.New(),
		SourceType:      ledger.SourceSeigniorage,
		IdentityID:      identity.ID,
		FaceFingerprint: identity.FaceFingerprint,
		BlockID:         identity.BlockID,
		Reference:       mintReference(attemptID),
		Amount:          schedule.Foundation,
		RegionalAmount:  schedule.Regional,
		VaultAmount:     schedule.Vault(),
		Gross:           schedule.Total,
		CreatedAt:       now,
	}
	if err := store.AppendEntry(ctx, entry); err != nil {
		return nil, err
	}
	if schedule.Regional.IsPositive() {
		if err := store.CreditRegionalReserve(ctx, identity.BlockID, schedule.Regional, now); err != nil {
			return nil, err
		}
	}
	if err := store.CreditVault(ctx, identity.ID, schedule.VaultSpendable, schedule.VaultLocked, now); err != nil {
		return nil, err
	}
	if err := store.CreateVestingState(ctx, &ledger.VestingState{
		IdentityID: identity.ID,
		Target:     s.cfg.VestingTarget,
		Strictness: ledger.StrictnessStandard,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		return nil, err
	}
	activated := false
	if s.cfg.ActivationDebit.IsPositive() {
		if activated, err = store.ApplyActivationDebit(ctx, identity.ID, s.cfg.ActivationDebit, now); err != nil {
			return nil, err
		}
	}
	if err := store.CompleteReservation(ctx, attemptID, now); err != nil {
		return nil, err
	}
	if err := store.SetMintStatus(ctx, identity.ID, ledger.MintStatusMinted, now); err != nil {
		return nil, err
	}
	if err := store.AppendEvent(ctx, mintedEvent(identity, entry, schedule.Name, genesis, now)); err != nil {
		return nil, err
	}

	return &MintResult{
		Outcome:    OutcomeMinted,
		IdentityID: identity.ID,
		AttemptID:  attemptID,
		Schedule:   schedule.Name,
		Entry:      entry,
		Genesis:    genesis,
		Activated:  activated,
	}, nil
}

func (s *Service) loadVault(ctx context.Context, result *MintResult) {
	vault, err := s.store.GetVault(ctx, result.IdentityID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load vault after mint",
			"identity_id", result.IdentityID.String(), "error", err)
		return
	}
	result.Vault = vault
}

// alreadyMinted reports a repeated mint. A minted vault still missing its
// activation debit, as left by an interrupted sequential mint, gets it now;
// the store skips vaults that are active, released or never minted.
func (s *Service) alreadyMinted(ctx context.Context, identity *ledger.Identity) *MintResult {
	result := &MintResult{Outcome: OutcomeAlreadyMinted, IdentityID: identity.ID}
	vault, err := s.store.GetVault(ctx, identity.ID)
	if err != nil {
		return result
	}
	result.Vault = vault
	if vault.Active || !s.cfg.ActivationDebit.IsPositive() {
		return result
	}

	activated, err := s.store.ApplyActivationDebit(ctx, identity.ID, s.cfg.ActivationDebit, requestcontext.Now(ctx))
	if err != nil {
		s.logger.WarnContext(ctx, "activation debit retry failed",
			"identity_id", identity.ID.String(), "error", err)
		return result
	}
	if !activated {
		return result
	}
	result.Activated = true
	s.logger.InfoContext(ctx, "activation debit applied on repeat mint", "identity_id", identity.ID.String())
	s.loadVault(ctx, result)
	return result
}

// confirm asks the guard about attemptID on a context that survives the
// caller's cancellation, which is often what made the outcome ambiguous.
func (s *Service) confirm(ctx context.Context, attemptID uuid.UUID) (bool, error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), confirmTimeout)
	defer cancel()
	return s.guard.Confirm(cctx, attemptID)
}

func (s *Service) observe(result *MintResult, err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	outcome := "error"
	switch {
	case result != nil:
		outcome = string(result.Outcome)
	case err != nil:
		outcome = string(dErrors.CodeOf(err))
	}
	s.metrics.observe(outcome, start)
}

// ambiguous reports errors after which the write may or may not have landed.
func ambiguous(err error) bool {
	return errors.Is(err, sentinel.ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		dErrors.HasCode(err, dErrors.CodeTimeout) ||
		dErrors.HasCode(err, dErrors.CodeStoreUnavailable)
}

// partialWrite and unavailable override whatever code err carries.
func partialWrite(attemptID uuid.UUID, err error) error {
	return &dErrors.Error{
		Code:    dErrors.CodePartialWrite,
		Message: fmt.Sprintf("mint attempt %s partially applied; reconciliation required", attemptID),
		Err:     err,
	}
}

func unavailable(err error) error {
	return &dErrors.Error{
		Code:    dErrors.CodeStoreUnavailable,
		Message: "ledger store unavailable, mint not applied",
		Err:     err,
	}
}

func mintReference(attemptID uuid.UUID) string {
	return "mint:" + attemptID.String()
}

func mintedEvent(identity *ledger.Identity, entry *ledger.Entry, schedule string, genesis bool, now time.Time) *outbox.Entry {
	payload, _ := json.Marshal(map[string]any{
		"identity_id": identity.ID.String(),
		"entry_id":    entry.ID.String(),
		"block_id":    identity.BlockID.String(),
		"schedule":    schedule,
		"genesis":     genesis,
		"foundation":  entry.Amount.String(),
		"regional":    entry.RegionalAmount.String(),
		"vault":       entry.VaultAmount.String(),
	})
	return outbox.NewEntry(outbox.AggregateIdentity, identity.ID.String(), "ledger.minted", payload, now)
}
