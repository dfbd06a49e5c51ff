// Package deduction takes the foundation's share out of revenue before any
// of it can be distributed, and routes vault-funded fees to the foundation.
//
// Every revenue path goes through calculate and record; they differ only in
// the source type and which shares apply. A Receipt is the only way to reach
// the Distributor, so unreduced gross is never distributed.
package deduction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
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

// Outcome labels how a deduction request was handled.
type Outcome string

const (
	OutcomeRecorded      Outcome = "recorded"
	OutcomeNotApplicable Outcome = "not_applicable"
	OutcomeDuplicate     Outcome = "duplicate"
)

// Receipt proves a deduction was durably recorded. Duplicate is set when
// the reference had already been recorded and Entry is the earlier one.
type Receipt struct {
	Entry      *ledger.Entry
	Deductions Deductions
	Duplicate  bool
}

func (r *Receipt) Net() NetDistributable { return r.Deductions.Net }

type PriorityLockRequest struct {
	BlockID   id.BlockID
	Gross     decimal.Decimal
	PartnerID id.PartnerID
	Reference string
}

type TributeRequest struct {
	PartnerID id.PartnerID
	Gross     decimal.Decimal
	// Dependent accounts are exempt from corporate tribute.
	Dependent bool
	Reference string
}

// TributeResult carries a Receipt only when Outcome is Recorded.
type TributeResult struct {
	Outcome Outcome
	Receipt *Receipt
}

type LevyRequest struct {
	BlockID   id.BlockID
	Gross     decimal.Decimal
	Reference string
}

// BlockRevenueRequest records national block revenue together with its
// royalty audit and revenue ledger rows.
type BlockRevenueRequest struct {
	BlockID   id.BlockID
	Gross     decimal.Decimal
	PartnerID id.PartnerID
	Reference string
}

// VaultCharge is a fee paid from an identity's spendable balance.
type VaultCharge struct {
	Entry *ledger.Entry
	Vault *ledger.Vault
}

type Config struct {
	Rates              Rates
	ConversionLevyRate decimal.Decimal
	SovereigntyFee     decimal.Decimal
}

type Service struct {
	store   ledger.Store
	tx      ledger.TxRunner
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

func WithTxRunner(tx ledger.TxRunner) Option {
	return func(s *Service) { s.tx = tx }
}

func New(store ledger.Store, cfg Config, opts ...Option) (*Service, error) {
	if err := cfg.Rates.Validate(); err != nil {
		return nil, err
	}
	if cfg.ConversionLevyRate.IsNegative() || cfg.ConversionLevyRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("conversion levy rate must be between 0 and 1")
	}
	if cfg.SovereigntyFee.IsNegative() {
		return nil, fmt.Errorf("sovereignty fee cannot be negative")
	}
	s := &Service{
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
		tracer: otel.Tracer("covenant/deduction"),
	}
	if tx, ok := store.(ledger.TxRunner); ok {
		s.tx = tx
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CalculateDeductions applies both foundation shares to gross. It has no
// side effects.
func (s *Service) CalculateDeductions(gross decimal.Decimal) (Deductions, error) {
	return calculate(gross, s.cfg.Rates, ShareBoth)
}

// RecordPriorityLock records the combined corporate and national deduction.
// A repeated non-empty reference returns the original entry.
func (s *Service) RecordPriorityLock(ctx context.Context, req PriorityLockRequest) (*Receipt, error) {
	if req.BlockID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "block ID is required")
	}
	return s.record(ctx, revenue{
		source:    ledger.SourcePriorityLock,
		shares:    ShareBoth,
		blockID:   req.BlockID,
		partnerID: req.PartnerID,
		gross:     req.Gross,
		reference: req.Reference,
	})
}

// RecordCorporateTribute records the corporate share only. Dependent
// accounts are exempt and nothing is written for them.
func (s *Service) RecordCorporateTribute(ctx context.Context, req TributeRequest) (*TributeResult, error) {
	if req.PartnerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "partner ID is required")
	}
	if err := id.ValidateAmount(req.Gross, "gross"); err != nil {
		return nil, err
	}
	if req.Dependent {
		s.recordOutcome(ledger.SourceCorporateRoyalty, OutcomeNotApplicable)
		return &TributeResult{Outcome: OutcomeNotApplicable}, nil
	}
	receipt, err := s.record(ctx, revenue{
		source:    ledger.SourceCorporateRoyalty,
		shares:    ShareCorporate,
		partnerID: req.PartnerID,
		gross:     req.Gross,
		reference: req.Reference,
	})
	if err != nil {
		return nil, err
	}
	return &TributeResult{Outcome: OutcomeRecorded, Receipt: receipt}, nil
}

// RecordNationalLevy records the national share only.
func (s *Service) RecordNationalLevy(ctx context.Context, req LevyRequest) (*Receipt, error) {
	if req.BlockID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "block ID is required")
	}
	return s.record(ctx, revenue{
		source:    ledger.SourceNationalLevy,
		shares:    ShareNational,
		blockID:   req.BlockID,
		gross:     req.Gross,
		reference: req.Reference,
	})
}

// RecordNationalBlockRevenue records a priority lock plus the royalty audit
// and national revenue rows in one transaction.
func (s *Service) RecordNationalBlockRevenue(ctx context.Context, req BlockRevenueRequest) (*Receipt, error) {
	if req.BlockID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "block ID is required")
	}
	return s.record(ctx, revenue{
		source:    ledger.SourcePriorityLock,
		shares:    ShareBoth,
		blockID:   req.BlockID,
		partnerID: req.PartnerID,
		gross:     req.Gross,
		reference: req.Reference,
		audit:     true,
	})
}

// RecordConversionLevy charges the conversion levy on converted units
// against the identity's spendable balance.
func (s *Service) RecordConversionLevy(ctx context.Context, identityID id.IdentityID, converted decimal.Decimal) (*VaultCharge, error) {
	if err := id.ValidateAmount(converted, "converted amount"); err != nil {
		return nil, err
	}
	if !converted.IsPositive() {
		return nil, dErrors.New(dErrors.CodeValidation, "converted amount must be positive")
	}
	levy := id.RoundAmount(converted.Mul(s.cfg.ConversionLevyRate))
	return s.charge(ctx, ledger.SourceConversionLevy, identityID, converted, levy)
}

// RecordSovereigntyFee charges the fixed sovereignty fee.
func (s *Service) RecordSovereigntyFee(ctx context.Context, identityID id.IdentityID) (*VaultCharge, error) {
	return s.charge(ctx, ledger.SourceSovereigntyFee, identityID, s.cfg.SovereigntyFee, s.cfg.SovereigntyFee)
}

type revenue struct {
	source    ledger.SourceType
	shares    Shares
	blockID   id.BlockID
	partnerID id.PartnerID
	gross     decimal.Decimal
	reference string
	// audit also writes the royalty audit and national revenue rows.
	audit bool
}

func (s *Service) record(ctx context.Context, r revenue) (receipt *Receipt, err error) {
	ctx, span := s.tracer.Start(ctx, "deduction.record",
		trace.WithAttributes(attribute.String("source_type", r.source.String())))
	defer func() { platformotel.End(span, err) }()

	d, err := calculate(r.gross, s.cfg.Rates, r.shares)
	if err != nil {
		return nil, err
	}

	if r.reference != "" {
		existing, err := s.store.FindEntryByReference(ctx, r.source, r.reference)
		switch {
		case err == nil:
			return s.duplicate(ctx, r, d, existing)
		case !errors.Is(err, sentinel.ErrNotFound):
			return nil, ledger.TranslateError(err, "failed to look up deduction reference")
		}
	}

	now := requestcontext.Now(ctx)
	entry := &ledger.Entry{
		ID:             uuid.New(),
		SourceType:     r.source,
		BlockID:        r.blockID,
		PartnerID:      r.partnerID,
		Reference:      r.reference,
		Amount:         d.Foundation(),
		CorporateShare: d.CorporateShare,
		NationalShare:  d.NationalShare,
		Gross:          d.Gross,
		Net:            d.Net.Amount(),
		CreatedAt:      now,
	}

	written := false
	err = ledger.Atomically(ctx, s.store, s.tx, func(store ledger.Store) error {
		if err := store.AppendEntry(ctx, entry); err != nil {
			return err
		}
		written = true
		if r.audit {
			row := ledger.RevenueRecord{
				EntryID:             entry.ID,
				BlockID:             r.blockID,
				Gross:               d.Gross,
				FoundationDeduction: d.Foundation(),
				Net:                 d.Net.Amount(),
				Reference:           r.reference,
				CreatedAt:           now,
			}
			audit, national := row, row
			audit.ID, national.ID = uuid.New(), uuid.New()
			if err := store.AppendRoyaltyAudit(ctx, &audit); err != nil {
				return err
			}
			if err := store.AppendNationalRevenue(ctx, &national); err != nil {
				return err
			}
		}
		return store.AppendEvent(ctx, deductionEvent(entry, now))
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) && r.reference != "" {
			// A concurrent request recorded the same reference first.
			if existing, findErr := s.store.FindEntryByReference(ctx, r.source, r.reference); findErr == nil {
				return s.duplicate(ctx, r, d, existing)
			}
		}
		s.logger.ErrorContext(ctx, "deduction not recorded",
			"source_type", r.source.String(), "reference", r.reference, "error", err)
		return nil, s.storeError(err, written)
	}

	s.recordOutcome(r.source, OutcomeRecorded)
	s.logger.InfoContext(ctx, "deduction recorded",
		"source_type", r.source.String(),
		"entry_id", entry.ID.String(),
		"gross", d.Gross.String(),
		"foundation", d.Foundation().String(),
	)
	return &Receipt{Entry: entry, Deductions: d}, nil
}

// duplicate rebuilds the receipt of an entry recorded earlier under the same
// reference. A reference reused for a different gross, block or partner is a
// conflict, never a replay.
func (s *Service) duplicate(ctx context.Context, r revenue, d Deductions, entry *ledger.Entry) (*Receipt, error) {
	if !entry.Gross.Equal(d.Gross) || entry.BlockID != r.blockID || entry.PartnerID != r.partnerID {
		s.logger.WarnContext(ctx, "deduction reference reused with a different payload",
			"source_type", r.source.String(), "reference", r.reference, "entry_id", entry.ID.String())
		return nil, dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("reference %q was already recorded with a different payload", r.reference))
	}
	s.recordOutcome(r.source, OutcomeDuplicate)
	return &Receipt{
		Entry: entry,
		Deductions: Deductions{
			Gross:          entry.Gross,
			CorporateShare: entry.CorporateShare,
			NationalShare:  entry.NationalShare,
			Net:            NetDistributable{amount: entry.Net},
		},
		Duplicate: true,
	}, nil
}

// charge debits amount from spendable and records it as a foundation entry,
// in one transaction. gross is the figure the fee was computed from.
func (s *Service) charge(ctx context.Context, source ledger.SourceType, identityID id.IdentityID, gross, amount decimal.Decimal) (charge *VaultCharge, err error) {
	ctx, span := s.tracer.Start(ctx, "deduction.charge",
		trace.WithAttributes(attribute.String("source_type", source.String())))
	defer func() { platformotel.End(span, err) }()

	if identityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "identity ID is required")
	}
	if !amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s amount must be positive", source))
	}

	now := requestcontext.Now(ctx)
	entry := &ledger.Entry{
		ID:         uuid.New(),
		SourceType: source,
		IdentityID: identityID,
		Amount:     amount,
		Gross:      gross,
		Net:        gross.Sub(amount),
		CreatedAt:  now,
	}
	written := false
	err = ledger.Atomically(ctx, s.store, s.tx, func(store ledger.Store) error {
		if err := store.DebitSpendable(ctx, identityID, amount, now); err != nil {
			return err
		}
		written = true
		if err := store.AppendEntry(ctx, entry); err != nil {
			return err
		}
		return store.AppendEvent(ctx, deductionEvent(entry, now))
	})
	if err != nil {
		return nil, s.storeError(err, written)
	}

	s.recordOutcome(source, OutcomeRecorded)
	vault, err := s.store.GetVault(ctx, identityID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load vault after charge", "identity_id", identityID.String(), "error", err)
		return &VaultCharge{Entry: entry}, nil
	}
	return &VaultCharge{Entry: entry, Vault: vault}, nil
}

// storeError translates a failed recording. Without a transaction runner a
// failure after the first write leaves part of the record behind.
func (s *Service) storeError(err error, written bool) error {
	if s.tx == nil && written {
		return &dErrors.Error{Code: dErrors.CodePartialWrite, Message: "deduction may be partially recorded; reconciliation required", Err: err}
	}
	return ledger.TranslateError(err, "failed to record deduction")
}

func (s *Service) recordOutcome(source ledger.SourceType, outcome Outcome) {
	if s.metrics != nil {
		s.metrics.Recorded.WithLabelValues(source.String(), string(outcome)).Inc()
	}
}

func deductionEvent(entry *ledger.Entry, now time.Time) *outbox.Entry {
	aggregateType, aggregateID := outbox.AggregateTreasury, "foundation"
	switch {
	case !entry.IdentityID.IsNil():
		aggregateType, aggregateID = outbox.AggregateIdentity, entry.IdentityID.String()
	case !entry.BlockID.IsNil():
		aggregateType, aggregateID = outbox.AggregateBlock, entry.BlockID.String()
	case !entry.PartnerID.IsNil():
		aggregateType, aggregateID = outbox.AggregatePartner, entry.PartnerID.String()
	}
	payload, _ := json.Marshal(map[string]any{
		"entry_id":        entry.ID.String(),
		"source_type":     entry.SourceType.String(),
		"reference":       entry.Reference,
		"gross":           entry.Gross.String(),
		"corporate_share": entry.CorporateShare.String(),
		"national_share":  entry.NationalShare.String(),
		"foundation":      entry.FoundationTotal().String(),
		"net":             entry.Net.String(),
	})
	return outbox.NewEntry(aggregateType, aggregateID, "ledger.deduction_recorded", payload, now)
}
