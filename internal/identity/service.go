// Package identity enrolls verified humans. Enrollment creates the identity
// and its empty vault together; minting happens elsewhere.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"covenant/internal/identity/device"
	"covenant/internal/ledger"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/outbox"
	"covenant/pkg/platform/sentinel"
	"covenant/pkg/requestcontext"
)

// AnchorHasher digests contact anchors; implemented by guard.Guard.
type AnchorHasher interface {
	AnchorDigest(anchor id.ContactAnchor) (string, error)
}

// EnrollRequest carries already-parsed enrollment input.
type EnrollRequest struct {
	FaceFingerprint id.FaceFingerprint
	ContactAnchor   id.ContactAnchor
	BlockID         id.BlockID
	UserAgent       string
	PersonhoodScore decimal.Decimal
}

type EnrollResult struct {
	Identity *ledger.Identity
	Created  bool
}

type Service struct {
	store   ledger.Store
	tx      ledger.TxRunner
	anchors AnchorHasher
	devices *device.Service
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithTxRunner overrides the transaction runner picked up from the store.
func WithTxRunner(tx ledger.TxRunner) Option {
	return func(s *Service) { s.tx = tx }
}

// New builds the enrollment service. The identity and its vault are written
// in one transaction when store implements ledger.TxRunner.
func New(store ledger.Store, anchors AnchorHasher, devices *device.Service, opts ...Option) *Service {
	s := &Service{
		store:   store,
		anchors: anchors,
		devices: devices,
		logger:  slog.Default(),
	}
	if tx, ok := store.(ledger.TxRunner); ok {
		s.tx = tx
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	minScore = decimal.Zero
	maxScore = decimal.NewFromInt(1)
)

// Enroll creates an identity with an empty vault. Enrolling a known face
// returns the existing identity and records the device if it is new.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (*EnrollResult, error) {
	if req.FaceFingerprint.IsNil() && req.ContactAnchor.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "face fingerprint or contact anchor is required")
	}
	if req.BlockID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "block ID is required")
	}
	if req.PersonhoodScore.LessThan(minScore) || req.PersonhoodScore.GreaterThan(maxScore) {
		return nil, dErrors.New(dErrors.CodeValidation, "personhood score must be between 0 and 1")
	}

	now := requestcontext.Now(ctx)
	fingerprint := s.devices.Fingerprint(req.UserAgent)

	if !req.FaceFingerprint.IsNil() {
		existing, err := s.store.FindIdentityByFace(ctx, req.FaceFingerprint)
		if err == nil {
			return s.reenroll(ctx, existing, fingerprint, now)
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, ledger.TranslateError(err, "failed to look up identity")
		}
	}

	var digest string
	if !req.ContactAnchor.IsNil() {
		d, err := s.anchors.AnchorDigest(req.ContactAnchor)
		if err != nil {
			return nil, err
		}
		digest = d
	}

	identity := &ledger.Identity{
		ID:              id.NewIdentityID(),
		FaceFingerprint: req.FaceFingerprint,
		AnchorDigest:    digest,
		BlockID:         req.BlockID,
		PersonhoodScore: req.PersonhoodScore,
		MintStatus:      ledger.MintStatusPendingHardware,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if fingerprint != "" {
		identity.DeviceFingerprints = []string{fingerprint}
	}

	err := ledger.Atomically(ctx, s.store, s.tx, func(store ledger.Store) error {
		if err := store.CreateIdentity(ctx, identity); err != nil {
			return err
		}
		if err := store.CreateVault(ctx, identity.ID, now); err != nil {
			return err
		}
		return store.AppendEvent(ctx, enrolledEvent(identity, now))
	})
	if errors.Is(err, sentinel.ErrConflict) && !req.FaceFingerprint.IsNil() {
		// A concurrent enrollment of the same face won.
		if existing, findErr := s.store.FindIdentityByFace(ctx, req.FaceFingerprint); findErr == nil {
			return s.reenroll(ctx, existing, fingerprint, now)
		}
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "contact anchor is already enrolled")
		}
		return nil, ledger.TranslateError(err, "failed to enroll identity")
	}

	s.logger.InfoContext(ctx, "identity enrolled",
		"identity_id", identity.ID.String(),
		"face", identity.FaceFingerprint.Redacted(),
		"block_id", identity.BlockID.String(),
	)
	return &EnrollResult{Identity: identity, Created: true}, nil
}

func (s *Service) reenroll(ctx context.Context, existing *ledger.Identity, fingerprint string, now time.Time) (*EnrollResult, error) {
	if fingerprint != "" && !s.devices.Known(existing.DeviceFingerprints, fingerprint) {
		if err := s.store.AddDeviceFingerprint(ctx, existing.ID, fingerprint, now); err != nil {
			return nil, ledger.TranslateError(err, "failed to record device")
		}
		existing.DeviceFingerprints = append(existing.DeviceFingerprints, fingerprint)
		s.logger.InfoContext(ctx, "new device for enrolled identity", "identity_id", existing.ID.String())
	}
	return &EnrollResult{Identity: existing, Created: false}, nil
}

func (s *Service) Get(ctx context.Context, identityID id.IdentityID) (*ledger.Identity, error) {
	identity, err := s.store.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, ledger.TranslateError(err, "identity not found")
	}
	return identity, nil
}

// UpdatePersonhood records the latest proof-of-personhood confidence.
func (s *Service) UpdatePersonhood(ctx context.Context, identityID id.IdentityID, score decimal.Decimal) error {
	if score.LessThan(minScore) || score.GreaterThan(maxScore) {
		return dErrors.New(dErrors.CodeValidation, "personhood score must be between 0 and 1")
	}
	if err := s.store.UpdatePersonhood(ctx, identityID, score, requestcontext.Now(ctx)); err != nil {
		return ledger.TranslateError(err, "failed to update personhood")
	}
	return nil
}

func enrolledEvent(identity *ledger.Identity, now time.Time) *outbox.Entry {
	payload, _ := json.Marshal(map[string]string{
		"identity_id": identity.ID.String(),
		"block_id":    identity.BlockID.String(),
	})
	return outbox.NewEntry(outbox.AggregateIdentity, identity.ID.String(), "identity.enrolled", payload, now)
}
