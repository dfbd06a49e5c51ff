// Package guard is the only gate against double issuance. A face fingerprint
// is reserved by a single conditional insert; there is no read-then-write.
package guard

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"covenant/internal/ledger"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/sentinel"
)

// Verdict is the read-only answer of Check.
type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictAlreadyMinted
)

func (v Verdict) String() string {
	if v == VerdictAlreadyMinted {
		return "already_minted"
	}
	return "ok"
}

// ReserveOutcome is the answer of a reservation attempt.
type ReserveOutcome int

const (
	OutcomeReserved ReserveOutcome = iota + 1
	OutcomeAlreadyMinted
)

func (o ReserveOutcome) String() string {
	switch o {
	case OutcomeReserved:
		return "reserved"
	case OutcomeAlreadyMinted:
		return "already_minted"
	}
	return "unknown"
}

// Guard reserves faces (or, as a weaker fallback, contact anchors) in the
// mint reservation table.
type Guard struct {
	store   ledger.ReservationStore
	pepper  []byte
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// New builds a guard. pepper keys the anchor digest and must be non-empty
// whenever anchor reservations are used.
func New(store ledger.ReservationStore, pepper string, opts ...Option) *Guard {
	g := &Guard{
		store:  store,
		pepper: []byte(pepper),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Bind returns a guard that reserves through store, typically a store bound
// to the caller's transaction.
func (g *Guard) Bind(store ledger.ReservationStore) *Guard {
	bound := *g
	bound.store = store
	return &bound
}

// Check reports whether fp already holds a reservation. It writes nothing
// and is advisory only; RejectIfAlreadyMinted is authoritative.
func (g *Guard) Check(ctx context.Context, fp id.FaceFingerprint) (Verdict, error) {
	if fp.IsNil() {
		return VerdictOK, dErrors.New(dErrors.CodeValidation, "face fingerprint is required")
	}
	_, err := g.store.FindReservationByFace(ctx, fp)
	switch {
	case err == nil:
		return VerdictAlreadyMinted, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return VerdictOK, nil
	default:
		return VerdictOK, ledger.TranslateError(err, "failed to check mint reservation")
	}
}

// RejectIfAlreadyMinted atomically reserves fp for attemptID.
func (g *Guard) RejectIfAlreadyMinted(ctx context.Context, fp id.FaceFingerprint, identityID id.IdentityID, attemptID uuid.UUID) (ReserveOutcome, error) {
	if fp.IsNil() {
		return 0, dErrors.New(dErrors.CodeValidation, "face fingerprint is required")
	}
	ok, err := g.store.ReserveFace(ctx, &ledger.Reservation{
		AttemptID:       attemptID,
		IdentityID:      identityID,
		FaceFingerprint: fp,
		Status:          ledger.ReservationReserved,
		CreatedAt:       g.now(),
	})
	return g.outcome(ctx, ok, err, "face", fp.Redacted())
}

// RejectIfAnchorMinted is the legacy reservation for identities without a
// face fingerprint. It does not stop one face from minting under two anchors.
func (g *Guard) RejectIfAnchorMinted(ctx context.Context, anchor id.ContactAnchor, identityID id.IdentityID, attemptID uuid.UUID) (ReserveOutcome, error) {
	if anchor.IsNil() {
		return 0, dErrors.New(dErrors.CodeValidation, "contact anchor is required")
	}
	digest, err := g.AnchorDigest(anchor)
	if err != nil {
		return 0, err
	}
	return g.RejectIfDigestMinted(ctx, digest, identityID, attemptID)
}

// RejectIfDigestMinted reserves an already computed anchor digest.
func (g *Guard) RejectIfDigestMinted(ctx context.Context, digest string, identityID id.IdentityID, attemptID uuid.UUID) (ReserveOutcome, error) {
	ok, err := g.store.ReserveAnchor(ctx, &ledger.Reservation{
		AttemptID:    attemptID,
		IdentityID:   identityID,
		AnchorDigest: digest,
		Status:       ledger.ReservationReserved,
		CreatedAt:    g.now(),
	})
	return g.outcome(ctx, ok, err, "anchor", digest[:min(8, len(digest))])
}

func (g *Guard) outcome(ctx context.Context, ok bool, err error, kind, redacted string) (ReserveOutcome, error) {
	if err != nil {
		g.record("error")
		return 0, ledger.TranslateError(err, "failed to reserve mint")
	}
	if !ok {
		g.record("already_minted")
		g.logger.InfoContext(ctx, "mint reservation rejected", "key_type", kind, "key", redacted)
		return OutcomeAlreadyMinted, nil
	}
	g.record("reserved")
	return OutcomeReserved, nil
}

// Confirm reports whether attemptID's reservation committed. Callers use it
// after an ambiguous failure instead of reserving again, which would read
// their own write as AlreadyMinted.
func (g *Guard) Confirm(ctx context.Context, attemptID uuid.UUID) (bool, error) {
	_, err := g.store.FindReservationByAttempt(ctx, attemptID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return false, nil
	default:
		return false, ledger.TranslateError(err, "failed to confirm mint reservation")
	}
}

// AnchorDigest is the keyed BLAKE2b-256 of the normalized anchor. Raw
// anchors are never stored.
func (g *Guard) AnchorDigest(anchor id.ContactAnchor) (string, error) {
	if len(g.pepper) == 0 {
		return "", dErrors.New(dErrors.CodeInternal, "anchor pepper is not configured")
	}
	h, err := blake2b.New256(g.pepper)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to key anchor digest")
	}
	h.Write([]byte(anchor.String()))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (g *Guard) record(result string) {
	if g.metrics != nil {
		g.metrics.IncReservation(result)
	}
}
