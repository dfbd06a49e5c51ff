package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	id "covenant/pkg/domain"
	"covenant/pkg/platform/outbox"
)

// Store is the ledger persistence port. Every mutation is a single atomic
// statement; callers never read a balance, modify it and write it back.
// Stores return pkg/platform/sentinel errors, wrapped.
type Store interface {
	IdentityStore
	AgreementStore
	ReservationStore
	EntryStore
	VaultStore
	ReserveStore
	VestingStore
	RevenueStore

	// AppendEvent writes an outbox entry alongside the current mutation.
	AppendEvent(ctx context.Context, entry *outbox.Entry) error
}

// TxRunner runs fn against a Store bound to one transaction. fn's writes
// commit together or not at all.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

type IdentityStore interface {
	// CreateIdentity fails with sentinel.ErrConflict when the face or anchor
	// digest is already enrolled.
	CreateIdentity(ctx context.Context, identity *Identity) error
	GetIdentity(ctx context.Context, identityID id.IdentityID) (*Identity, error)
	FindIdentityByFace(ctx context.Context, fp id.FaceFingerprint) (*Identity, error)
	AddDeviceFingerprint(ctx context.Context, identityID id.IdentityID, device string, now time.Time) error
	UpdatePersonhood(ctx context.Context, identityID id.IdentityID, score decimal.Decimal, now time.Time) error
	SetMintStatus(ctx context.Context, identityID id.IdentityID, status MintStatus, now time.Time) error
}

type AgreementStore interface {
	HasSigned(ctx context.Context, identityID id.IdentityID, version id.AgreementVersion) (bool, error)
	// RecordSignature is idempotent per (identity, version); the first
	// device reference wins.
	RecordSignature(ctx context.Context, identityID id.IdentityID, version id.AgreementVersion, deviceRef string, now time.Time) error
}

type ReservationStore interface {
	// ReserveFace inserts r keyed by its face fingerprint. It returns false,
	// with no write, when the face is already reserved.
	ReserveFace(ctx context.Context, r *Reservation) (bool, error)
	// ReserveAnchor is ReserveFace keyed by anchor digest.
	ReserveAnchor(ctx context.Context, r *Reservation) (bool, error)
	FindReservationByFace(ctx context.Context, fp id.FaceFingerprint) (*Reservation, error)
	FindReservationByAnchor(ctx context.Context, digest string) (*Reservation, error)
	FindReservationByAttempt(ctx context.Context, attemptID uuid.UUID) (*Reservation, error)
	CompleteReservation(ctx context.Context, attemptID uuid.UUID, now time.Time) error
	ListStaleReservations(ctx context.Context, before time.Time) ([]*Reservation, error)
	// ClaimGenesis returns true for exactly one identity, ever.
	ClaimGenesis(ctx context.Context, identityID id.IdentityID, now time.Time) (bool, error)
}

type EntryStore interface {
	// AppendEntry fails with sentinel.ErrConflict on a duplicate seigniorage
	// face or (source type, reference) pair.
	AppendEntry(ctx context.Context, entry *Entry) error
	FindEntryByReference(ctx context.Context, source SourceType, reference string) (*Entry, error)
	ListEntriesByIdentity(ctx context.Context, identityID id.IdentityID) ([]*Entry, error)
	CountEntries(ctx context.Context, source SourceType) (int64, error)
	// SumFoundation totals every entry's foundation contribution.
	SumFoundation(ctx context.Context) (decimal.Decimal, error)
	// VaultDrift lists vaults whose balance differs from credited minus debited entries.
	VaultDrift(ctx context.Context) ([]VaultDrift, error)
}

type VaultStore interface {
	CreateVault(ctx context.Context, identityID id.IdentityID, now time.Time) error
	GetVault(ctx context.Context, identityID id.IdentityID) (*Vault, error)
	CreditVault(ctx context.Context, identityID id.IdentityID, spendable, locked decimal.Decimal, now time.Time) error
	// ApplyActivationDebit moves fee from spendable to locked and sets Active.
	// It returns false, with no write, when the vault is already active,
	// spendable is below fee, or the identity has no unreleased vesting state.
	ApplyActivationDebit(ctx context.Context, identityID id.IdentityID, fee decimal.Decimal, now time.Time) (bool, error)
	// DebitSpendable fails with sentinel.ErrInvalidState when spendable < amount.
	DebitSpendable(ctx context.Context, identityID id.IdentityID, amount decimal.Decimal, now time.Time) error
	// UnlockVaults moves all locked to spendable for each identity whose
	// vesting state is still unreleased and returns the amount moved per
	// identity. Released or unknown identities are skipped.
	UnlockVaults(ctx context.Context, identityIDs []id.IdentityID, now time.Time) (map[id.IdentityID]decimal.Decimal, error)
}

type ReserveStore interface {
	CreditRegionalReserve(ctx context.Context, blockID id.BlockID, amount decimal.Decimal, now time.Time) error
	GetRegionalReserve(ctx context.Context, blockID id.BlockID) (*RegionalReserve, error)
}

type VestingStore interface {
	CreateVestingState(ctx context.Context, state *VestingState) error
	GetVestingState(ctx context.Context, identityID id.IdentityID) (*VestingState, error)
	// RecordVestingEvent returns false when an event already exists for day.
	RecordVestingEvent(ctx context.Context, identityID id.IdentityID, day time.Time, now time.Time) (bool, error)
	// AdvanceVesting increments the counter, capped at target, and stamps day.
	AdvanceVesting(ctx context.Context, identityID id.IdentityID, day time.Time, now time.Time) (*VestingState, error)
	// ReleaseVesting marks the state released at target with high strictness.
	// It returns false when the state was already released.
	ReleaseVesting(ctx context.Context, identityID id.IdentityID, vested decimal.Decimal, now time.Time) (bool, error)
	ListUnreleased(ctx context.Context, limit int) ([]id.IdentityID, error)
}

type RevenueStore interface {
	AppendRoyaltyAudit(ctx context.Context, record *RevenueRecord) error
	AppendNationalRevenue(ctx context.Context, record *RevenueRecord) error
	BlockContributions(ctx context.Context) ([]BlockContribution, error)
	GetBlockContribution(ctx context.Context, blockID id.BlockID) (*BlockContribution, error)
}
