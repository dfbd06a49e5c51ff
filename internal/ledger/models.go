package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
)

// SourceType tags every ledger entry. The set is closed.
type SourceType string

const (
	SourceSeigniorage      SourceType = "seigniorage"
	SourceCorporateRoyalty SourceType = "corporate_royalty"
	SourceNationalLevy     SourceType = "national_levy"
	SourcePriorityLock     SourceType = "priority_lock"
	SourceConversionLevy   SourceType = "conversion_levy"
	SourceSovereigntyFee   SourceType = "sovereignty_fee"
)

// SourceTypes lists every source type in a stable order.
var SourceTypes = []SourceType{
	SourceSeigniorage,
	SourceCorporateRoyalty,
	SourceNationalLevy,
	SourcePriorityLock,
	SourceConversionLevy,
	SourceSovereigntyFee,
}

func ParseSourceType(s string) (SourceType, error) {
	st := SourceType(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown source type %q", s))
	}
	return st, nil
}

func (s SourceType) IsValid() bool {
	switch s {
	case SourceSeigniorage, SourceCorporateRoyalty, SourceNationalLevy,
		SourcePriorityLock, SourceConversionLevy, SourceSovereigntyFee:
		return true
	}
	return false
}

func (s SourceType) String() string { return string(s) }

// Direction says where the value recorded by an entry came from.
type Direction int

const (
	DirectionUnknown Direction = iota
	// DirectionMint entries allocate newly issued units.
	DirectionMint
	// DirectionVault entries move value out of an identity's spendable balance.
	DirectionVault
	// DirectionRevenue entries deduct from external revenue.
	DirectionRevenue
)

func (s SourceType) Direction() Direction {
	switch s {
	case SourceSeigniorage:
		return DirectionMint
	case SourceConversionLevy, SourceSovereigntyFee:
		return DirectionVault
	case SourceCorporateRoyalty, SourceNationalLevy, SourcePriorityLock:
		return DirectionRevenue
	}
	return DirectionUnknown
}

// MintStatus is the identity's minting lifecycle state.
type MintStatus string

const (
	MintStatusPendingHardware MintStatus = "pending_hardware"
	MintStatusMinted          MintStatus = "minted"
)

func ParseMintStatus(s string) (MintStatus, error) {
	switch MintStatus(s) {
	case MintStatusPendingHardware, MintStatusMinted:
		return MintStatus(s), nil
	}
	return "", fmt.Errorf("unknown mint status %q", s)
}

// ReservationStatus tracks a guard reservation through the mint.
type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "reserved"
	ReservationCompleted ReservationStatus = "completed"
)

func ParseReservationStatus(s string) (ReservationStatus, error) {
	switch ReservationStatus(s) {
	case ReservationReserved, ReservationCompleted:
		return ReservationStatus(s), nil
	}
	return "", fmt.Errorf("unknown reservation status %q", s)
}

// Strictness is the biometric strictness tier consumed by the verifier.
type Strictness string

const (
	StrictnessStandard Strictness = "standard"
	StrictnessHigh     Strictness = "high"
)

func ParseStrictness(s string) (Strictness, error) {
	switch Strictness(s) {
	case StrictnessStandard, StrictnessHigh:
		return Strictness(s), nil
	}
	return "", fmt.Errorf("unknown strictness %q", s)
}

// Identity is a verified human. FaceFingerprint is the sole minting
// authority; AnchorDigest only backs the legacy guard when no face is known.
type Identity struct {
	ID                 id.IdentityID
	FaceFingerprint    id.FaceFingerprint
	AnchorDigest       string
	BlockID            id.BlockID
	DeviceFingerprints []string
	PersonhoodScore    decimal.Decimal
	MintStatus         MintStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (i *Identity) HasMinted() bool {
	return i.MintStatus == MintStatusMinted
}

// Entry is an immutable ledger record. Amount is the foundation's share;
// the other amount columns are populated according to SourceType.
type Entry struct {
	ID              uuid.UUID
	SourceType      SourceType
	IdentityID      id.IdentityID
	FaceFingerprint id.FaceFingerprint
	BlockID         id.BlockID
	PartnerID       id.PartnerID
	Reference       string
	Amount          decimal.Decimal
	CorporateShare  decimal.Decimal
	NationalShare   decimal.Decimal
	RegionalAmount  decimal.Decimal
	VaultAmount     decimal.Decimal
	Gross           decimal.Decimal
	Net             decimal.Decimal
	CreatedAt       time.Time
}

// FoundationTotal is what the entry contributed to the foundation reserve.
func (e *Entry) FoundationTotal() decimal.Decimal {
	switch e.SourceType.Direction() {
	case DirectionRevenue:
		return e.CorporateShare.Add(e.NationalShare)
	case DirectionMint, DirectionVault:
		return e.Amount
	}
	return decimal.Zero
}

// Vault holds an identity's balances. Both are non-negative.
type Vault struct {
	IdentityID id.IdentityID
	Spendable  decimal.Decimal
	Locked     decimal.Decimal
	Active     bool
	UpdatedAt  time.Time
}

func (v *Vault) Total() decimal.Decimal {
	return v.Spendable.Add(v.Locked)
}

type RegionalReserve struct {
	BlockID   id.BlockID
	Balance   decimal.Decimal
	UpdatedAt time.Time
}

// VestingState is created at mint time. Counter never decreases and never
// exceeds Target.
type VestingState struct {
	IdentityID    id.IdentityID
	Counter       int
	Target        int
	LastEventDate *time.Time
	Strictness    Strictness
	Released      bool
	VestedAmount  decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (v *VestingState) Unlocked() bool {
	return v.Counter >= v.Target || v.Released
}

// Reservation is the guard's claim on a face (or legacy anchor digest).
type Reservation struct {
	AttemptID       uuid.UUID
	IdentityID      id.IdentityID
	FaceFingerprint id.FaceFingerprint
	AnchorDigest    string
	Status          ReservationStatus
	CreatedAt       time.Time
	CompletedAt     *time.Time
}

// RevenueRecord is a row of foundation_royalty_audit or national_revenue_ledger.
type RevenueRecord struct {
	ID                  uuid.UUID
	EntryID             uuid.UUID
	BlockID             id.BlockID
	Gross               decimal.Decimal
	FoundationDeduction decimal.Decimal
	Net                 decimal.Decimal
	Reference           string
	CreatedAt           time.Time
}

// BlockContribution aggregates national revenue per block.
type BlockContribution struct {
	BlockID             id.BlockID
	Gross               decimal.Decimal
	FoundationDeduction decimal.Decimal
	Net                 decimal.Decimal
	Entries             int64
}

// VaultDrift reports a vault whose balance disagrees with its ledger entries.
type VaultDrift struct {
	IdentityID id.IdentityID
	Balance    decimal.Decimal
	Expected   decimal.Decimal
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
