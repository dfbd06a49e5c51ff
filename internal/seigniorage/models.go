package seigniorage

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"covenant/internal/ledger"
	id "covenant/pkg/domain"
)

// Outcome is the non-error result of a mint call.
type Outcome string

const (
	OutcomeMinted        Outcome = "minted"
	OutcomeAlreadyMinted Outcome = "already_minted"
)

// MintResult describes a mint. Entry is nil unless Outcome is Minted.
type MintResult struct {
	Outcome    Outcome
	IdentityID id.IdentityID
	AttemptID  uuid.UUID
	Schedule   string
	Entry      *ledger.Entry
	Vault      *ledger.Vault
	Activated  bool
	Genesis    bool
}

// Config fixes the issuance rules for one engine.
type Config struct {
	Schedule            ledger.MintSchedule
	AgreementVersion    id.AgreementVersion
	PersonhoodThreshold decimal.Decimal
	// ActivationDebit is moved from spendable to locked once per vault.
	// Zero disables activation.
	ActivationDebit decimal.Decimal
	VestingTarget   int
}
