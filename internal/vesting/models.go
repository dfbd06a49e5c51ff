package vesting

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"covenant/internal/ledger"
	id "covenant/pkg/domain"
)

// Policy decides when qualifying events unlock the locked balance.
type Policy string

const (
	// PolicySingleHandshake unlocks everything on the first verified event.
	PolicySingleHandshake Policy = "single-handshake"
	// PolicyDailyTrickle counts one event per calendar day and unlocks at target.
	PolicyDailyTrickle Policy = "daily-trickle"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicySingleHandshake, PolicyDailyTrickle:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown vesting policy %q", s)
}

// ErrCacheMiss is returned by StatusCache.Get when nothing is cached.
var ErrCacheMiss = errors.New("vesting status not cached")

// Status is the read model for an identity's vesting progress.
type Status struct {
	IdentityID    id.IdentityID     `json:"identity_id"`
	Spendable     decimal.Decimal   `json:"spendable"`
	Locked        decimal.Decimal   `json:"locked"`
	Unlocked      bool              `json:"unlocked"`
	Released      bool              `json:"released"`
	Counter       int               `json:"counter"`
	Target        int               `json:"target"`
	Strictness    ledger.Strictness `json:"strictness"`
	LastEventDate *time.Time        `json:"last_event_date,omitempty"`
}

// EventResult reports a qualifying event. Recorded is false for a same-day
// duplicate, which changes nothing.
type EventResult struct {
	Status          *Status
	Recorded        bool
	UnlockedJustNow bool
	// Moved is the amount transferred from locked to spendable by this event.
	Moved decimal.Decimal
}

// Verification is a biometric verifier's answer.
type Verification struct {
	Passed bool
	Score  decimal.Decimal
}
