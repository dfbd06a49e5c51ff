package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	dErrors "covenant/pkg/domain-errors"
)

// MintSchedule splits one mint among the regional reserve, the foundation
// and the identity's vault.
type MintSchedule struct {
	Name           string
	Total          decimal.Decimal
	Regional       decimal.Decimal
	Foundation     decimal.Decimal
	VaultSpendable decimal.Decimal
	VaultLocked    decimal.Decimal
}

const (
	ScheduleCovenant11 = "covenant-11"
	ScheduleDualMint10 = "dual-mint-10"
	ScheduleGenesis    = "genesis"
)

var schedules = map[string]MintSchedule{
	ScheduleCovenant11: {
		Name:           ScheduleCovenant11,
		Total:          decimal.NewFromInt(11),
		Regional:       decimal.NewFromInt(5),
		Foundation:     decimal.NewFromInt(1),
		VaultSpendable: decimal.NewFromInt(1),
		VaultLocked:    decimal.NewFromInt(4),
	},
	// Legacy 10 + 1: ten units to the vault, one to the foundation.
	ScheduleDualMint10: {
		Name:           ScheduleDualMint10,
		Total:          decimal.NewFromInt(11),
		Regional:       decimal.Zero,
		Foundation:     decimal.NewFromInt(1),
		VaultSpendable: decimal.RequireFromString("0.1"),
		VaultLocked:    decimal.RequireFromString("9.9"),
	},
	// Genesis applies to the first identity minted into an empty system.
	ScheduleGenesis: {
		Name:           ScheduleGenesis,
		Total:          decimal.NewFromInt(5),
		Regional:       decimal.Zero,
		Foundation:     decimal.Zero,
		VaultSpendable: decimal.NewFromInt(1),
		VaultLocked:    decimal.NewFromInt(4),
	},
}

// ScheduleByName returns a named schedule.
func ScheduleByName(name string) (MintSchedule, error) {
	s, ok := schedules[name]
	if !ok {
		return MintSchedule{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown mint schedule %q", name))
	}
	return s, nil
}

// GenesisSchedule returns the first-registration grant.
func GenesisSchedule() MintSchedule {
	return schedules[ScheduleGenesis]
}

// Vault is the identity's total share.
func (s MintSchedule) Vault() decimal.Decimal {
	return s.VaultSpendable.Add(s.VaultLocked)
}

// Validate checks that parts are non-negative and sum exactly to Total.
func (s MintSchedule) Validate() error {
	parts := map[string]decimal.Decimal{
		"regional":        s.Regional,
		"foundation":      s.Foundation,
		"vault spendable": s.VaultSpendable,
		"vault locked":    s.VaultLocked,
	}
	for name, p := range parts {
		if p.IsNegative() {
			return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("schedule %s: %s share is negative", s.Name, name))
		}
	}
	if !s.Total.IsPositive() {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("schedule %s: total must be positive", s.Name))
	}
	sum := s.Regional.Add(s.Foundation).Add(s.Vault())
	if !sum.Equal(s.Total) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("schedule %s: parts sum to %s, total is %s", s.Name, sum, s.Total))
	}
	return nil
}
