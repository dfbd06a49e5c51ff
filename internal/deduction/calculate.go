package deduction

import (
	"fmt"

	"github.com/shopspring/decimal"

	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
)

// Shares selects which foundation deductions apply to a revenue record.
type Shares uint8

const (
	ShareCorporate Shares = 1 << iota
	ShareNational

	ShareBoth = ShareCorporate | ShareNational
)

func (s Shares) Has(share Shares) bool { return s&share != 0 }

// Rates are the foundation's cut of gross revenue.
type Rates struct {
	Corporate decimal.Decimal
	National  decimal.Decimal
}

// DefaultRates are 2% corporate and 3% national.
func DefaultRates() Rates {
	return Rates{
		Corporate: decimal.RequireFromString("0.02"),
		National:  decimal.RequireFromString("0.03"),
	}
}

func (r Rates) Validate() error {
	if r.Corporate.IsNegative() || r.National.IsNegative() {
		return fmt.Errorf("deduction rates cannot be negative")
	}
	if r.Corporate.Add(r.National).GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("deduction rates exceed gross")
	}
	return nil
}

// NetDistributable is revenue that has already had the foundation's shares
// deducted. It can only be produced by this package, so a raw gross figure
// cannot be handed to the Distributor.
type NetDistributable struct {
	amount decimal.Decimal
}

func (n NetDistributable) Amount() decimal.Decimal { return n.amount }
func (n NetDistributable) String() string          { return n.amount.StringFixed(id.AmountPlaces) }

// Deductions is the outcome of applying the rates to one gross amount.
// CorporateShare + NationalShare + Net equals Gross exactly.
type Deductions struct {
	Gross          decimal.Decimal
	CorporateShare decimal.Decimal
	NationalShare  decimal.Decimal
	Net            NetDistributable
}

// Foundation is the total deducted for the foundation.
func (d Deductions) Foundation() decimal.Decimal {
	return d.CorporateShare.Add(d.NationalShare)
}

// calculate is the single arithmetic path for every deduction kind. Shares
// are rounded down to the persisted scale and Net absorbs the remainder.
func calculate(gross decimal.Decimal, rates Rates, shares Shares) (Deductions, error) {
	if err := id.ValidateAmount(gross, "gross"); err != nil {
		return Deductions{}, err
	}
	d := Deductions{
		Gross:          gross,
		CorporateShare: decimal.Zero,
		NationalShare:  decimal.Zero,
	}
	if shares.Has(ShareCorporate) {
		d.CorporateShare = id.RoundAmount(gross.Mul(rates.Corporate))
	}
	if shares.Has(ShareNational) {
		d.NationalShare = id.RoundAmount(gross.Mul(rates.National))
	}
	net := gross.Sub(d.CorporateShare).Sub(d.NationalShare)
	if net.IsNegative() {
		return Deductions{}, dErrors.New(dErrors.CodeInvariantViolation, "deductions exceed gross")
	}
	d.Net = NetDistributable{amount: net}
	return d, nil
}
