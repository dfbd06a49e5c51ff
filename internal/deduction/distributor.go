package deduction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
)

// Weight is one recipient's fraction of the net.
type Weight struct {
	Recipient string
	Fraction  decimal.Decimal
}

// Allocation lists recipients in priority order. Fractions must sum to 1.
type Allocation []Weight

func (a Allocation) Validate() error {
	if len(a) == 0 {
		return dErrors.New(dErrors.CodeValidation, "allocation needs at least one recipient")
	}
	total := decimal.Zero
	seen := make(map[string]struct{}, len(a))
	for _, w := range a {
		if w.Recipient == "" {
			return dErrors.New(dErrors.CodeValidation, "recipient is required")
		}
		if _, dup := seen[w.Recipient]; dup {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("recipient %q listed twice", w.Recipient))
		}
		seen[w.Recipient] = struct{}{}
		if !w.Fraction.IsPositive() {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("fraction for %q must be positive", w.Recipient))
		}
		total = total.Add(w.Fraction)
	}
	if !total.Equal(decimal.NewFromInt(1)) {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("fractions sum to %s, not 1", total))
	}
	return nil
}

type Payout struct {
	Recipient string
	Amount    decimal.Decimal
}

// Distributor splits deducted revenue. It accepts a Receipt rather than an
// amount, so only recorded, reduced revenue can be paid out.
type Distributor struct {
	logger *slog.Logger
}

func NewDistributor(logger *slog.Logger) *Distributor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Distributor{logger: logger}
}

// Distribute splits the receipt's net by weight. Each share is rounded down
// and the remainder goes to the first recipient, so payouts sum to net.
func (d *Distributor) Distribute(ctx context.Context, receipt *Receipt, alloc Allocation) ([]Payout, error) {
	if receipt == nil || receipt.Entry == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "a recorded deduction receipt is required")
	}
	if err := alloc.Validate(); err != nil {
		return nil, err
	}

	net := receipt.Net().Amount()
	payouts := make([]Payout, len(alloc))
	paid := decimal.Zero
	for i, w := range alloc {
		amount := id.RoundAmount(net.Mul(w.Fraction))
		payouts[i] = Payout{Recipient: w.Recipient, Amount: amount}
		paid = paid.Add(amount)
	}
	payouts[0].Amount = payouts[0].Amount.Add(net.Sub(paid))

	d.logger.InfoContext(ctx, "net revenue distributed",
		"entry_id", receipt.Entry.ID.String(),
		"net", net.String(),
		"recipients", len(payouts),
	)
	return payouts, nil
}
