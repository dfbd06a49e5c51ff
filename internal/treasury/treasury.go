// Package treasury serves read models over the foundation and regional
// reserves. It never writes.
package treasury

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"covenant/internal/ledger"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/sentinel"
)

// Store is the read-only slice of the ledger the treasury needs.
type Store interface {
	SumFoundation(ctx context.Context) (decimal.Decimal, error)
	GetRegionalReserve(ctx context.Context, blockID id.BlockID) (*ledger.RegionalReserve, error)
	BlockContributions(ctx context.Context) ([]ledger.BlockContribution, error)
}

type Service struct {
	store Store
}

func New(store Store) *Service {
	return &Service{store: store}
}

// FoundationReserve totals every foundation credit: mint shares, vault fees
// and the corporate and national shares of revenue.
func (s *Service) FoundationReserve(ctx context.Context) (decimal.Decimal, error) {
	total, err := s.store.SumFoundation(ctx)
	if err != nil {
		return decimal.Zero, ledger.TranslateError(err, "failed to sum foundation reserve")
	}
	return total, nil
}

// RegionalReserve returns a block's reserve. A block that never received a
// mint has a zero balance rather than an error.
func (s *Service) RegionalReserve(ctx context.Context, blockID id.BlockID) (*ledger.RegionalReserve, error) {
	if blockID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "block ID is required")
	}
	reserve, err := s.store.GetRegionalReserve(ctx, blockID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &ledger.RegionalReserve{BlockID: blockID, Balance: decimal.Zero}, nil
		}
		return nil, ledger.TranslateError(err, "failed to load regional reserve")
	}
	return reserve, nil
}

// BlockContributions ranks blocks by foundation deduction, largest first.
func (s *Service) BlockContributions(ctx context.Context) ([]ledger.BlockContribution, error) {
	contributions, err := s.store.BlockContributions(ctx)
	if err != nil {
		return nil, ledger.TranslateError(err, "failed to aggregate block contributions")
	}
	sort.SliceStable(contributions, func(i, j int) bool {
		a, b := contributions[i], contributions[j]
		if c := a.FoundationDeduction.Cmp(b.FoundationDeduction); c != 0 {
			return c > 0
		}
		return a.BlockID < b.BlockID
	})
	return contributions, nil
}
