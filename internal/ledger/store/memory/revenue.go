package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"covenant/internal/ledger"
	id "covenant/pkg/domain"
	"covenant/pkg/platform/sentinel"
)

func (v *view) AppendRoyaltyAudit(_ context.Context, record *ledger.RevenueRecord) error {
	defer v.lock()()
	v.st.royalty = append(v.st.royalty, *record)
	return nil
}

func (v *view) AppendNationalRevenue(_ context.Context, record *ledger.RevenueRecord) error {
	defer v.lock()()
	v.st.national = append(v.st.national, *record)
	return nil
}

func (v *view) BlockContributions(_ context.Context) ([]ledger.BlockContribution, error) {
	defer v.rlock()()
	byBlock := make(map[id.BlockID]*ledger.BlockContribution)
	for _, r := range v.st.national {
		c, ok := byBlock[r.BlockID]
		if !ok {
			c = &ledger.BlockContribution{
				BlockID:             r.BlockID,
				Gross:               decimal.Zero,
				FoundationDeduction: decimal.Zero,
				Net:                 decimal.Zero,
			}
			byBlock[r.BlockID] = c
		}
		c.Gross = c.Gross.Add(r.Gross)
		c.FoundationDeduction = c.FoundationDeduction.Add(r.FoundationDeduction)
		c.Net = c.Net.Add(r.Net)
		c.Entries++
	}
	out := make([]ledger.BlockContribution, 0, len(byBlock))
	for _, c := range byBlock {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockID < out[j].BlockID })
	return out, nil
}

func (v *view) GetBlockContribution(ctx context.Context, blockID id.BlockID) (*ledger.BlockContribution, error) {
	all, err := v.BlockContributions(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range all {
		if c.BlockID == blockID {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("block contribution %s: %w", blockID, sentinel.ErrNotFound)
}
