package treasury

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covenant/internal/ledger"
	"covenant/internal/ledger/store/memory"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/sentinel"
)

func TestFoundationReserve(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	store := memory.New(nil)
	entries := []*ledger.Entry{
		{SourceType: ledger.SourceSeigniorage, FaceFingerprint: "a", Amount: decimal.NewFromInt(1)},
		{SourceType: ledger.SourcePriorityLock, CorporateShare: decimal.NewFromInt(20), NationalShare: decimal.NewFromInt(30)},
		{SourceType: ledger.SourceSovereigntyFee, Amount: decimal.RequireFromString("0.5")},
		{SourceType: ledger.SourceConversionLevy, Amount: decimal.NewFromInt(2)},
	}
	for _, e := range entries {
		e.ID = uuid.New()
		e.CreatedAt = now
		require.NoError(t, store.AppendEntry(ctx, e))
	}

	total, err := New(store).FoundationReserve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "53.5", total.String())
}

func TestRegionalReserve(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil)
	require.NoError(t, store.CreditRegionalReserve(ctx, "block-1", decimal.NewFromInt(5), time.Now()))
	svc := New(store)

	reserve, err := svc.RegionalReserve(ctx, "block-1")
	require.NoError(t, err)
	assert.True(t, reserve.Balance.Equal(decimal.NewFromInt(5)))

	empty, err := svc.RegionalReserve(ctx, "block-unknown")
	require.NoError(t, err)
	assert.True(t, empty.Balance.IsZero())

	_, err = svc.RegionalReserve(ctx, "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestBlockContributionsOrderedByDeduction(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil)
	for block, gross := range map[id.BlockID]int64{"north": 100, "south": 900, "east": 400} {
		g := decimal.NewFromInt(gross)
		fd := g.Mul(decimal.RequireFromString("0.05"))
		require.NoError(t, store.AppendNationalRevenue(ctx, &ledger.RevenueRecord{
			ID: uuid.New(), EntryID: uuid.New(), BlockID: block, Gross: g, FoundationDeduction: fd, Net: g.Sub(fd),
		}))
	}

	contributions, err := New(store).BlockContributions(ctx)
	require.NoError(t, err)
	require.Len(t, contributions, 3)
	assert.Equal(t, id.BlockID("south"), contributions[0].BlockID)
	assert.Equal(t, id.BlockID("east"), contributions[1].BlockID)
	assert.Equal(t, id.BlockID("north"), contributions[2].BlockID)
}

type unavailableStore struct{ Store }

func (unavailableStore) SumFoundation(context.Context) (decimal.Decimal, error) {
	return decimal.Zero, errors.Join(errors.New("dial tcp: timeout"), sentinel.ErrUnavailable)
}

func TestFoundationReserveUnavailable(t *testing.T) {
	_, err := New(unavailableStore{}).FoundationReserve(context.Background())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeStoreUnavailable))
}
