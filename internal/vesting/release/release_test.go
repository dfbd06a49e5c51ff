package release

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"covenant/internal/ledger"
	"covenant/internal/ledger/store/memory"
	"covenant/internal/vesting"
	id "covenant/pkg/domain"
	"covenant/pkg/requestcontext"
)

type fixedCounter int64

func (c fixedCounter) MintedCount(context.Context) (int64, error) { return int64(c), nil }

type recordingInvalidator struct{ ids []id.IdentityID }

func (r *recordingInvalidator) Invalidate(_ context.Context, ids ...id.IdentityID) {
	r.ids = append(r.ids, ids...)
}

// staleListing replays one listing taken before another run released it.
type staleListing struct {
	*memory.Store
	ids []id.IdentityID
}

func (s *staleListing) ListUnreleased(context.Context, int) ([]id.IdentityID, error) {
	ids := s.ids
	s.ids = nil
	return ids, nil
}

func seed(t *testing.T, ctx context.Context, store *memory.Store, n int) []id.IdentityID {
	t.Helper()
	now := requestcontext.Now(ctx)
	ids := make([]id.IdentityID, n)
	for i := range ids {
		ids[i] = id.NewIdentityID()
		require.NoError(t, store.CreateVault(ctx, ids[i], now))
		require.NoError(t, store.CreditVault(ctx, ids[i], decimal.NewFromInt(1), decimal.NewFromInt(4), now))
		require.NoError(t, store.CreateVestingState(ctx, &ledger.VestingState{
			IdentityID: ids[i],
			Target:     10,
			Strictness: ledger.StrictnessStandard,
			CreatedAt:  now.Add(time.Duration(i) * time.Second),
		}))
	}
	return ids
}

func TestRunOnce(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))

	t.Run("below threshold does nothing", func(t *testing.T) {
		store := memory.New(nil)
		ids := seed(t, ctx, store, 3)

		released, err := New(store, fixedCounter(2), 3).RunOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, released)

		vault, err := store.GetVault(ctx, ids[0])
		require.NoError(t, err)
		assert.True(t, vault.Locked.Equal(decimal.NewFromInt(4)))
	})

	t.Run("threshold reached unlocks every vault in batches", func(t *testing.T) {
		store := memory.New(nil)
		ids := seed(t, ctx, store, 5)
		inv := &recordingInvalidator{}
		metrics := vesting.NewMetrics(prometheus.NewRegistry())
		job := New(store, fixedCounter(3), 3, WithBatchSize(2), WithInvalidator(inv), WithMetrics(metrics))

		released, err := job.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, released)
		assert.ElementsMatch(t, ids, inv.ids)
		assert.Equal(t, 5.0, testutil.ToFloat64(metrics.Unlocks.WithLabelValues("global_release")))

		for _, identityID := range ids {
			vault, err := store.GetVault(ctx, identityID)
			require.NoError(t, err)
			assert.True(t, vault.Spendable.Equal(decimal.NewFromInt(5)))
			assert.True(t, vault.Locked.IsZero())

			state, err := store.GetVestingState(ctx, identityID)
			require.NoError(t, err)
			assert.True(t, state.Released)
			assert.True(t, state.VestedAmount.Equal(decimal.NewFromInt(4)))
		}

		again, err := job.RunOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, again)
	})

	t.Run("overlapping runs release each identity once", func(t *testing.T) {
		store := memory.New(nil)
		seed(t, ctx, store, 20)
		job := New(store, fixedCounter(1), 1, WithBatchSize(3))

		counts := make([]int, 4)
		var g errgroup.Group
		for i := range counts {
			g.Go(func() error {
				n, err := job.RunOnce(ctx)
				counts[i] = n
				return err
			})
		}
		require.NoError(t, g.Wait())

		total := 0
		for _, n := range counts {
			total += n
		}
		assert.Equal(t, 20, total)
	})

	t.Run("stale listing leaves released vaults alone", func(t *testing.T) {
		store := memory.New(nil)
		ids := seed(t, ctx, store, 3)
		released, err := New(store, fixedCounter(1), 1).RunOnce(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, released)

		now := requestcontext.Now(ctx)
		require.NoError(t, store.CreditVault(ctx, ids[0], decimal.Zero, decimal.NewFromInt(2), now))

		released, err = New(&staleListing{Store: store, ids: ids}, fixedCounter(1), 1).RunOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, released)

		vault, err := store.GetVault(ctx, ids[0])
		require.NoError(t, err)
		assert.True(t, vault.Locked.Equal(decimal.NewFromInt(2)), vault.Locked.String())
		assert.True(t, vault.Spendable.Equal(decimal.NewFromInt(5)))

		state, err := store.GetVestingState(ctx, ids[0])
		require.NoError(t, err)
		assert.True(t, state.VestedAmount.Equal(decimal.NewFromInt(4)))
	})
}

func TestStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	job := New(memory.New(nil), fixedCounter(0), 1, WithInterval(time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- job.Start(ctx) }()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
