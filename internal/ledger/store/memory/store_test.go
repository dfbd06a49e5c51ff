package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"covenant/internal/ledger"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/platform/outbox"
	outboxmem "covenant/pkg/platform/outbox/store/memory"
	"covenant/pkg/platform/sentinel"
)

type LedgerStoreSuite struct {
	suite.Suite
	ctx    context.Context
	now    time.Time
	events *outboxmem.Store
	store  *Store
}

func TestLedgerStoreSuite(t *testing.T) {
	suite.Run(t, new(LedgerStoreSuite))
}

func (s *LedgerStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.events = outboxmem.New()
	s.store = New(s.events)
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func (s *LedgerStoreSuite) newIdentity(face string) *ledger.Identity {
	identity := &ledger.Identity{
		ID:              id.NewIdentityID(),
		FaceFingerprint: id.FaceFingerprint(face),
		BlockID:         "block-7",
		PersonhoodScore: dec("0.95"),
		MintStatus:      ledger.MintStatusPendingHardware,
		CreatedAt:       s.now,
		UpdatedAt:       s.now,
	}
	s.Require().NoError(s.store.CreateIdentity(s.ctx, identity))
	return identity
}

func (s *LedgerStoreSuite) TestIdentities() {
	s.Run("rejects a second enrollment of the same face", func() {
		s.newIdentity("face-dup")
		err := s.store.CreateIdentity(s.ctx, &ledger.Identity{ID: id.NewIdentityID(), FaceFingerprint: "face-dup"})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("device fingerprints are added once", func() {
		identity := s.newIdentity("face-devices")
		s.Require().NoError(s.store.AddDeviceFingerprint(s.ctx, identity.ID, "dev-1", s.now))
		s.Require().NoError(s.store.AddDeviceFingerprint(s.ctx, identity.ID, "dev-1", s.now))

		got, err := s.store.FindIdentityByFace(s.ctx, "face-devices")
		s.Require().NoError(err)
		s.Equal([]string{"dev-1"}, got.DeviceFingerprints)
	})

	s.Run("unknown identity is not found", func() {
		_, err := s.store.GetIdentity(s.ctx, id.NewIdentityID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *LedgerStoreSuite) TestSignatures() {
	identity := s.newIdentity("face-sign")

	signed, err := s.store.HasSigned(s.ctx, identity.ID, "covenant-v1")
	s.Require().NoError(err)
	s.False(signed)

	s.Require().NoError(s.store.RecordSignature(s.ctx, identity.ID, "covenant-v1", "dev-a", s.now))
	s.Require().NoError(s.store.RecordSignature(s.ctx, identity.ID, "covenant-v1", "dev-b", s.now))

	signed, err = s.store.HasSigned(s.ctx, identity.ID, "covenant-v1")
	s.Require().NoError(err)
	s.True(signed)
	s.Equal("dev-a", s.store.st.signatures[sigKey{identity.ID, "covenant-v1"}])

	signed, err = s.store.HasSigned(s.ctx, identity.ID, "covenant-v2")
	s.Require().NoError(err)
	s.False(signed)
}

func (s *LedgerStoreSuite) TestReservations() {
	s.Run("only one concurrent reservation per face wins", func() {
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := s.store.ReserveFace(s.ctx, &ledger.Reservation{
					AttemptID:       uuid.New(),
					IdentityID:      id.NewIdentityID(),
					FaceFingerprint: "face-race",
					Status:          ledger.ReservationReserved,
					CreatedAt:       s.now,
				})
				s.NoError(err)
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		s.Equal(1, wins)
	})

	s.Run("stale lists reserved attempts older than the cutoff", func() {
		attempt := uuid.New()
		ok, err := s.store.ReserveAnchor(s.ctx, &ledger.Reservation{
			AttemptID:    attempt,
			IdentityID:   id.NewIdentityID(),
			AnchorDigest: "digest-1",
			Status:       ledger.ReservationReserved,
			CreatedAt:    s.now.Add(-time.Hour),
		})
		s.Require().NoError(err)
		s.Require().True(ok)

		stale, err := s.store.ListStaleReservations(s.ctx, s.now)
		s.Require().NoError(err)
		s.Require().Len(stale, 1)
		s.Equal(attempt, stale[0].AttemptID)

		s.Require().NoError(s.store.CompleteReservation(s.ctx, attempt, s.now))
		stale, err = s.store.ListStaleReservations(s.ctx, s.now)
		s.Require().NoError(err)
		s.Empty(stale)

		r, err := s.store.FindReservationByAnchor(s.ctx, "digest-1")
		s.Require().NoError(err)
		s.Equal(ledger.ReservationCompleted, r.Status)
	})

	s.Run("genesis is claimed once", func() {
		first, err := s.store.ClaimGenesis(s.ctx, id.NewIdentityID(), s.now)
		s.Require().NoError(err)
		second, err := s.store.ClaimGenesis(s.ctx, id.NewIdentityID(), s.now)
		s.Require().NoError(err)
		s.True(first)
		s.False(second)
	})
}

func (s *LedgerStoreSuite) TestEntries() {
	identity := s.newIdentity("face-entries")
	mint := &ledger.Entry{
		ID:              uuid.New(),
		SourceType:      ledger.SourceSeigniorage,
		IdentityID:      identity.ID,
		FaceFingerprint: identity.FaceFingerprint,
		Amount:          dec("1"),
		RegionalAmount:  dec("5"),
		VaultAmount:     dec("5"),
		CreatedAt:       s.now,
	}
	s.Require().NoError(s.store.AppendEntry(s.ctx, mint))

	dup := *mint
	dup.ID = uuid.New()
	s.ErrorIs(s.store.AppendEntry(s.ctx, &dup), sentinel.ErrConflict)

	royalty := &ledger.Entry{
		ID:             uuid.New(),
		SourceType:     ledger.SourceCorporateRoyalty,
		PartnerID:      "acme",
		Reference:      "inv-1",
		Gross:          dec("1000"),
		CorporateShare: dec("20"),
		Net:            dec("980"),
		CreatedAt:      s.now,
	}
	s.Require().NoError(s.store.AppendEntry(s.ctx, royalty))
	again := *royalty
	again.ID = uuid.New()
	s.ErrorIs(s.store.AppendEntry(s.ctx, &again), sentinel.ErrConflict)

	found, err := s.store.FindEntryByReference(s.ctx, ledger.SourceCorporateRoyalty, "inv-1")
	s.Require().NoError(err)
	s.Equal(royalty.ID, found.ID)

	total, err := s.store.SumFoundation(s.ctx)
	s.Require().NoError(err)
	s.True(dec("21").Equal(total), total.String())

	n, err := s.store.CountEntries(s.ctx, ledger.SourceSeigniorage)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *LedgerStoreSuite) TestVaults() {
	identity := s.newIdentity("face-vault")
	s.Require().NoError(s.store.CreateVault(s.ctx, identity.ID, s.now))
	s.Require().NoError(s.store.CreditVault(s.ctx, identity.ID, dec("1"), dec("4"), s.now))
	s.Require().NoError(s.store.CreateVestingState(s.ctx, &ledger.VestingState{
		IdentityID: identity.ID,
		Target:     10,
		Strictness: ledger.StrictnessStandard,
		CreatedAt:  s.now,
	}))

	s.Run("activation debit moves the fee into locked once", func() {
		ok, err := s.store.ApplyActivationDebit(s.ctx, identity.ID, dec("0.1"), s.now)
		s.Require().NoError(err)
		s.True(ok)
		ok, err = s.store.ApplyActivationDebit(s.ctx, identity.ID, dec("0.1"), s.now)
		s.Require().NoError(err)
		s.False(ok)

		vault, err := s.store.GetVault(s.ctx, identity.ID)
		s.Require().NoError(err)
		s.True(dec("0.9").Equal(vault.Spendable))
		s.True(dec("4.1").Equal(vault.Locked))
		s.True(vault.Active)
	})

	s.Run("debit beyond spendable is rejected without a write", func() {
		err := s.store.DebitSpendable(s.ctx, identity.ID, dec("2"), s.now)
		s.ErrorIs(err, sentinel.ErrInvalidState)
		vault, err := s.store.GetVault(s.ctx, identity.ID)
		s.Require().NoError(err)
		s.True(dec("0.9").Equal(vault.Spendable))
	})

	s.Run("unlock moves locked into spendable", func() {
		moved, err := s.store.UnlockVaults(s.ctx, []id.IdentityID{identity.ID, id.NewIdentityID()}, s.now)
		s.Require().NoError(err)
		s.True(dec("4.1").Equal(moved[identity.ID]))
		s.Len(moved, 1)

		vault, err := s.store.GetVault(s.ctx, identity.ID)
		s.Require().NoError(err)
		s.True(dec("5").Equal(vault.Spendable))
		s.True(vault.Locked.IsZero())
	})
}

func (s *LedgerStoreSuite) TestReleasedVaultIsNotMovedAgain() {
	identity := s.newIdentity("face-released")
	s.Require().NoError(s.store.CreateVault(s.ctx, identity.ID, s.now))
	s.Require().NoError(s.store.CreditVault(s.ctx, identity.ID, dec("1"), dec("4"), s.now))
	s.Require().NoError(s.store.CreateVestingState(s.ctx, &ledger.VestingState{
		IdentityID: identity.ID,
		Target:     10,
		Strictness: ledger.StrictnessStandard,
		CreatedAt:  s.now,
	}))

	moved, err := s.store.UnlockVaults(s.ctx, []id.IdentityID{identity.ID}, s.now)
	s.Require().NoError(err)
	s.True(dec("4").Equal(moved[identity.ID]))
	released, err := s.store.ReleaseVesting(s.ctx, identity.ID, moved[identity.ID], s.now)
	s.Require().NoError(err)
	s.True(released)

	ok, err := s.store.ApplyActivationDebit(s.ctx, identity.ID, dec("0.1"), s.now)
	s.Require().NoError(err)
	s.False(ok, "released vaults take no activation debit")

	s.Require().NoError(s.store.CreditVault(s.ctx, identity.ID, decimal.Zero, dec("2"), s.now))
	moved, err = s.store.UnlockVaults(s.ctx, []id.IdentityID{identity.ID}, s.now)
	s.Require().NoError(err)
	s.Empty(moved)

	vault, err := s.store.GetVault(s.ctx, identity.ID)
	s.Require().NoError(err)
	s.True(dec("5").Equal(vault.Spendable))
	s.True(dec("2").Equal(vault.Locked))
	s.False(vault.Active)
}

func (s *LedgerStoreSuite) TestVaultDrift() {
	identity := s.newIdentity("face-drift")
	s.Require().NoError(s.store.CreateVault(s.ctx, identity.ID, s.now))
	s.Require().NoError(s.store.CreditVault(s.ctx, identity.ID, dec("1"), dec("4"), s.now))
	s.Require().NoError(s.store.AppendEntry(s.ctx, &ledger.Entry{
		ID:          uuid.New(),
		SourceType:  ledger.SourceSeigniorage,
		IdentityID:  identity.ID,
		Amount:      dec("1"),
		VaultAmount: dec("5"),
		CreatedAt:   s.now,
	}))

	drift, err := s.store.VaultDrift(s.ctx)
	s.Require().NoError(err)
	s.Empty(drift)

	s.Require().NoError(s.store.DebitSpendable(s.ctx, identity.ID, dec("0.5"), s.now))
	drift, err = s.store.VaultDrift(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(drift, 1)
	s.True(dec("4.5").Equal(drift[0].Balance))
	s.True(dec("5").Equal(drift[0].Expected))
}

func (s *LedgerStoreSuite) TestVesting() {
	identityID := id.NewIdentityID()
	s.Require().NoError(s.store.CreateVestingState(s.ctx, &ledger.VestingState{
		IdentityID: identityID,
		Target:     2,
		Strictness: ledger.StrictnessStandard,
		CreatedAt:  s.now,
	}))

	recorded, err := s.store.RecordVestingEvent(s.ctx, identityID, s.now, s.now)
	s.Require().NoError(err)
	s.True(recorded)
	recorded, err = s.store.RecordVestingEvent(s.ctx, identityID, s.now.Add(time.Hour), s.now)
	s.Require().NoError(err)
	s.False(recorded, "same calendar day")

	for range 3 {
		_, err = s.store.AdvanceVesting(s.ctx, identityID, s.now, s.now)
		s.Require().NoError(err)
	}
	vs, err := s.store.GetVestingState(s.ctx, identityID)
	s.Require().NoError(err)
	s.Equal(2, vs.Counter)

	pending, err := s.store.ListUnreleased(s.ctx, 10)
	s.Require().NoError(err)
	s.Equal([]id.IdentityID{identityID}, pending)

	released, err := s.store.ReleaseVesting(s.ctx, identityID, dec("4.1"), s.now)
	s.Require().NoError(err)
	s.True(released)
	released, err = s.store.ReleaseVesting(s.ctx, identityID, dec("4.1"), s.now)
	s.Require().NoError(err)
	s.False(released)

	vs, err = s.store.GetVestingState(s.ctx, identityID)
	s.Require().NoError(err)
	s.Equal(ledger.StrictnessHigh, vs.Strictness)
	pending, err = s.store.ListUnreleased(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending)
}

func (s *LedgerStoreSuite) TestBlockContributions() {
	for _, r := range []ledger.RevenueRecord{
		{BlockID: "b", Gross: dec("100"), FoundationDeduction: dec("3"), Net: dec("97")},
		{BlockID: "a", Gross: dec("10"), FoundationDeduction: dec("0.3"), Net: dec("9.7")},
		{BlockID: "b", Gross: dec("50"), FoundationDeduction: dec("1.5"), Net: dec("48.5")},
	} {
		r := r
		s.Require().NoError(s.store.AppendNationalRevenue(s.ctx, &r))
	}

	all, err := s.store.BlockContributions(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(id.BlockID("a"), all[0].BlockID)

	b, err := s.store.GetBlockContribution(s.ctx, "b")
	s.Require().NoError(err)
	s.True(dec("150").Equal(b.Gross))
	s.True(dec("4.5").Equal(b.FoundationDeduction))
	s.Equal(int64(2), b.Entries)

	_, err = s.store.GetBlockContribution(s.ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *LedgerStoreSuite) TestRunInTx() {
	identity := s.newIdentity("face-tx")
	s.Require().NoError(s.store.CreateVault(s.ctx, identity.ID, s.now))

	s.Run("failed callback leaves no writes and no events", func() {
		boom := errors.New("boom")
		err := s.store.RunInTx(s.ctx, func(tx ledger.Store) error {
			s.Require().NoError(tx.CreditVault(s.ctx, identity.ID, dec("1"), dec("4"), s.now))
			s.Require().NoError(tx.AppendEvent(s.ctx, outbox.NewEntry(outbox.AggregateIdentity, identity.ID.String(), "ledger.minted", []byte(`{}`), s.now)))
			return boom
		})
		s.ErrorIs(err, boom)

		vault, err := s.store.GetVault(s.ctx, identity.ID)
		s.Require().NoError(err)
		s.True(vault.Total().IsZero())
		s.Empty(s.events.Entries())
	})

	s.Run("successful callback commits writes and events together", func() {
		err := s.store.RunInTx(s.ctx, func(tx ledger.Store) error {
			if err := tx.CreditVault(s.ctx, identity.ID, dec("1"), dec("4"), s.now); err != nil {
				return err
			}
			return tx.AppendEvent(s.ctx, outbox.NewEntry(outbox.AggregateIdentity, identity.ID.String(), "ledger.minted", []byte(`{}`), s.now))
		})
		s.Require().NoError(err)

		vault, err := s.store.GetVault(s.ctx, identity.ID)
		s.Require().NoError(err)
		s.True(dec("5").Equal(vault.Total()))
		s.Len(s.events.Entries(), 1)
	})

	s.Run("cancelled context aborts before running", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		called := false
		err := s.store.RunInTx(ctx, func(ledger.Store) error {
			called = true
			return nil
		})
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
		s.False(called)
	})
}
