package seigniorage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"covenant/internal/identity/guard"
	"covenant/internal/ledger"
	"covenant/internal/ledger/store/memory"
	"covenant/internal/vesting/release"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	outboxmem "covenant/pkg/platform/outbox/store/memory"
	"covenant/pkg/platform/sentinel"
	"covenant/pkg/requestcontext"
)

const agreement = id.AgreementVersion("covenant-v1")

// failingStore fails one named write and hides RunInTx from the engine.
type failingStore struct {
	ledger.Store
	failOn string
	err    error
}

func (f *failingStore) CreditVault(ctx context.Context, identityID id.IdentityID, spendable, locked decimal.Decimal, now time.Time) error {
	if f.failOn == "CreditVault" {
		return f.err
	}
	return f.Store.CreditVault(ctx, identityID, spendable, locked, now)
}

func (f *failingStore) ApplyActivationDebit(ctx context.Context, identityID id.IdentityID, fee decimal.Decimal, now time.Time) (bool, error) {
	if f.failOn == "ApplyActivationDebit" {
		return false, f.err
	}
	return f.Store.ApplyActivationDebit(ctx, identityID, fee, now)
}

func (f *failingStore) ReserveFace(ctx context.Context, r *ledger.Reservation) (bool, error) {
	if f.failOn == "ReserveFace" {
		return false, f.err
	}
	return f.Store.ReserveFace(ctx, r)
}

// failingTx runs transactions on the memory store with a failing view.
type failingTx struct {
	root   *memory.Store
	failOn string
	err    error
}

func (f *failingTx) RunInTx(ctx context.Context, fn func(ledger.Store) error) error {
	return f.root.RunInTx(ctx, func(store ledger.Store) error {
		return fn(&failingStore{Store: store, failOn: f.failOn, err: f.err})
	})
}

// releasingStore runs the global release right before the first activation
// debit reaches the store. It hides RunInTx like failingStore.
type releasingStore struct {
	ledger.Store
	release func(context.Context) error
	fired   bool
}

func (r *releasingStore) ApplyActivationDebit(ctx context.Context, identityID id.IdentityID, fee decimal.Decimal, now time.Time) (bool, error) {
	if !r.fired {
		r.fired = true
		if err := r.release(ctx); err != nil {
			return false, err
		}
	}
	return r.Store.ApplyActivationDebit(ctx, identityID, fee, now)
}

type fixedCounter int64

func (c fixedCounter) MintedCount(context.Context) (int64, error) { return int64(c), nil }

type MintSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	events  *outboxmem.Store
	store   *memory.Store
	guard   *guard.Guard
	metrics *Metrics
	service *Service
}

func TestMintSuite(t *testing.T) {
	suite.Run(t, new(MintSuite))
}

func (s *MintSuite) SetupTest() {
	s.now = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.events = outboxmem.New()
	s.store = memory.New(s.events)
	s.guard = guard.New(s.store, "pepper", guard.WithClock(func() time.Time { return s.now }))
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.service = s.newService(s.store)
}

func (s *MintSuite) newService(store ledger.Store, opts ...Option) *Service {
	schedule, err := ledger.ScheduleByName(ledger.ScheduleCovenant11)
	s.Require().NoError(err)
	svc, err := New(store, s.guard, Config{
		Schedule:            schedule,
		AgreementVersion:    agreement,
		PersonhoodThreshold: decimal.RequireFromString("0.8"),
		ActivationDebit:     decimal.RequireFromString("0.1"),
		VestingTarget:       10,
	}, append([]Option{WithMetrics(s.metrics)}, opts...)...)
	s.Require().NoError(err)
	return svc
}

func face(seed string) id.FaceFingerprint {
	sum := sha256.Sum256([]byte(seed))
	return id.FaceFingerprint(hex.EncodeToString(sum[:]))
}

func (s *MintSuite) enroll(seed string, score string, signed bool) id.IdentityID {
	identity := &ledger.Identity{
		ID:              id.NewIdentityID(),
		FaceFingerprint: face(seed),
		BlockID:         "block-7",
		PersonhoodScore: decimal.RequireFromString(score),
		MintStatus:      ledger.MintStatusPendingHardware,
		CreatedAt:       s.now,
		UpdatedAt:       s.now,
	}
	s.Require().NoError(s.store.CreateIdentity(s.ctx, identity))
	s.Require().NoError(s.store.CreateVault(s.ctx, identity.ID, s.now))
	if signed {
		s.Require().NoError(s.store.RecordSignature(s.ctx, identity.ID, agreement, "Chrome on macOS", s.now))
	}
	return identity.ID
}

// claimGenesis takes the genesis grant so later mints use the configured schedule.
func (s *MintSuite) claimGenesis() {
	_, err := s.service.Mint(s.ctx, s.enroll("genesis", "0.99", true))
	s.Require().NoError(err)
}

func (s *MintSuite) TestFirstMintIsGenesis() {
	identityID := s.enroll("first", "0.95", true)

	result, err := s.service.Mint(s.ctx, identityID)
	s.Require().NoError(err)

	s.Equal(OutcomeMinted, result.Outcome)
	s.True(result.Genesis)
	s.Equal(ledger.ScheduleGenesis, result.Schedule)
	s.True(result.Entry.Amount.IsZero())
	s.True(result.Entry.VaultAmount.Equal(decimal.NewFromInt(5)))
	s.True(result.Vault.Spendable.Equal(decimal.RequireFromString("0.9")))
	s.True(result.Vault.Locked.Equal(decimal.RequireFromString("4.1")))

	_, err = s.store.GetRegionalReserve(s.ctx, "block-7")
	s.ErrorIs(err, sentinel.ErrNotFound, "genesis grants nothing to the regional reserve")
}

func (s *MintSuite) TestMintSplitsCovenantSchedule() {
	s.claimGenesis()
	identityID := s.enroll("alice", "0.95", true)

	result, err := s.service.Mint(s.ctx, identityID)
	s.Require().NoError(err)

	s.Equal(OutcomeMinted, result.Outcome)
	s.False(result.Genesis)
	s.True(result.Activated)
	s.True(result.Entry.Amount.Equal(decimal.NewFromInt(1)))
	s.True(result.Entry.RegionalAmount.Equal(decimal.NewFromInt(5)))
	s.True(result.Entry.VaultAmount.Equal(decimal.NewFromInt(5)))
	s.True(result.Vault.Spendable.Equal(decimal.RequireFromString("0.9")))
	s.True(result.Vault.Locked.Equal(decimal.RequireFromString("4.1")))
	s.True(result.Vault.Active)

	reserve, err := s.store.GetRegionalReserve(s.ctx, "block-7")
	s.Require().NoError(err)
	s.True(reserve.Balance.Equal(decimal.NewFromInt(5)))

	vesting, err := s.store.GetVestingState(s.ctx, identityID)
	s.Require().NoError(err)
	s.Equal(0, vesting.Counter)
	s.Equal(10, vesting.Target)
	s.Equal(ledger.StrictnessStandard, vesting.Strictness)

	identity, err := s.store.GetIdentity(s.ctx, identityID)
	s.Require().NoError(err)
	s.True(identity.HasMinted())

	reservation, err := s.store.FindReservationByAttempt(s.ctx, result.AttemptID)
	s.Require().NoError(err)
	s.Equal(ledger.ReservationCompleted, reservation.Status)

	count, err := s.service.MintedCount(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(2, count)

	pending, err := s.events.FetchUnprocessed(s.ctx, 10)
	s.Require().NoError(err)
	var minted int
	for _, e := range pending {
		if e.EventType == "ledger.minted" {
			minted++
		}
	}
	s.Equal(2, minted)
	s.Equal(2.0, testutil.ToFloat64(s.metrics.Attempts.WithLabelValues("minted")))
}

func (s *MintSuite) TestSecondMintIsAlreadyMinted() {
	identityID := s.enroll("alice", "0.95", true)
	_, err := s.service.Mint(s.ctx, identityID)
	s.Require().NoError(err)

	result, err := s.service.Mint(s.ctx, identityID)
	s.Require().NoError(err)
	s.Equal(OutcomeAlreadyMinted, result.Outcome)
	s.Nil(result.Entry)
	s.Require().NotNil(result.Vault)
	s.True(result.Vault.Total().Equal(decimal.NewFromInt(5)))

	count, err := s.service.MintedCount(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(1, count)
}

func (s *MintSuite) TestConcurrentMintsIssueOnce() {
	s.claimGenesis()
	identityID := s.enroll("bob", "0.95", true)

	const attempts = 24
	var minted, already atomic.Int32
	var g errgroup.Group
	for range attempts {
		g.Go(func() error {
			result, err := s.service.Mint(s.ctx, identityID)
			if err != nil {
				return err
			}
			if result.Outcome == OutcomeMinted {
				minted.Add(1)
			} else {
				already.Add(1)
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	s.EqualValues(1, minted.Load())
	s.EqualValues(attempts-1, already.Load())

	reserve, err := s.store.GetRegionalReserve(s.ctx, "block-7")
	s.Require().NoError(err)
	s.True(reserve.Balance.Equal(decimal.NewFromInt(5)))

	vault, err := s.store.GetVault(s.ctx, identityID)
	s.Require().NoError(err)
	s.True(vault.Total().Equal(decimal.NewFromInt(5)))
}

func (s *MintSuite) TestPreconditions() {
	s.Run("unsigned agreement", func() {
		identityID := s.enroll("unsigned", "0.95", false)
		_, err := s.service.Mint(s.ctx, identityID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnsignedAgreement))

		_, err = s.store.FindReservationByFace(s.ctx, face("unsigned"))
		s.ErrorIs(err, sentinel.ErrNotFound)
		vault, err := s.store.GetVault(s.ctx, identityID)
		s.Require().NoError(err)
		s.True(vault.Total().IsZero())
		s.False(vault.Active)
		_, err = s.store.GetVestingState(s.ctx, identityID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
	s.Run("insufficient personhood", func() {
		identityID := s.enroll("bot", "0.42", true)
		_, err := s.service.Mint(s.ctx, identityID)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientPersonhood))
	})
	s.Run("unknown identity", func() {
		_, err := s.service.Mint(s.ctx, id.NewIdentityID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
	s.Run("nil identity", func() {
		_, err := s.service.Mint(s.ctx, id.IdentityID{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	count, err := s.service.MintedCount(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *MintSuite) TestAnchorOnlyIdentityMints() {
	digest, err := s.guard.AnchorDigest("+15550100")
	s.Require().NoError(err)
	identity := &ledger.Identity{
		ID:              id.NewIdentityID(),
		AnchorDigest:    digest,
		BlockID:         "block-7",
		PersonhoodScore: decimal.RequireFromString("0.9"),
		MintStatus:      ledger.MintStatusPendingHardware,
		CreatedAt:       s.now,
	}
	s.Require().NoError(s.store.CreateIdentity(s.ctx, identity))
	s.Require().NoError(s.store.CreateVault(s.ctx, identity.ID, s.now))
	s.Require().NoError(s.store.RecordSignature(s.ctx, identity.ID, agreement, "", s.now))

	result, err := s.service.Mint(s.ctx, identity.ID)
	s.Require().NoError(err)
	s.Equal(OutcomeMinted, result.Outcome)

	reservation, err := s.store.FindReservationByAnchor(s.ctx, digest)
	s.Require().NoError(err)
	s.Equal(identity.ID, reservation.IdentityID)
}

func (s *MintSuite) TestFailedTransactionWritesNothing() {
	identityID := s.enroll("carol", "0.95", true)
	svc := s.newService(s.store, WithTxRunner(&failingTx{root: s.store, failOn: "CreditVault", err: errors.New("disk full")}))

	_, err := svc.Mint(s.ctx, identityID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	_, err = s.store.FindReservationByFace(s.ctx, face("carol"))
	s.ErrorIs(err, sentinel.ErrNotFound)
	count, err := s.store.CountEntries(s.ctx, ledger.SourceSeigniorage)
	s.Require().NoError(err)
	s.Zero(count)
	identity, err := s.store.GetIdentity(s.ctx, identityID)
	s.Require().NoError(err)
	s.False(identity.HasMinted())

	// The rollback leaves the face free for a clean retry.
	result, err := s.service.Mint(s.ctx, identityID)
	s.Require().NoError(err)
	s.Equal(OutcomeMinted, result.Outcome)
}

func (s *MintSuite) TestSequentialFailureIsPartialWrite() {
	identityID := s.enroll("dave", "0.95", true)
	store := &failingStore{Store: s.store, failOn: "CreditVault", err: errors.New("disk full")}
	svc := s.newService(store)
	s.Nil(svc.tx, "the wrapper hides RunInTx")

	_, err := svc.Mint(s.ctx, identityID)
	s.True(dErrors.HasCode(err, dErrors.CodePartialWrite))

	stale, err := s.store.ListStaleReservations(s.ctx, s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Require().Len(stale, 1)
	s.Equal(identityID, stale[0].IdentityID)

	// A retry reads the reservation and does not issue twice.
	result, err := s.service.Mint(s.ctx, identityID)
	s.Require().NoError(err)
	s.Equal(OutcomeAlreadyMinted, result.Outcome)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Attempts.WithLabelValues(string(dErrors.CodePartialWrite))))
}

func (s *MintSuite) TestSequentialReservationUnavailable() {
	identityID := s.enroll("erin", "0.95", true)
	store := &failingStore{Store: s.store, failOn: "ReserveFace", err: sentinel.ErrUnavailable}
	svc := s.newService(store)

	_, err := svc.Mint(s.ctx, identityID)
	s.True(dErrors.HasCode(err, dErrors.CodeStoreUnavailable))

	count, err := s.store.CountEntries(s.ctx, ledger.SourceSeigniorage)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *MintSuite) TestCancelledContextIsUnavailable() {
	identityID := s.enroll("frank", "0.95", true)
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.service.Mint(ctx, identityID)
	s.True(dErrors.HasCode(err, dErrors.CodeStoreUnavailable))

	_, err = s.store.FindReservationByFace(s.ctx, face("frank"))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MintSuite) TestNewRejectsInvalidConfig() {
	schedule, err := ledger.ScheduleByName(ledger.ScheduleCovenant11)
	s.Require().NoError(err)
	broken := schedule
	broken.Regional = decimal.NewFromInt(6)

	_, err = New(s.store, s.guard, Config{Schedule: broken, AgreementVersion: agreement, VestingTarget: 10})
	s.Error(err)
	_, err = New(s.store, s.guard, Config{Schedule: schedule, VestingTarget: 10})
	s.Error(err)
	_, err = New(s.store, s.guard, Config{Schedule: schedule, AgreementVersion: agreement})
	s.Error(err)
}

func (s *MintSuite) TestActivationDebitRollsBackWithMint() {
	s.claimGenesis()
	identityID := s.enroll("erin", "0.95", true)
	svc := s.newService(s.store, WithTxRunner(&failingTx{root: s.store, failOn: "ApplyActivationDebit", err: errors.New("disk full")}))

	_, err := svc.Mint(s.ctx, identityID)
	s.Require().Error(err)

	vault, err := s.store.GetVault(s.ctx, identityID)
	s.Require().NoError(err)
	s.True(vault.Total().IsZero())
	s.False(vault.Active)
	_, err = s.store.GetVestingState(s.ctx, identityID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MintSuite) TestReleaseBeforeActivationLeavesNothingLocked() {
	s.claimGenesis()
	identityID := s.enroll("frank", "0.95", true)
	job := release.New(s.store, fixedCounter(1), 1)
	store := &releasingStore{Store: s.store, release: func(ctx context.Context) error {
		_, err := job.RunOnce(ctx)
		return err
	}}
	svc := s.newService(store)
	s.Require().Nil(svc.tx)

	result, err := svc.Mint(s.ctx, identityID)
	s.Require().NoError(err)
	s.Equal(OutcomeMinted, result.Outcome)
	s.True(store.fired)
	s.False(result.Activated, "a released vault takes no activation debit")

	vault, err := s.store.GetVault(s.ctx, identityID)
	s.Require().NoError(err)
	s.True(vault.Locked.IsZero(), vault.Locked.String())
	s.True(vault.Spendable.Equal(decimal.NewFromInt(5)), vault.Spendable.String())

	vesting, err := s.store.GetVestingState(s.ctx, identityID)
	s.Require().NoError(err)
	s.True(vesting.Released)

	// Later runs and repeat mints leave the released vault alone.
	_, err = job.RunOnce(s.ctx)
	s.Require().NoError(err)
	again, err := s.service.Mint(s.ctx, identityID)
	s.Require().NoError(err)
	s.Equal(OutcomeAlreadyMinted, again.Outcome)
	s.False(again.Activated)
	s.True(again.Vault.Locked.IsZero())
}

func (s *MintSuite) TestRepeatMintAppliesMissingActivation() {
	s.claimGenesis()
	identityID := s.enroll("grace", "0.95", true)
	store := &failingStore{Store: s.store, failOn: "ApplyActivationDebit", err: errors.New("disk full")}

	_, err := s.newService(store).Mint(s.ctx, identityID)
	s.True(dErrors.HasCode(err, dErrors.CodePartialWrite))

	vault, err := s.store.GetVault(s.ctx, identityID)
	s.Require().NoError(err)
	s.False(vault.Active)
	s.True(vault.Spendable.Equal(decimal.NewFromInt(1)))

	result, err := s.service.Mint(s.ctx, identityID)
	s.Require().NoError(err)
	s.Equal(OutcomeAlreadyMinted, result.Outcome)
	s.True(result.Activated)
	s.True(result.Vault.Active)
	s.True(result.Vault.Spendable.Equal(decimal.RequireFromString("0.9")))
	s.True(result.Vault.Locked.Equal(decimal.RequireFromString("4.1")))

	again, err := s.service.Mint(s.ctx, identityID)
	s.Require().NoError(err)
	s.False(again.Activated, "the debit applies once")
	s.True(again.Vault.Spendable.Equal(decimal.RequireFromString("0.9")))
}
