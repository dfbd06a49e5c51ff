package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"covenant/internal/deduction"
	"covenant/internal/identity"
	"covenant/internal/ledger"
	"covenant/internal/ledger/store/memory"
	"covenant/internal/platform/middleware"
	"covenant/internal/seigniorage"
	"covenant/internal/transport/http/mocks"
	"covenant/internal/vesting"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/requestcontext"
	"covenant/pkg/testutil"
)

const operatorToken = "operator-token"

type stubOperators struct{}

func (stubOperators) ValidateOperator(token string) (string, error) {
	if token == operatorToken {
		return "treasury-desk", nil
	}
	return "", errors.New("invalid token")
}

type HandlerSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	identities  *mocks.MockIdentityService
	agreements  *mocks.MockAgreementService
	mint        *mocks.MockMintService
	vesting     *mocks.MockVestingService
	deductions  *mocks.MockDeductionService
	distributor *mocks.MockDistributor
	treasury    *mocks.MockTreasuryService
	router      chi.Router

	// calc computes receipts so mocked services return realistic values.
	calc *deduction.Service
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.identities = mocks.NewMockIdentityService(s.ctrl)
	s.agreements = mocks.NewMockAgreementService(s.ctrl)
	s.mint = mocks.NewMockMintService(s.ctrl)
	s.vesting = mocks.NewMockVestingService(s.ctrl)
	s.deductions = mocks.NewMockDeductionService(s.ctrl)
	s.distributor = mocks.NewMockDistributor(s.ctrl)
	s.treasury = mocks.NewMockTreasuryService(s.ctrl)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(Services{
		Identities:  s.identities,
		Agreements:  s.agreements,
		Mint:        s.mint,
		Vesting:     s.vesting,
		Deductions:  s.deductions,
		Distributor: s.distributor,
		Treasury:    s.treasury,
	}, "covenant-v1", logger)
	s.router = chi.NewRouter()
	h.Register(s.router, middleware.RequireOperator(stubOperators{}, logger))

	calc, err := deduction.New(memory.New(nil), deduction.Config{
		Rates:              deduction.DefaultRates(),
		ConversionLevyRate: decimal.RequireFromString("0.02"),
		SovereigntyFee:     decimal.RequireFromString("0.5"),
	})
	s.Require().NoError(err)
	s.calc = calc
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) do(method, path string, body any, operator bool) (*httptest.ResponseRecorder, map[string]any) {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	if operator {
		req.Header.Set("Authorization", "Bearer "+operatorToken)
	}
	rec := testutil.DoRequest(s.router, req)
	return rec, testutil.DecodeBody(s.T(), rec)
}

func (s *HandlerSuite) TestOperatorRoutesRequireToken() {
	identityID := id.NewIdentityID()
	rec, body := s.do(http.MethodPost, "/v1/identities/"+identityID.String()+"/mint", nil, false)
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal("unauthorized", body["error"])
}

func (s *HandlerSuite) TestMint() {
	identityID := id.NewIdentityID()
	path := "/v1/identities/" + identityID.String() + "/mint"

	s.Run("minted is 201 with allocation", func() {
		s.mint.EXPECT().Mint(gomock.Any(), identityID).Return(&seigniorage.MintResult{
			Outcome:    seigniorage.OutcomeMinted,
			IdentityID: identityID,
			AttemptID:  uuid.New(),
			Schedule:   "covenant-11",
			Activated:  true,
			Entry: &ledger.Entry{
				Amount:         decimal.NewFromInt(1),
				RegionalAmount: decimal.NewFromInt(5),
				VaultAmount:    decimal.NewFromInt(5),
			},
			Vault: &ledger.Vault{
				Spendable: decimal.RequireFromString("0.9"),
				Locked:    decimal.RequireFromString("4.1"),
				Active:    true,
			},
		}, nil)

		rec, body := s.do(http.MethodPost, path, nil, true)
		s.Equal(http.StatusCreated, rec.Code)
		s.Equal("minted", body["outcome"])
		alloc := body["allocation"].(map[string]any)
		s.Equal("5.00000000", alloc["regional"])
		s.Equal("1.00000000", alloc["foundation"])
		vault := body["vault"].(map[string]any)
		s.Equal("0.90000000", vault["spendable"])
		s.Equal("4.10000000", vault["locked"])
	})

	s.Run("already minted is 200", func() {
		s.mint.EXPECT().Mint(gomock.Any(), identityID).Return(&seigniorage.MintResult{
			Outcome:    seigniorage.OutcomeAlreadyMinted,
			IdentityID: identityID,
		}, nil)

		rec, body := s.do(http.MethodPost, path, nil, true)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("already_minted", body["outcome"])
		s.NotContains(body, "allocation")
	})

	s.Run("missing precondition is 412", func() {
		s.mint.EXPECT().Mint(gomock.Any(), identityID).
			Return(nil, dErrors.New(dErrors.CodeUnsignedAgreement, "agreement covenant-v1 is not signed"))

		rec, body := s.do(http.MethodPost, path, nil, true)
		s.Equal(http.StatusPreconditionFailed, rec.Code)
		s.Equal("unsigned_agreement", body["error"])
	})

	s.Run("partial write flags reconciliation", func() {
		s.mint.EXPECT().Mint(gomock.Any(), identityID).
			Return(nil, &dErrors.Error{Code: dErrors.CodePartialWrite, Message: "attempt abc needs reconciliation"})

		rec, body := s.do(http.MethodPost, path, nil, true)
		s.Equal(http.StatusInternalServerError, rec.Code)
		s.Equal(true, body["reconciliation_required"])
		s.NotContains(body, "error_description")
	})

	s.Run("store unavailable is 503", func() {
		s.mint.EXPECT().Mint(gomock.Any(), identityID).
			Return(nil, dErrors.New(dErrors.CodeStoreUnavailable, "ledger unavailable"))

		rec, _ := s.do(http.MethodPost, path, nil, true)
		s.Equal(http.StatusServiceUnavailable, rec.Code)
	})

	s.Run("malformed identity ID never reaches the engine", func() {
		rec, _ := s.do(http.MethodPost, "/v1/identities/not-a-uuid/mint", nil, true)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestEnroll() {
	face := strings.Repeat("ab", 32)

	s.Run("new identity is 201", func() {
		s.identities.EXPECT().Enroll(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req identity.EnrollRequest) (*identity.EnrollResult, error) {
				s.Equal(id.FaceFingerprint(face), req.FaceFingerprint)
				s.Equal(id.BlockID("block-7"), req.BlockID)
				s.True(req.PersonhoodScore.Equal(decimal.RequireFromString("0.95")))
				return &identity.EnrollResult{Created: true, Identity: &ledger.Identity{
					ID:              id.NewIdentityID(),
					FaceFingerprint: req.FaceFingerprint,
					BlockID:         req.BlockID,
					PersonhoodScore: req.PersonhoodScore,
					MintStatus:      ledger.MintStatusPendingHardware,
					CreatedAt:       time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
				}}, nil
			})

		rec, body := s.do(http.MethodPost, "/v1/identities", map[string]string{
			"face_fingerprint": strings.ToUpper(face),
			"block_id":         "block-7",
			"personhood_score": "0.95",
		}, true)
		s.Equal(http.StatusCreated, rec.Code)
		s.Equal("pending_hardware", body["mint_status"])
		s.Equal("abababab…", body["face_fingerprint"])
	})

	s.Run("malformed fingerprint is rejected before the service", func() {
		rec, body := s.do(http.MethodPost, "/v1/identities", map[string]string{
			"face_fingerprint": "xyz",
			"block_id":         "block-7",
			"personhood_score": "0.95",
		}, true)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("validation_error", body["error"])
	})

	s.Run("unknown fields are rejected", func() {
		rec, _ := s.do(http.MethodPost, "/v1/identities", map[string]string{
			"face_fingerprint": face,
			"block_id":         "block-7",
			"personhood_score": "0.95",
			"phone":            "555",
		}, true)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("existing identity is 200 and carries the device user agent", func() {
		const ua = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148"
		s.identities.EXPECT().Enroll(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req identity.EnrollRequest) (*identity.EnrollResult, error) {
				s.Equal(ua, req.UserAgent)
				return &identity.EnrollResult{Identity: &ledger.Identity{
					ID:              id.NewIdentityID(),
					FaceFingerprint: req.FaceFingerprint,
					BlockID:         req.BlockID,
					MintStatus:      ledger.MintStatusMinted,
				}}, nil
			})

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/identities", map[string]string{
			"face_fingerprint": face,
			"block_id":         "block-7",
			"personhood_score": "0.95",
		})
		req.Header.Set("Authorization", "Bearer "+operatorToken)
		req = testutil.WithClientMetadata(req, "203.0.113.9", ua)

		rec := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("minted", testutil.DecodeBody(s.T(), rec)["mint_status"])
	})
}

func (s *HandlerSuite) TestSignAgreementDefaultsVersion() {
	identityID := id.NewIdentityID()
	s.agreements.EXPECT().Sign(gomock.Any(), identityID, id.AgreementVersion("covenant-v1")).Return("device-1", nil)

	rec, body := s.do(http.MethodPost, "/v1/identities/"+identityID.String()+"/agreements", map[string]string{}, true)
	s.Equal(http.StatusCreated, rec.Code)
	s.Equal("covenant-v1", body["version"])
	s.Equal("device-1", body["device_ref"])
}

func (s *HandlerSuite) TestCalculate() {
	s.deductions.EXPECT().CalculateDeductions(gomock.Any()).DoAndReturn(s.calc.CalculateDeductions)

	rec, body := s.do(http.MethodPost, "/v1/deductions/calculate", map[string]string{"gross": "1000"}, false)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("20.00000000", body["corporate_share"])
	s.Equal("30.00000000", body["national_share"])
	s.Equal("950.00000000", body["net"])

	rec, _ = s.do(http.MethodPost, "/v1/deductions/calculate", map[string]string{"gross": "-1"}, false)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestPriorityLockDistributesRecordedNet() {
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	receipt, err := s.calc.RecordPriorityLock(ctx, deduction.PriorityLockRequest{BlockID: "block-3", Gross: decimal.NewFromInt(1000)})
	s.Require().NoError(err)

	s.deductions.EXPECT().RecordPriorityLock(gomock.Any(), gomock.Any()).Return(receipt, nil)
	s.distributor.EXPECT().Distribute(gomock.Any(), receipt, gomock.Len(2)).
		DoAndReturn(deduction.NewDistributor(nil).Distribute)

	rec, body := s.do(http.MethodPost, "/v1/deductions/priority-lock", map[string]any{
		"block_id": "block-3",
		"gross":    "1000",
		"allocation": []map[string]string{
			{"recipient": "operator", "fraction": "0.6"},
			{"recipient": "region", "fraction": "0.4"},
		},
	}, true)
	s.Equal(http.StatusCreated, rec.Code)
	s.Equal("priority_lock", body["source_type"])
	payouts := body["payouts"].([]any)
	s.Len(payouts, 2)
	s.Equal("570.00000000", payouts[0].(map[string]any)["amount"])
	s.Equal("380.00000000", payouts[1].(map[string]any)["amount"])
}

func (s *HandlerSuite) TestFailedRecordingNeverDistributes() {
	s.deductions.EXPECT().RecordNationalBlockRevenue(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeStoreUnavailable, "ledger unavailable"))
	// No Distribute expectation: gomock fails the test if it is called.

	rec, body := s.do(http.MethodPost, "/v1/deductions/block-revenue", map[string]any{
		"block_id": "block-3",
		"gross":    "4000",
		"allocation": []map[string]string{
			{"recipient": "operator", "fraction": "1"},
		},
	}, true)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Equal("store_unavailable", body["error"])
}

func (s *HandlerSuite) TestReplayedReferenceIsNotDistributedAgain() {
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	req := deduction.PriorityLockRequest{BlockID: "block-3", Gross: decimal.NewFromInt(1000), Reference: "inv-7"}
	_, err := s.calc.RecordPriorityLock(ctx, req)
	s.Require().NoError(err)
	replay, err := s.calc.RecordPriorityLock(ctx, req)
	s.Require().NoError(err)
	s.Require().True(replay.Duplicate)

	s.deductions.EXPECT().RecordPriorityLock(gomock.Any(), gomock.Any()).Return(replay, nil)
	// No Distribute expectation: the first request already paid out.

	rec, body := s.do(http.MethodPost, "/v1/deductions/priority-lock", map[string]any{
		"block_id":  "block-3",
		"gross":     "1000",
		"reference": "inv-7",
		"allocation": []map[string]string{
			{"recipient": "operator", "fraction": "1"},
		},
	}, true)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(true, body["duplicate"])
	s.NotContains(body, "payouts")
}

func (s *HandlerSuite) TestBadAllocationIsRejectedBeforeRecording() {
	rec, _ := s.do(http.MethodPost, "/v1/deductions/priority-lock", map[string]any{
		"block_id": "block-3",
		"gross":    "10",
		"allocation": []map[string]string{
			{"recipient": "operator", "fraction": "0.5"},
		},
	}, true)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestCorporateTributeNotApplicable() {
	s.deductions.EXPECT().RecordCorporateTribute(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req deduction.TributeRequest) (*deduction.TributeResult, error) {
			s.True(req.Dependent)
			return &deduction.TributeResult{Outcome: deduction.OutcomeNotApplicable}, nil
		})

	rec, body := s.do(http.MethodPost, "/v1/deductions/corporate-tribute", map[string]any{
		"partner_id": "acme",
		"gross":      "100",
		"dependent":  true,
	}, true)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("not_applicable", body["outcome"])
	s.NotContains(body, "entry_id")
}

func (s *HandlerSuite) TestConversionLevyInsufficientFunds() {
	identityID := id.NewIdentityID()
	s.deductions.EXPECT().RecordConversionLevy(gomock.Any(), identityID, gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeInsufficientFunds, "spendable balance too low"))

	rec, body := s.do(http.MethodPost, "/v1/identities/"+identityID.String()+"/conversion-levy",
		map[string]string{"converted": "500"}, true)
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("insufficient_funds", body["error"])
}

func (s *HandlerSuite) TestVesting() {
	identityID := id.NewIdentityID()
	status := &vesting.Status{
		IdentityID: identityID,
		Spendable:  decimal.NewFromInt(5),
		Locked:     decimal.Zero,
		Unlocked:   true,
		Counter:    10,
		Target:     10,
		Strictness: ledger.StrictnessHigh,
	}

	s.Run("status is public", func() {
		s.vesting.EXPECT().GetStatus(gomock.Any(), identityID).Return(status, nil)
		rec, body := s.do(http.MethodGet, "/v1/identities/"+identityID.String()+"/vesting", nil, false)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal(true, body["unlocked"])
		s.Equal("high", body["strictness"])
	})

	s.Run("event reports the unlock", func() {
		s.vesting.EXPECT().RecordQualifyingEvent(gomock.Any(), identityID).Return(&vesting.EventResult{
			Status:          status,
			Recorded:        true,
			UnlockedJustNow: true,
			Moved:           decimal.RequireFromString("4.1"),
		}, nil)
		rec, body := s.do(http.MethodPost, "/v1/identities/"+identityID.String()+"/vesting/events", nil, true)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal(true, body["unlocked_just_now"])
		s.Equal("4.10000000", body["moved"])
		s.Equal("5.00000000", body["spendable"])
	})

	s.Run("failed verification is 412", func() {
		s.vesting.EXPECT().RecordQualifyingEvent(gomock.Any(), identityID).
			Return(nil, dErrors.New(dErrors.CodePolicyViolation, "biometric verification failed"))
		rec, _ := s.do(http.MethodPost, "/v1/identities/"+identityID.String()+"/vesting/events", nil, true)
		s.Equal(http.StatusPreconditionFailed, rec.Code)
	})
}

func (s *HandlerSuite) TestTreasury() {
	s.treasury.EXPECT().FoundationReserve(gomock.Any()).Return(decimal.RequireFromString("53.5"), nil)
	rec, body := s.do(http.MethodGet, "/v1/treasury/foundation", nil, false)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("53.50000000", body["balance"])

	s.treasury.EXPECT().RegionalReserve(gomock.Any(), id.BlockID("north")).
		Return(&ledger.RegionalReserve{BlockID: "north", Balance: decimal.NewFromInt(10)}, nil)
	rec, body = s.do(http.MethodGet, "/v1/treasury/blocks/north", nil, false)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("north", body["block_id"])

	s.treasury.EXPECT().BlockContributions(gomock.Any()).Return([]ledger.BlockContribution{
		{BlockID: "south", Gross: decimal.NewFromInt(900), FoundationDeduction: decimal.NewFromInt(45), Net: decimal.NewFromInt(855), Entries: 1},
	}, nil)
	rec, body = s.do(http.MethodGet, "/v1/treasury/contributions", nil, false)
	s.Equal(http.StatusOK, rec.Code)
	blocks := body["blocks"].([]any)
	s.Len(blocks, 1)
	s.Equal("45.00000000", blocks[0].(map[string]any)["foundation_deduction"])
}
