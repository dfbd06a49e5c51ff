package httptransport

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks IdentityService,AgreementService,MintService,VestingService,DeductionService,Distributor,TreasuryService

import (
	"context"

	"github.com/shopspring/decimal"

	"covenant/internal/deduction"
	"covenant/internal/identity"
	"covenant/internal/ledger"
	"covenant/internal/seigniorage"
	"covenant/internal/vesting"
	id "covenant/pkg/domain"
)

type IdentityService interface {
	Enroll(ctx context.Context, req identity.EnrollRequest) (*identity.EnrollResult, error)
	Get(ctx context.Context, identityID id.IdentityID) (*ledger.Identity, error)
	UpdatePersonhood(ctx context.Context, identityID id.IdentityID, score decimal.Decimal) error
}

type AgreementService interface {
	Sign(ctx context.Context, identityID id.IdentityID, version id.AgreementVersion) (string, error)
}

type MintService interface {
	Mint(ctx context.Context, identityID id.IdentityID) (*seigniorage.MintResult, error)
}

type VestingService interface {
	GetStatus(ctx context.Context, identityID id.IdentityID) (*vesting.Status, error)
	RecordQualifyingEvent(ctx context.Context, identityID id.IdentityID) (*vesting.EventResult, error)
}

type DeductionService interface {
	CalculateDeductions(gross decimal.Decimal) (deduction.Deductions, error)
	RecordPriorityLock(ctx context.Context, req deduction.PriorityLockRequest) (*deduction.Receipt, error)
	RecordCorporateTribute(ctx context.Context, req deduction.TributeRequest) (*deduction.TributeResult, error)
	RecordNationalLevy(ctx context.Context, req deduction.LevyRequest) (*deduction.Receipt, error)
	RecordNationalBlockRevenue(ctx context.Context, req deduction.BlockRevenueRequest) (*deduction.Receipt, error)
	RecordConversionLevy(ctx context.Context, identityID id.IdentityID, converted decimal.Decimal) (*deduction.VaultCharge, error)
	RecordSovereigntyFee(ctx context.Context, identityID id.IdentityID) (*deduction.VaultCharge, error)
}

// Distributor pays out recorded net revenue.
type Distributor interface {
	Distribute(ctx context.Context, receipt *deduction.Receipt, alloc deduction.Allocation) ([]deduction.Payout, error)
}

type TreasuryService interface {
	FoundationReserve(ctx context.Context) (decimal.Decimal, error)
	RegionalReserve(ctx context.Context, blockID id.BlockID) (*ledger.RegionalReserve, error)
	BlockContributions(ctx context.Context) ([]ledger.BlockContribution, error)
}
