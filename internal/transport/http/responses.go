package httptransport

import (
	"time"

	"github.com/shopspring/decimal"

	"covenant/internal/deduction"
	"covenant/internal/ledger"
	"covenant/internal/seigniorage"
	"covenant/internal/vesting"
	id "covenant/pkg/domain"
)

// amount renders every amount at the persisted scale.
func amount(d decimal.Decimal) string {
	return d.StringFixed(id.AmountPlaces)
}

type IdentityResponse struct {
	ID              string    `json:"id"`
	FaceFingerprint string    `json:"face_fingerprint,omitempty"`
	BlockID         string    `json:"block_id"`
	PersonhoodScore string    `json:"personhood_score"`
	MintStatus      string    `json:"mint_status"`
	Devices         int       `json:"devices"`
	CreatedAt       time.Time `json:"created_at"`
}

func toIdentityResponse(i *ledger.Identity) IdentityResponse {
	resp := IdentityResponse{
		ID:              i.ID.String(),
		BlockID:         i.BlockID.String(),
		PersonhoodScore: i.PersonhoodScore.String(),
		MintStatus:      string(i.MintStatus),
		Devices:         len(i.DeviceFingerprints),
		CreatedAt:       i.CreatedAt,
	}
	if !i.FaceFingerprint.IsNil() {
		resp.FaceFingerprint = i.FaceFingerprint.Redacted()
	}
	return resp
}

type SignatureResponse struct {
	IdentityID string `json:"identity_id"`
	Version    string `json:"version"`
	DeviceRef  string `json:"device_ref"`
}

type VaultResponse struct {
	Spendable string `json:"spendable"`
	Locked    string `json:"locked"`
	Active    bool   `json:"active"`
}

func toVaultResponse(v *ledger.Vault) *VaultResponse {
	if v == nil {
		return nil
	}
	return &VaultResponse{Spendable: amount(v.Spendable), Locked: amount(v.Locked), Active: v.Active}
}

type MintAllocation struct {
	Regional   string `json:"regional"`
	Foundation string `json:"foundation"`
	Vault      string `json:"vault"`
}

type MintResponse struct {
	Outcome    string          `json:"outcome"`
	IdentityID string          `json:"identity_id"`
	AttemptID  string          `json:"attempt_id,omitempty"`
	Schedule   string          `json:"schedule,omitempty"`
	Genesis    bool            `json:"genesis"`
	Activated  bool            `json:"activated"`
	Allocation *MintAllocation `json:"allocation,omitempty"`
	Vault      *VaultResponse  `json:"vault,omitempty"`
}

func toMintResponse(r *seigniorage.MintResult) MintResponse {
	resp := MintResponse{
		Outcome:    string(r.Outcome),
		IdentityID: r.IdentityID.String(),
		Schedule:   r.Schedule,
		Genesis:    r.Genesis,
		Activated:  r.Activated,
		Vault:      toVaultResponse(r.Vault),
	}
	if r.Outcome == seigniorage.OutcomeMinted {
		resp.AttemptID = r.AttemptID.String()
	}
	if r.Entry != nil {
		resp.Allocation = &MintAllocation{
			Regional:   amount(r.Entry.RegionalAmount),
			Foundation: amount(r.Entry.Amount),
			Vault:      amount(r.Entry.VaultAmount),
		}
	}
	return resp
}

type VestingStatusResponse struct {
	IdentityID    string     `json:"identity_id"`
	Spendable     string     `json:"spendable"`
	Locked        string     `json:"locked"`
	Unlocked      bool       `json:"unlocked"`
	Counter       int        `json:"counter"`
	Target        int        `json:"target"`
	Strictness    string     `json:"strictness"`
	LastEventDate *time.Time `json:"last_event_date,omitempty"`
}

func toVestingStatusResponse(s *vesting.Status) VestingStatusResponse {
	return VestingStatusResponse{
		IdentityID:    s.IdentityID.String(),
		Spendable:     amount(s.Spendable),
		Locked:        amount(s.Locked),
		Unlocked:      s.Unlocked,
		Counter:       s.Counter,
		Target:        s.Target,
		Strictness:    string(s.Strictness),
		LastEventDate: s.LastEventDate,
	}
}

type VestingEventResponse struct {
	VestingStatusResponse
	Recorded        bool   `json:"recorded"`
	UnlockedJustNow bool   `json:"unlocked_just_now"`
	Moved           string `json:"moved"`
}

type DeductionsResponse struct {
	Gross          string `json:"gross"`
	CorporateShare string `json:"corporate_share"`
	NationalShare  string `json:"national_share"`
	Foundation     string `json:"foundation"`
	Net            string `json:"net"`
}

func toDeductionsResponse(d deduction.Deductions) DeductionsResponse {
	return DeductionsResponse{
		Gross:          amount(d.Gross),
		CorporateShare: amount(d.CorporateShare),
		NationalShare:  amount(d.NationalShare),
		Foundation:     amount(d.Foundation()),
		Net:            d.Net.String(),
	}
}

type PayoutResponse struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type ReceiptResponse struct {
	Outcome    string              `json:"outcome"`
	EntryID    string              `json:"entry_id,omitempty"`
	SourceType string              `json:"source_type,omitempty"`
	Reference  string              `json:"reference,omitempty"`
	Duplicate  bool                `json:"duplicate"`
	Deductions *DeductionsResponse `json:"deductions,omitempty"`
	Payouts    []PayoutResponse    `json:"payouts,omitempty"`
}

func toReceiptResponse(r *deduction.Receipt, payouts []deduction.Payout) ReceiptResponse {
	d := toDeductionsResponse(r.Deductions)
	resp := ReceiptResponse{
		Outcome:    string(deduction.OutcomeRecorded),
		EntryID:    r.Entry.ID.String(),
		SourceType: r.Entry.SourceType.String(),
		Reference:  r.Entry.Reference,
		Duplicate:  r.Duplicate,
		Deductions: &d,
	}
	for _, p := range payouts {
		resp.Payouts = append(resp.Payouts, PayoutResponse{Recipient: p.Recipient, Amount: amount(p.Amount)})
	}
	return resp
}

type VaultChargeResponse struct {
	EntryID    string         `json:"entry_id"`
	SourceType string         `json:"source_type"`
	Charged    string         `json:"charged"`
	Vault      *VaultResponse `json:"vault"`
}

func toVaultChargeResponse(c *deduction.VaultCharge) VaultChargeResponse {
	return VaultChargeResponse{
		EntryID:    c.Entry.ID.String(),
		SourceType: c.Entry.SourceType.String(),
		Charged:    amount(c.Entry.Amount),
		Vault:      toVaultResponse(c.Vault),
	}
}

type ReserveResponse struct {
	BlockID string `json:"block_id,omitempty"`
	Balance string `json:"balance"`
}

type ContributionResponse struct {
	BlockID             string `json:"block_id"`
	Gross               string `json:"gross"`
	FoundationDeduction string `json:"foundation_deduction"`
	Net                 string `json:"net"`
	Entries             int64  `json:"entries"`
}

type ContributionsResponse struct {
	Blocks []ContributionResponse `json:"blocks"`
}

func toContributionsResponse(cs []ledger.BlockContribution) ContributionsResponse {
	resp := ContributionsResponse{Blocks: make([]ContributionResponse, 0, len(cs))}
	for _, c := range cs {
		resp.Blocks = append(resp.Blocks, ContributionResponse{
			BlockID:             c.BlockID.String(),
			Gross:               amount(c.Gross),
			FoundationDeduction: amount(c.FoundationDeduction),
			Net:                 amount(c.Net),
			Entries:             c.Entries,
		})
	}
	return resp
}
