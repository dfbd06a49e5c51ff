package httptransport

import (
	"strings"

	"github.com/shopspring/decimal"

	"covenant/internal/deduction"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
)

// EnrollRequest is the body of POST /v1/identities.
type EnrollRequest struct {
	FaceFingerprint string `json:"face_fingerprint"`
	ContactAnchor   string `json:"contact_anchor"`
	BlockID         string `json:"block_id"`
	PersonhoodScore string `json:"personhood_score"`

	face   id.FaceFingerprint
	anchor id.ContactAnchor
	block  id.BlockID
	score  decimal.Decimal
}

func (r *EnrollRequest) Normalize() {
	r.FaceFingerprint = strings.TrimSpace(r.FaceFingerprint)
	r.ContactAnchor = strings.TrimSpace(r.ContactAnchor)
	r.BlockID = strings.TrimSpace(r.BlockID)
	r.PersonhoodScore = strings.TrimSpace(r.PersonhoodScore)
}

func (r *EnrollRequest) Validate() error {
	if r.FaceFingerprint == "" && r.ContactAnchor == "" {
		return dErrors.New(dErrors.CodeValidation, "face_fingerprint or contact_anchor is required")
	}
	var err error
	if r.FaceFingerprint != "" {
		if r.face, err = id.ParseFaceFingerprint(r.FaceFingerprint); err != nil {
			return err
		}
	}
	if r.ContactAnchor != "" {
		if r.anchor, err = id.ParseContactAnchor(r.ContactAnchor); err != nil {
			return err
		}
	}
	if r.block, err = id.ParseBlockID(r.BlockID); err != nil {
		return err
	}
	if r.score, err = id.ParseAmount(r.PersonhoodScore, "personhood_score"); err != nil {
		return err
	}
	return nil
}

// PersonhoodRequest is the body of PUT /v1/identities/{identityID}/personhood.
type PersonhoodRequest struct {
	Score string `json:"score"`

	score decimal.Decimal
}

func (r *PersonhoodRequest) Validate() error {
	var err error
	r.score, err = id.ParseAmount(strings.TrimSpace(r.Score), "score")
	return err
}

// SignAgreementRequest is the body of POST /v1/identities/{identityID}/agreements.
// An empty version signs the version minting currently requires.
type SignAgreementRequest struct {
	Version string `json:"version"`

	version id.AgreementVersion
}

func (r *SignAgreementRequest) Validate() error {
	if strings.TrimSpace(r.Version) == "" {
		return nil
	}
	var err error
	r.version, err = id.ParseAgreementVersion(r.Version)
	return err
}

// CalculateRequest is the body of POST /v1/deductions/calculate.
type CalculateRequest struct {
	Gross string `json:"gross"`

	gross decimal.Decimal
}

func (r *CalculateRequest) Validate() error {
	var err error
	r.gross, err = id.ParseAmount(strings.TrimSpace(r.Gross), "gross")
	return err
}

// WeightRequest is one recipient of an optional payout split.
type WeightRequest struct {
	Recipient string `json:"recipient"`
	Fraction  string `json:"fraction"`
}

// RevenueRequest is the body shared by priority-lock, national-levy and
// block-revenue. Allocation, when present, distributes the net after the
// deduction is recorded.
type RevenueRequest struct {
	BlockID    string          `json:"block_id"`
	PartnerID  string          `json:"partner_id"`
	Gross      string          `json:"gross"`
	Reference  string          `json:"reference"`
	Allocation []WeightRequest `json:"allocation,omitempty"`

	block      id.BlockID
	partner    id.PartnerID
	gross      decimal.Decimal
	allocation deduction.Allocation
}

func (r *RevenueRequest) Normalize() {
	r.BlockID = strings.TrimSpace(r.BlockID)
	r.PartnerID = strings.TrimSpace(r.PartnerID)
	r.Gross = strings.TrimSpace(r.Gross)
	r.Reference = strings.TrimSpace(r.Reference)
}

func (r *RevenueRequest) Validate() error {
	var err error
	if r.block, err = id.ParseBlockID(r.BlockID); err != nil {
		return err
	}
	if r.PartnerID != "" {
		if r.partner, err = id.ParsePartnerID(r.PartnerID); err != nil {
			return err
		}
	}
	if r.gross, err = id.ParseAmount(r.Gross, "gross"); err != nil {
		return err
	}
	if len(r.Reference) > 128 {
		return dErrors.New(dErrors.CodeValidation, "reference must be at most 128 characters")
	}
	r.allocation, err = parseAllocation(r.Allocation)
	return err
}

// TributeRequest is the body of POST /v1/deductions/corporate-tribute.
type TributeRequest struct {
	PartnerID string `json:"partner_id"`
	Gross     string `json:"gross"`
	Dependent bool   `json:"dependent"`
	Reference string `json:"reference"`

	partner id.PartnerID
	gross   decimal.Decimal
}

func (r *TributeRequest) Normalize() {
	r.PartnerID = strings.TrimSpace(r.PartnerID)
	r.Gross = strings.TrimSpace(r.Gross)
	r.Reference = strings.TrimSpace(r.Reference)
}

func (r *TributeRequest) Validate() error {
	var err error
	if r.partner, err = id.ParsePartnerID(r.PartnerID); err != nil {
		return err
	}
	if r.gross, err = id.ParseAmount(r.Gross, "gross"); err != nil {
		return err
	}
	if len(r.Reference) > 128 {
		return dErrors.New(dErrors.CodeValidation, "reference must be at most 128 characters")
	}
	return nil
}

// ConversionLevyRequest is the body of POST /v1/identities/{identityID}/conversion-levy.
type ConversionLevyRequest struct {
	Converted string `json:"converted"`

	converted decimal.Decimal
}

func (r *ConversionLevyRequest) Validate() error {
	var err error
	r.converted, err = id.ParseAmount(strings.TrimSpace(r.Converted), "converted")
	return err
}

func parseAllocation(weights []WeightRequest) (deduction.Allocation, error) {
	if len(weights) == 0 {
		return nil, nil
	}
	alloc := make(deduction.Allocation, 0, len(weights))
	for _, w := range weights {
		fraction, err := decimal.NewFromString(strings.TrimSpace(w.Fraction))
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "allocation fraction must be a decimal number")
		}
		alloc = append(alloc, deduction.Weight{Recipient: strings.TrimSpace(w.Recipient), Fraction: fraction})
	}
	if err := alloc.Validate(); err != nil {
		return nil, err
	}
	return alloc, nil
}
