package httptransport

import (
	"context"
	"net/http"

	"covenant/internal/deduction"
	"covenant/pkg/platform/httputil"
	"covenant/pkg/requestcontext"
)

// HandleCalculate handles POST /v1/deductions/calculate. Nothing is recorded.
func (h *Handler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[CalculateRequest](w, r, h.logger)
	if !ok {
		return
	}
	d, err := h.svc.Deductions.CalculateDeductions(req.gross)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDeductionsResponse(d))
}

func (h *Handler) HandlePriorityLock(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[RevenueRequest](w, r, h.logger)
	if !ok {
		return
	}
	h.recordRevenue(w, r, req, func(ctx context.Context) (*deduction.Receipt, error) {
		return h.svc.Deductions.RecordPriorityLock(ctx, deduction.PriorityLockRequest{
			BlockID:   req.block,
			Gross:     req.gross,
			PartnerID: req.partner,
			Reference: req.Reference,
		})
	})
}

func (h *Handler) HandleNationalLevy(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[RevenueRequest](w, r, h.logger)
	if !ok {
		return
	}
	h.recordRevenue(w, r, req, func(ctx context.Context) (*deduction.Receipt, error) {
		return h.svc.Deductions.RecordNationalLevy(ctx, deduction.LevyRequest{
			BlockID:   req.block,
			Gross:     req.gross,
			Reference: req.Reference,
		})
	})
}

func (h *Handler) HandleBlockRevenue(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[RevenueRequest](w, r, h.logger)
	if !ok {
		return
	}
	h.recordRevenue(w, r, req, func(ctx context.Context) (*deduction.Receipt, error) {
		return h.svc.Deductions.RecordNationalBlockRevenue(ctx, deduction.BlockRevenueRequest{
			BlockID:   req.block,
			Gross:     req.gross,
			PartnerID: req.partner,
			Reference: req.Reference,
		})
	})
}

// recordRevenue records a deduction and, when the request carries an
// allocation, distributes the recorded net. Failed recordings and replays of
// an earlier reference never reach the distributor.
func (h *Handler) recordRevenue(w http.ResponseWriter, r *http.Request, req *RevenueRequest, record func(context.Context) (*deduction.Receipt, error)) {
	ctx := r.Context()
	receipt, err := record(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "deduction not recorded",
			"request_id", requestcontext.RequestID(ctx),
			"block_id", req.block.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	var payouts []deduction.Payout
	if len(req.allocation) > 0 && !receipt.Duplicate {
		payouts, err = h.svc.Distributor.Distribute(ctx, receipt, req.allocation)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	httputil.WriteJSON(w, receiptStatus(receipt), toReceiptResponse(receipt, payouts))
}

// HandleCorporateTribute handles POST /v1/deductions/corporate-tribute.
// Dependent accounts get 200 with outcome not_applicable.
func (h *Handler) HandleCorporateTribute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[TributeRequest](w, r, h.logger)
	if !ok {
		return
	}
	result, err := h.svc.Deductions.RecordCorporateTribute(ctx, deduction.TributeRequest{
		PartnerID: req.partner,
		Gross:     req.gross,
		Dependent: req.Dependent,
		Reference: req.Reference,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if result.Outcome == deduction.OutcomeNotApplicable {
		httputil.WriteJSON(w, http.StatusOK, ReceiptResponse{Outcome: string(result.Outcome)})
		return
	}
	httputil.WriteJSON(w, receiptStatus(result.Receipt), toReceiptResponse(result.Receipt, nil))
}

func (h *Handler) HandleConversionLevy(w http.ResponseWriter, r *http.Request) {
	identityID, ok := identityParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ConversionLevyRequest](w, r, h.logger)
	if !ok {
		return
	}
	charge, err := h.svc.Deductions.RecordConversionLevy(r.Context(), identityID, req.converted)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toVaultChargeResponse(charge))
}

func (h *Handler) HandleSovereigntyFee(w http.ResponseWriter, r *http.Request) {
	identityID, ok := identityParam(w, r)
	if !ok {
		return
	}
	charge, err := h.svc.Deductions.RecordSovereigntyFee(r.Context(), identityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toVaultChargeResponse(charge))
}

func receiptStatus(r *deduction.Receipt) int {
	if r.Duplicate {
		return http.StatusOK
	}
	return http.StatusCreated
}
