package httptransport

import (
	"net/http"
	"time"

	"covenant/internal/seigniorage"
	"covenant/pkg/platform/httputil"
	"covenant/pkg/requestcontext"
)

// HandleMint handles POST /v1/identities/{identityID}/mint.
//
// 201 on a fresh mint, 200 with outcome already_minted when the face has
// minted before, 412 naming the missing precondition.
func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	identityID, ok := identityParam(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Mint.Mint(ctx, identityID)
	if err != nil {
		h.logger.WarnContext(ctx, "mint failed",
			"request_id", requestcontext.RequestID(ctx),
			"identity_id", identityID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "mint handled",
		"request_id", requestcontext.RequestID(ctx),
		"identity_id", identityID.String(),
		"outcome", result.Outcome,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	status := http.StatusOK
	if result.Outcome == seigniorage.OutcomeMinted {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, toMintResponse(result))
}

func (h *Handler) HandleVestingStatus(w http.ResponseWriter, r *http.Request) {
	identityID, ok := identityParam(w, r)
	if !ok {
		return
	}
	status, err := h.svc.Vesting.GetStatus(r.Context(), identityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVestingStatusResponse(status))
}

// HandleQualifyingEvent handles POST /v1/identities/{identityID}/vesting/events.
// A same-day repeat reports recorded=false and moves nothing.
func (h *Handler) HandleQualifyingEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identityID, ok := identityParam(w, r)
	if !ok {
		return
	}
	result, err := h.svc.Vesting.RecordQualifyingEvent(ctx, identityID)
	if err != nil {
		h.logger.WarnContext(ctx, "qualifying event rejected",
			"request_id", requestcontext.RequestID(ctx),
			"identity_id", identityID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VestingEventResponse{
		VestingStatusResponse: toVestingStatusResponse(result.Status),
		Recorded:              result.Recorded,
		UnlockedJustNow:       result.UnlockedJustNow,
		Moved:                 amount(result.Moved),
	})
}

func (h *Handler) HandleFoundationReserve(w http.ResponseWriter, r *http.Request) {
	total, err := h.svc.Treasury.FoundationReserve(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ReserveResponse{Balance: amount(total)})
}

func (h *Handler) HandleRegionalReserve(w http.ResponseWriter, r *http.Request) {
	blockID, err := parseBlockParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reserve, err := h.svc.Treasury.RegionalReserve(r.Context(), blockID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ReserveResponse{BlockID: reserve.BlockID.String(), Balance: amount(reserve.Balance)})
}

func (h *Handler) HandleContributions(w http.ResponseWriter, r *http.Request) {
	contributions, err := h.svc.Treasury.BlockContributions(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toContributionsResponse(contributions))
}
