package httptransport

import (
	"net/http"

	"covenant/internal/identity"
	"covenant/pkg/platform/httputil"
	"covenant/pkg/requestcontext"
)

// HandleEnroll handles POST /v1/identities. A new identity is 201; a face
// that is already enrolled returns the existing identity with 200.
func (h *Handler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[EnrollRequest](w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.svc.Identities.Enroll(ctx, identity.EnrollRequest{
		FaceFingerprint: req.face,
		ContactAnchor:   req.anchor,
		BlockID:         req.block,
		UserAgent:       requestcontext.UserAgent(ctx),
		PersonhoodScore: req.score,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "enrollment failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, toIdentityResponse(result.Identity))
}

func (h *Handler) HandleGetIdentity(w http.ResponseWriter, r *http.Request) {
	identityID, ok := identityParam(w, r)
	if !ok {
		return
	}
	found, err := h.svc.Identities.Get(r.Context(), identityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toIdentityResponse(found))
}

func (h *Handler) HandleUpdatePersonhood(w http.ResponseWriter, r *http.Request) {
	identityID, ok := identityParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[PersonhoodRequest](w, r, h.logger)
	if !ok {
		return
	}
	if err := h.svc.Identities.UpdatePersonhood(r.Context(), identityID, req.score); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSignAgreement handles POST /v1/identities/{identityID}/agreements.
// The device reference comes from the caller's User-Agent.
func (h *Handler) HandleSignAgreement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identityID, ok := identityParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SignAgreementRequest](w, r, h.logger)
	if !ok {
		return
	}
	version := req.version
	if version.IsNil() {
		version = h.agreementVersion
	}

	deviceRef, err := h.svc.Agreements.Sign(ctx, identityID, version)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, SignatureResponse{
		IdentityID: identityID.String(),
		Version:    version.String(),
		DeviceRef:  deviceRef,
	})
}
