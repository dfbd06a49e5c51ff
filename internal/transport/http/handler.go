// Package httptransport exposes the ledger over HTTP/JSON. Handlers parse
// and validate input, call one service, and translate the result; amounts
// travel as fixed-scale decimal strings.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "covenant/pkg/domain"
	"covenant/pkg/platform/httputil"
)

// Services bundles the domain services the handlers delegate to.
type Services struct {
	Identities  IdentityService
	Agreements  AgreementService
	Mint        MintService
	Vesting     VestingService
	Deductions  DeductionService
	Distributor Distributor
	Treasury    TreasuryService
}

type Handler struct {
	svc              Services
	agreementVersion id.AgreementVersion
	logger           *slog.Logger
}

// New builds the handler. agreementVersion is signed when a signature
// request names no version.
func New(svc Services, agreementVersion id.AgreementVersion, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, agreementVersion: agreementVersion, logger: logger}
}

// Register mounts public routes directly and operator routes behind
// operatorAuth.
func (h *Handler) Register(r chi.Router, operatorAuth func(http.Handler) http.Handler) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/deductions/calculate", h.HandleCalculate)
		r.Get("/identities/{identityID}/vesting", h.HandleVestingStatus)
		r.Get("/treasury/foundation", h.HandleFoundationReserve)
		r.Get("/treasury/blocks/{blockID}", h.HandleRegionalReserve)
		r.Get("/treasury/contributions", h.HandleContributions)

		r.Group(func(r chi.Router) {
			r.Use(operatorAuth)
			r.Post("/identities", h.HandleEnroll)
			r.Get("/identities/{identityID}", h.HandleGetIdentity)
			r.Put("/identities/{identityID}/personhood", h.HandleUpdatePersonhood)
			r.Post("/identities/{identityID}/agreements", h.HandleSignAgreement)
			r.Post("/identities/{identityID}/mint", h.HandleMint)
			r.Post("/identities/{identityID}/vesting/events", h.HandleQualifyingEvent)
			r.Post("/identities/{identityID}/conversion-levy", h.HandleConversionLevy)
			r.Post("/identities/{identityID}/sovereignty-fee", h.HandleSovereigntyFee)

			r.Post("/deductions/priority-lock", h.HandlePriorityLock)
			r.Post("/deductions/corporate-tribute", h.HandleCorporateTribute)
			r.Post("/deductions/national-levy", h.HandleNationalLevy)
			r.Post("/deductions/block-revenue", h.HandleBlockRevenue)
		})
	})
}

// identityParam parses {identityID}, writing a 400 on failure.
func identityParam(w http.ResponseWriter, r *http.Request) (id.IdentityID, bool) {
	identityID, err := id.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.IdentityID{}, false
	}
	return identityID, true
}

func parseBlockParam(r *http.Request) (id.BlockID, error) {
	return id.ParseBlockID(chi.URLParam(r, "blockID"))
}
