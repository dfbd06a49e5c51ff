package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "covenant/pkg/domain-errors"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; an encoding error cannot change the status.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError translates domain errors into HTTP responses. Internal and
// partial-write errors never echo their message to clients.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		status := DomainCodeToHTTPStatus(domainErr.Code)
		response := map[string]any{
			"error": DomainCodeToHTTPCode(domainErr.Code),
		}
		switch domainErr.Code {
		case dErrors.CodeInternal:
		case dErrors.CodePartialWrite:
			response["reconciliation_required"] = true
		default:
			if domainErr.Message != "" {
				response["error_description"] = domainErr.Message
			}
		}
		WriteJSON(w, status, response)
		return
	}

	WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error": DomainCodeToHTTPCode(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeInvariantViolation:
		return http.StatusBadRequest
	case dErrors.CodeConflict, dErrors.CodeInsufficientFunds:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodePolicyViolation, dErrors.CodeUnsignedAgreement, dErrors.CodeInsufficientPersonhood:
		return http.StatusPreconditionFailed
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeInternal, dErrors.CodePartialWrite:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to the JSON "error" field.
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return "bad_request"
	case dErrors.CodeValidation, dErrors.CodeInvariantViolation:
		return "validation_error"
	case dErrors.CodeConflict:
		return "conflict"
	case dErrors.CodeUnauthorized:
		return "unauthorized"
	case dErrors.CodeForbidden:
		return "forbidden"
	case dErrors.CodePolicyViolation:
		return "policy_violation"
	case dErrors.CodeUnsignedAgreement:
		return "unsigned_agreement"
	case dErrors.CodeInsufficientPersonhood:
		return "insufficient_proof_of_personhood"
	case dErrors.CodeInsufficientFunds:
		return "insufficient_funds"
	case dErrors.CodeTimeout:
		return "timeout"
	case dErrors.CodeStoreUnavailable:
		return "store_unavailable"
	case dErrors.CodePartialWrite:
		return "partial_write_inconsistency"
	default:
		return "internal_error"
	}
}
