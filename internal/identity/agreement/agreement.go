// Package agreement records agreement signatures, the second mint precondition.
package agreement

import (
	"context"
	"log/slog"

	"covenant/internal/identity/device"
	"covenant/internal/ledger"
	id "covenant/pkg/domain"
	dErrors "covenant/pkg/domain-errors"
	"covenant/pkg/requestcontext"
)

// Store is the agreement persistence port.
type Store interface {
	GetIdentity(ctx context.Context, identityID id.IdentityID) (*ledger.Identity, error)
	ledger.AgreementStore
}

type Service struct {
	store   Store
	devices *device.Service
	logger  *slog.Logger
}

func New(store Store, devices *device.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, devices: devices, logger: logger}
}

// HasSigned reports whether identityID signed version.
func (s *Service) HasSigned(ctx context.Context, identityID id.IdentityID, version id.AgreementVersion) (bool, error) {
	signed, err := s.store.HasSigned(ctx, identityID, version)
	if err != nil {
		return false, ledger.TranslateError(err, "failed to check agreement signature")
	}
	return signed, nil
}

// Sign records a signature for version. The device reference is derived from
// the request's User-Agent. Signing twice is a no-op.
func (s *Service) Sign(ctx context.Context, identityID id.IdentityID, version id.AgreementVersion) (string, error) {
	if version.IsNil() {
		return "", dErrors.New(dErrors.CodeValidation, "agreement version is required")
	}
	if _, err := s.store.GetIdentity(ctx, identityID); err != nil {
		return "", ledger.TranslateError(err, "identity not found")
	}
	deviceRef := s.devices.Reference(requestcontext.UserAgent(ctx))
	if err := s.store.RecordSignature(ctx, identityID, version, deviceRef, requestcontext.Now(ctx)); err != nil {
		return "", ledger.TranslateError(err, "failed to record agreement signature")
	}
	s.logger.InfoContext(ctx, "agreement signed",
		"identity_id", identityID.String(),
		"version", version.String(),
		"device", deviceRef,
	)
	return deviceRef, nil
}
