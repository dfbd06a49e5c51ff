package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"covenant/internal/ledger"
	id "covenant/pkg/domain"
	"covenant/pkg/platform/sentinel"
)

func (v *view) CreateIdentity(_ context.Context, identity *ledger.Identity) error {
	defer v.lock()()
	st := v.st
	if _, ok := st.identities[identity.ID]; ok {
		return fmt.Errorf("identity %s: %w", identity.ID, sentinel.ErrConflict)
	}
	if !identity.FaceFingerprint.IsNil() {
		if _, ok := st.faces[identity.FaceFingerprint]; ok {
			return fmt.Errorf("face already enrolled: %w", sentinel.ErrConflict)
		}
	}
	if identity.AnchorDigest != "" {
		if _, ok := st.anchors[identity.AnchorDigest]; ok {
			return fmt.Errorf("anchor already enrolled: %w", sentinel.ErrConflict)
		}
	}
	row := *identity
	row.DeviceFingerprints = slices.Clone(identity.DeviceFingerprints)
	st.identities[identity.ID] = row
	if !identity.FaceFingerprint.IsNil() {
		st.faces[identity.FaceFingerprint] = identity.ID
	}
	if identity.AnchorDigest != "" {
		st.anchors[identity.AnchorDigest] = identity.ID
	}
	return nil
}

func (v *view) GetIdentity(_ context.Context, identityID id.IdentityID) (*ledger.Identity, error) {
	defer v.rlock()()
	row, ok := v.st.identities[identityID]
	if !ok {
		return nil, fmt.Errorf("identity %s: %w", identityID, sentinel.ErrNotFound)
	}
	row.DeviceFingerprints = slices.Clone(row.DeviceFingerprints)
	return &row, nil
}

func (v *view) FindIdentityByFace(ctx context.Context, fp id.FaceFingerprint) (*ledger.Identity, error) {
	unlock := v.rlock()
	identityID, ok := v.st.faces[fp]
	unlock()
	if !ok {
		return nil, fmt.Errorf("identity by face: %w", sentinel.ErrNotFound)
	}
	return v.GetIdentity(ctx, identityID)
}

func (v *view) AddDeviceFingerprint(_ context.Context, identityID id.IdentityID, device string, now time.Time) error {
	defer v.lock()()
	row, ok := v.st.identities[identityID]
	if !ok {
		return fmt.Errorf("identity %s: %w", identityID, sentinel.ErrNotFound)
	}
	if slices.Contains(row.DeviceFingerprints, device) {
		return nil
	}
	row.DeviceFingerprints = append(slices.Clone(row.DeviceFingerprints), device)
	row.UpdatedAt = now
	v.st.identities[identityID] = row
	return nil
}

func (v *view) UpdatePersonhood(_ context.Context, identityID id.IdentityID, score decimal.Decimal, now time.Time) error {
	defer v.lock()()
	row, ok := v.st.identities[identityID]
	if !ok {
		return fmt.Errorf("identity %s: %w", identityID, sentinel.ErrNotFound)
	}
	row.PersonhoodScore = score
	row.UpdatedAt = now
	v.st.identities[identityID] = row
	return nil
}

func (v *view) SetMintStatus(_ context.Context, identityID id.IdentityID, status ledger.MintStatus, now time.Time) error {
	defer v.lock()()
	row, ok := v.st.identities[identityID]
	if !ok {
		return fmt.Errorf("identity %s: %w", identityID, sentinel.ErrNotFound)
	}
	row.MintStatus = status
	row.UpdatedAt = now
	v.st.identities[identityID] = row
	return nil
}

func (v *view) HasSigned(_ context.Context, identityID id.IdentityID, version id.AgreementVersion) (bool, error) {
	defer v.rlock()()
	_, ok := v.st.signatures[sigKey{identityID, version}]
	return ok, nil
}

func (v *view) RecordSignature(_ context.Context, identityID id.IdentityID, version id.AgreementVersion, deviceRef string, _ time.Time) error {
	defer v.lock()()
	if _, ok := v.st.identities[identityID]; !ok {
		return fmt.Errorf("identity %s: %w", identityID, sentinel.ErrNotFound)
	}
	key := sigKey{identityID, version}
	if _, ok := v.st.signatures[key]; !ok {
		v.st.signatures[key] = deviceRef
	}
	return nil
}
