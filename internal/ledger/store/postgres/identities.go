package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"covenant/internal/ledger"
	id "covenant/pkg/domain"
	"covenant/pkg/platform/sentinel"
)

const identityColumns = `id, face_fingerprint, anchor_digest, block_id, device_fingerprints,
	personhood_score, mint_status, created_at, updated_at`

func (s *Store) CreateIdentity(ctx context.Context, identity *ledger.Identity) error {
	if identity == nil {
		return fmt.Errorf("identity is required")
	}
	devices := identity.DeviceFingerprints
	if devices == nil {
		devices = []string{}
	}
	query := `
		INSERT INTO identities (` + identityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(identity.ID),
		nullString(identity.FaceFingerprint.String()),
		nullString(identity.AnchorDigest),
		identity.BlockID.String(),
		pq.Array(devices),
		identity.PersonhoodScore,
		string(identity.MintStatus),
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	return classify(err, "create identity")
}

func (s *Store) GetIdentity(ctx context.Context, identityID id.IdentityID) (*ledger.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`
	identity, err := scanIdentity(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(identityID)))
	if err != nil {
		return nil, classify(err, "get identity")
	}
	return identity, nil
}

func (s *Store) FindIdentityByFace(ctx context.Context, fp id.FaceFingerprint) (*ledger.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE face_fingerprint = $1`
	identity, err := scanIdentity(s.q(ctx).QueryRowContext(ctx, query, fp.String()))
	if err != nil {
		return nil, classify(err, "find identity by face")
	}
	return identity, nil
}

func (s *Store) AddDeviceFingerprint(ctx context.Context, identityID id.IdentityID, device string, now time.Time) error {
	query := `
		UPDATE identities
		SET device_fingerprints = CASE
				WHEN $2 = ANY(device_fingerprints) THEN device_fingerprints
				ELSE array_append(device_fingerprints, $2)
			END,
			updated_at = $3
		WHERE id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(identityID), device, now)
	return requireRow(res, err, "add device fingerprint")
}

func (s *Store) UpdatePersonhood(ctx context.Context, identityID id.IdentityID, score decimal.Decimal, now time.Time) error {
	query := `UPDATE identities SET personhood_score = $2, updated_at = $3 WHERE id = $1`
	res, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(identityID), score, now)
	return requireRow(res, err, "update personhood")
}

func (s *Store) SetMintStatus(ctx context.Context, identityID id.IdentityID, status ledger.MintStatus, now time.Time) error {
	query := `UPDATE identities SET mint_status = $2, updated_at = $3 WHERE id = $1`
	res, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(identityID), string(status), now)
	return requireRow(res, err, "set mint status")
}

func (s *Store) HasSigned(ctx context.Context, identityID id.IdentityID, version id.AgreementVersion) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM agreement_signatures WHERE identity_id = $1 AND version = $2)`
	var signed bool
	if err := s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(identityID), version.String()).Scan(&signed); err != nil {
		return false, classify(err, "check signature")
	}
	return signed, nil
}

func (s *Store) RecordSignature(ctx context.Context, identityID id.IdentityID, version id.AgreementVersion, deviceRef string, now time.Time) error {
	query := `
		INSERT INTO agreement_signatures (identity_id, version, device_ref, signed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity_id, version) DO NOTHING
	`
	_, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(identityID), version.String(), deviceRef, now)
	return classify(err, "record signature")
}

func scanIdentity(row scanner) (*ledger.Identity, error) {
	var (
		rawID   uuid.UUID
		face    sql.NullString
		anchor  sql.NullString
		block   string
		devices []string
		status  string
		out     ledger.Identity
	)
	err := row.Scan(&rawID, &face, &anchor, &block, pq.Array(&devices),
		&out.PersonhoodScore, &status, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, err
	}
	mintStatus, err := ledger.ParseMintStatus(status)
	if err != nil {
		return nil, err
	}
	out.ID = id.IdentityID(rawID)
	out.FaceFingerprint = id.FaceFingerprint(face.String)
	out.AnchorDigest = anchor.String
	out.BlockID = id.BlockID(block)
	out.DeviceFingerprints = devices
	out.MintStatus = mintStatus
	return &out, nil
}

// requireRow turns a zero-row UPDATE into sentinel.ErrNotFound.
func requireRow(res sql.Result, err error, op string) error {
	if err != nil {
		return classify(err, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, op)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	}
	return nil
}
