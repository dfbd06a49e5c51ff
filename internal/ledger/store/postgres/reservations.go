package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"covenant/internal/ledger"
	id "covenant/pkg/domain"
)

const reservationColumns = `attempt_id, identity_id, face_fingerprint, anchor_digest, status, created_at, completed_at`

func (s *Store) ReserveFace(ctx context.Context, r *ledger.Reservation) (bool, error) {
	return s.reserve(ctx, r, "face_fingerprint", "reserve face")
}

func (s *Store) ReserveAnchor(ctx context.Context, r *ledger.Reservation) (bool, error) {
	return s.reserve(ctx, r, "anchor_digest", "reserve anchor")
}

// reserve inserts r unless conflictColumn already holds its key.
func (s *Store) reserve(ctx context.Context, r *ledger.Reservation, conflictColumn, op string) (bool, error) {
	query := `
		INSERT INTO mint_reservations (` + reservationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (` + conflictColumn + `) DO NOTHING
	`
	res, err := s.q(ctx).ExecContext(ctx, query,
		r.AttemptID,
		uuid.UUID(r.IdentityID),
		nullString(r.FaceFingerprint.String()),
		nullString(r.AnchorDigest),
		string(r.Status),
		r.CreatedAt,
		r.CompletedAt,
	)
	if err != nil {
		return false, classify(err, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err, op)
	}
	return n == 1, nil
}

func (s *Store) FindReservationByFace(ctx context.Context, fp id.FaceFingerprint) (*ledger.Reservation, error) {
	return s.findReservation(ctx, "face_fingerprint", fp.String(), "find reservation by face")
}

func (s *Store) FindReservationByAnchor(ctx context.Context, digest string) (*ledger.Reservation, error) {
	return s.findReservation(ctx, "anchor_digest", digest, "find reservation by anchor")
}

func (s *Store) FindReservationByAttempt(ctx context.Context, attemptID uuid.UUID) (*ledger.Reservation, error) {
	return s.findReservation(ctx, "attempt_id", attemptID, "find reservation by attempt")
}

func (s *Store) findReservation(ctx context.Context, column string, key any, op string) (*ledger.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM mint_reservations WHERE ` + column + ` = $1`
	r, err := scanReservation(s.q(ctx).QueryRowContext(ctx, query, key))
	if err != nil {
		return nil, classify(err, op)
	}
	return r, nil
}

func (s *Store) CompleteReservation(ctx context.Context, attemptID uuid.UUID, now time.Time) error {
	query := `
		UPDATE mint_reservations
		SET status = 'completed', completed_at = COALESCE(completed_at, $2)
		WHERE attempt_id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query, attemptID, now)
	return requireRow(res, err, "complete reservation")
}

func (s *Store) ListStaleReservations(ctx context.Context, before time.Time) ([]*ledger.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM mint_reservations
		WHERE status = 'reserved' AND created_at < $1
		ORDER BY created_at ASC
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, before)
	if err != nil {
		return nil, classify(err, "list stale reservations")
	}
	defer rows.Close()

	var out []*ledger.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, classify(err, "scan reservation")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate reservations")
	}
	return out, nil
}

func (s *Store) ClaimGenesis(ctx context.Context, identityID id.IdentityID, now time.Time) (bool, error) {
	query := `
		INSERT INTO genesis_claim (id, identity_id, claimed_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(identityID), now)
	if err != nil {
		return false, classify(err, "claim genesis")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err, "claim genesis")
	}
	return n == 1, nil
}

func scanReservation(row scanner) (*ledger.Reservation, error) {
	var (
		identityID uuid.UUID
		face       sql.NullString
		anchor     sql.NullString
		status     string
		completed  sql.NullTime
		out        ledger.Reservation
	)
	if err := row.Scan(&out.AttemptID, &identityID, &face, &anchor, &status, &out.CreatedAt, &completed); err != nil {
		return nil, err
	}
	parsed, err := ledger.ParseReservationStatus(status)
	if err != nil {
		return nil, err
	}
	out.IdentityID = id.IdentityID(identityID)
	out.FaceFingerprint = id.FaceFingerprint(face.String)
	out.AnchorDigest = anchor.String
	out.Status = parsed
	if completed.Valid {
		t := completed.Time
		out.CompletedAt = &t
	}
	return &out, nil
}
