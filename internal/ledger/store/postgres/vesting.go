package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"covenant/internal/ledger"
	id "covenant/pkg/domain"
)

const vestingColumns = `identity_id, counter, target, last_event_date, strictness, released,
	vested_amount, created_at, updated_at`

func (s *Store) CreateVestingState(ctx context.Context, vs *ledger.VestingState) error {
	query := `
		INSERT INTO vesting_states (` + vestingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(vs.IdentityID),
		vs.Counter,
		vs.Target,
		vs.LastEventDate,
		string(vs.Strictness),
		vs.Released,
		vs.VestedAmount,
		vs.CreatedAt,
		vs.CreatedAt,
	)
	return classify(err, "create vesting state")
}

func (s *Store) GetVestingState(ctx context.Context, identityID id.IdentityID) (*ledger.VestingState, error) {
	query := `SELECT ` + vestingColumns + ` FROM vesting_states WHERE identity_id = $1`
	vs, err := scanVesting(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(identityID)))
	if err != nil {
		return nil, classify(err, "get vesting state")
	}
	return vs, nil
}

func (s *Store) RecordVestingEvent(ctx context.Context, identityID id.IdentityID, day time.Time, now time.Time) (bool, error) {
	query := `
		INSERT INTO vesting_events (identity_id, event_date, created_at)
		VALUES ($1, $2::date, $3)
		ON CONFLICT (identity_id, event_date) DO NOTHING
	`
	res, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(identityID), ledger.Day(day).Format(time.DateOnly), now)
	if err != nil {
		return false, classify(err, "record vesting event")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err, "record vesting event")
	}
	return n == 1, nil
}

func (s *Store) AdvanceVesting(ctx context.Context, identityID id.IdentityID, day time.Time, now time.Time) (*ledger.VestingState, error) {
	query := `
		UPDATE vesting_states
		SET counter = LEAST(counter + 1, target), last_event_date = $2::date, updated_at = $3
		WHERE identity_id = $1
		RETURNING ` + vestingColumns
	vs, err := scanVesting(s.q(ctx).QueryRowContext(ctx, query,
		uuid.UUID(identityID), ledger.Day(day).Format(time.DateOnly), now))
	if err != nil {
		return nil, classify(err, "advance vesting")
	}
	return vs, nil
}

func (s *Store) ReleaseVesting(ctx context.Context, identityID id.IdentityID, vested decimal.Decimal, now time.Time) (bool, error) {
	query := `
		UPDATE vesting_states
		SET released = TRUE, counter = target, strictness = 'high', vested_amount = $2, updated_at = $3
		WHERE identity_id = $1 AND released = FALSE
	`
	res, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(identityID), vested, now)
	if err != nil {
		return false, classify(err, "release vesting")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err, "release vesting")
	}
	return n == 1, nil
}

func (s *Store) ListUnreleased(ctx context.Context, limit int) ([]id.IdentityID, error) {
	query := `
		SELECT identity_id FROM vesting_states
		WHERE released = FALSE
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, classify(err, "list unreleased vesting")
	}
	defer rows.Close()

	var out []id.IdentityID
	for rows.Next() {
		var identityID uuid.UUID
		if err := rows.Scan(&identityID); err != nil {
			return nil, classify(err, "scan vesting identity")
		}
		out = append(out, id.IdentityID(identityID))
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate unreleased vesting")
	}
	return out, nil
}

func scanVesting(row scanner) (*ledger.VestingState, error) {
	var (
		identityID uuid.UUID
		lastEvent  sql.NullTime
		strictness string
		out        ledger.VestingState
	)
	err := row.Scan(&identityID, &out.Counter, &out.Target, &lastEvent, &strictness,
		&out.Released, &out.VestedAmount, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, err
	}
	parsed, err := ledger.ParseStrictness(strictness)
	if err != nil {
		return nil, err
	}
	out.IdentityID = id.IdentityID(identityID)
	out.Strictness = parsed
	if lastEvent.Valid {
		d := ledger.Day(lastEvent.Time)
		out.LastEventDate = &d
	}
	return &out, nil
}
