package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"covenant/internal/ledger"
	id "covenant/pkg/domain"
	"covenant/pkg/platform/sentinel"
)

func (s *Store) CreateVault(ctx context.Context, identityID id.IdentityID, now time.Time) error {
	query := `INSERT INTO vaults (identity_id, spendable, locked, active, updated_at) VALUES ($1, 0, 0, FALSE, $2)`
	_, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(identityID), now)
	return classify(err, "create vault")
}

func (s *Store) GetVault(ctx context.Context, identityID id.IdentityID) (*ledger.Vault, error) {
	query := `SELECT spendable, locked, active, updated_at FROM vaults WHERE identity_id = $1`
	out := ledger.Vault{IdentityID: identityID}
	err := s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(identityID)).
		Scan(&out.Spendable, &out.Locked, &out.Active, &out.UpdatedAt)
	if err != nil {
		return nil, classify(err, "get vault")
	}
	return &out, nil
}

func (s *Store) CreditVault(ctx context.Context, identityID id.IdentityID, spendable, locked decimal.Decimal, now time.Time) error {
	query := `
		UPDATE vaults
		SET spendable = spendable + $2, locked = locked + $3, updated_at = $4
		WHERE identity_id = $1
	`
	res, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(identityID), spendable, locked, now)
	return requireRow(res, err, "credit vault")
}

func (s *Store) ApplyActivationDebit(ctx context.Context, identityID id.IdentityID, fee decimal.Decimal, now time.Time) (bool, error) {
	query := `
		WITH pending AS (
			SELECT identity_id FROM vesting_states
			WHERE identity_id = $1 AND released = FALSE
			FOR UPDATE
		)
		UPDATE vaults v
		SET spendable = v.spendable - $2, locked = v.locked + $2, active = TRUE, updated_at = $3
		FROM pending
		WHERE v.identity_id = pending.identity_id AND v.active = FALSE AND v.spendable >= $2
	`
	res, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(identityID), fee, now)
	if err != nil {
		return false, classify(err, "apply activation debit")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err, "apply activation debit")
	}
	return n == 1, nil
}

func (s *Store) DebitSpendable(ctx context.Context, identityID id.IdentityID, amount decimal.Decimal, now time.Time) error {
	query := `
		UPDATE vaults
		SET spendable = spendable - $2, updated_at = $3
		WHERE identity_id = $1 AND spendable >= $2
	`
	res, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(identityID), amount, now)
	if err != nil {
		return classify(err, "debit spendable")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, "debit spendable")
	}
	if n == 0 {
		if _, err := s.GetVault(ctx, identityID); err != nil {
			return err
		}
		return fmt.Errorf("debit %s from vault %s: %w", amount, identityID, sentinel.ErrInvalidState)
	}
	return nil
}

// UnlockVaults releases every listed vault whose vesting state is still
// unreleased, in one statement. The CTE locks the vesting row before the
// vault row, the same order ApplyActivationDebit takes them in, and reads
// locked before the update zeroes it.
func (s *Store) UnlockVaults(ctx context.Context, identityIDs []id.IdentityID, now time.Time) (map[id.IdentityID]decimal.Decimal, error) {
	moved := make(map[id.IdentityID]decimal.Decimal, len(identityIDs))
	if len(identityIDs) == 0 {
		return moved, nil
	}
	ids := make([]string, len(identityIDs))
	for i, identityID := range identityIDs {
		ids[i] = identityID.String()
	}
	query := `
		WITH prior AS (
			SELECT vs.identity_id, v.locked
			FROM vesting_states vs
			JOIN vaults v ON v.identity_id = vs.identity_id
			WHERE vs.identity_id = ANY($1::uuid[]) AND vs.released = FALSE
			FOR UPDATE OF vs, v
		)
		UPDATE vaults v
		SET spendable = v.spendable + prior.locked, locked = 0, updated_at = $2
		FROM prior
		WHERE v.identity_id = prior.identity_id
		RETURNING v.identity_id, prior.locked
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, pq.Array(ids), now)
	if err != nil {
		return nil, classify(err, "unlock vaults")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			identityID uuid.UUID
			amount     decimal.Decimal
		)
		if err := rows.Scan(&identityID, &amount); err != nil {
			return nil, classify(err, "scan unlocked vault")
		}
		moved[id.IdentityID(identityID)] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate unlocked vaults")
	}
	return moved, nil
}

func (s *Store) CreditRegionalReserve(ctx context.Context, blockID id.BlockID, amount decimal.Decimal, now time.Time) error {
	query := `
		INSERT INTO regional_reserves (block_id, balance, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (block_id) DO UPDATE
		SET balance = regional_reserves.balance + EXCLUDED.balance, updated_at = EXCLUDED.updated_at
	`
	_, err := s.q(ctx).ExecContext(ctx, query, blockID.String(), amount, now)
	return classify(err, "credit regional reserve")
}

func (s *Store) GetRegionalReserve(ctx context.Context, blockID id.BlockID) (*ledger.RegionalReserve, error) {
	query := `SELECT balance, updated_at FROM regional_reserves WHERE block_id = $1`
	out := ledger.RegionalReserve{BlockID: blockID}
	if err := s.q(ctx).QueryRowContext(ctx, query, blockID.String()).Scan(&out.Balance, &out.UpdatedAt); err != nil {
		return nil, classify(err, "get regional reserve")
	}
	return &out, nil
}
