package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"covenant/internal/ledger"
	id "covenant/pkg/domain"
)

const entryColumns = `id, source_type, identity_id, face_fingerprint, block_id, partner_id, reference,
	amount, corporate_share, national_share, regional_amount, vault_amount, gross, net, created_at`

func (s *Store) AppendEntry(ctx context.Context, entry *ledger.Entry) error {
	if entry == nil {
		return fmt.Errorf("entry is required")
	}
	query := `
		INSERT INTO ledger_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		entry.ID,
		entry.SourceType.String(),
		nullUUID(entry.IdentityID),
		nullString(entry.FaceFingerprint.String()),
		nullString(entry.BlockID.String()),
		nullString(entry.PartnerID.String()),
		nullString(entry.Reference),
		entry.Amount,
		entry.CorporateShare,
		entry.NationalShare,
		entry.RegionalAmount,
		entry.VaultAmount,
		entry.Gross,
		entry.Net,
		entry.CreatedAt,
	)
	return classify(err, "append ledger entry")
}

func (s *Store) FindEntryByReference(ctx context.Context, source ledger.SourceType, reference string) (*ledger.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE source_type = $1 AND reference = $2`
	entry, err := scanEntry(s.q(ctx).QueryRowContext(ctx, query, source.String(), reference))
	if err != nil {
		return nil, classify(err, "find entry by reference")
	}
	return entry, nil
}

func (s *Store) ListEntriesByIdentity(ctx context.Context, identityID id.IdentityID) ([]*ledger.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE identity_id = $1 ORDER BY created_at ASC`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(identityID))
	if err != nil {
		return nil, classify(err, "list entries")
	}
	defer rows.Close()

	var out []*ledger.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, classify(err, "scan entry")
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate entries")
	}
	return out, nil
}

func (s *Store) CountEntries(ctx context.Context, source ledger.SourceType) (int64, error) {
	var n int64
	query := `SELECT COUNT(*) FROM ledger_entries WHERE source_type = $1`
	if err := s.q(ctx).QueryRowContext(ctx, query, source.String()).Scan(&n); err != nil {
		return 0, classify(err, "count entries")
	}
	return n, nil
}

// SumFoundation mirrors ledger.Entry.FoundationTotal in SQL.
func (s *Store) SumFoundation(ctx context.Context) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(
			CASE
				WHEN source_type IN ('corporate_royalty', 'national_levy', 'priority_lock')
					THEN corporate_share + national_share
				ELSE amount
			END
		), 0)
		FROM ledger_entries
	`
	var total decimal.Decimal
	if err := s.q(ctx).QueryRowContext(ctx, query).Scan(&total); err != nil {
		return decimal.Zero, classify(err, "sum foundation")
	}
	return total, nil
}

func (s *Store) VaultDrift(ctx context.Context) ([]ledger.VaultDrift, error) {
	query := `
		SELECT v.identity_id, v.spendable + v.locked AS balance, COALESCE(e.expected, 0) AS expected
		FROM vaults v
		LEFT JOIN (
			SELECT identity_id, SUM(
				CASE
					WHEN source_type = 'seigniorage' THEN vault_amount
					WHEN source_type IN ('conversion_levy', 'sovereignty_fee') THEN -amount
					ELSE 0
				END
			) AS expected
			FROM ledger_entries
			WHERE identity_id IS NOT NULL
			GROUP BY identity_id
		) e ON e.identity_id = v.identity_id
		WHERE v.spendable + v.locked <> COALESCE(e.expected, 0)
		ORDER BY v.identity_id
	`
	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err, "vault drift")
	}
	defer rows.Close()

	var out []ledger.VaultDrift
	for rows.Next() {
		var (
			identityID uuid.UUID
			d          ledger.VaultDrift
		)
		if err := rows.Scan(&identityID, &d.Balance, &d.Expected); err != nil {
			return nil, classify(err, "scan vault drift")
		}
		d.IdentityID = id.IdentityID(identityID)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate vault drift")
	}
	return out, nil
}

func scanEntry(row scanner) (*ledger.Entry, error) {
	var (
		source     string
		identityID uuid.NullUUID
		face       sql.NullString
		block      sql.NullString
		partner    sql.NullString
		reference  sql.NullString
		out        ledger.Entry
	)
	err := row.Scan(&out.ID, &source, &identityID, &face, &block, &partner, &reference,
		&out.Amount, &out.CorporateShare, &out.NationalShare, &out.RegionalAmount,
		&out.VaultAmount, &out.Gross, &out.Net, &out.CreatedAt)
	if err != nil {
		return nil, err
	}
	sourceType, err := ledger.ParseSourceType(source)
	if err != nil {
		return nil, err
	}
	out.SourceType = sourceType
	if identityID.Valid {
		out.IdentityID = id.IdentityID(identityID.UUID)
	}
	out.FaceFingerprint = id.FaceFingerprint(face.String)
	out.BlockID = id.BlockID(block.String)
	out.PartnerID = id.PartnerID(partner.String)
	out.Reference = reference.String
	return &out, nil
}
