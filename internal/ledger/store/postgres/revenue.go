package postgres

import (
	"context"

	"covenant/internal/ledger"
	id "covenant/pkg/domain"
)

func (s *Store) AppendRoyaltyAudit(ctx context.Context, record *ledger.RevenueRecord) error {
	return s.appendRevenue(ctx, "foundation_royalty_audit", record, "append royalty audit")
}

func (s *Store) AppendNationalRevenue(ctx context.Context, record *ledger.RevenueRecord) error {
	return s.appendRevenue(ctx, "national_revenue_ledger", record, "append national revenue")
}

func (s *Store) appendRevenue(ctx context.Context, table string, r *ledger.RevenueRecord, op string) error {
	query := `
		INSERT INTO ` + table + ` (id, entry_id, block_id, gross, foundation_deduction, net, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		r.ID,
		r.EntryID,
		r.BlockID.String(),
		r.Gross,
		r.FoundationDeduction,
		r.Net,
		nullString(r.Reference),
		r.CreatedAt,
	)
	return classify(err, op)
}

const contributionQuery = `
	SELECT block_id, COALESCE(SUM(gross), 0), COALESCE(SUM(foundation_deduction), 0),
		COALESCE(SUM(net), 0), COUNT(*)
	FROM national_revenue_ledger
`

func (s *Store) BlockContributions(ctx context.Context) ([]ledger.BlockContribution, error) {
	rows, err := s.q(ctx).QueryContext(ctx, contributionQuery+` GROUP BY block_id ORDER BY block_id`)
	if err != nil {
		return nil, classify(err, "block contributions")
	}
	defer rows.Close()

	var out []ledger.BlockContribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, classify(err, "scan block contribution")
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate block contributions")
	}
	return out, nil
}

func (s *Store) GetBlockContribution(ctx context.Context, blockID id.BlockID) (*ledger.BlockContribution, error) {
	row := s.q(ctx).QueryRowContext(ctx, contributionQuery+` WHERE block_id = $1 GROUP BY block_id`, blockID.String())
	c, err := scanContribution(row)
	if err != nil {
		return nil, classify(err, "get block contribution")
	}
	return c, nil
}

func scanContribution(row scanner) (*ledger.BlockContribution, error) {
	var (
		block string
		out   ledger.BlockContribution
	)
	if err := row.Scan(&block, &out.Gross, &out.FoundationDeduction, &out.Net, &out.Entries); err != nil {
		return nil, err
	}
	out.BlockID = id.BlockID(block)
	return &out, nil
}
