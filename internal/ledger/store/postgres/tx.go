package postgres

import (
	"context"
	"fmt"
	"time"

	"covenant/internal/ledger"
	dErrors "covenant/pkg/domain-errors"
)

const defaultTxTimeout = 5 * time.Second

// WithTxTimeout bounds transactions whose context carries no deadline.
func (s *Store) WithTxTimeout(d time.Duration) *Store {
	s.txTimeout = d
	return s
}

// RunInTx runs fn against a store bound to a new transaction. The outbox
// rows fn appends commit with the ledger rows or not at all.
func (s *Store) RunInTx(ctx context.Context, fn func(store ledger.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if s.db == nil {
		return fmt.Errorf("nested transaction not supported")
	}

	timeout := s.txTimeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err, "begin ledger transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(NewTx(tx, s.events)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(err, "commit ledger transaction")
	}
	return nil
}

var _ ledger.TxRunner = (*Store)(nil)
