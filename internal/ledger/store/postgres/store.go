// Package postgres is the PostgreSQL ledger store. Every balance change is a
// single conditional UPDATE or INSERT so concurrent mints never lose writes.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"covenant/internal/ledger"
	id "covenant/pkg/domain"
	"covenant/pkg/platform/outbox"
	"covenant/pkg/platform/sentinel"
	txcontext "covenant/pkg/platform/tx"
)

// Store implements ledger.Store. A Store built by NewTx is bound to one
// transaction; one built by New picks up a transaction from ctx if present.
type Store struct {
	db        *sql.DB
	tx        *sql.Tx
	events    outbox.Store
	txTimeout time.Duration
}

func New(db *sql.DB, events outbox.Store) *Store {
	return &Store{db: db, events: events}
}

// NewTx binds a store to tx. Outbox appends join the same transaction.
func NewTx(tx *sql.Tx, events outbox.Store) *Store {
	return &Store{tx: tx, events: events}
}

func (s *Store) q(ctx context.Context) txcontext.Querier {
	if s.tx != nil {
		return s.tx
	}
	return txcontext.Pick(ctx, s.db)
}

func (s *Store) AppendEvent(ctx context.Context, entry *outbox.Entry) error {
	if s.events == nil {
		return nil
	}
	if s.tx != nil {
		ctx = txcontext.WithTx(ctx, s.tx)
	}
	if err := s.events.Append(ctx, entry); err != nil {
		return classify(err, "append ledger event")
	}
	return nil
}

// classify wraps err with the sentinel matching its cause.
func classify(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, errors.Join(sentinel.ErrConflict, err))
	case isUnavailable(err):
		return fmt.Errorf("%s: %w", op, errors.Join(sentinel.ErrUnavailable, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isUnavailable(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		pgconn.Timeout(err) ||
		pgconn.SafeToRetry(err)
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullUUID(value id.IdentityID) uuid.NullUUID {
	if value.IsNil() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(value), Valid: true}
}

type scanner interface {
	Scan(dest ...any) error
}

var _ ledger.Store = (*Store)(nil)
