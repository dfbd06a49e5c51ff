// Package database opens the Postgres pool behind the ledger store.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"covenant/internal/platform/config"
)

const connectTimeout = 5 * time.Second

var errNoLedgerDB = errors.New("ledger database not configured")

// Pool owns the ledger's *sql.DB.
type Pool struct {
	db *sql.DB
}

// New opens the ledger database with cfg's pool limits and fails unless the
// first ping succeeds within connectTimeout.
func New(cfg config.Database) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errNoLedgerDB
	}
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ledger database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger database unreachable: %w", err)
	}
	return &Pool{db: db}, nil
}

func (p *Pool) DB() *sql.DB { return p.db }

// Health pings the ledger and reports a pool with every connection busy and
// callers queueing, since ledger transactions would stall behind it.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return errNoLedgerDB
	}
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ledger database ping: %w", err)
	}
	st := p.db.Stats()
	if st.MaxOpenConnections > 0 && st.InUse >= st.MaxOpenConnections && st.WaitCount > 0 {
		return fmt.Errorf("ledger pool saturated: %d/%d connections in use", st.InUse, st.MaxOpenConnections)
	}
	return nil
}

func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
