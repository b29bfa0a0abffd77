package utils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Pool sizes the database/sql pool. Idle connections are half of MaxConns.
type Pool struct {
	MaxConns int
}

const (
	defaultMaxConns = 10
	connMaxLifetime = 30 * time.Minute
	openPingTimeout = 5 * time.Second
)

// OpenPostgres opens the lead store through the pgx database/sql driver and
// pings it once. dsn carries the password; never log it.
func OpenPostgres(ctx context.Context, dsn string, pool Pool) (*sql.DB, error) {
	if pool.MaxConns <= 0 {
		pool.MaxConns = defaultMaxConns
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(pool.MaxConns)
	db.SetMaxIdleConns(max(pool.MaxConns/2, 1))
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := HealthCheck(ctx, db, openPingTimeout); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// HealthCheck pings db within timeout. /healthz and startup share it.
func HealthCheck(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	if db == nil {
		return errors.New("postgres: not configured")
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

// TxFunc is the unit of work executed inside a transaction.
type TxFunc func(ctx context.Context, tx *sql.Tx) error

// WithTx commits when fn returns nil and rolls back on error or panic.
// A failed commit is returned as the error.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

const sqlStateUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a Postgres unique_violation.
// A non-empty constraint restricts the match to that constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != sqlStateUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
