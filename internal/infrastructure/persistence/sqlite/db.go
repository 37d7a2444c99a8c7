// Package sqlite carries database transactions through context for the
// repository implementations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/AshrafHassan95/invoice-automation-agent/internal/application/port"
)

type contextKey string

const txKey contextKey = "tx"

const defaultBusyRetries = 3

// DB wraps sql.DB and implements port.TransactionManager
type DB struct {
	*sql.DB
	logger      *zap.Logger
	busyRetries int
}

// Option configures the database wrapper
type Option func(*DB)

// WithBusyRetries sets how often a transaction that failed with SQLITE_BUSY
// or SQLITE_LOCKED is run again
func WithBusyRetries(n int) Option {
	return func(db *DB) {
		if n >= 0 {
			db.busyRetries = n
		}
	}
}

// NewDB creates a new database wrapper
func NewDB(sqlDB *sql.DB, logger *zap.Logger, opts ...Option) *DB {
	db := &DB{
		DB:          sqlDB,
		logger:      logger,
		busyRetries: defaultBusyRetries,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// WithTransaction runs fn inside a transaction stored in ctx. A nested call
// joins the outer transaction. When the database is busy the whole of fn is
// retried in a fresh transaction, so fn must only touch the database.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if extractTx(ctx) != nil {
		return fn(ctx)
	}

	for attempt := 0; ; attempt++ {
		err := db.runTx(ctx, fn)
		if err == nil || attempt >= db.busyRetries || !IsBusy(err) || ctx.Err() != nil {
			return err
		}
		db.logger.Warn("Database busy, retrying transaction", zap.Int("attempt", attempt+1), zap.Error(err))
	}
}

func (db *DB) runTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			db.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Executor returns the transaction carried by ctx, or the pool
func (db *DB) Executor(ctx context.Context) Executor {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return db.DB
}

// IsBusy reports whether err comes from a locked database
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func extractTx(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// Executor covers both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var _ port.TransactionManager = (*DB)(nil)
