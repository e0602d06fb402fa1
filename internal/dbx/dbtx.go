// Package dbx provides the small database abstractions shared by the
// repositories: DBTX (implemented by both *sql.DB and *sql.Tx), a named
// transaction helper, the supported SQL dialects and driver-independent
// detection of unique-constraint violations.
package dbx

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/vksync/internal/metrics"
)

// DBTX is what repositories need from a connection or a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Transaction outcomes counted per name.
const (
	outcomeCommitted  = "committed"
	outcomeRolledBack = "rolled_back"
	outcomeFailed     = "begin_failed"
)

// WithTx runs fn in a transaction labelled name, for example
// "reconcile users". Begin and commit failures are wrapped with the name;
// errors returned by fn pass through unchanged. A panic in fn rolls back
// and is rethrown.
func WithTx(ctx context.Context, db *sql.DB, name string, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		metrics.Transactions.WithLabelValues(name, outcomeFailed).Inc()
		return fmt.Errorf("%s: begin: %w", name, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			metrics.Transactions.WithLabelValues(name, outcomeRolledBack).Inc()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			metrics.Transactions.WithLabelValues(name, outcomeRolledBack).Inc()
			return
		}
		if err = tx.Commit(); err != nil {
			metrics.Transactions.WithLabelValues(name, outcomeRolledBack).Inc()
			err = fmt.Errorf("%s: commit: %w", name, err)
			return
		}
		metrics.Transactions.WithLabelValues(name, outcomeCommitted).Inc()
	}()

	return fn(ctx, tx)
}
