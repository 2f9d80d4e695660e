package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/contractor-followups/internal/errors"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so writes that must share a
// transaction take it as a parameter.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Tx)(nil)
)

type TransactorInterface interface {
	WithTx(ctx context.Context, fn func(q DBTX) error) error
}

type Transactor struct {
	DB *sql.DB
}

var _ TransactorInterface = (*Transactor)(nil)

// WithTx runs fn in a transaction, committing when fn returns nil and rolling back otherwise.
func (t *Transactor) WithTx(ctx context.Context, fn func(q DBTX) error) (err error) {
	tx, err := t.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// expectOne maps a zero-row UPDATE or DELETE to a not-found error for kind.
func expectOne(res sql.Result, kind string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewParentNotFound(kind, id.String())
	}
	return nil
}
