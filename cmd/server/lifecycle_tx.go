package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "passage/pkg/domain-errors"
	txcontext "passage/pkg/platform/tx"
)

const defaultLifecycleTxTimeout = 5 * time.Second

// lifecycleTx runs a lifecycle mutation and its audit append inside one
// database transaction. The transaction rides the context, so the candidate
// store and the audit store join it without knowing about each other.
type lifecycleTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newLifecycleTx(db *sql.DB) *lifecycleTx {
	return &lifecycleTx{db: db}
}

func (t *lifecycleTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultLifecycleTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}
