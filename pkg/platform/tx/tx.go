// Package tx carries a SQL transaction through context so that secondary
// writes can join a primary one. The audit store uses this to commit a
// status change and its audit event atomically.
package tx

import (
	"context"
	"database/sql"
)

type txContextKey struct{}

// WithTx returns a context carrying tx. A nil tx leaves the context
// unchanged.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txContextKey{}, tx)
}

// From returns the transaction stored in ctx, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*sql.Tx)
	return tx, ok
}
