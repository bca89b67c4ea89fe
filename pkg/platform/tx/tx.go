// Package tx carries an open SQL transaction through a context so that store
// methods called inside one commit unit share it instead of the bare pool.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

// WithTx returns a context carrying txn. A nil transaction leaves the context
// untouched.
func WithTx(ctx context.Context, txn *sql.Tx) context.Context {
	if txn == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, txn)
}

// From reports the transaction carried by ctx, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	txn, ok := ctx.Value(ctxKey{}).(*sql.Tx)
	return txn, ok
}
