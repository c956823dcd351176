package database

import (
	"context"
	"fmt"

	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// WithOrg runs fn inside a transaction scoped to one organization.
//
// The transaction sets app.current_org for its lifetime and is stored in the
// context handed to fn, so repositories reached through Conn(ctx) share it.
// Everything fn writes commits or rolls back together.
//
// Calling WithOrg with a context that already carries a transaction reuses it,
// which lets a service compose repository calls into a larger unit of work.
//
//	err := db.WithOrg(ctx, orgID, func(ctx context.Context) error {
//	    if err := batches.Insert(ctx, b); err != nil {
//	        return err
//	    }
//	    return movements.Insert(ctx, m)
//	})
func (db *DB) WithOrg(ctx context.Context, orgID string, fn func(context.Context) error) error {
	if _, err := uuid.Parse(orgID); err != nil {
		return errors.BadRequest("invalid organization id")
	}

	if tx := txFromContext(ctx); tx != nil {
		return fn(ctx)
	}

	return db.inTx(ctx, func(tx *sqlx.Tx) error {
		// set_config with is_local=true behaves like SET LOCAL but accepts a bind parameter
		if _, err := tx.ExecContext(ctx, "SELECT set_config('app.current_org', $1, true)", orgID); err != nil {
			return fmt.Errorf("failed to set app.current_org: %w", err)
		}

		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Conn returns the transaction carried by ctx, or the pool when there is none
func (db *DB) Conn(ctx context.Context) sqlx.ExtContext {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db.DB
}

// InTx reports whether ctx carries a transaction opened by WithOrg
func InTx(ctx context.Context) bool {
	return txFromContext(ctx) != nil
}

func txFromContext(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}
