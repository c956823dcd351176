// Package repository persists delivery notes, the stock ledger and expiry
// alerts. Every query is scoped by org_id and runs on database.Conn, so calls
// made inside database.WithOrg share its transaction.
package repository

import (
	"github.com/chefos/chefos-backend/pkg/database"
	"github.com/chefos/chefos-backend/pkg/errors"
)

const module = "inventory"

// wrap attaches the failing operation and ids to a storage error
func wrap(err error, operation string, ids map[string]string) error {
	if err == nil {
		return nil
	}
	return errors.Storage(database.MapError(err), errors.Op{
		Module:    module,
		Operation: operation,
		IDs:       ids,
	})
}
