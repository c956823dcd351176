package database

import (
	stderrors "errors"
	"strings"

	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/lib/pq"
)

// DedupeConstraint is the unique index guarding repeated delivery note uploads
const DedupeConstraint = "inbound_shipments_org_dedupe_key"

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		appErr := errors.Conflict(formatConstraintMessage(pqErr))
		appErr.Err = err
		return appErr

	// Foreign key violation (23503)
	case "23503":
		return errors.Validation(map[string]string{
			fkField(pqErr): "referencia inexistente",
		})

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// MapError returns the mapped AppError for pq failures and err unchanged otherwise
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if appErr := MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "qty_positive"):
		return errors.Invalid("La cantidad debe ser mayor a 0")

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: ready, blocked, skipped",
		})

	case strings.Contains(constraint, "source_valid"):
		return errors.Validation(map[string]string{
			"source": "must be one of: purchase, prep, adjustment",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case constraint == DedupeConstraint:
		return "Este albarán ya fue registrado"
	case strings.Contains(constraint, "barcode"):
		return "Este código de barras ya está asignado"
	case strings.Contains(constraint, "preparations_org_name"):
		return "Ya existe una preparación con ese nombre"
	default:
		return "a record with these values already exists"
	}
}

// fkField guesses the offending column from names like stock_batches_location_id_fkey
func fkField(pqErr *pq.Error) string {
	if pqErr.Column != "" {
		return pqErr.Column
	}
	c := strings.TrimSuffix(pqErr.Constraint, "_fkey")
	if pqErr.Table != "" && strings.HasPrefix(c, pqErr.Table+"_") {
		return strings.TrimPrefix(c, pqErr.Table+"_")
	}
	if c == "" {
		return "reference"
	}
	return c
}
