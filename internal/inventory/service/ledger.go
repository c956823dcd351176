package service

import (
	"context"
	"time"

	"github.com/chefos/chefos-backend/internal/inventory/repository"
	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Unit errors raised while receiving stock. Units are never converted.
const (
	msgItemUnitMismatch  = "Unidad incompatible con el ítem proveedor"
	msgLevelUnitMismatch = "Unidad incompatible con el stock agregado"
	msgQtyNotPositive    = "La cantidad debe ser mayor a 0"
)

// receipt is a quantity of a catalog item entering stock at a location
type receipt struct {
	orgID          string
	locationID     string
	supplierItemID string
	qty            decimal.Decimal
	unit           string
	expiresAt      *time.Time
	lotCode        *string
	source         repository.BatchSource
	shipmentLineID *string
	note           string
	createdBy      *string
}

// received is what a committed receipt produced
type received struct {
	batch     *repository.StockBatch
	movement  *repository.StockMovement
	onHandQty decimal.Decimal
}

// receiveStock records a batch, its movement and the level increment. It must
// run inside a unit of work: a unit mismatch at any step fails the receipt and
// the caller's transaction discards the earlier writes.
func receiveStock(ctx context.Context, ledger StockLedger, r receipt) (*received, error) {
	purchaseUnit, err := ledger.SupplierItemUnit(ctx, r.orgID, r.supplierItemID)
	if err != nil {
		return nil, err
	}
	if purchaseUnit != nil && *purchaseUnit != "" && *purchaseUnit != r.unit {
		return nil, errors.UnitMismatch(msgItemUnitMismatch).WithDetails(map[string]string{
			"supplier_item_id": r.supplierItemID,
			"expected_unit":    *purchaseUnit,
			"unit":             r.unit,
		})
	}

	itemID := r.supplierItemID
	batch := &repository.StockBatch{
		OrgID:          r.orgID,
		LocationID:     r.locationID,
		SupplierItemID: &itemID,
		ShipmentLineID: r.shipmentLineID,
		Qty:            r.qty,
		Unit:           r.unit,
		ExpiresAt:      r.expiresAt,
		LotCode:        r.lotCode,
		Source:         r.source,
		CreatedBy:      r.createdBy,
	}
	if err := ledger.InsertBatch(ctx, batch); err != nil {
		return nil, err
	}

	note := r.note
	movement := &repository.StockMovement{
		OrgID:          r.orgID,
		BatchID:        batch.ID,
		LocationID:     r.locationID,
		SupplierItemID: &itemID,
		DeltaQty:       r.qty,
		Reason:         string(r.source),
		Note:           &note,
		CreatedBy:      r.createdBy,
	}
	if err := ledger.InsertMovement(ctx, movement); err != nil {
		return nil, err
	}

	onHand, ok, err := ledger.IncrementLevel(ctx, r.orgID, r.locationID, r.supplierItemID, r.qty, r.unit)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.UnitMismatch(msgLevelUnitMismatch).WithDetails(map[string]string{
			"supplier_item_id": r.supplierItemID,
			"location_id":      r.locationID,
			"unit":             r.unit,
		})
	}

	return &received{batch: batch, movement: movement, onHandQty: onHand}, nil
}

// parseISODate reads YYYY-MM-DD as midnight UTC
func parseISODate(field string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *value)
	if err != nil {
		return nil, errors.Validation(map[string]string{field: "must be a date (YYYY-MM-DD)"})
	}
	return &t, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
