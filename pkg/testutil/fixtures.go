package testutil

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Well-known IDs for unit tests that do not touch a database
const (
	OrgID          = "11111111-1111-1111-1111-111111111111"
	OtherOrgID     = "22222222-2222-2222-2222-222222222222"
	LocationID     = "33333333-3333-3333-3333-333333333333"
	SupplierItemID = "44444444-4444-4444-4444-444444444444"
	PreparationID  = "55555555-5555-5555-5555-555555555555"
	UserID         = "66666666-6666-6666-6666-666666666666"
)

// TestOrg is an organization seeded into the integration database
type TestOrg struct {
	ID             string
	Name           string
	LocationID     string
	SupplierID     string
	SupplierItemID string
	PreparationID  string
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

func (f *FixtureFactory) next() int {
	f.sequence++
	return f.sequence
}

// SeedOrg inserts an organization with a kitchen location, a supplier item
// bought in kg and a preparation with a three day shelf life.
func (f *FixtureFactory) SeedOrg(ctx context.Context, db *sqlx.DB, name string) (*TestOrg, error) {
	n := f.next()
	org := &TestOrg{
		ID:             uuid.NewString(),
		Name:           fmt.Sprintf("%s %d", name, n),
		LocationID:     uuid.NewString(),
		SupplierID:     uuid.NewString(),
		SupplierItemID: uuid.NewString(),
		PreparationID:  uuid.NewString(),
	}

	stmts := []struct {
		query string
		args  []interface{}
	}{
		{"INSERT INTO organizations (id, name) VALUES ($1, $2)", []interface{}{org.ID, org.Name}},
		{"INSERT INTO locations (id, org_id, name) VALUES ($1, $2, $3)", []interface{}{org.LocationID, org.ID, "Cocina central"}},
		{"INSERT INTO suppliers (id, org_id, name) VALUES ($1, $2, $3)", []interface{}{org.SupplierID, org.ID, "DISTRIBUCIONES GARCIA SL"}},
		{
			"INSERT INTO supplier_items (id, org_id, supplier_id, name, purchase_unit, product_type) VALUES ($1, $2, $3, $4, $5, $6)",
			[]interface{}{org.SupplierItemID, org.ID, org.SupplierID, "Tomate pera", "kg", "fresh"},
		},
		{
			"INSERT INTO preparations (id, org_id, name, unit, shelf_life_days) VALUES ($1, $2, $3, $4, $5)",
			[]interface{}{org.PreparationID, org.ID, "Salsa de tomate", "kg", 3},
		},
	}

	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s.query, s.args...); err != nil {
			return nil, fmt.Errorf("seed %q: %w", s.query, err)
		}
	}

	return org, nil
}

// SeedSupplierItem adds another catalog item to an organization
func (f *FixtureFactory) SeedSupplierItem(ctx context.Context, db *sqlx.DB, orgID, name string, purchaseUnit *string) (string, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx,
		"INSERT INTO supplier_items (id, org_id, name, purchase_unit) VALUES ($1, $2, $3, $4)",
		id, orgID, name, purchaseUnit)
	return id, err
}

// SampleDeliveryNote is OCR text of a typical Spanish delivery note
const SampleDeliveryNote = `DISTRIBUCIONES GARCIA SL
C/ Mayor 12, Madrid
Albarán nº: A-2024-118
Fecha: 12/03/2026
Tomate pera 12,5 kg lote L2403
Leche entera 24 ud cad 20/03/2026
Harina de trigo 3 cajas
Total bultos`
