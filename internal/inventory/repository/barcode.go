package repository

import (
	"context"
	"time"

	"github.com/chefos/chefos-backend/pkg/database"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// BarcodeMapping links a scanned code to a catalog item
type BarcodeMapping struct {
	ID             string    `db:"id" json:"id"`
	OrgID          string    `db:"org_id" json:"org_id"`
	Barcode        string    `db:"barcode" json:"barcode"`
	SupplierItemID string    `db:"supplier_item_id" json:"supplier_item_id"`
	Symbology      *string   `db:"symbology" json:"symbology,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// BarcodeRepository handles barcode mapping persistence
type BarcodeRepository struct {
	db *database.DB
}

// NewBarcodeRepository creates a new barcode repository
func NewBarcodeRepository(db *database.DB) *BarcodeRepository {
	return &BarcodeRepository{db: db}
}

// ListMappings returns every mapping of the organization
func (r *BarcodeRepository) ListMappings(ctx context.Context, orgID string) ([]BarcodeMapping, error) {
	query := `
		SELECT id, org_id, barcode, supplier_item_id, symbology, created_at
		FROM barcode_mappings
		WHERE org_id = $1
		ORDER BY barcode
	`

	mappings := []BarcodeMapping{}
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &mappings, query, orgID); err != nil {
		return nil, wrap(err, "list_barcode_mappings", map[string]string{"org_id": orgID})
	}
	return mappings, nil
}

// Upsert assigns a barcode, moving it to the new item if it was already mapped
func (r *BarcodeRepository) Upsert(ctx context.Context, m *BarcodeMapping) error {
	query := `
		INSERT INTO barcode_mappings (id, org_id, barcode, supplier_item_id, symbology)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT barcode_mappings_org_barcode_key DO UPDATE
		SET supplier_item_id = EXCLUDED.supplier_item_id,
		    symbology = EXCLUDED.symbology
		RETURNING id, created_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		uuid.New().String(), m.OrgID, m.Barcode, m.SupplierItemID, m.Symbology,
	).Scan(&m.ID, &m.CreatedAt)
	return wrap(err, "upsert_barcode", map[string]string{
		"org_id":           m.OrgID,
		"supplier_item_id": m.SupplierItemID,
	})
}
