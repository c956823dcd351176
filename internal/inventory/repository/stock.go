package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/chefos/chefos-backend/pkg/database"
	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// BatchSource records why a batch entered stock. Movements use it as their reason.
type BatchSource string

const (
	SourcePurchase   BatchSource = "purchase"
	SourcePrep       BatchSource = "prep"
	SourceAdjustment BatchSource = "adjustment"
)

// StockBatch is a received quantity with its own expiry and lot
type StockBatch struct {
	ID             string          `db:"id" json:"id"`
	OrgID          string          `db:"org_id" json:"org_id"`
	LocationID     string          `db:"location_id" json:"location_id"`
	SupplierItemID *string         `db:"supplier_item_id" json:"supplier_item_id,omitempty"`
	PreparationID  *string         `db:"preparation_id" json:"preparation_id,omitempty"`
	ShipmentLineID *string         `db:"shipment_line_id" json:"shipment_line_id,omitempty"`
	Qty            decimal.Decimal `db:"qty" json:"qty"`
	Unit           string          `db:"unit" json:"unit"`
	ExpiresAt      *time.Time      `db:"expires_at" json:"expires_at,omitempty"`
	LotCode        *string         `db:"lot_code" json:"lot_code,omitempty"`
	Source         BatchSource     `db:"source" json:"source"`
	CreatedBy      *string         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// StockMovement is an append-only ledger entry against a batch
type StockMovement struct {
	ID             string          `db:"id" json:"id"`
	OrgID          string          `db:"org_id" json:"org_id"`
	BatchID        string          `db:"batch_id" json:"batch_id"`
	LocationID     string          `db:"location_id" json:"location_id"`
	SupplierItemID *string         `db:"supplier_item_id" json:"supplier_item_id,omitempty"`
	DeltaQty       decimal.Decimal `db:"delta_qty" json:"delta_qty"`
	Reason         string          `db:"reason" json:"reason"`
	Note           *string         `db:"note" json:"note,omitempty"`
	CreatedBy      *string         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// StockLevel is the on-hand aggregate for one supplier item at one location
type StockLevel struct {
	OrgID          string          `db:"org_id" json:"org_id"`
	LocationID     string          `db:"location_id" json:"location_id"`
	SupplierItemID string          `db:"supplier_item_id" json:"supplier_item_id"`
	ItemName       *string         `db:"item_name" json:"item_name,omitempty"`
	OnHandQty      decimal.Decimal `db:"on_hand_qty" json:"on_hand_qty"`
	Unit           string          `db:"unit" json:"unit"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// BatchView is a batch with the name of what it holds
type BatchView struct {
	StockBatch
	ItemName string `db:"item_name" json:"item_name"`
}

// BatchFilter narrows a location's batch listing. Expired wins over ExpiringSoon.
type BatchFilter struct {
	LocationID   string
	Search       string
	Expired      bool
	ExpiringSoon bool
}

// StockRepository writes the batch, movement and level ledger
type StockRepository struct {
	db *database.DB
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *database.DB) *StockRepository {
	return &StockRepository{db: db}
}

// SupplierItemUnit returns the catalog item's purchase unit, nil when it declares none
func (r *StockRepository) SupplierItemUnit(ctx context.Context, orgID, supplierItemID string) (*string, error) {
	var unit *string
	query := `SELECT purchase_unit FROM supplier_items WHERE org_id = $1 AND id = $2`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &unit, query, orgID, supplierItemID); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("supplier item")
		}
		return nil, wrap(err, "get_supplier_item_unit", map[string]string{
			"org_id":           orgID,
			"supplier_item_id": supplierItemID,
		})
	}
	return unit, nil
}

// InsertBatch creates a new batch
func (r *StockRepository) InsertBatch(ctx context.Context, b *StockBatch) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_batches (
			id, org_id, location_id, supplier_item_id, preparation_id, shipment_line_id,
			qty, unit, expires_at, lot_code, source, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		b.ID, b.OrgID, b.LocationID, b.SupplierItemID, b.PreparationID, b.ShipmentLineID,
		b.Qty, b.Unit, b.ExpiresAt, b.LotCode, b.Source, b.CreatedBy,
	).Scan(&b.CreatedAt)
	return wrap(err, "insert_batch", map[string]string{"org_id": b.OrgID, "batch_id": b.ID})
}

// InsertMovement appends a movement to the ledger
func (r *StockRepository) InsertMovement(ctx context.Context, m *StockMovement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_movements (
			id, org_id, batch_id, location_id, supplier_item_id, delta_qty, reason, note, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		m.ID, m.OrgID, m.BatchID, m.LocationID, m.SupplierItemID, m.DeltaQty, m.Reason, m.Note, m.CreatedBy,
	).Scan(&m.CreatedAt)
	return wrap(err, "insert_movement", map[string]string{"org_id": m.OrgID, "batch_id": m.BatchID})
}

// IncrementLevel adds delta to the on-hand level in a single statement and
// returns the new quantity. A missing row starts from zero. ok is false when
// the stored level uses a different unit; nothing is written then. A level
// row owned by another organization is a conflict, not a unit mismatch.
func (r *StockRepository) IncrementLevel(ctx context.Context, orgID, locationID, supplierItemID string, delta decimal.Decimal, unit string) (onHand decimal.Decimal, ok bool, err error) {
	query := `
		INSERT INTO stock_levels (org_id, location_id, supplier_item_id, on_hand_qty, unit, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (location_id, supplier_item_id) DO UPDATE
		SET on_hand_qty = COALESCE(stock_levels.on_hand_qty, 0) + EXCLUDED.on_hand_qty,
		    updated_at = EXCLUDED.updated_at
		WHERE stock_levels.unit = EXCLUDED.unit AND stock_levels.org_id = EXCLUDED.org_id
		RETURNING on_hand_qty
	`

	err = r.db.Conn(ctx).QueryRowxContext(ctx, query, orgID, locationID, supplierItemID, delta, unit).Scan(&onHand)
	if stderrors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, r.levelOwnedBy(ctx, orgID, locationID, supplierItemID)
	}
	if err != nil {
		return decimal.Zero, false, wrap(err, "increment_stock_level", map[string]string{
			"org_id":           orgID,
			"location_id":      locationID,
			"supplier_item_id": supplierItemID,
		})
	}
	return onHand, true, nil
}

// levelOwnedBy checks the level row that refused an increment belongs to orgID
func (r *StockRepository) levelOwnedBy(ctx context.Context, orgID, locationID, supplierItemID string) error {
	var owner string
	query := `SELECT org_id FROM stock_levels WHERE location_id = $1 AND supplier_item_id = $2`
	err := sqlx.GetContext(ctx, r.db.Conn(ctx), &owner, query, locationID, supplierItemID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return wrap(err, "get_stock_level_owner", map[string]string{
			"org_id":      orgID,
			"location_id": locationID,
		})
	}
	if owner != orgID {
		return errors.Conflict("La ubicación pertenece a otra organización").WithDetails(map[string]string{
			"location_id":      locationID,
			"supplier_item_id": supplierItemID,
		})
	}
	return nil
}

// ListLevels lists on-hand levels, optionally for one location
func (r *StockRepository) ListLevels(ctx context.Context, orgID, locationID string) ([]StockLevel, error) {
	query := `
		SELECT sl.org_id, sl.location_id, sl.supplier_item_id, si.name AS item_name,
		       sl.on_hand_qty, sl.unit, sl.updated_at
		FROM stock_levels sl
		LEFT JOIN supplier_items si ON si.id = sl.supplier_item_id
		WHERE sl.org_id = $1 AND ($2 = '' OR sl.location_id::text = $2)
		ORDER BY si.name
	`

	levels := []StockLevel{}
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &levels, query, orgID, locationID); err != nil {
		return nil, wrap(err, "list_stock_levels", map[string]string{"org_id": orgID})
	}
	return levels, nil
}

// ListBatches lists a location's batches, soonest expiry first. Batches
// without an expiry date sort last. ExpiringSoon keeps batches expiring
// within seven days, already expired ones included.
func (r *StockRepository) ListBatches(ctx context.Context, orgID string, f BatchFilter) ([]BatchView, error) {
	query := `
		SELECT sb.id, sb.org_id, sb.location_id, sb.supplier_item_id, sb.preparation_id, sb.shipment_line_id,
		       sb.qty, sb.unit, sb.expires_at, sb.lot_code, sb.source, sb.created_by, sb.created_at,
		       COALESCE(si.name, p.name, 'Item') AS item_name
		FROM stock_batches sb
		LEFT JOIN supplier_items si ON si.id = sb.supplier_item_id
		LEFT JOIN preparations p ON p.id = sb.preparation_id
		WHERE sb.org_id = $1 AND sb.location_id = $2
		  AND ($3 = '' OR COALESCE(si.name, p.name, '') ILIKE '%' || $3 || '%')
		  AND (NOT $4 OR sb.expires_at < NOW())
		  AND ($4 OR NOT $5 OR sb.expires_at <= NOW() + INTERVAL '7 days')
		ORDER BY sb.expires_at ASC NULLS LAST, sb.created_at DESC
	`

	batches := []BatchView{}
	err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &batches, query,
		orgID, f.LocationID, f.Search, f.Expired, f.ExpiringSoon)
	if err != nil {
		return nil, wrap(err, "list_stock_batches", map[string]string{
			"org_id":      orgID,
			"location_id": f.LocationID,
		})
	}
	return batches, nil
}
