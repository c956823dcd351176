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

// LineStatus is the review state of a delivery note line
type LineStatus string

const (
	LineReady   LineStatus = "ready"
	LineBlocked LineStatus = "blocked"
	LineSkipped LineStatus = "skipped"
)

// Valid reports whether s is a known line status
func (s LineStatus) Valid() bool {
	return s == LineReady || s == LineBlocked || s == LineSkipped
}

// Shipment sources
const (
	ShipmentSourceOCR    = "ocr"
	ShipmentSourceManual = "manual"
)

// InboundShipment is the header of a received delivery note
type InboundShipment struct {
	ID                 string                `db:"id" json:"id"`
	OrgID              string                `db:"org_id" json:"org_id"`
	LocationID         string                `db:"location_id" json:"location_id"`
	SupplierID         *string               `db:"supplier_id" json:"supplier_id,omitempty"`
	SupplierName       *string               `db:"supplier_name" json:"supplier_name,omitempty"`
	DeliveryNoteNumber *string               `db:"delivery_note_number" json:"delivery_note_number,omitempty"`
	DeliveredAt        *time.Time            `db:"delivered_at" json:"delivered_at,omitempty"`
	Source             string                `db:"source" json:"source"`
	RawOCRText         *string               `db:"raw_ocr_text" json:"raw_ocr_text,omitempty"`
	DedupeKey          *string               `db:"dedupe_key" json:"dedupe_key,omitempty"`
	CreatedBy          *string               `db:"created_by" json:"created_by,omitempty"`
	CreatedAt          time.Time             `db:"created_at" json:"created_at"`
	Lines              []InboundShipmentLine `db:"-" json:"lines,omitempty"`
}

// InboundShipmentLine is one line of a delivery note, kept whether or not it moved stock
type InboundShipmentLine struct {
	ID             string           `db:"id" json:"id"`
	OrgID          string           `db:"org_id" json:"org_id"`
	ShipmentID     string           `db:"shipment_id" json:"shipment_id"`
	LineNo         int              `db:"line_no" json:"line_no"`
	Description    string           `db:"description" json:"description"`
	Qty            *decimal.Decimal `db:"qty" json:"qty,omitempty"`
	Unit           *string          `db:"unit" json:"unit,omitempty"`
	SupplierItemID *string          `db:"supplier_item_id" json:"supplier_item_id,omitempty"`
	ExpiresAt      *time.Time       `db:"expires_at" json:"expires_at,omitempty"`
	LotCode        *string          `db:"lot_code" json:"lot_code,omitempty"`
	Status         LineStatus       `db:"status" json:"status"`
	IsImport       bool             `db:"is_import" json:"is_import"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

// MissingExpiryLine is a received line that still needs an expiry date
type MissingExpiryLine struct {
	LineID       string           `db:"line_id" json:"line_id"`
	ShipmentID   string           `db:"shipment_id" json:"shipment_id"`
	LocationID   string           `db:"location_id" json:"location_id"`
	LocationName *string          `db:"location_name" json:"location_name,omitempty"`
	SupplierName *string          `db:"supplier_name" json:"supplier_name,omitempty"`
	Description  string           `db:"description" json:"description"`
	Qty          *decimal.Decimal `db:"qty" json:"qty,omitempty"`
	Unit         *string          `db:"unit" json:"unit,omitempty"`
	DeliveredAt  *time.Time       `db:"delivered_at" json:"delivered_at,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// ShipmentRepository handles delivery note persistence
type ShipmentRepository struct {
	db *database.DB
}

// NewShipmentRepository creates a new shipment repository
func NewShipmentRepository(db *database.DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

// InsertShipment stores the header. The dedupe key index rejects a repeated upload.
func (r *ShipmentRepository) InsertShipment(ctx context.Context, s *InboundShipment) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}

	query := `
		INSERT INTO inbound_shipments (
			id, org_id, location_id, supplier_id, supplier_name, delivery_note_number,
			delivered_at, source, raw_ocr_text, dedupe_key, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		s.ID, s.OrgID, s.LocationID, s.SupplierID, s.SupplierName, s.DeliveryNoteNumber,
		s.DeliveredAt, s.Source, s.RawOCRText, s.DedupeKey, s.CreatedBy,
	).Scan(&s.CreatedAt)
	return wrap(err, "insert_shipment", map[string]string{"org_id": s.OrgID, "shipment_id": s.ID})
}

// InsertLines bulk inserts every line of a shipment in one statement
func (r *ShipmentRepository) InsertLines(ctx context.Context, lines []InboundShipmentLine) error {
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		if lines[i].ID == "" {
			lines[i].ID = uuid.New().String()
		}
	}

	query := `
		INSERT INTO inbound_shipment_lines (
			id, org_id, shipment_id, line_no, description, qty, unit,
			supplier_item_id, expires_at, lot_code, status, is_import
		) VALUES (
			:id, :org_id, :shipment_id, :line_no, :description, :qty, :unit,
			:supplier_item_id, :expires_at, :lot_code, :status, :is_import
		)
	`

	_, err := sqlx.NamedExecContext(ctx, r.db.Conn(ctx), query, lines)
	return wrap(err, "insert_shipment_lines", map[string]string{
		"org_id":      lines[0].OrgID,
		"shipment_id": lines[0].ShipmentID,
	})
}

// GetByID returns a shipment with its lines in line order
func (r *ShipmentRepository) GetByID(ctx context.Context, orgID, id string) (*InboundShipment, error) {
	ids := map[string]string{"org_id": orgID, "shipment_id": id}
	conn := r.db.Conn(ctx)

	var s InboundShipment
	query := `
		SELECT id, org_id, location_id, supplier_id, supplier_name, delivery_note_number,
		       delivered_at, source, raw_ocr_text, dedupe_key, created_by, created_at
		FROM inbound_shipments
		WHERE org_id = $1 AND id = $2
	`
	if err := sqlx.GetContext(ctx, conn, &s, query, orgID, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("shipment")
		}
		return nil, wrap(err, "get_shipment", ids)
	}

	linesQuery := `
		SELECT id, org_id, shipment_id, line_no, description, qty, unit,
		       supplier_item_id, expires_at, lot_code, status, is_import, created_at
		FROM inbound_shipment_lines
		WHERE org_id = $1 AND shipment_id = $2
		ORDER BY line_no
	`
	if err := sqlx.SelectContext(ctx, conn, &s.Lines, linesQuery, orgID, id); err != nil {
		return nil, wrap(err, "list_shipment_lines", ids)
	}
	return &s, nil
}

// FindByDedupeKey returns the id of a shipment already stored under key, or ""
func (r *ShipmentRepository) FindByDedupeKey(ctx context.Context, orgID, key string) (string, error) {
	var id string
	query := `SELECT id FROM inbound_shipments WHERE org_id = $1 AND dedupe_key = $2 LIMIT 1`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &id, query, orgID, key); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", wrap(err, "find_shipment_by_dedupe_key", map[string]string{"org_id": orgID})
	}
	return id, nil
}

// ListMissingExpiry lists ready catalog lines received without an expiry date,
// newest first. An empty locationID lists every location.
func (r *ShipmentRepository) ListMissingExpiry(ctx context.Context, orgID, locationID string) ([]MissingExpiryLine, error) {
	query := `
		SELECT l.id AS line_id, l.shipment_id, s.location_id, loc.name AS location_name,
		       s.supplier_name, l.description, l.qty, l.unit, s.delivered_at, l.created_at
		FROM inbound_shipment_lines l
		JOIN inbound_shipments s ON s.id = l.shipment_id
		LEFT JOIN locations loc ON loc.id = s.location_id
		WHERE l.org_id = $1
		  AND l.status = 'ready'
		  AND l.supplier_item_id IS NOT NULL
		  AND l.expires_at IS NULL
		  AND ($2 = '' OR s.location_id::text = $2)
		ORDER BY l.created_at DESC
	`

	lines := []MissingExpiryLine{}
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &lines, query, orgID, locationID); err != nil {
		return nil, wrap(err, "list_missing_expiry", map[string]string{"org_id": orgID})
	}
	return lines, nil
}
