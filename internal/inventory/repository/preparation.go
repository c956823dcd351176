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

// Preparation is a kitchen recipe whose output is tracked as stock.
// Unit is the yield unit runs default to.
type Preparation struct {
	ID                 string           `db:"id" json:"id"`
	OrgID              string           `db:"org_id" json:"org_id"`
	Name               string           `db:"name" json:"name"`
	Unit               string           `db:"unit" json:"unit"`
	DefaultYieldQty    *decimal.Decimal `db:"default_yield_qty" json:"default_yield_qty,omitempty"`
	ShelfLifeDays      *int             `db:"shelf_life_days" json:"shelf_life_days,omitempty"`
	Storage            string           `db:"storage" json:"storage"`
	DefaultProcessType string           `db:"default_process_type" json:"default_process_type"`
	Allergens          *string          `db:"allergens" json:"allergens,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
}

const preparationColumns = `id, org_id, name, unit, default_yield_qty, shelf_life_days,
	storage, default_process_type, allergens, created_at`

// PreparationRun records one production of a preparation and the batch it made
type PreparationRun struct {
	ID            string          `db:"id" json:"id"`
	OrgID         string          `db:"org_id" json:"org_id"`
	PreparationID string          `db:"preparation_id" json:"preparation_id"`
	LocationID    string          `db:"location_id" json:"location_id"`
	BatchID       string          `db:"batch_id" json:"batch_id"`
	Qty           decimal.Decimal `db:"qty" json:"qty"`
	Unit          string          `db:"unit" json:"unit"`
	ProducedAt    time.Time       `db:"produced_at" json:"produced_at"`
	ExpiresAt     *time.Time      `db:"expires_at" json:"expires_at,omitempty"`
	LabelsCount   int             `db:"labels_count" json:"labels_count"`
	CreatedBy     *string         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// PreparationRepository handles preparations and their runs
type PreparationRepository struct {
	db *database.DB
}

// NewPreparationRepository creates a new preparation repository
func NewPreparationRepository(db *database.DB) *PreparationRepository {
	return &PreparationRepository{db: db}
}

// GetPreparation gets a preparation by ID
func (r *PreparationRepository) GetPreparation(ctx context.Context, orgID, id string) (*Preparation, error) {
	var p Preparation
	query := `SELECT ` + preparationColumns + ` FROM preparations WHERE org_id = $1 AND id = $2`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &p, query, orgID, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("preparation")
		}
		return nil, wrap(err, "get_preparation", map[string]string{"org_id": orgID, "preparation_id": id})
	}
	return &p, nil
}

// ListPreparations lists an organization's preparations by name
func (r *PreparationRepository) ListPreparations(ctx context.Context, orgID string) ([]Preparation, error) {
	query := `SELECT ` + preparationColumns + ` FROM preparations WHERE org_id = $1 ORDER BY name`

	preps := []Preparation{}
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &preps, query, orgID); err != nil {
		return nil, wrap(err, "list_preparations", map[string]string{"org_id": orgID})
	}
	return preps, nil
}

// CreatePreparation inserts a preparation. Storage and process type must be set.
func (r *PreparationRepository) CreatePreparation(ctx context.Context, p *Preparation) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	query := `
		INSERT INTO preparations (
			id, org_id, name, unit, default_yield_qty, shelf_life_days,
			storage, default_process_type, allergens
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		p.ID, p.OrgID, p.Name, p.Unit, p.DefaultYieldQty, p.ShelfLifeDays,
		p.Storage, p.DefaultProcessType, p.Allergens,
	).Scan(&p.CreatedAt)
	return wrap(err, "create_preparation", map[string]string{"org_id": p.OrgID, "name": p.Name})
}

// InsertRun records a preparation run
func (r *PreparationRepository) InsertRun(ctx context.Context, run *PreparationRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	query := `
		INSERT INTO preparation_runs (
			id, org_id, preparation_id, location_id, batch_id, qty, unit,
			produced_at, expires_at, labels_count, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		run.ID, run.OrgID, run.PreparationID, run.LocationID, run.BatchID, run.Qty, run.Unit,
		run.ProducedAt, run.ExpiresAt, run.LabelsCount, run.CreatedBy,
	).Scan(&run.CreatedAt)
	return wrap(err, "insert_preparation_run", map[string]string{
		"org_id":         run.OrgID,
		"preparation_id": run.PreparationID,
	})
}
