package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/chefos/chefos-backend/internal/inventory/repository"
	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/chefos/chefos-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

const (
	prepMovementNote = "Producción"

	defaultPrepUnit        = "ud"
	defaultPrepStorage     = "fridge"
	defaultPrepProcessType = "cooked"
)

var (
	prepStorages     = []string{"ambient", "fridge", "freezer"}
	prepProcessTypes = []string{"cooked", "pasteurized", "vacuum", "frozen", "pasteurized_frozen"}
)

// PreparationInput creates a preparation. Empty unit, storage and process
// type fall back to ud, fridge and cooked.
type PreparationInput struct {
	OrgID              string           `json:"-"`
	Name               string           `json:"name" validate:"required,max=200"`
	Unit               string           `json:"unit" validate:"max=20"`
	DefaultYieldQty    *decimal.Decimal `json:"default_yield_qty"`
	ShelfLifeDays      *int             `json:"shelf_life_days" validate:"omitempty,min=0"`
	Storage            string           `json:"storage" validate:"omitempty,oneof=ambient fridge freezer"`
	DefaultProcessType string           `json:"default_process_type" validate:"omitempty,oneof=cooked pasteurized vacuum frozen pasteurized_frozen"`
	Allergens          *string          `json:"allergens"`
}

// ComputeExpiresAt adds the shelf life in whole UTC days to the production time
func ComputeExpiresAt(producedAt time.Time, shelfLifeDays int) time.Time {
	return producedAt.UTC().AddDate(0, 0, shelfLifeDays)
}

// PreparationRunInput records one production of a preparation
type PreparationRunInput struct {
	OrgID         string          `json:"-"`
	PreparationID string          `json:"-"`
	LocationID    string          `json:"location_id" validate:"required,uuid"`
	Qty           decimal.Decimal `json:"qty"`
	// Unit defaults to the preparation's unit
	Unit        *string    `json:"unit"`
	ProducedAt  *time.Time `json:"produced_at"`
	LabelsCount *int       `json:"labels_count" validate:"omitempty,min=1"`
	CreatedBy   string     `json:"-"`
}

// PreparationRunResult is what a run produced
type PreparationRunResult struct {
	RunID     string     `json:"run_id"`
	BatchID   string     `json:"batch_id"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// PreparationService turns kitchen production into stock batches
type PreparationService struct {
	uow    UnitOfWork
	preps  PreparationStore
	ledger StockLedger
	events EventPublisher
	logger *logger.Logger
	now    func() time.Time
}

// NewPreparationService creates a new preparation service
func NewPreparationService(uow UnitOfWork, preps PreparationStore, ledger StockLedger, events EventPublisher, log *logger.Logger) *PreparationService {
	return &PreparationService{
		uow:    uow,
		preps:  preps,
		ledger: ledger,
		events: events,
		logger: log,
		now:    time.Now,
	}
}

// ListPreparations lists the organization's preparations by name
func (s *PreparationService) ListPreparations(ctx context.Context, orgID string) ([]repository.Preparation, error) {
	return s.preps.ListPreparations(ctx, orgID)
}

// CreatePreparation adds a preparation to the organization's catalog
func (s *PreparationService) CreatePreparation(ctx context.Context, in PreparationInput) (*repository.Preparation, error) {
	p := &repository.Preparation{
		OrgID:              in.OrgID,
		Name:               strings.TrimSpace(in.Name),
		Unit:               orDefault(strings.TrimSpace(in.Unit), defaultPrepUnit),
		DefaultYieldQty:    in.DefaultYieldQty,
		ShelfLifeDays:      in.ShelfLifeDays,
		Storage:            orDefault(in.Storage, defaultPrepStorage),
		DefaultProcessType: orDefault(in.DefaultProcessType, defaultPrepProcessType),
	}
	if in.Allergens != nil {
		p.Allergens = optionalString(strings.TrimSpace(*in.Allergens))
	}

	switch {
	case p.Name == "":
		return nil, errors.Validation(map[string]string{"name": "is required"})
	case p.DefaultYieldQty != nil && !p.DefaultYieldQty.IsPositive():
		return nil, errors.Invalid(msgQtyNotPositive)
	case p.ShelfLifeDays != nil && *p.ShelfLifeDays < 0:
		return nil, errors.Validation(map[string]string{"shelf_life_days": "must be 0 or greater"})
	case !slices.Contains(prepStorages, p.Storage):
		return nil, errors.Validation(map[string]string{"storage": "must be one of: " + strings.Join(prepStorages, ", ")})
	case !slices.Contains(prepProcessTypes, p.DefaultProcessType):
		return nil, errors.Validation(map[string]string{"default_process_type": "must be one of: " + strings.Join(prepProcessTypes, ", ")})
	}

	if err := s.preps.CreatePreparation(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("org_id", p.OrgID).
		Str("preparation_id", p.ID).
		Msg("preparation created")
	return p, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// CreateRun stores a run with its batch and movement in one transaction.
// Preparation batches have no supplier item, so on-hand levels are not touched.
func (s *PreparationService) CreateRun(ctx context.Context, in PreparationRunInput) (*PreparationRunResult, error) {
	if !in.Qty.IsPositive() {
		return nil, errors.Invalid(msgQtyNotPositive)
	}

	producedAt := s.now().UTC()
	if in.ProducedAt != nil {
		producedAt = in.ProducedAt.UTC()
	}
	labels := 1
	if in.LabelsCount != nil {
		labels = *in.LabelsCount
	}

	var run *repository.PreparationRun
	err := s.uow.WithOrg(ctx, in.OrgID, func(ctx context.Context) error {
		prep, err := s.preps.GetPreparation(ctx, in.OrgID, in.PreparationID)
		if err != nil {
			return err
		}

		unit := prep.Unit
		if in.Unit != nil && *in.Unit != "" {
			unit = *in.Unit
		}
		var expiresAt *time.Time
		if prep.ShelfLifeDays != nil {
			t := ComputeExpiresAt(producedAt, *prep.ShelfLifeDays)
			expiresAt = &t
		}
		createdBy := optionalString(in.CreatedBy)
		prepID := prep.ID

		batch := &repository.StockBatch{
			OrgID:         in.OrgID,
			LocationID:    in.LocationID,
			PreparationID: &prepID,
			Qty:           in.Qty,
			Unit:          unit,
			ExpiresAt:     expiresAt,
			Source:        repository.SourcePrep,
			CreatedBy:     createdBy,
		}
		if err := s.ledger.InsertBatch(ctx, batch); err != nil {
			return err
		}

		note := prepMovementNote
		if err := s.ledger.InsertMovement(ctx, &repository.StockMovement{
			OrgID:      in.OrgID,
			BatchID:    batch.ID,
			LocationID: in.LocationID,
			DeltaQty:   in.Qty,
			Reason:     string(repository.SourcePrep),
			Note:       &note,
			CreatedBy:  createdBy,
		}); err != nil {
			return err
		}

		run = &repository.PreparationRun{
			OrgID:         in.OrgID,
			PreparationID: prep.ID,
			LocationID:    in.LocationID,
			BatchID:       batch.ID,
			Qty:           in.Qty,
			Unit:          unit,
			ProducedAt:    producedAt,
			ExpiresAt:     expiresAt,
			LabelsCount:   labels,
			CreatedBy:     createdBy,
		}
		return s.preps.InsertRun(ctx, run)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("org_id", in.OrgID).
		Str("preparation_id", in.PreparationID).
		Str("run_id", run.ID).
		Msg("preparation run recorded")

	if s.events != nil {
		s.events.PublishPreparationRunCreated(ctx, run)
	}
	return &PreparationRunResult{RunID: run.ID, BatchID: run.BatchID, ExpiresAt: run.ExpiresAt}, nil
}
