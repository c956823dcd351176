package service

import (
	"context"
	"strings"

	"github.com/chefos/chefos-backend/internal/inventory/repository"
	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/chefos/chefos-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

const manualMovementNote = "Entrada manual"

// ManualEntryInput is stock counted in by hand, outside a delivery note
type ManualEntryInput struct {
	OrgID          string          `json:"-"`
	LocationID     string          `json:"location_id" validate:"required,uuid"`
	SupplierItemID string          `json:"supplier_item_id" validate:"required,uuid"`
	Qty            decimal.Decimal `json:"qty"`
	Unit           string          `json:"unit" validate:"required"`
	ExpiresAt      *string         `json:"expires_at" validate:"omitempty,datetime=2006-01-02"`
	LotCode        *string         `json:"lot_code"`
	// Source defaults to adjustment
	Source    repository.BatchSource `json:"source" validate:"omitempty,oneof=purchase adjustment"`
	CreatedBy string                 `json:"-"`
}

// ManualEntryResult is the batch a manual entry created
type ManualEntryResult struct {
	BatchID   string          `json:"batch_id"`
	OnHandQty decimal.Decimal `json:"on_hand_qty"`
}

// StockService records stock entries and reads levels
type StockService struct {
	uow    UnitOfWork
	ledger StockLedger
	events EventPublisher
	logger *logger.Logger
}

// NewStockService creates a new stock service
func NewStockService(uow UnitOfWork, ledger StockLedger, events EventPublisher, log *logger.Logger) *StockService {
	return &StockService{uow: uow, ledger: ledger, events: events, logger: log}
}

// CreateManualEntry receives stock through the same ledger as a delivery note
func (s *StockService) CreateManualEntry(ctx context.Context, in ManualEntryInput) (*ManualEntryResult, error) {
	if !in.Qty.IsPositive() {
		return nil, errors.Invalid(msgQtyNotPositive)
	}
	expiresAt, err := parseISODate("expires_at", in.ExpiresAt)
	if err != nil {
		return nil, err
	}

	source := in.Source
	if source == "" {
		source = repository.SourceAdjustment
	}
	if source != repository.SourcePurchase && source != repository.SourceAdjustment {
		return nil, errors.Validation(map[string]string{"source": "must be one of: purchase, adjustment"})
	}

	var got *received
	err = s.uow.WithOrg(ctx, in.OrgID, func(ctx context.Context) error {
		var err error
		got, err = receiveStock(ctx, s.ledger, receipt{
			orgID:          in.OrgID,
			locationID:     in.LocationID,
			supplierItemID: in.SupplierItemID,
			qty:            in.Qty,
			unit:           in.Unit,
			expiresAt:      expiresAt,
			lotCode:        in.LotCode,
			source:         source,
			note:           manualMovementNote,
			createdBy:      optionalString(in.CreatedBy),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("org_id", in.OrgID).
		Str("batch_id", got.batch.ID).
		Str("source", string(source)).
		Msg("manual stock entry recorded")

	if s.events != nil {
		s.events.PublishStockReceived(ctx, got.batch, got.onHandQty)
	}
	return &ManualEntryResult{BatchID: got.batch.ID, OnHandQty: got.onHandQty}, nil
}

// ListLevels lists on-hand levels, optionally for one location
func (s *StockService) ListLevels(ctx context.Context, orgID, locationID string) ([]repository.StockLevel, error) {
	return s.ledger.ListLevels(ctx, orgID, locationID)
}

// ListBatches lists one location's batches, soonest expiry first
func (s *StockService) ListBatches(ctx context.Context, orgID string, f repository.BatchFilter) ([]repository.BatchView, error) {
	f.LocationID = strings.TrimSpace(f.LocationID)
	if f.LocationID == "" {
		return nil, errors.Validation(map[string]string{"location_id": "is required"})
	}
	f.Search = strings.TrimSpace(f.Search)
	return s.ledger.ListBatches(ctx, orgID, f)
}
