package service

import (
	"context"
	"time"

	"github.com/chefos/chefos-backend/internal/inventory/repository"
	"github.com/shopspring/decimal"
)

var (
	_ ShipmentStore    = (*repository.ShipmentRepository)(nil)
	_ StockLedger      = (*repository.StockRepository)(nil)
	_ BarcodeStore     = (*repository.BarcodeRepository)(nil)
	_ ExpiryStore      = (*repository.ExpiryRepository)(nil)
	_ PreparationStore = (*repository.PreparationRepository)(nil)
)

// UnitOfWork runs fn inside one organization scoped transaction.
// *database.DB implements it.
type UnitOfWork interface {
	WithOrg(ctx context.Context, orgID string, fn func(context.Context) error) error
}

// ShipmentStore persists delivery notes
type ShipmentStore interface {
	InsertShipment(ctx context.Context, s *repository.InboundShipment) error
	InsertLines(ctx context.Context, lines []repository.InboundShipmentLine) error
	GetByID(ctx context.Context, orgID, id string) (*repository.InboundShipment, error)
	FindByDedupeKey(ctx context.Context, orgID, key string) (string, error)
	ListMissingExpiry(ctx context.Context, orgID, locationID string) ([]repository.MissingExpiryLine, error)
}

// StockLedger writes batches, movements and on-hand levels
type StockLedger interface {
	SupplierItemUnit(ctx context.Context, orgID, supplierItemID string) (*string, error)
	InsertBatch(ctx context.Context, b *repository.StockBatch) error
	InsertMovement(ctx context.Context, m *repository.StockMovement) error
	IncrementLevel(ctx context.Context, orgID, locationID, supplierItemID string, delta decimal.Decimal, unit string) (decimal.Decimal, bool, error)
	ListLevels(ctx context.Context, orgID, locationID string) ([]repository.StockLevel, error)
	ListBatches(ctx context.Context, orgID string, f repository.BatchFilter) ([]repository.BatchView, error)
}

// BarcodeStore persists barcode mappings
type BarcodeStore interface {
	ListMappings(ctx context.Context, orgID string) ([]repository.BarcodeMapping, error)
	Upsert(ctx context.Context, m *repository.BarcodeMapping) error
}

// ExpiryStore persists expiry rules and alerts
type ExpiryStore interface {
	CreateRule(ctx context.Context, rule *repository.ExpiryRule) error
	ListRules(ctx context.Context, orgID string) ([]repository.ExpiryRule, error)
	ListEnabledRules(ctx context.Context, orgID string) ([]repository.ExpiryRule, error)
	SetRuleEnabled(ctx context.Context, orgID, id string, enabled bool) (*repository.ExpiryRule, error)
	ListOrgsWithEnabledRules(ctx context.Context) ([]string, error)
	CountCandidates(ctx context.Context, orgID string, cutoff time.Time) (int, error)
	CreateAlerts(ctx context.Context, orgID, ruleID string, cutoff time.Time) ([]string, error)
	ListAlerts(ctx context.Context, orgID, status string) ([]repository.ExpiryAlertView, error)
	DismissAlert(ctx context.Context, orgID, id string) error
}

// PreparationStore persists preparations and their runs
type PreparationStore interface {
	GetPreparation(ctx context.Context, orgID, id string) (*repository.Preparation, error)
	ListPreparations(ctx context.Context, orgID string) ([]repository.Preparation, error)
	CreatePreparation(ctx context.Context, p *repository.Preparation) error
	InsertRun(ctx context.Context, run *repository.PreparationRun) error
}

// EventPublisher announces committed changes. Implementations must not fail the caller.
type EventPublisher interface {
	PublishShipmentIngested(ctx context.Context, s *repository.InboundShipment, outcome string, linesTotal, linesApplied int)
	PublishStockReceived(ctx context.Context, b *repository.StockBatch, onHand decimal.Decimal)
	PublishExpiryAlertsCreated(ctx context.Context, orgID string, alertIDs []string)
	PublishPreparationRunCreated(ctx context.Context, run *repository.PreparationRun)
}
