package events

import (
	"context"

	"github.com/chefos/chefos-backend/internal/inventory/repository"
	"github.com/chefos/chefos-backend/pkg/logger"
	"github.com/chefos/chefos-backend/pkg/messaging"
	"github.com/shopspring/decimal"
)

const source = "inventory-service"

// Sink publishes one event. *messaging.Publisher implements it.
type Sink interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// InventoryEventPublisher publishes inventory-related events.
// Publish failures are logged, never returned: the change is already committed.
type InventoryEventPublisher struct {
	publisher Sink
	logger    *logger.Logger
}

// NewInventoryEventPublisher publishes to the exchange declared by rmq's topology
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) *InventoryEventPublisher {
	return NewWithSink(messaging.NewPublisher(rmq, source, log), log)
}

// NewWithSink wraps an existing sink
func NewWithSink(sink Sink, log *logger.Logger) *InventoryEventPublisher {
	return &InventoryEventPublisher{publisher: sink, logger: log}
}

// PublishShipmentIngested publishes a shipment ingested event
func (p *InventoryEventPublisher) PublishShipmentIngested(ctx context.Context, s *repository.InboundShipment, outcome string, linesTotal, linesApplied int) {
	if p == nil {
		return
	}

	data := messaging.ShipmentIngestedEvent{
		OrgID:        s.OrgID,
		ShipmentID:   s.ID,
		LocationID:   s.LocationID,
		Source:       s.Source,
		Outcome:      outcome,
		LinesTotal:   linesTotal,
		LinesApplied: linesApplied,
	}
	if s.SupplierName != nil {
		data.SupplierName = *s.SupplierName
	}

	if err := p.publisher.Publish(ctx, messaging.EventShipmentIngested, data); err != nil {
		p.logger.Error().Err(err).Str("shipment_id", s.ID).Msg("failed to publish shipment ingested event")
	}
}

// PublishStockReceived publishes a stock received event
func (p *InventoryEventPublisher) PublishStockReceived(ctx context.Context, b *repository.StockBatch, onHand decimal.Decimal) {
	if p == nil {
		return
	}

	data := messaging.StockReceivedEvent{
		OrgID:      b.OrgID,
		LocationID: b.LocationID,
		BatchID:    b.ID,
		Qty:        b.Qty,
		Unit:       b.Unit,
		OnHandQty:  onHand,
		Source:     string(b.Source),
	}
	if b.SupplierItemID != nil {
		data.SupplierItemID = *b.SupplierItemID
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockReceived, data); err != nil {
		p.logger.Error().Err(err).Str("batch_id", b.ID).Msg("failed to publish stock received event")
	}
}

// PublishExpiryAlertsCreated publishes an expiry alerts created event.
// Nothing is sent when no alert was opened.
func (p *InventoryEventPublisher) PublishExpiryAlertsCreated(ctx context.Context, orgID string, alertIDs []string) {
	if p == nil || len(alertIDs) == 0 {
		return
	}

	data := messaging.ExpiryAlertsCreatedEvent{
		OrgID:    orgID,
		Created:  len(alertIDs),
		AlertIDs: alertIDs,
	}

	if err := p.publisher.Publish(ctx, messaging.EventExpiryAlertsCreated, data); err != nil {
		p.logger.Error().Err(err).Str("org_id", orgID).Msg("failed to publish expiry alerts created event")
	}
}

// PublishPreparationRunCreated publishes a preparation run created event
func (p *InventoryEventPublisher) PublishPreparationRunCreated(ctx context.Context, run *repository.PreparationRun) {
	if p == nil {
		return
	}

	data := messaging.PreparationRunCreatedEvent{
		OrgID:         run.OrgID,
		PreparationID: run.PreparationID,
		RunID:         run.ID,
		BatchID:       run.BatchID,
		Qty:           run.Qty,
		Unit:          run.Unit,
		ExpiresAt:     run.ExpiresAt,
	}

	if err := p.publisher.Publish(ctx, messaging.EventPreparationRunCreated, data); err != nil {
		p.logger.Error().Err(err).Str("run_id", run.ID).Msg("failed to publish preparation run created event")
	}
}
