package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventShipmentIngested      = "inventory.shipment.ingested"
	EventStockReceived         = "inventory.stock.received"
	EventExpiryAlertsCreated   = "inventory.expiry.alerts.created"
	EventExpirySweepRequested  = "inventory.expiry.sweep.requested"
	EventPreparationRunCreated = "inventory.preparation.run.created"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
	ExchangeDeadLetter      = "dlx.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// Publishing encodes the event as a persistent JSON message. The AMQP
// properties repeat the envelope fields so brokers and tools can filter
// without decoding the body.
func (e *Event) Publishing() (amqp.Publishing, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     e.ID,
		CorrelationId: e.CorrelationID,
		Timestamp:     e.Timestamp,
		Type:          e.Type,
		AppId:         e.Source,
		Body:          body,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// ShipmentIngestedEvent is published once a delivery note has been stored and its lines applied
type ShipmentIngestedEvent struct {
	OrgID        string `json:"org_id"`
	ShipmentID   string `json:"shipment_id"`
	LocationID   string `json:"location_id"`
	SupplierName string `json:"supplier_name,omitempty"`
	Source       string `json:"source"`
	Outcome      string `json:"outcome"`
	LinesTotal   int    `json:"lines_total"`
	LinesApplied int    `json:"lines_applied"`
}

// StockReceivedEvent is published per batch that increased an on-hand level
type StockReceivedEvent struct {
	OrgID          string          `json:"org_id"`
	LocationID     string          `json:"location_id"`
	SupplierItemID string          `json:"supplier_item_id,omitempty"`
	BatchID        string          `json:"batch_id"`
	Qty            decimal.Decimal `json:"qty"`
	Unit           string          `json:"unit"`
	OnHandQty      decimal.Decimal `json:"on_hand_qty"`
	Source         string          `json:"source"`
}

// ExpiryAlertsCreatedEvent summarizes one organization's sweep when it opened new alerts
type ExpiryAlertsCreatedEvent struct {
	OrgID    string   `json:"org_id"`
	Created  int      `json:"created"`
	AlertIDs []string `json:"alert_ids"`
}

// ExpirySweepRequestedEvent asks the inventory service to run the sweep.
// An empty OrgID sweeps every organization.
type ExpirySweepRequestedEvent struct {
	OrgID string `json:"org_id,omitempty"`
}

// PreparationRunCreatedEvent is published when a kitchen preparation produces a batch
type PreparationRunCreatedEvent struct {
	OrgID         string          `json:"org_id"`
	PreparationID string          `json:"preparation_id"`
	RunID         string          `json:"run_id"`
	BatchID       string          `json:"batch_id"`
	Qty           decimal.Decimal `json:"qty"`
	Unit          string          `json:"unit"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.NewString()
}
