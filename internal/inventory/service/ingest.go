package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/chefos/chefos-backend/internal/inventory/repository"
	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/chefos/chefos-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

const (
	msgNoLines         = "Debes añadir al menos una línea"
	importMovementNote = "Importar albarán"
)

// LineOutcome is what ingestion did with one line
type LineOutcome string

const (
	// LineApplied lines moved stock
	LineApplied LineOutcome = "applied"
	// LineRejected is the line that stopped ingestion; none of its writes were kept
	LineRejected LineOutcome = "rejected"
	// LineHistoryOnly lines are stored on the shipment without touching stock
	LineHistoryOnly LineOutcome = "history_only"
	// LineNotProcessed lines would have moved stock but came after a rejection
	LineNotProcessed LineOutcome = "not_processed"
)

// ShipmentOutcome summarizes the stock effect of a shipment
type ShipmentOutcome string

const (
	ShipmentFullyApplied     ShipmentOutcome = "fully_applied"
	ShipmentPartiallyApplied ShipmentOutcome = "partially_applied"
	ShipmentRejected         ShipmentOutcome = "rejected"
)

// ShipmentLineInput is one reviewed delivery note line
type ShipmentLineInput struct {
	Description    string                `json:"description" validate:"required"`
	Qty            *decimal.Decimal      `json:"qty"`
	Unit           *string               `json:"unit"`
	SupplierItemID *string               `json:"supplier_item_id" validate:"omitempty,uuid"`
	ExpiresAt      *string               `json:"expires_at" validate:"omitempty,datetime=2006-01-02"`
	LotCode        *string               `json:"lot_code"`
	Status         repository.LineStatus `json:"status" validate:"required,oneof=ready blocked skipped"`
	// ImportLine defaults to true
	ImportLine *bool `json:"import_line"`
}

// movesStock reports whether the line is applied to stock
func (l ShipmentLineInput) movesStock() bool {
	return l.Status == repository.LineReady &&
		(l.ImportLine == nil || *l.ImportLine) &&
		l.SupplierItemID != nil && *l.SupplierItemID != ""
}

// CreateShipmentInput is a reviewed delivery note ready to be stored.
// DedupeKey is stored as sent, usually the key from LookupDedupeKey; it is never derived here.
type CreateShipmentInput struct {
	OrgID              string              `json:"-"`
	LocationID         string              `json:"location_id" validate:"required,uuid"`
	SupplierID         *string             `json:"supplier_id" validate:"omitempty,uuid"`
	SupplierName       *string             `json:"supplier_name"`
	DeliveryNoteNumber *string             `json:"delivery_note_number"`
	DeliveredAt        *string             `json:"delivered_at" validate:"omitempty,datetime=2006-01-02"`
	Source             string              `json:"source" validate:"omitempty,oneof=ocr manual"`
	RawOCRText         *string             `json:"raw_ocr_text"`
	DedupeKey          *string             `json:"dedupe_key"`
	CreatedBy          string              `json:"-"`
	Lines              []ShipmentLineInput `json:"lines" validate:"dive"`
}

// LineResult reports one line of an ingestion
type LineResult struct {
	LineNo    int              `json:"line_no"`
	LineID    string           `json:"line_id"`
	Outcome   LineOutcome      `json:"outcome"`
	BatchID   string           `json:"batch_id,omitempty"`
	OnHandQty *decimal.Decimal `json:"on_hand_qty,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// IngestResult reports what an ingestion stored and which lines moved stock
type IngestResult struct {
	ShipmentID   string          `json:"shipment_id"`
	DedupeKey    string          `json:"dedupe_key,omitempty"`
	Outcome      ShipmentOutcome `json:"outcome"`
	LinesApplied int             `json:"lines_applied"`
	Lines        []LineResult    `json:"lines"`
}

// DedupeLookup is a dedupe key and the shipment already stored under it, if any
type DedupeLookup struct {
	DedupeKey          string `json:"dedupe_key"`
	ExistingShipmentID string `json:"existing_shipment_id,omitempty"`
}

// Ingestor stores delivery notes and applies their lines to stock
type Ingestor struct {
	uow       UnitOfWork
	shipments ShipmentStore
	ledger    StockLedger
	events    EventPublisher
	logger    *logger.Logger
}

// NewIngestor creates a new ingestor
func NewIngestor(uow UnitOfWork, shipments ShipmentStore, ledger StockLedger, events EventPublisher, log *logger.Logger) *Ingestor {
	return &Ingestor{
		uow:       uow,
		shipments: shipments,
		ledger:    ledger,
		events:    events,
		logger:    log,
	}
}

// CreateInboundShipment stores the shipment header with every line, then
// applies each ready, importable, catalog-linked line to stock in its own
// transaction (batch, movement and level together).
//
// Lines are applied in order and the first failure stops the run. The returned
// result is never nil once the header is stored: on failure it comes back with
// the error, the failing line marked rejected and the lines after it not processed.
func (s *Ingestor) CreateInboundShipment(ctx context.Context, in CreateShipmentInput) (*IngestResult, error) {
	if len(in.Lines) == 0 {
		return nil, errors.Invalid(msgNoLines)
	}
	deliveredAt, err := parseISODate("delivered_at", in.DeliveredAt)
	if err != nil {
		return nil, err
	}
	lines, err := s.buildLines(in)
	if err != nil {
		return nil, err
	}

	key := strings.TrimSpace(deref(in.DedupeKey))

	source := in.Source
	if source == "" {
		source = repository.ShipmentSourceManual
	}

	shipment := &repository.InboundShipment{
		OrgID:              in.OrgID,
		LocationID:         in.LocationID,
		SupplierID:         in.SupplierID,
		SupplierName:       in.SupplierName,
		DeliveryNoteNumber: in.DeliveryNoteNumber,
		DeliveredAt:        deliveredAt,
		Source:             source,
		RawOCRText:         in.RawOCRText,
		DedupeKey:          optionalString(key),
		CreatedBy:          optionalString(in.CreatedBy),
	}

	err = s.uow.WithOrg(ctx, in.OrgID, func(ctx context.Context) error {
		if err := s.shipments.InsertShipment(ctx, shipment); err != nil {
			return err
		}
		for i := range lines {
			lines[i].ShipmentID = shipment.ID
		}
		return s.shipments.InsertLines(ctx, lines)
	})
	if err != nil {
		return nil, err
	}

	result := &IngestResult{
		ShipmentID: shipment.ID,
		DedupeKey:  key,
		Outcome:    ShipmentFullyApplied,
		Lines:      make([]LineResult, len(lines)),
	}
	for i, l := range lines {
		outcome := LineHistoryOnly
		if in.Lines[i].movesStock() {
			outcome = LineNotProcessed
		}
		result.Lines[i] = LineResult{LineNo: l.LineNo, LineID: l.ID, Outcome: outcome}
	}

	log := s.logger.WithOrgID(in.OrgID)
	var applied []*received

	for i := range lines {
		if result.Lines[i].Outcome != LineNotProcessed {
			continue
		}

		var got *received
		err := s.uow.WithOrg(ctx, in.OrgID, func(ctx context.Context) error {
			var err error
			got, err = receiveStock(ctx, s.ledger, s.lineReceipt(in, shipment, lines[i]))
			return err
		})
		if err != nil {
			result.Lines[i].Outcome = LineRejected
			result.Lines[i].Error = errorMessage(err)
			result.Outcome = ShipmentRejected
			if result.LinesApplied > 0 {
				result.Outcome = ShipmentPartiallyApplied
			}

			log.Warn().Err(err).
				Str("shipment_id", shipment.ID).
				Int("line_no", lines[i].LineNo).
				Str("outcome", string(result.Outcome)).
				Msg("shipment line rejected")

			s.publish(ctx, shipment, result, applied)
			return result, annotate(err, map[string]string{
				"shipment_id": shipment.ID,
				"line":        strconv.Itoa(lines[i].LineNo),
				"outcome":     string(result.Outcome),
			})
		}

		onHand := got.onHandQty
		result.Lines[i].Outcome = LineApplied
		result.Lines[i].BatchID = got.batch.ID
		result.Lines[i].OnHandQty = &onHand
		result.LinesApplied++
		applied = append(applied, got)
	}

	log.Info().
		Str("shipment_id", shipment.ID).
		Int("lines", len(lines)).
		Int("lines_applied", result.LinesApplied).
		Msg("shipment ingested")

	s.publish(ctx, shipment, result, applied)
	return result, nil
}

// buildLines validates the lines and turns them into rows, numbered from 1
func (s *Ingestor) buildLines(in CreateShipmentInput) ([]repository.InboundShipmentLine, error) {
	lines := make([]repository.InboundShipmentLine, len(in.Lines))
	for i, l := range in.Lines {
		lineNo := i + 1
		field := "lines[" + strconv.Itoa(i) + "]"

		if !l.Status.Valid() {
			return nil, errors.Validation(map[string]string{field + ".status": "must be one of: ready, blocked, skipped"})
		}
		expiresAt, err := parseISODate(field+".expires_at", l.ExpiresAt)
		if err != nil {
			return nil, err
		}
		if l.movesStock() {
			if l.Qty == nil || !l.Qty.IsPositive() {
				return nil, errors.Invalid(msgQtyNotPositive).WithDetails(map[string]string{"line": strconv.Itoa(lineNo)})
			}
			if l.Unit == nil || *l.Unit == "" {
				return nil, errors.Validation(map[string]string{field + ".unit": "is required"})
			}
		}

		importLine := l.ImportLine == nil || *l.ImportLine
		lines[i] = repository.InboundShipmentLine{
			OrgID:          in.OrgID,
			LineNo:         lineNo,
			Description:    l.Description,
			Qty:            l.Qty,
			Unit:           l.Unit,
			SupplierItemID: l.SupplierItemID,
			ExpiresAt:      expiresAt,
			LotCode:        l.LotCode,
			Status:         l.Status,
			IsImport:       importLine,
		}
	}
	return lines, nil
}

func (s *Ingestor) lineReceipt(in CreateShipmentInput, shipment *repository.InboundShipment, line repository.InboundShipmentLine) receipt {
	lineID := line.ID
	return receipt{
		orgID:          in.OrgID,
		locationID:     shipment.LocationID,
		supplierItemID: *line.SupplierItemID,
		qty:            *line.Qty,
		unit:           *line.Unit,
		expiresAt:      line.ExpiresAt,
		lotCode:        line.LotCode,
		source:         repository.SourcePurchase,
		shipmentLineID: &lineID,
		note:           importMovementNote,
		createdBy:      shipment.CreatedBy,
	}
}

func (s *Ingestor) publish(ctx context.Context, shipment *repository.InboundShipment, result *IngestResult, applied []*received) {
	if s.events == nil {
		return
	}
	for _, r := range applied {
		s.events.PublishStockReceived(ctx, r.batch, r.onHandQty)
	}
	s.events.PublishShipmentIngested(ctx, shipment, string(result.Outcome), len(result.Lines), result.LinesApplied)
}

// GetShipment returns a stored shipment with its lines
func (s *Ingestor) GetShipment(ctx context.Context, orgID, id string) (*repository.InboundShipment, error) {
	return s.shipments.GetByID(ctx, orgID, id)
}

// LookupDedupeKey builds the dedupe key for a delivery note and reports a
// shipment already stored under it, so a client can warn before submitting.
func (s *Ingestor) LookupDedupeKey(ctx context.Context, p DedupeKeyParams) (*DedupeLookup, error) {
	key := BuildShipmentDedupeKey(p)
	existing, err := s.shipments.FindByDedupeKey(ctx, p.OrgID, key)
	if err != nil {
		return nil, err
	}
	return &DedupeLookup{DedupeKey: key, ExistingShipmentID: existing}, nil
}

// ListMissingExpiry lists received lines still waiting for an expiry date
func (s *Ingestor) ListMissingExpiry(ctx context.Context, orgID, locationID string) ([]repository.MissingExpiryLine, error) {
	return s.shipments.ListMissingExpiry(ctx, orgID, locationID)
}

// annotate adds details to an AppError; other errors pass through unchanged
func annotate(err error, details map[string]string) error {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		appErr.WithDetails(details)
	}
	return err
}

func errorMessage(err error) string {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
