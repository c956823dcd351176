package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType represents the type of document being processed
type DocumentType string

const (
	DocumentTypeDeliveryNote DocumentType = "albaran"
	DocumentTypeExpiryLabel  DocumentType = "expiry_label"
)

// Valid reports whether t is a known document type
func (t DocumentType) Valid() bool {
	return t == DocumentTypeDeliveryNote || t == DocumentTypeExpiryLabel
}

// ExtractionStatus represents the processing state of an extraction job
type ExtractionStatus string

const (
	StatusPending    ExtractionStatus = "pending"
	StatusProcessing ExtractionStatus = "processing"
	StatusCompleted  ExtractionStatus = "completed"
	StatusFailed     ExtractionStatus = "failed"
)

// ParsedDeliveryHeader is what could be read from the top of a delivery note.
// Dates are ISO (YYYY-MM-DD).
type ParsedDeliveryHeader struct {
	SupplierName       *string `json:"supplier_name,omitempty"`
	DeliveryNoteNumber *string `json:"delivery_note_number,omitempty"`
	DeliveredAt        *string `json:"delivered_at,omitempty"`
}

// ParsedDeliveryLine is one candidate receiving line. Only Description is guaranteed.
type ParsedDeliveryLine struct {
	Description string           `json:"description"`
	Qty         *decimal.Decimal `json:"qty"`
	Unit        *string          `json:"unit"`
	ExpiresAt   *string          `json:"expires_at,omitempty"`
	LotCode     *string          `json:"lot_code,omitempty"`
}

// ParsedDeliveryNote is the structured reading of a delivery note's OCR text
type ParsedDeliveryNote struct {
	Header   ParsedDeliveryHeader `json:"header"`
	Lines    []ParsedDeliveryLine `json:"lines"`
	RawText  string               `json:"raw_text"`
	Warnings []string             `json:"warnings"`
}

// ExpiryLotSuggestion is the expiry date and lot code guessed from free text
type ExpiryLotSuggestion struct {
	ExpiresAt  *string  `json:"expires_at,omitempty"`
	LotCode    *string  `json:"lot_code,omitempty"`
	Confidence float64  `json:"confidence"`
	RawMatches []string `json:"raw_matches"`
}

// ExtractionResult represents the result from processing a single document
type ExtractionResult struct {
	DocumentType     DocumentType         `json:"document_type"`
	DeliveryNote     *ParsedDeliveryNote  `json:"delivery_note,omitempty"`
	ExpiryLot        *ExpiryLotSuggestion `json:"expiry_lot,omitempty"`
	Warnings         []string             `json:"warnings,omitempty"`
	ProcessingTimeMs int64                `json:"processing_time_ms"`
}

// ExtractionJob represents a complete extraction job
type ExtractionJob struct {
	JobID     string            `json:"job_id"`
	OrgID     string            `json:"-"`
	Status    ExtractionStatus  `json:"status"`
	Result    *ExtractionResult `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
