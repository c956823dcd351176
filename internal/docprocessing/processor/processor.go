package processor

import (
	"context"
	"time"

	"github.com/chefos/chefos-backend/internal/docprocessing/domain"
)

// Processor turns recognized document text into structured data.
// Implementations never fail on noisy text; they report warnings instead.
type Processor interface {
	// CanProcess returns true if this processor handles the given document type
	CanProcess(docType domain.DocumentType) bool

	// Process structures the OCR text of a document
	Process(ctx context.Context, text string, docType domain.DocumentType) (*domain.ExtractionResult, error)

	// Name returns the processor name for logging
	Name() string
}

// Registry holds all registered processors and dispatches to the right one
type Registry struct {
	processors []Processor
}

// NewRegistry creates a new processor registry
func NewRegistry(processors ...Processor) *Registry {
	return &Registry{processors: processors}
}

// DefaultRegistry registers the delivery note and expiry label parsers
func DefaultRegistry() *Registry {
	return NewRegistry(NewDeliveryNoteProcessor(), NewExpiryLabelProcessor())
}

// FindProcessor returns the first processor that can handle the given document type
func (r *Registry) FindProcessor(docType domain.DocumentType) Processor {
	for _, p := range r.processors {
		if p.CanProcess(docType) {
			return p
		}
	}
	return nil
}

// FindProcessors returns all processors that can handle the given document type,
// in registration order, so a caller can fall back to the next one.
func (r *Registry) FindProcessors(docType domain.DocumentType) []Processor {
	var result []Processor
	for _, p := range r.processors {
		if p.CanProcess(docType) {
			result = append(result, p)
		}
	}
	return result
}

// DeliveryNoteProcessor parses albaranes
type DeliveryNoteProcessor struct{}

func NewDeliveryNoteProcessor() *DeliveryNoteProcessor { return &DeliveryNoteProcessor{} }

func (p *DeliveryNoteProcessor) Name() string { return "delivery_note" }

func (p *DeliveryNoteProcessor) CanProcess(docType domain.DocumentType) bool {
	return docType == domain.DocumentTypeDeliveryNote
}

func (p *DeliveryNoteProcessor) Process(ctx context.Context, text string, docType domain.DocumentType) (*domain.ExtractionResult, error) {
	start := time.Now()
	note := ParseDeliveryNote(text)
	return &domain.ExtractionResult{
		DocumentType:     docType,
		DeliveryNote:     &note,
		Warnings:         note.Warnings,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// ExpiryLabelProcessor reads expiry date and lot code from product labels
type ExpiryLabelProcessor struct{}

func NewExpiryLabelProcessor() *ExpiryLabelProcessor { return &ExpiryLabelProcessor{} }

func (p *ExpiryLabelProcessor) Name() string { return "expiry_label" }

func (p *ExpiryLabelProcessor) CanProcess(docType domain.DocumentType) bool {
	return docType == domain.DocumentTypeExpiryLabel
}

func (p *ExpiryLabelProcessor) Process(ctx context.Context, text string, docType domain.DocumentType) (*domain.ExtractionResult, error) {
	start := time.Now()
	suggestion := ParseExpiryAndLot(text)

	var warnings []string
	if suggestion.Confidence == 0 {
		warnings = append(warnings, "No se encontró fecha de caducidad ni lote")
	}

	return &domain.ExtractionResult{
		DocumentType:     docType,
		ExpiryLot:        &suggestion,
		Warnings:         warnings,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}
