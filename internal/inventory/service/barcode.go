package service

import (
	"context"
	"strings"

	"github.com/chefos/chefos-backend/internal/inventory/repository"
	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/chefos/chefos-backend/pkg/logger"
)

// Barcode resolution statuses
const (
	BarcodeKnown   = "known"
	BarcodeUnknown = "unknown"
)

// BarcodeResolution is the outcome of looking a scanned code up
type BarcodeResolution struct {
	Status         string `json:"status"`
	SupplierItemID string `json:"supplier_item_id,omitempty"`
}

// ResolveBarcode looks code up in mappings (barcode to supplier item id).
// Surrounding whitespace is ignored; matching is otherwise exact and case sensitive.
func ResolveBarcode(code string, mappings map[string]string) BarcodeResolution {
	clean := strings.TrimSpace(code)
	if clean == "" {
		return BarcodeResolution{Status: BarcodeUnknown}
	}
	if id, ok := mappings[clean]; ok && id != "" {
		return BarcodeResolution{Status: BarcodeKnown, SupplierItemID: id}
	}
	return BarcodeResolution{Status: BarcodeUnknown}
}

// BarcodeService manages an organization's barcode mappings
type BarcodeService struct {
	store  BarcodeStore
	logger *logger.Logger
}

// NewBarcodeService creates a new barcode service
func NewBarcodeService(store BarcodeStore, log *logger.Logger) *BarcodeService {
	return &BarcodeService{store: store, logger: log}
}

// Resolve loads the organization's mappings and resolves code against them
func (s *BarcodeService) Resolve(ctx context.Context, orgID, code string) (BarcodeResolution, error) {
	mappings, err := s.store.ListMappings(ctx, orgID)
	if err != nil {
		return BarcodeResolution{}, err
	}

	table := make(map[string]string, len(mappings))
	for _, m := range mappings {
		table[m.Barcode] = m.SupplierItemID
	}
	return ResolveBarcode(code, table), nil
}

// Assign maps a barcode to a supplier item, replacing any previous mapping
func (s *BarcodeService) Assign(ctx context.Context, orgID, barcode, supplierItemID string, symbology *string) (*repository.BarcodeMapping, error) {
	clean := strings.TrimSpace(barcode)
	if clean == "" {
		return nil, errors.Validation(map[string]string{"barcode": "is required"})
	}

	m := &repository.BarcodeMapping{
		OrgID:          orgID,
		Barcode:        clean,
		SupplierItemID: supplierItemID,
		Symbology:      symbology,
	}
	if err := s.store.Upsert(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info().Str("org_id", orgID).Str("supplier_item_id", supplierItemID).Msg("barcode assigned")
	return m, nil
}

// List returns every mapping of the organization
func (s *BarcodeService) List(ctx context.Context, orgID string) ([]repository.BarcodeMapping, error) {
	return s.store.ListMappings(ctx, orgID)
}
