package handler

import (
	"net/http"

	"github.com/chefos/chefos-backend/internal/inventory/service"
	"github.com/chefos/chefos-backend/pkg/httputil"
	"github.com/chefos/chefos-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// BarcodeHandler handles barcode mapping endpoints
type BarcodeHandler struct {
	service *service.BarcodeService
	logger  *logger.Logger
}

// NewBarcodeHandler creates a new barcode handler
func NewBarcodeHandler(svc *service.BarcodeService, log *logger.Logger) *BarcodeHandler {
	return &BarcodeHandler{
		service: svc,
		logger:  log,
	}
}

// Routes mounts the barcode endpoints
func (h *BarcodeHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Put("/", h.Assign)
	r.Get("/{barcode}/resolve", h.Resolve)
}

type assignBarcodeRequest struct {
	Barcode        string  `json:"barcode" validate:"required"`
	SupplierItemID string  `json:"supplier_item_id" validate:"required,uuid"`
	Symbology      *string `json:"symbology"`
}

// Resolve looks a scanned code up in the organization's mappings
func (h *BarcodeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	res, err := h.service.Resolve(r.Context(), orgID, chi.URLParam(r, "barcode"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, res)
}

// Assign maps a barcode to a supplier item
func (h *BarcodeHandler) Assign(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req assignBarcodeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	mapping, err := h.service.Assign(r.Context(), orgID, req.Barcode, req.SupplierItemID, req.Symbology)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, mapping)
}

// List lists the organization's mappings
func (h *BarcodeHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	mappings, err := h.service.List(r.Context(), orgID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, mappings)
}
