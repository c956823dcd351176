package handler

import (
	"net/http"

	"github.com/chefos/chefos-backend/internal/inventory/service"
	"github.com/chefos/chefos-backend/pkg/httputil"
	"github.com/chefos/chefos-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// ShipmentHandler handles delivery note endpoints
type ShipmentHandler struct {
	ingestor *service.Ingestor
	logger   *logger.Logger
}

// NewShipmentHandler creates a new shipment handler
func NewShipmentHandler(ingestor *service.Ingestor, log *logger.Logger) *ShipmentHandler {
	return &ShipmentHandler{
		ingestor: ingestor,
		logger:   log,
	}
}

// Routes mounts the shipment endpoints
func (h *ShipmentHandler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/dedupe-key", h.DedupeKey)
	r.Get("/missing-expiry", h.MissingExpiry)
	r.Get("/{id}", h.Get)
}

// Create stores a reviewed delivery note and applies its lines to stock.
// A rejected line answers with the error and the partial result as data.
func (h *ShipmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, userID, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var in service.CreateShipmentInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&in); err != nil {
		httputil.Error(w, err)
		return
	}
	in.OrgID = orgID
	in.CreatedBy = userID

	result, err := h.ingestor.CreateInboundShipment(r.Context(), in)
	if err != nil {
		if result != nil {
			httputil.ErrorWithData(w, err, result)
			return
		}
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// Get returns a shipment with its lines
func (h *ShipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	shipment, err := h.ingestor.GetShipment(r.Context(), orgID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, shipment)
}

// DedupeKey computes the dedupe key of a delivery note and reports a stored duplicate
func (h *ShipmentHandler) DedupeKey(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	lookup, err := h.ingestor.LookupDedupeKey(r.Context(), service.DedupeKeyParams{
		OrgID:              orgID,
		SupplierName:       queryPtr(r, "supplier_name"),
		DeliveryNoteNumber: queryPtr(r, "delivery_note_number"),
		DeliveredAt:        queryPtr(r, "delivered_at"),
		RawText:            queryPtr(r, "raw_text"),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lookup)
}

// MissingExpiry lists received lines without an expiry date
func (h *ShipmentHandler) MissingExpiry(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	lines, err := h.ingestor.ListMissingExpiry(r.Context(), orgID, r.URL.Query().Get("location_id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lines)
}
