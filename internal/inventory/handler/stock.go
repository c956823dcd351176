package handler

import (
	"net/http"
	"strconv"

	"github.com/chefos/chefos-backend/internal/inventory/repository"
	"github.com/chefos/chefos-backend/internal/inventory/service"
	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/chefos/chefos-backend/pkg/httputil"
	"github.com/chefos/chefos-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// StockHandler handles manual entries and on-hand levels
type StockHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc *service.StockService, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  log,
	}
}

// Routes mounts the stock endpoints
func (h *StockHandler) Routes(r chi.Router) {
	r.Post("/entries", h.CreateEntry)
	r.Get("/levels", h.Levels)
	r.Get("/batches", h.Batches)
}

// CreateEntry records stock counted in by hand
func (h *StockHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	orgID, userID, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var in service.ManualEntryInput
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

	res, err := h.service.CreateManualEntry(r.Context(), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, res)
}

// Levels lists on-hand levels, optionally for one location
func (h *StockHandler) Levels(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	levels, err := h.service.ListLevels(r.Context(), orgID, r.URL.Query().Get("location_id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, levels)
}

// Batches lists a location's batches with optional name and expiry filters
func (h *StockHandler) Batches(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	q := r.URL.Query()
	f := repository.BatchFilter{
		LocationID: q.Get("location_id"),
		Search:     q.Get("search"),
	}
	if f.Expired, err = queryBool(q.Get("expired"), "expired"); err != nil {
		httputil.Error(w, err)
		return
	}
	if f.ExpiringSoon, err = queryBool(q.Get("expiring_soon"), "expiring_soon"); err != nil {
		httputil.Error(w, err)
		return
	}

	batches, err := h.service.ListBatches(r.Context(), orgID, f)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// queryBool reads an optional boolean query parameter
func queryBool(value, field string) (bool, error) {
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.Validation(map[string]string{field: "must be true or false"})
	}
	return b, nil
}
