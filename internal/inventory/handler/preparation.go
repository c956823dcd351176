package handler

import (
	"net/http"

	"github.com/chefos/chefos-backend/internal/inventory/service"
	"github.com/chefos/chefos-backend/pkg/httputil"
	"github.com/chefos/chefos-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// PreparationHandler manages preparations and records kitchen production
type PreparationHandler struct {
	service *service.PreparationService
	logger  *logger.Logger
}

// NewPreparationHandler creates a new preparation handler
func NewPreparationHandler(svc *service.PreparationService, log *logger.Logger) *PreparationHandler {
	return &PreparationHandler{
		service: svc,
		logger:  log,
	}
}

// Routes mounts the preparation endpoints
func (h *PreparationHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/{id}/runs", h.CreateRun)
}

// List lists the organization's preparations
func (h *PreparationHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	preps, err := h.service.ListPreparations(r.Context(), orgID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, preps)
}

// Create adds a preparation
func (h *PreparationHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var in service.PreparationInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&in); err != nil {
		httputil.Error(w, err)
		return
	}
	in.OrgID = orgID

	p, err := h.service.CreatePreparation(r.Context(), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, p)
}

// CreateRun records one production run and its batch
func (h *PreparationHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	orgID, userID, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var in service.PreparationRunInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&in); err != nil {
		httputil.Error(w, err)
		return
	}
	in.OrgID = orgID
	in.PreparationID = chi.URLParam(r, "id")
	in.CreatedBy = userID

	res, err := h.service.CreateRun(r.Context(), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, res)
}
