package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/chefos/chefos-backend/internal/inventory/service"
	"github.com/chefos/chefos-backend/pkg/httputil"
	"github.com/chefos/chefos-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExpiryHandler handles expiry rules, alerts and on-demand sweeps
type ExpiryHandler struct {
	service *service.ExpiryService
	sweeper *service.ExpirySweeper
	logger  *logger.Logger
}

// NewExpiryHandler creates a new expiry handler
func NewExpiryHandler(svc *service.ExpiryService, sweeper *service.ExpirySweeper, log *logger.Logger) *ExpiryHandler {
	return &ExpiryHandler{
		service: svc,
		sweeper: sweeper,
		logger:  log,
	}
}

// Routes mounts the expiry endpoints
func (h *ExpiryHandler) Routes(r chi.Router) {
	r.Route("/rules", func(r chi.Router) {
		r.Get("/", h.ListRules)
		r.Post("/", h.CreateRule)
		r.Patch("/{id}", h.UpdateRule)
	})
	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", h.ListAlerts)
		r.Get("/export", h.ExportAlerts)
		r.Post("/{id}/dismiss", h.DismissAlert)
	})
	r.Post("/sweep", h.Sweep)
}

type createRuleRequest struct {
	DaysBefore  *int    `json:"days_before" validate:"required,min=0"`
	ProductType *string `json:"product_type"`
}

type updateRuleRequest struct {
	IsEnabled *bool `json:"is_enabled" validate:"required"`
}

// CreateRule adds an enabled expiry rule
func (h *ExpiryHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req createRuleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	rule, err := h.service.CreateRule(r.Context(), orgID, *req.DaysBefore, req.ProductType)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, rule)
}

// ListRules lists the organization's rules
func (h *ExpiryHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	rules, err := h.service.ListRules(r.Context(), orgID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rules)
}

// UpdateRule enables or disables a rule
func (h *ExpiryHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req updateRuleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	rule, err := h.service.SetRuleEnabled(r.Context(), orgID, chi.URLParam(r, "id"), *req.IsEnabled)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rule)
}

// ListAlerts lists alerts by status, open by default
func (h *ExpiryHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	alerts, err := h.service.ListAlerts(r.Context(), orgID, r.URL.Query().Get("status"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alerts)
}

// ExportAlerts downloads the alerts as a spreadsheet
func (h *ExpiryHandler) ExportAlerts(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	status := r.URL.Query().Get("status")
	alerts, err := h.service.ListAlerts(r.Context(), orgID, status)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if status == "" {
		status = "open"
	}
	filename := fmt.Sprintf("caducidades-%s.xlsx", status)
	err = httputil.Attachment(w, filename, xlsxContentType, func(out io.Writer) error {
		return service.WriteAlertsXLSX(out, alerts)
	})
	if err != nil {
		// headers are already sent
		h.logger.Error().Err(err).Str("org_id", orgID).Msg("failed to write alerts export")
	}
}

// DismissAlert closes an alert
func (h *ExpiryHandler) DismissAlert(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.DismissAlert(r.Context(), orgID, chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Sweep runs the expiry sweep for the caller's organization
func (h *ExpiryHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	orgID, _, err := identity(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	res, err := h.sweeper.SweepOrg(r.Context(), orgID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, res)
}
