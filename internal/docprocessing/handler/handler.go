package handler

import (
	"io"
	"net/http"

	"github.com/chefos/chefos-backend/internal/docprocessing/domain"
	"github.com/chefos/chefos-backend/internal/docprocessing/service"
	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/chefos/chefos-backend/pkg/httputil"
	"github.com/chefos/chefos-backend/pkg/logger"
	"github.com/chefos/chefos-backend/pkg/tenant"
	"github.com/go-chi/chi/v5"
)

const defaultMaxUploadSize = 20 << 20 // 20MB

// Handler handles HTTP requests for document parsing and extraction
type Handler struct {
	service       *service.Service
	log           *logger.Logger
	maxUploadSize int64
}

// NewHandler creates a new document handler. maxUploadMB <= 0 uses 20MB.
func NewHandler(svc *service.Service, log *logger.Logger, maxUploadMB int) *Handler {
	limit := int64(defaultMaxUploadSize)
	if maxUploadMB > 0 {
		limit = int64(maxUploadMB) << 20
	}
	return &Handler{
		service:       svc,
		log:           log,
		maxUploadSize: limit,
	}
}

// Routes mounts the document endpoints
func (h *Handler) Routes(r chi.Router) {
	r.Post("/parse", h.Parse)
	r.Post("/extract", h.Extract)
	r.Get("/extract/{jobId}", h.GetResult)
}

type parseRequest struct {
	DocumentType domain.DocumentType `json:"document_type" validate:"required,oneof=albaran expiry_label"`
	Text         string              `json:"text"`
}

// Parse handles POST /documents/parse with already recognized text
func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Parse(r.Context(), req.Text, req.DocumentType)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Extract handles POST /documents/extract
// Accepts multipart form with:
// - file: the document image
// - document_type: albaran or expiry_label
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	orgID, err := tenant.OrgID(r.Context())
	if err != nil {
		httputil.Error(w, errors.Unauthorized("organization required"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		httputil.Error(w, errors.BadRequest("File too large or invalid multipart form"))
		return
	}

	docType := domain.DocumentType(r.FormValue("document_type"))
	if !docType.Valid() {
		httputil.Error(w, errors.BadRequest("Invalid document_type. Must be one of: albaran, expiry_label"))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		httputil.Error(w, errors.BadRequest("Missing file in request"))
		return
	}
	defer file.Close()

	// Read file into memory (never to disk)
	imageData, err := io.ReadAll(file)
	if err != nil {
		httputil.Error(w, errors.Internal("Failed to read uploaded file"))
		return
	}

	job, err := h.service.StartExtraction(r.Context(), orgID, imageData, docType)
	if err != nil {
		h.log.Error().Err(err).Msg("extraction failed")
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusAccepted, job)
}

// GetResult handles GET /documents/extract/{jobId}
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	orgID, err := tenant.OrgID(r.Context())
	if err != nil {
		httputil.Error(w, errors.Unauthorized("organization required"))
		return
	}

	job, err := h.service.GetJob(orgID, chi.URLParam(r, "jobId"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, job)
}
