package handler

import (
	"net/http"
	"strings"

	"github.com/chefos/chefos-backend/internal/inventory/service"
	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/chefos/chefos-backend/pkg/httputil"
	"github.com/chefos/chefos-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

// JobHandler exposes scheduled work to an external trigger such as a cron job
type JobHandler struct {
	sweeper    *service.ExpirySweeper
	secretHash []byte
	logger     *logger.Logger
}

// NewJobHandler creates a new job handler. An empty secretHash leaves the
// endpoints open.
func NewJobHandler(sweeper *service.ExpirySweeper, secretHash string, log *logger.Logger) *JobHandler {
	return &JobHandler{
		sweeper:    sweeper,
		secretHash: []byte(secretHash),
		logger:     log.WithComponent("jobs"),
	}
}

// Routes mounts the job endpoints
func (h *JobHandler) Routes(r chi.Router) {
	r.Use(h.requireSecret)
	r.Post("/expiry-sweep", h.ExpirySweep)
}

// requireSecret checks the bearer secret against the configured bcrypt hash
func (h *JobHandler) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(h.secretHash) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		secret, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || secret == "" || bcrypt.CompareHashAndPassword(h.secretHash, []byte(secret)) != nil {
			h.logger.Warn().Str("path", r.URL.Path).Msg("job request with invalid secret")
			httputil.Error(w, errors.Unauthorized("invalid job secret"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExpirySweep sweeps every organization. Organizations that failed are
// reported in the error while the counts cover the ones that succeeded.
func (h *JobHandler) ExpirySweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.sweeper.SweepAll(r.Context())
	if err != nil {
		httputil.ErrorWithData(w, errors.Internal("expiry sweep failed for some organizations"), res)
		return
	}

	httputil.JSON(w, http.StatusOK, res)
}
