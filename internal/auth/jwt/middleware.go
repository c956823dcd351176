package jwt

import (
	"net/http"
	"strings"

	"github.com/chefos/chefos-backend/pkg/actor"
	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/chefos/chefos-backend/pkg/httputil"
	"github.com/chefos/chefos-backend/pkg/logger"
)

// Middleware validates the bearer token and puts organization and user into
// the request context. Requests without a valid token or organization get 401.
func Middleware(m *Manager, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.Error(w, errors.Unauthorized("missing authorization header"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				httputil.Error(w, errors.Unauthorized("invalid authorization header format"))
				return
			}

			claims, err := m.ValidateAccessToken(parts[1])
			if err != nil {
				log.Debug().Err(err).Msg("token validation failed")
				httputil.Error(w, err)
				return
			}

			if claims.OrgID == "" {
				httputil.Error(w, errors.Unauthorized("token carries no organization"))
				return
			}

			ctx := httputil.WithIdentity(r.Context(), claims.OrgID, &actor.Actor{
				ID:    claims.UserID,
				Email: claims.Email,
				OrgID: claims.OrgID,
				Role:  claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
