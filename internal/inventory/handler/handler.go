// Package handler exposes the inventory service over HTTP.
package handler

import (
	"net/http"
	"strings"

	"github.com/chefos/chefos-backend/pkg/actor"
	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/chefos/chefos-backend/pkg/tenant"
)

// identity returns the caller's organization and user
func identity(r *http.Request) (orgID, userID string, err error) {
	orgID, err = tenant.OrgID(r.Context())
	if err != nil {
		return "", "", errors.Unauthorized("organization required")
	}
	return orgID, actor.IDFromContext(r.Context()), nil
}

// queryPtr returns the trimmed query parameter, or nil when it is absent or blank
func queryPtr(r *http.Request, key string) *string {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return nil
	}
	return &v
}
