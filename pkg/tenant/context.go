package tenant

import (
	"context"
	"errors"
)

// contextKey is a private type for context keys to prevent collisions
type contextKey string

const orgIDKey contextKey = "org_id"

var (
	// ErrNoOrgInContext is returned when the organization is missing
	ErrNoOrgInContext = errors.New("no organization in context")
)

// WithOrgID adds the organization ID to context.
// Called by the auth middleware after validating the bearer token.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgIDKey, orgID)
}

// OrgID extracts the organization ID from context
// Returns ErrNoOrgInContext if it is not found
func OrgID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(orgIDKey).(string)
	if !ok || id == "" {
		return "", ErrNoOrgInContext
	}
	return id, nil
}

