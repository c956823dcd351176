package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chefos/chefos-backend/pkg/actor"
	"github.com/chefos/chefos-backend/pkg/config"
	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/chefos/chefos-backend/pkg/logger"
	"github.com/chefos/chefos-backend/pkg/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOrgID  = "11111111-1111-1111-1111-111111111111"
	testUserID = "66666666-6666-6666-6666-666666666666"
)

func newTestManager(expiry time.Duration) *Manager {
	return NewManager(&config.JWTConfig{
		Secret:       "test-secret",
		AccessExpiry: expiry,
		Issuer:       "chefos-test",
	})
}

func TestManager_RoundTrip(t *testing.T) {
	m := newTestManager(time.Hour)

	token, expiry, err := m.GenerateAccessToken(&UserInfo{ID: testUserID, Email: "cocina@example.com", OrgID: testOrgID, Role: "manager"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, 5*time.Second)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, testUserID, claims.UserID)
	assert.Equal(t, testOrgID, claims.OrgID)
	assert.Equal(t, "manager", claims.Role)
}

func TestManager_ValidateAccessToken_Errors(t *testing.T) {
	m := newTestManager(time.Hour)

	t.Run("expired", func(t *testing.T) {
		expired := newTestManager(-time.Minute)
		token, _, err := expired.GenerateAccessToken(&UserInfo{ID: testUserID, OrgID: testOrgID})
		require.NoError(t, err)

		_, err = m.ValidateAccessToken(token)
		assert.True(t, errors.Is(err, errors.ErrTokenExpired))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewManager(&config.JWTConfig{Secret: "other", AccessExpiry: time.Hour})
		token, _, err := other.GenerateAccessToken(&UserInfo{ID: testUserID, OrgID: testOrgID})
		require.NoError(t, err)

		_, err = m.ValidateAccessToken(token)
		assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.ValidateAccessToken("not-a-token")
		assert.True(t, errors.Is(err, errors.ErrTokenInvalid))
	})
}

func TestMiddleware(t *testing.T) {
	m := newTestManager(time.Hour)
	var gotOrg, gotUser string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOrg, _ = tenant.OrgID(r.Context())
		gotUser = actor.IDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(m, logger.Nop())(next)

	valid, _, err := m.GenerateAccessToken(&UserInfo{ID: testUserID, OrgID: testOrgID})
	require.NoError(t, err)
	noOrg, _, err := m.GenerateAccessToken(&UserInfo{ID: testUserID})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"token without org", "Bearer " + noOrg, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}

	assert.Equal(t, testOrgID, gotOrg)
	assert.Equal(t, testUserID, gotUser)
}
