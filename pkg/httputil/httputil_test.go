package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/chefos/chefos-backend/pkg/messaging"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_RendersAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, errors.UnitMismatch("Unidad incompatible con el stock agregado").
		WithDetails(map[string]string{"line": "2"}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNIT_MISMATCH", resp.Error.Code)
	assert.Equal(t, "2", resp.Error.Details["line"])
}

func TestError_UnknownErrorIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestErrorWithData_CarriesPartialResult(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrorWithData(rec, errors.Conflict("dup"), map[string]string{"shipment_id": "abc"})

	var resp struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "abc", resp.Data["shipment_id"])
}

func TestPagination(t *testing.T) {
	tests := []struct {
		query       string
		wantPage    int
		wantPerPage int
	}{
		{"", 1, 50},
		{"page=3&per_page=20", 3, 20},
		{"page=-1&per_page=1000", 1, 200},
		{"page=abc", 1, 50},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			page, perPage := Pagination(r)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPerPage, perPage)
		})
	}
}

func TestNewMeta(t *testing.T) {
	meta := NewMeta(2, 20, 45)
	assert.Equal(t, 3, meta.TotalPages)
}

func TestValidate_UsesJSONNamesAndDecimals(t *testing.T) {
	type req struct {
		Unit string          `json:"unit" validate:"required"`
		Qty  decimal.Decimal `json:"qty" validate:"gt=0"`
	}

	err := Validate(req{Qty: decimal.Zero})
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "this field is required", appErr.Details["unit"])
	assert.Equal(t, "must be greater than 0", appErr.Details["qty"])

	assert.NoError(t, Validate(req{Unit: "kg", Qty: decimal.NewFromFloat(1.5)}))
}

func TestRequestID_SetsCorrelationID(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = messaging.CorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-7", got)
	assert.Equal(t, "req-7", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, got)
	assert.Equal(t, rec.Header().Get("X-Request-ID"), got)
}
