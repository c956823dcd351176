package service

import (
	"context"
	"testing"

	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/chefos/chefos-backend/pkg/logger"
	"github.com/chefos/chefos-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBarcode(t *testing.T) {
	mappings := map[string]string{
		"8410000000017": testutil.SupplierItemID,
		"ABC123":        otherItemID,
	}

	tests := []struct {
		name   string
		code   string
		status string
		itemID string
	}{
		{"exact match", "8410000000017", BarcodeKnown, testutil.SupplierItemID},
		{"surrounding whitespace", "  8410000000017\n", BarcodeKnown, testutil.SupplierItemID},
		{"case sensitive", "abc123", BarcodeUnknown, ""},
		{"unknown code", "0000", BarcodeUnknown, ""},
		{"empty code", "   ", BarcodeUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveBarcode(tt.code, mappings)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.itemID, got.SupplierItemID)
		})
	}
}

func TestBarcodeService_AssignAndResolve(t *testing.T) {
	store := newMemStore()
	svc := NewBarcodeService(store, logger.Nop())
	ctx := context.Background()

	_, err := svc.Assign(ctx, testutil.OrgID, " 8410000000017 ", testutil.SupplierItemID, nil)
	require.NoError(t, err)

	res, err := svc.Resolve(ctx, testutil.OrgID, "8410000000017")
	require.NoError(t, err)
	assert.Equal(t, BarcodeKnown, res.Status)

	// reassigning replaces the mapping
	_, err = svc.Assign(ctx, testutil.OrgID, "8410000000017", otherItemID, testutil.PtrString("ean13"))
	require.NoError(t, err)
	res, err = svc.Resolve(ctx, testutil.OrgID, "8410000000017")
	require.NoError(t, err)
	assert.Equal(t, otherItemID, res.SupplierItemID)

	list, err := svc.List(ctx, testutil.OrgID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// mappings are per organization
	res, err = svc.Resolve(ctx, testutil.OtherOrgID, "8410000000017")
	require.NoError(t, err)
	assert.Equal(t, BarcodeUnknown, res.Status)
}

func TestBarcodeService_AssignEmpty(t *testing.T) {
	svc := NewBarcodeService(newMemStore(), logger.Nop())

	_, err := svc.Assign(context.Background(), testutil.OrgID, "  ", testutil.SupplierItemID, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}
