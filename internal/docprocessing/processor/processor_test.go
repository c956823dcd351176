package processor_test

import (
	"context"
	"testing"

	"github.com/chefos/chefos-backend/internal/docprocessing/domain"
	"github.com/chefos/chefos-backend/internal/docprocessing/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_FindProcessor(t *testing.T) {
	registry := processor.DefaultRegistry()

	tests := []struct {
		docType domain.DocumentType
		want    string
	}{
		{domain.DocumentTypeDeliveryNote, "delivery_note"},
		{domain.DocumentTypeExpiryLabel, "expiry_label"},
	}

	for _, tt := range tests {
		t.Run(string(tt.docType), func(t *testing.T) {
			p := registry.FindProcessor(tt.docType)
			require.NotNil(t, p)
			assert.Equal(t, tt.want, p.Name())
		})
	}

	assert.Nil(t, registry.FindProcessor("factura"))
	assert.Empty(t, registry.FindProcessors("factura"))
}

func TestDeliveryNoteProcessor_Process(t *testing.T) {
	p := processor.NewDeliveryNoteProcessor()

	result, err := p.Process(context.Background(), "Gracias", domain.DocumentTypeDeliveryNote)
	require.NoError(t, err)

	assert.Equal(t, domain.DocumentTypeDeliveryNote, result.DocumentType)
	require.NotNil(t, result.DeliveryNote)
	assert.Nil(t, result.ExpiryLot)
	assert.Equal(t, []string{processor.WarningNoLines}, result.Warnings)
}

func TestExpiryLabelProcessor_Process(t *testing.T) {
	p := processor.NewExpiryLabelProcessor()

	t.Run("suggestion found", func(t *testing.T) {
		result, err := p.Process(context.Background(), "CAD 12/03/2026", domain.DocumentTypeExpiryLabel)
		require.NoError(t, err)
		require.NotNil(t, result.ExpiryLot)
		assert.Equal(t, "2026-03-12", *result.ExpiryLot.ExpiresAt)
		assert.Empty(t, result.Warnings)
	})

	t.Run("nothing found warns", func(t *testing.T) {
		result, err := p.Process(context.Background(), "Ingredientes: harina", domain.DocumentTypeExpiryLabel)
		require.NoError(t, err)
		assert.Len(t, result.Warnings, 1)
	})
}
