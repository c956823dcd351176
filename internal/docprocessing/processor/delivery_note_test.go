package processor_test

import (
	"strings"
	"testing"

	"github.com/chefos/chefos-backend/internal/docprocessing/domain"
	"github.com/chefos/chefos-backend/internal/docprocessing/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineByDescription(t *testing.T, lines []domain.ParsedDeliveryLine, desc string) domain.ParsedDeliveryLine {
	t.Helper()
	for _, l := range lines {
		if l.Description == desc {
			return l
		}
	}
	t.Fatalf("line %q not found in %+v", desc, lines)
	return domain.ParsedDeliveryLine{}
}

func TestParseDeliveryNote_SimpleNote(t *testing.T) {
	text := "ALBARÁN 1234\nProveedor Demo\nFecha: 12/01/2026\nTomate rama 10 kg\nHuevos L 30 ud"

	note := processor.ParseDeliveryNote(text)

	require.NotNil(t, note.Header.DeliveryNoteNumber)
	assert.Contains(t, *note.Header.DeliveryNoteNumber, "1234")
	require.NotNil(t, note.Header.DeliveredAt)
	assert.Equal(t, "2026-01-12", *note.Header.DeliveredAt)
	assert.Equal(t, text, note.RawText)
	assert.Empty(t, note.Warnings)

	require.Len(t, note.Lines, 2)
	first := note.Lines[0]
	assert.Equal(t, "Tomate rama", first.Description)
	require.NotNil(t, first.Qty)
	assert.Equal(t, "10", first.Qty.String())
	require.NotNil(t, first.Unit)
	assert.Equal(t, "kg", *first.Unit)

	second := note.Lines[1]
	assert.Equal(t, "Huevos L", second.Description)
	require.NotNil(t, second.Unit)
	assert.Equal(t, "ud", *second.Unit)
}

func TestParseDeliveryNote_FullNote(t *testing.T) {
	text := strings.Join([]string{
		"DISTRIBUCIONES GARCIA SL",
		"Albarán nº: A-2024-118",
		"Fécha de entrega 12/03/2026",
		"Tomate pera 12,5 kg lote L2403",
		"Leche entera 24 ud cad 20/03/2026",
		"Harina de trigo 3 cajas",
		"Total bultos",
	}, "\r\n")

	note := processor.ParseDeliveryNote(text)

	require.NotNil(t, note.Header.SupplierName)
	assert.Equal(t, "DISTRIBUCIONES GARCIA SL", *note.Header.SupplierName)
	require.NotNil(t, note.Header.DeliveryNoteNumber)
	assert.Equal(t, "A-2024-118", *note.Header.DeliveryNoteNumber)
	require.NotNil(t, note.Header.DeliveredAt)
	assert.Equal(t, "2026-03-12", *note.Header.DeliveredAt)

	require.Len(t, note.Lines, 3)

	tomate := lineByDescription(t, note.Lines, "Tomate pera")
	assert.Equal(t, "12.5", tomate.Qty.String())
	assert.Equal(t, "kg", *tomate.Unit)
	require.NotNil(t, tomate.LotCode)
	assert.Equal(t, "L2403", *tomate.LotCode)
	assert.Nil(t, tomate.ExpiresAt)

	leche := lineByDescription(t, note.Lines, "Leche entera")
	assert.Equal(t, "24", leche.Qty.String())
	assert.Equal(t, "ud", *leche.Unit)
	require.NotNil(t, leche.ExpiresAt)
	assert.Equal(t, "2026-03-20", *leche.ExpiresAt)
	assert.Nil(t, leche.LotCode)

	harina := lineByDescription(t, note.Lines, "Harina de trigo")
	assert.Equal(t, "3", harina.Qty.String())
	assert.Equal(t, "cajas", *harina.Unit)
}

func TestParseDeliveryNote_NoNumericLines(t *testing.T) {
	note := processor.ParseDeliveryNote("PROVEEDOR X\nGracias por su compra")

	assert.Empty(t, note.Lines)
	assert.NotNil(t, note.Lines)
	assert.Equal(t, []string{processor.WarningNoLines}, note.Warnings)
}

func TestParseDeliveryNote_EmptyText(t *testing.T) {
	note := processor.ParseDeliveryNote("  \n\n ")

	assert.Nil(t, note.Header.SupplierName)
	assert.Nil(t, note.Header.DeliveryNoteNumber)
	assert.Nil(t, note.Header.DeliveredAt)
	assert.Empty(t, note.Lines)
	assert.Len(t, note.Warnings, 1)
}

func TestParseDeliveryNote_SupplierHeuristic(t *testing.T) {
	t.Run("falls back to first line", func(t *testing.T) {
		note := processor.ParseDeliveryNote("Frutas López\nManzana golden 5 kg")
		require.NotNil(t, note.Header.SupplierName)
		assert.Equal(t, "Frutas López", *note.Header.SupplierName)
	})

	t.Run("skips short uppercase lines", func(t *testing.T) {
		note := processor.ParseDeliveryNote("SL\nHORTALIZAS DEL SUR\nCebolla 8 kg")
		require.NotNil(t, note.Header.SupplierName)
		assert.Equal(t, "HORTALIZAS DEL SUR", *note.Header.SupplierName)
	})

	t.Run("drops overlong names", func(t *testing.T) {
		long := strings.Repeat("PROVEEDOR MUY LARGO ", 5)
		note := processor.ParseDeliveryNote(long + "\nCebolla 8 kg")
		assert.Nil(t, note.Header.SupplierName)
	})
}

func TestParseDeliveryNote_LineWithoutUnit(t *testing.T) {
	note := processor.ParseDeliveryNote("Aceite de oliva 6")

	require.Len(t, note.Lines, 1)
	assert.Equal(t, "6", note.Lines[0].Qty.String())
	assert.Nil(t, note.Lines[0].Unit)
}

func TestParseDeliveryNote_DeliveredAtIgnoresLeadingQuantity(t *testing.T) {
	note := processor.ParseDeliveryNote("20 kg de patatas\nFecha 12/03/2026")

	require.NotNil(t, note.Header.DeliveredAt)
	assert.Equal(t, "2026-03-12", *note.Header.DeliveredAt)
}
