package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/chefos/chefos-backend/internal/inventory/repository"
	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/chefos/chefos-backend/pkg/testutil"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shipmentID = "77777777-7777-7777-7777-777777777777"

func TestShipmentRepository_InsertShipment_DuplicateUpload(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("INSERT INTO inbound_shipments").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "inbound_shipments_org_dedupe_key"})

	err := repository.NewShipmentRepository(mockDB.DB).InsertShipment(context.Background(), &repository.InboundShipment{
		OrgID:      testutil.OrgID,
		LocationID: testutil.LocationID,
		Source:     repository.ShipmentSourceOCR,
		DedupeKey:  strPtr("k"),
	})

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFLICT", appErr.Code)
	assert.Equal(t, "Este albarán ya fue registrado", appErr.Message)
	assert.Equal(t, "insert_shipment", appErr.Details["operation"])
	assert.NotEmpty(t, appErr.Details["shipment_id"])
}

func TestShipmentRepository_InsertLines_SingleStatement(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	qty := decimal.RequireFromString("12.5")
	lines := []repository.InboundShipmentLine{
		{OrgID: testutil.OrgID, ShipmentID: shipmentID, LineNo: 1, Description: "Tomate pera", Qty: &qty, Unit: strPtr("kg"), Status: repository.LineReady, IsImport: true},
		{OrgID: testutil.OrgID, ShipmentID: shipmentID, LineNo: 2, Description: "Total bultos", Status: repository.LineSkipped},
	}

	mockDB.ExpectExec("INSERT INTO inbound_shipment_lines").
		WillReturnResult(testutil.NewResult(2))

	err := repository.NewShipmentRepository(mockDB.DB).InsertLines(context.Background(), lines)
	require.NoError(t, err)
	for _, l := range lines {
		assert.NotEmpty(t, l.ID)
	}
	mockDB.ExpectationsWereMet(t)
}

func TestShipmentRepository_InsertLines_Empty(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	require.NoError(t, repository.NewShipmentRepository(mockDB.DB).InsertLines(context.Background(), nil))
	mockDB.ExpectationsWereMet(t)
}

func TestShipmentRepository_GetByID(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	created := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	mockDB.ExpectQuery("FROM inbound_shipments").
		WithArgs(testutil.OrgID, shipmentID).
		WillReturnRows(testutil.MockRows(
			"id", "org_id", "location_id", "supplier_id", "supplier_name", "delivery_note_number",
			"delivered_at", "source", "raw_ocr_text", "dedupe_key", "created_by", "created_at",
		).AddRow(shipmentID, testutil.OrgID, testutil.LocationID, nil, "DISTRIBUCIONES GARCIA SL", "A-2024-118",
			created, "ocr", nil, nil, nil, created))
	mockDB.ExpectQuery("FROM inbound_shipment_lines").
		WithArgs(testutil.OrgID, shipmentID).
		WillReturnRows(testutil.MockRows(
			"id", "org_id", "shipment_id", "line_no", "description", "qty", "unit",
			"supplier_item_id", "expires_at", "lot_code", "status", "is_import", "created_at",
		).AddRow("l1", testutil.OrgID, shipmentID, 1, "Tomate pera", "12.5", "kg",
			testutil.SupplierItemID, nil, "L2403", "ready", true, created))

	s, err := repository.NewShipmentRepository(mockDB.DB).GetByID(context.Background(), testutil.OrgID, shipmentID)
	require.NoError(t, err)
	assert.Equal(t, "A-2024-118", *s.DeliveryNoteNumber)
	require.Len(t, s.Lines, 1)
	assert.Equal(t, repository.LineReady, s.Lines[0].Status)
	assert.True(t, decimal.RequireFromString("12.5").Equal(*s.Lines[0].Qty))
	mockDB.ExpectationsWereMet(t)
}

func TestShipmentRepository_GetByID_NotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	mockDB.ExpectQuery("FROM inbound_shipments").
		WillReturnRows(testutil.MockRows("id"))

	_, err := repository.NewShipmentRepository(mockDB.DB).GetByID(context.Background(), testutil.OrgID, shipmentID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestShipmentRepository_FindByDedupeKey(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewShipmentRepository(mockDB.DB)

	mockDB.ExpectQuery("SELECT id FROM inbound_shipments").
		WithArgs(testutil.OrgID, "known").
		WillReturnRows(testutil.MockRows("id").AddRow(shipmentID))
	mockDB.ExpectQuery("SELECT id FROM inbound_shipments").
		WithArgs(testutil.OrgID, "unknown").
		WillReturnRows(testutil.MockRows("id"))

	id, err := repo.FindByDedupeKey(context.Background(), testutil.OrgID, "known")
	require.NoError(t, err)
	assert.Equal(t, shipmentID, id)

	id, err = repo.FindByDedupeKey(context.Background(), testutil.OrgID, "unknown")
	require.NoError(t, err)
	assert.Empty(t, id)
	mockDB.ExpectationsWereMet(t)
}
