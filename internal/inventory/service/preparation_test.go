package service

import (
	"context"
	"testing"
	"time"

	"github.com/chefos/chefos-backend/internal/inventory/repository"
	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/chefos/chefos-backend/pkg/logger"
	"github.com/chefos/chefos-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeExpiresAt(t *testing.T) {
	madrid := time.FixedZone("CET", 3600)
	produced := time.Date(2024, 2, 28, 23, 30, 0, 0, madrid)

	got := ComputeExpiresAt(produced, 2)
	assert.Equal(t, time.Date(2024, 3, 1, 22, 30, 0, 0, time.UTC), got)
	assert.Equal(t, produced.UTC(), ComputeExpiresAt(produced, 0))
}

func newTestPreparationService(store *memStore, events EventPublisher) *PreparationService {
	svc := NewPreparationService(store, store, store, events, logger.Nop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestPreparationService_CreateRun(t *testing.T) {
	store := newMemStore()
	store.preps[testutil.PreparationID] = repository.Preparation{
		ID:            testutil.PreparationID,
		OrgID:         testutil.OrgID,
		Name:          "Salsa de tomate",
		Unit:          "kg",
		ShelfLifeDays: testutil.PtrInt(3),
	}
	events := &recordingEvents{}
	svc := newTestPreparationService(store, events)

	res, err := svc.CreateRun(context.Background(), PreparationRunInput{
		OrgID:         testutil.OrgID,
		PreparationID: testutil.PreparationID,
		LocationID:    testutil.LocationID,
		Qty:           testutil.Dec("4"),
		CreatedBy:     testutil.UserID,
	})
	require.NoError(t, err)

	require.NotNil(t, res.ExpiresAt)
	assert.Equal(t, testNow.AddDate(0, 0, 3), *res.ExpiresAt)

	require.Len(t, store.batches, 1)
	batch := store.batches[0]
	assert.Equal(t, repository.SourcePrep, batch.Source)
	assert.Equal(t, "kg", batch.Unit)
	assert.Nil(t, batch.SupplierItemID)
	require.NotNil(t, batch.PreparationID)
	assert.Equal(t, testutil.PreparationID, *batch.PreparationID)

	require.Len(t, store.movements, 1)
	assert.Equal(t, "prep", store.movements[0].Reason)
	require.Len(t, store.runs, 1)
	assert.Equal(t, 1, store.runs[0].LabelsCount)
	assert.Empty(t, store.levels)
	assert.Equal(t, []string{res.RunID}, events.runs)
}

func TestPreparationService_CreateRun_NoShelfLife(t *testing.T) {
	store := newMemStore()
	store.preps[testutil.PreparationID] = repository.Preparation{ID: testutil.PreparationID, OrgID: testutil.OrgID, Unit: "l"}
	svc := newTestPreparationService(store, nil)

	res, err := svc.CreateRun(context.Background(), PreparationRunInput{
		OrgID:         testutil.OrgID,
		PreparationID: testutil.PreparationID,
		LocationID:    testutil.LocationID,
		Qty:           testutil.Dec("2"),
		Unit:          testutil.PtrString("ud"),
		LabelsCount:   testutil.PtrInt(4),
	})
	require.NoError(t, err)
	assert.Nil(t, res.ExpiresAt)
	assert.Equal(t, "ud", store.batches[0].Unit)
	assert.Equal(t, 4, store.runs[0].LabelsCount)
}

func TestPreparationService_CreateRun_Rejections(t *testing.T) {
	store := newMemStore()
	svc := newTestPreparationService(store, nil)
	ctx := context.Background()

	_, err := svc.CreateRun(ctx, PreparationRunInput{OrgID: testutil.OrgID, PreparationID: testutil.PreparationID, Qty: testutil.Dec("0")})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = svc.CreateRun(ctx, PreparationRunInput{OrgID: testutil.OrgID, PreparationID: testutil.PreparationID, Qty: testutil.Dec("1")})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Empty(t, store.batches)
}

func TestPreparationService_CreatePreparation_Defaults(t *testing.T) {
	store := newMemStore()
	svc := newTestPreparationService(store, nil)

	p, err := svc.CreatePreparation(context.Background(), PreparationInput{
		OrgID:     testutil.OrgID,
		Name:      "  Salsa brava ",
		Allergens: testutil.PtrString("  "),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Salsa brava", p.Name)
	assert.Equal(t, "ud", p.Unit)
	assert.Equal(t, "fridge", p.Storage)
	assert.Equal(t, "cooked", p.DefaultProcessType)
	assert.Nil(t, p.Allergens)
	assert.Nil(t, p.DefaultYieldQty)

	stored, err := svc.preps.GetPreparation(context.Background(), testutil.OrgID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Salsa brava", stored.Name)
}

func TestPreparationService_CreatePreparation_Rejections(t *testing.T) {
	zero := testutil.Dec("0")
	tests := []struct {
		name  string
		in    PreparationInput
		field string
	}{
		{"blank name", PreparationInput{Name: "   "}, "name"},
		{"negative shelf life", PreparationInput{Name: "Caldo", ShelfLifeDays: testutil.PtrInt(-1)}, "shelf_life_days"},
		{"unknown storage", PreparationInput{Name: "Caldo", Storage: "cellar"}, "storage"},
		{"unknown process type", PreparationInput{Name: "Caldo", DefaultProcessType: "smoked"}, "default_process_type"},
		{"zero yield", PreparationInput{Name: "Caldo", DefaultYieldQty: &zero}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			svc := newTestPreparationService(store, nil)
			tt.in.OrgID = testutil.OrgID

			_, err := svc.CreatePreparation(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))
			if tt.field != "" {
				var appErr *errors.AppError
				require.True(t, errors.As(err, &appErr))
				assert.Contains(t, appErr.Details, tt.field)
			}
			assert.Empty(t, store.preps)
		})
	}
}

func TestPreparationService_ListPreparations(t *testing.T) {
	store := newMemStore()
	svc := newTestPreparationService(store, nil)
	ctx := context.Background()

	for _, name := range []string{"Salsa de tomate", "Caldo", "Alioli"} {
		_, err := svc.CreatePreparation(ctx, PreparationInput{OrgID: testutil.OrgID, Name: name})
		require.NoError(t, err)
	}
	_, err := svc.CreatePreparation(ctx, PreparationInput{OrgID: testutil.OtherOrgID, Name: "Fumet"})
	require.NoError(t, err)

	preps, err := svc.ListPreparations(ctx, testutil.OrgID)
	require.NoError(t, err)
	names := make([]string, 0, len(preps))
	for _, p := range preps {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Alioli", "Caldo", "Salsa de tomate"}, names)
}

func TestPreparationService_CreatedPreparationCanRun(t *testing.T) {
	store := newMemStore()
	svc := newTestPreparationService(store, nil)
	ctx := context.Background()

	p, err := svc.CreatePreparation(ctx, PreparationInput{OrgID: testutil.OrgID, Name: "Caldo", Unit: "l", ShelfLifeDays: testutil.PtrInt(2)})
	require.NoError(t, err)

	res, err := svc.CreateRun(ctx, PreparationRunInput{
		OrgID:         testutil.OrgID,
		PreparationID: p.ID,
		LocationID:    testutil.LocationID,
		Qty:           testutil.Dec("5"),
	})
	require.NoError(t, err)
	require.NotNil(t, res.ExpiresAt)
	assert.Equal(t, testNow.UTC().AddDate(0, 0, 2), *res.ExpiresAt)
	require.Len(t, store.batches, 1)
	assert.Equal(t, "l", store.batches[0].Unit)
}
