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

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func TestDaysUntilExpiry(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt *time.Time
		want      *int
	}{
		{"no expiry", nil, nil},
		{"later today", testutil.PtrTime(testNow.Add(5 * time.Hour)), testutil.PtrInt(0)},
		{"two days", testutil.PtrTime(testNow.Add(48 * time.Hour)), testutil.PtrInt(2)},
		{"just past", testutil.PtrTime(testNow.Add(-time.Hour)), testutil.PtrInt(-1)},
		{"a week ago", testutil.PtrTime(testNow.AddDate(0, 0, -7)), testutil.PtrInt(-7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysUntilExpiry(tt.expiresAt, testNow))
		})
	}
}

func TestShouldTriggerAlert(t *testing.T) {
	in3 := testutil.PtrTime(testNow.AddDate(0, 0, 3))

	assert.True(t, ShouldTriggerAlert(in3, 3, testNow))
	assert.True(t, ShouldTriggerAlert(in3, 7, testNow))
	assert.False(t, ShouldTriggerAlert(in3, 2, testNow))
	assert.False(t, ShouldTriggerAlert(nil, 30, testNow))
	assert.True(t, ShouldTriggerAlert(testutil.PtrTime(testNow.AddDate(0, 0, -1)), 0, testNow))
}

func TestCategorizeExpiry(t *testing.T) {
	tests := []struct {
		days *int
		want ExpiryCategory
	}{
		{nil, ExpiryNone},
		{testutil.PtrInt(-1), ExpiryExpired},
		{testutil.PtrInt(0), ExpiryToday},
		{testutil.PtrInt(1), ExpirySoon3},
		{testutil.PtrInt(3), ExpirySoon3},
		{testutil.PtrInt(4), ExpirySoon7},
		{testutil.PtrInt(7), ExpirySoon7},
		{testutil.PtrInt(8), ExpiryOK},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, CategorizeExpiry(tt.days))
		})
	}
}

func TestExpiryService_Rules(t *testing.T) {
	store := newMemStore()
	svc := NewExpiryService(store, logger.Nop())
	ctx := context.Background()

	_, err := svc.CreateRule(ctx, testutil.OrgID, -1, nil)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	rule, err := svc.CreateRule(ctx, testutil.OrgID, 3, nil)
	require.NoError(t, err)
	assert.True(t, rule.IsEnabled)

	updated, err := svc.SetRuleEnabled(ctx, testutil.OrgID, rule.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsEnabled)

	_, err = svc.SetRuleEnabled(ctx, testutil.OtherOrgID, rule.ID, true)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	rules, err := svc.ListRules(ctx, testutil.OrgID)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestExpiryService_ListAlerts(t *testing.T) {
	store := newMemStore()
	store.batches = []repository.StockBatch{{
		ID:        "batch-1",
		OrgID:     testutil.OrgID,
		Qty:       testutil.Dec("2"),
		Unit:      "kg",
		ExpiresAt: testutil.PtrTime(testNow.AddDate(0, 0, 2)),
	}}
	store.alerts = []memAlert{{id: "alert-1", orgID: testutil.OrgID, batchID: "batch-1", ruleID: "rule-1", status: repository.AlertOpen}}

	svc := NewExpiryService(store, logger.Nop())
	svc.now = func() time.Time { return testNow }
	ctx := context.Background()

	alerts, err := svc.ListAlerts(ctx, testutil.OrgID, "")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, 2, *alerts[0].DaysUntil)
	assert.Equal(t, ExpirySoon3, alerts[0].ExpiryCategory)

	_, err = svc.ListAlerts(ctx, testutil.OrgID, "closed")
	assert.True(t, errors.Is(err, errors.ErrValidation))

	require.NoError(t, svc.DismissAlert(ctx, testutil.OrgID, "alert-1"))
	alerts, err = svc.ListAlerts(ctx, testutil.OrgID, repository.AlertOpen)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	err = svc.DismissAlert(ctx, testutil.OrgID, "alert-1")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
