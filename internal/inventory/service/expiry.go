package service

import (
	"context"
	"math"
	"time"

	"github.com/chefos/chefos-backend/internal/inventory/repository"
	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/chefos/chefos-backend/pkg/logger"
)

// ExpiryCategory buckets a batch by how soon it expires
type ExpiryCategory string

const (
	ExpiryExpired ExpiryCategory = "expired"
	ExpiryToday   ExpiryCategory = "today"
	ExpirySoon3   ExpiryCategory = "soon_3"
	ExpirySoon7   ExpiryCategory = "soon_7"
	ExpiryOK      ExpiryCategory = "ok"
	ExpiryNone    ExpiryCategory = "none"
)

// DaysUntilExpiry returns the whole days from now until expiresAt, rounded
// down, so anything already past is negative. Nil without an expiry.
func DaysUntilExpiry(expiresAt *time.Time, now time.Time) *int {
	if expiresAt == nil {
		return nil
	}
	days := int(math.Floor(expiresAt.Sub(now).Hours() / 24))
	return &days
}

// ShouldTriggerAlert reports whether a rule with daysBefore covers expiresAt
func ShouldTriggerAlert(expiresAt *time.Time, daysBefore int, now time.Time) bool {
	days := DaysUntilExpiry(expiresAt, now)
	return days != nil && *days <= daysBefore
}

// CategorizeExpiry buckets a day count from DaysUntilExpiry
func CategorizeExpiry(days *int) ExpiryCategory {
	switch {
	case days == nil:
		return ExpiryNone
	case *days < 0:
		return ExpiryExpired
	case *days == 0:
		return ExpiryToday
	case *days <= 3:
		return ExpirySoon3
	case *days <= 7:
		return ExpirySoon7
	default:
		return ExpiryOK
	}
}

// ExpiryAlert is an alert decorated for display
type ExpiryAlert struct {
	repository.ExpiryAlertView
	DaysUntil      *int           `json:"days_until"`
	ExpiryCategory ExpiryCategory `json:"expiry_category"`
}

// ExpiryService manages expiry rules and the alerts they open
type ExpiryService struct {
	store  ExpiryStore
	logger *logger.Logger
	now    func() time.Time
}

// NewExpiryService creates a new expiry service
func NewExpiryService(store ExpiryStore, log *logger.Logger) *ExpiryService {
	return &ExpiryService{store: store, logger: log, now: time.Now}
}

// CreateRule adds an enabled rule
func (s *ExpiryService) CreateRule(ctx context.Context, orgID string, daysBefore int, productType *string) (*repository.ExpiryRule, error) {
	if daysBefore < 0 {
		return nil, errors.Validation(map[string]string{"days_before": "must be 0 or greater"})
	}

	rule := &repository.ExpiryRule{
		OrgID:       orgID,
		DaysBefore:  daysBefore,
		ProductType: productType,
		IsEnabled:   true,
	}
	if err := s.store.CreateRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// ListRules lists the organization's rules
func (s *ExpiryService) ListRules(ctx context.Context, orgID string) ([]repository.ExpiryRule, error) {
	return s.store.ListRules(ctx, orgID)
}

// SetRuleEnabled switches a rule on or off
func (s *ExpiryService) SetRuleEnabled(ctx context.Context, orgID, id string, enabled bool) (*repository.ExpiryRule, error) {
	return s.store.SetRuleEnabled(ctx, orgID, id, enabled)
}

// ListAlerts lists alerts in status (open when empty) with their countdown
func (s *ExpiryService) ListAlerts(ctx context.Context, orgID, status string) ([]ExpiryAlert, error) {
	if status == "" {
		status = repository.AlertOpen
	}
	switch status {
	case repository.AlertOpen, repository.AlertDismissed, repository.AlertSent:
	default:
		return nil, errors.Validation(map[string]string{"status": "must be one of: open, dismissed, sent"})
	}

	rows, err := s.store.ListAlerts(ctx, orgID, status)
	if err != nil {
		return nil, err
	}

	now := s.now()
	alerts := make([]ExpiryAlert, 0, len(rows))
	for _, row := range rows {
		days := DaysUntilExpiry(row.ExpiresAt, now)
		alerts = append(alerts, ExpiryAlert{
			ExpiryAlertView: row,
			DaysUntil:       days,
			ExpiryCategory:  CategorizeExpiry(days),
		})
	}
	return alerts, nil
}

// DismissAlert closes an alert
func (s *ExpiryService) DismissAlert(ctx context.Context, orgID, id string) error {
	return s.store.DismissAlert(ctx, orgID, id)
}
