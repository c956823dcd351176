package repository

import (
	"context"
	"time"

	"github.com/chefos/chefos-backend/pkg/database"
	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Alert statuses
const (
	AlertOpen      = "open"
	AlertDismissed = "dismissed"
	AlertSent      = "sent"
)

// ExpiryRule opens alerts for batches expiring within DaysBefore days
type ExpiryRule struct {
	ID          string    `db:"id" json:"id"`
	OrgID       string    `db:"org_id" json:"org_id"`
	DaysBefore  int       `db:"days_before" json:"days_before"`
	ProductType *string   `db:"product_type" json:"product_type,omitempty"`
	IsEnabled   bool      `db:"is_enabled" json:"is_enabled"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ExpiryAlertView is an alert joined with its rule, batch and product
type ExpiryAlertView struct {
	ID           string          `db:"id" json:"id"`
	BatchID      string          `db:"batch_id" json:"batch_id"`
	RuleID       string          `db:"rule_id" json:"rule_id"`
	Status       string          `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	DismissedAt  *time.Time      `db:"dismissed_at" json:"dismissed_at,omitempty"`
	DaysBefore   int             `db:"days_before" json:"days_before"`
	ExpiresAt    *time.Time      `db:"expires_at" json:"expires_at,omitempty"`
	Qty          decimal.Decimal `db:"qty" json:"qty"`
	Unit         string          `db:"unit" json:"unit"`
	LotCode      *string         `db:"lot_code" json:"lot_code,omitempty"`
	Source       BatchSource     `db:"source" json:"source"`
	LocationID   string          `db:"location_id" json:"location_id"`
	LocationName *string         `db:"location_name" json:"location_name,omitempty"`
	ProductName  string          `db:"product_name" json:"product_name"`
}

// ExpiryRepository handles expiry rules and alerts
type ExpiryRepository struct {
	db *database.DB
}

// NewExpiryRepository creates a new expiry repository
func NewExpiryRepository(db *database.DB) *ExpiryRepository {
	return &ExpiryRepository{db: db}
}

// CreateRule stores a new rule
func (r *ExpiryRepository) CreateRule(ctx context.Context, rule *ExpiryRule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	query := `
		INSERT INTO expiry_rules (id, org_id, days_before, product_type, is_enabled)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.Conn(ctx).QueryRowxContext(ctx, query,
		rule.ID, rule.OrgID, rule.DaysBefore, rule.ProductType, rule.IsEnabled,
	).Scan(&rule.CreatedAt)
	return wrap(err, "create_expiry_rule", map[string]string{"org_id": rule.OrgID})
}

// ListRules lists the organization's rules, shortest horizon first
func (r *ExpiryRepository) ListRules(ctx context.Context, orgID string) ([]ExpiryRule, error) {
	query := `
		SELECT id, org_id, days_before, product_type, is_enabled, created_at
		FROM expiry_rules
		WHERE org_id = $1
		ORDER BY days_before
	`

	rules := []ExpiryRule{}
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &rules, query, orgID); err != nil {
		return nil, wrap(err, "list_expiry_rules", map[string]string{"org_id": orgID})
	}
	return rules, nil
}

// ListEnabledRules lists the rules the sweep evaluates
func (r *ExpiryRepository) ListEnabledRules(ctx context.Context, orgID string) ([]ExpiryRule, error) {
	query := `
		SELECT id, org_id, days_before, product_type, is_enabled, created_at
		FROM expiry_rules
		WHERE org_id = $1 AND is_enabled = TRUE
		ORDER BY days_before
	`

	rules := []ExpiryRule{}
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &rules, query, orgID); err != nil {
		return nil, wrap(err, "list_enabled_expiry_rules", map[string]string{"org_id": orgID})
	}
	return rules, nil
}

// SetRuleEnabled toggles a rule and returns it
func (r *ExpiryRepository) SetRuleEnabled(ctx context.Context, orgID, id string, enabled bool) (*ExpiryRule, error) {
	query := `
		UPDATE expiry_rules SET is_enabled = $3
		WHERE org_id = $1 AND id = $2
		RETURNING id, org_id, days_before, product_type, is_enabled, created_at
	`

	var rules []ExpiryRule
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &rules, query, orgID, id, enabled); err != nil {
		return nil, wrap(err, "set_expiry_rule_enabled", map[string]string{"org_id": orgID, "rule_id": id})
	}
	if len(rules) == 0 {
		return nil, errors.NotFound("expiry rule")
	}
	return &rules[0], nil
}

// ListOrgsWithEnabledRules returns the organizations the sweep has work for.
// It reads across organizations and is only called by the sweep.
func (r *ExpiryRepository) ListOrgsWithEnabledRules(ctx context.Context) ([]string, error) {
	var orgIDs []string
	query := `SELECT DISTINCT org_id FROM expiry_rules WHERE is_enabled = TRUE ORDER BY org_id`
	if err := r.db.SelectContext(ctx, &orgIDs, query); err != nil {
		return nil, wrap(err, "list_orgs_with_expiry_rules", nil)
	}
	return orgIDs, nil
}

// CountCandidates counts batches with stock left that expire at or before cutoff
func (r *ExpiryRepository) CountCandidates(ctx context.Context, orgID string, cutoff time.Time) (int, error) {
	var n int
	query := `
		SELECT COUNT(*) FROM stock_batches
		WHERE org_id = $1 AND qty > 0 AND expires_at IS NOT NULL AND expires_at <= $2
	`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &n, query, orgID, cutoff); err != nil {
		return 0, wrap(err, "count_expiry_candidates", map[string]string{"org_id": orgID})
	}
	return n, nil
}

// CreateAlerts opens one alert per candidate batch for the rule. Batches that
// already have an alert for this rule are skipped; the ids returned are only
// the alerts created by this call.
func (r *ExpiryRepository) CreateAlerts(ctx context.Context, orgID, ruleID string, cutoff time.Time) ([]string, error) {
	query := `
		INSERT INTO expiry_alerts (org_id, batch_id, rule_id, status)
		SELECT b.org_id, b.id, $2, 'open'
		FROM stock_batches b
		WHERE b.org_id = $1 AND b.qty > 0 AND b.expires_at IS NOT NULL AND b.expires_at <= $3
		ON CONFLICT (org_id, batch_id, rule_id) DO NOTHING
		RETURNING id
	`

	ids := []string{}
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &ids, query, orgID, ruleID, cutoff); err != nil {
		return nil, wrap(err, "create_expiry_alerts", map[string]string{"org_id": orgID, "rule_id": ruleID})
	}
	return ids, nil
}

// ListAlerts lists alerts in one status, newest first. The product name falls
// back from the supplier item to the preparation to "Lote".
func (r *ExpiryRepository) ListAlerts(ctx context.Context, orgID, status string) ([]ExpiryAlertView, error) {
	query := `
		SELECT a.id, a.batch_id, a.rule_id, a.status, a.created_at, a.dismissed_at,
		       er.days_before, b.expires_at, b.qty, b.unit, b.lot_code, b.source,
		       b.location_id, loc.name AS location_name,
		       COALESCE(si.name, p.name, 'Lote') AS product_name
		FROM expiry_alerts a
		JOIN expiry_rules er ON er.id = a.rule_id
		JOIN stock_batches b ON b.id = a.batch_id
		LEFT JOIN locations loc ON loc.id = b.location_id
		LEFT JOIN supplier_items si ON si.id = b.supplier_item_id
		LEFT JOIN preparations p ON p.id = b.preparation_id
		WHERE a.org_id = $1 AND a.status = $2
		ORDER BY a.created_at DESC
	`

	alerts := []ExpiryAlertView{}
	if err := sqlx.SelectContext(ctx, r.db.Conn(ctx), &alerts, query, orgID, status); err != nil {
		return nil, wrap(err, "list_expiry_alerts", map[string]string{"org_id": orgID})
	}
	return alerts, nil
}

// DismissAlert marks an alert dismissed
func (r *ExpiryRepository) DismissAlert(ctx context.Context, orgID, id string) error {
	query := `
		UPDATE expiry_alerts SET status = 'dismissed', dismissed_at = NOW()
		WHERE org_id = $1 AND id = $2
	`

	result, err := r.db.Conn(ctx).ExecContext(ctx, query, orgID, id)
	if err != nil {
		return wrap(err, "dismiss_expiry_alert", map[string]string{"org_id": orgID, "alert_id": id})
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return wrap(err, "dismiss_expiry_alert", map[string]string{"org_id": orgID, "alert_id": id})
	}
	if rows == 0 {
		return errors.NotFound("expiry alert")
	}
	return nil
}
