package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chefos/chefos-backend/internal/inventory/repository"
	"github.com/chefos/chefos-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory implementation of every store the services use.
// WithOrg keeps a snapshot and restores it when fn fails.
type memStore struct {
	nextID int
	calls  int

	shipments map[string]repository.InboundShipment
	lines     []repository.InboundShipmentLine

	itemUnits map[string]*string
	itemNames map[string]string
	batches   []repository.StockBatch
	movements []repository.StockMovement
	levels    map[string]repository.StockLevel

	mappings []repository.BarcodeMapping

	rules  []repository.ExpiryRule
	alerts []memAlert

	preps map[string]repository.Preparation
	runs  []repository.PreparationRun

	failInsertBatch error
	failOrg         map[string]error
}

type memAlert struct {
	id      string
	orgID   string
	batchID string
	ruleID  string
	status  string
}

type memState struct {
	shipments map[string]repository.InboundShipment
	lines     []repository.InboundShipmentLine
	batches   []repository.StockBatch
	movements []repository.StockMovement
	levels    map[string]repository.StockLevel
	alerts    []memAlert
	runs      []repository.PreparationRun
}

func newMemStore() *memStore {
	return &memStore{
		shipments: map[string]repository.InboundShipment{},
		itemUnits: map[string]*string{},
		levels:    map[string]repository.StockLevel{},
		preps:     map[string]repository.Preparation{},
		failOrg:   map[string]error{},
	}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *memStore) snapshot() memState {
	s := memState{
		shipments: make(map[string]repository.InboundShipment, len(m.shipments)),
		lines:     append([]repository.InboundShipmentLine(nil), m.lines...),
		batches:   append([]repository.StockBatch(nil), m.batches...),
		movements: append([]repository.StockMovement(nil), m.movements...),
		levels:    make(map[string]repository.StockLevel, len(m.levels)),
		alerts:    append([]memAlert(nil), m.alerts...),
		runs:      append([]repository.PreparationRun(nil), m.runs...),
	}
	for k, v := range m.shipments {
		s.shipments[k] = v
	}
	for k, v := range m.levels {
		s.levels[k] = v
	}
	return s
}

func (m *memStore) restore(s memState) {
	m.shipments = s.shipments
	m.lines = s.lines
	m.batches = s.batches
	m.movements = s.movements
	m.levels = s.levels
	m.alerts = s.alerts
	m.runs = s.runs
}

func (m *memStore) WithOrg(ctx context.Context, orgID string, fn func(context.Context) error) error {
	if err, ok := m.failOrg[orgID]; ok {
		return err
	}
	snap := m.snapshot()
	if err := fn(ctx); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// ShipmentStore

func (m *memStore) InsertShipment(ctx context.Context, s *repository.InboundShipment) error {
	m.calls++
	for _, existing := range m.shipments {
		if existing.OrgID == s.OrgID && existing.DedupeKey != nil && s.DedupeKey != nil && *existing.DedupeKey == *s.DedupeKey {
			return errors.Conflict("Este albarán ya fue registrado")
		}
	}
	s.ID = m.id("shipment")
	s.CreatedAt = time.Now()
	m.shipments[s.ID] = *s
	return nil
}

func (m *memStore) InsertLines(ctx context.Context, lines []repository.InboundShipmentLine) error {
	m.calls++
	for i := range lines {
		lines[i].ID = m.id("line")
		m.lines = append(m.lines, lines[i])
	}
	return nil
}

func (m *memStore) GetByID(ctx context.Context, orgID, id string) (*repository.InboundShipment, error) {
	s, ok := m.shipments[id]
	if !ok || s.OrgID != orgID {
		return nil, errors.NotFound("shipment")
	}
	for _, l := range m.lines {
		if l.ShipmentID == id {
			s.Lines = append(s.Lines, l)
		}
	}
	return &s, nil
}

func (m *memStore) FindByDedupeKey(ctx context.Context, orgID, key string) (string, error) {
	for id, s := range m.shipments {
		if s.OrgID == orgID && s.DedupeKey != nil && *s.DedupeKey == key {
			return id, nil
		}
	}
	return "", nil
}

func (m *memStore) ListMissingExpiry(ctx context.Context, orgID, locationID string) ([]repository.MissingExpiryLine, error) {
	var out []repository.MissingExpiryLine
	for _, l := range m.lines {
		s := m.shipments[l.ShipmentID]
		if l.OrgID != orgID || l.ExpiresAt != nil || !l.IsImport {
			continue
		}
		if locationID != "" && s.LocationID != locationID {
			continue
		}
		out = append(out, repository.MissingExpiryLine{
			LineID:      l.ID,
			ShipmentID:  l.ShipmentID,
			LocationID:  s.LocationID,
			Description: l.Description,
		})
	}
	return out, nil
}

// StockLedger

func (m *memStore) SupplierItemUnit(ctx context.Context, orgID, supplierItemID string) (*string, error) {
	m.calls++
	unit, ok := m.itemUnits[supplierItemID]
	if !ok {
		return nil, errors.NotFound("supplier item")
	}
	return unit, nil
}

func (m *memStore) InsertBatch(ctx context.Context, b *repository.StockBatch) error {
	m.calls++
	if m.failInsertBatch != nil {
		return m.failInsertBatch
	}
	b.ID = m.id("batch")
	m.batches = append(m.batches, *b)
	return nil
}

func (m *memStore) InsertMovement(ctx context.Context, mv *repository.StockMovement) error {
	m.calls++
	mv.ID = m.id("movement")
	m.movements = append(m.movements, *mv)
	return nil
}

// levelKey mirrors the stock_levels primary key, which leaves org_id out
func levelKey(locationID, supplierItemID string) string {
	return locationID + "/" + supplierItemID
}

func (m *memStore) IncrementLevel(ctx context.Context, orgID, locationID, supplierItemID string, delta decimal.Decimal, unit string) (decimal.Decimal, bool, error) {
	m.calls++
	key := levelKey(locationID, supplierItemID)
	lvl, ok := m.levels[key]
	switch {
	case !ok:
		lvl = repository.StockLevel{OrgID: orgID, LocationID: locationID, SupplierItemID: supplierItemID, Unit: unit}
	case lvl.OrgID != orgID:
		return decimal.Zero, false, errors.Conflict("level owned by another organization")
	case lvl.Unit != unit:
		return decimal.Zero, false, nil
	}
	lvl.OnHandQty = lvl.OnHandQty.Add(delta)
	m.levels[key] = lvl
	return lvl.OnHandQty, true, nil
}

func (m *memStore) ListLevels(ctx context.Context, orgID, locationID string) ([]repository.StockLevel, error) {
	var out []repository.StockLevel
	for _, l := range m.levels {
		if l.OrgID == orgID && (locationID == "" || l.LocationID == locationID) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) ListBatches(ctx context.Context, orgID string, f repository.BatchFilter) ([]repository.BatchView, error) {
	now := time.Now()
	soon := now.AddDate(0, 0, 7)
	out := []repository.BatchView{}
	for _, b := range m.batches {
		if b.OrgID != orgID || b.LocationID != f.LocationID {
			continue
		}
		name := "Item"
		if b.SupplierItemID != nil {
			if n, ok := m.itemNames[*b.SupplierItemID]; ok {
				name = n
			}
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(f.Search)) {
			continue
		}
		if f.Expired && (b.ExpiresAt == nil || !b.ExpiresAt.Before(now)) {
			continue
		}
		if !f.Expired && f.ExpiringSoon && (b.ExpiresAt == nil || b.ExpiresAt.After(soon)) {
			continue
		}
		out = append(out, repository.BatchView{StockBatch: b, ItemName: name})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ExpiresAt, out[j].ExpiresAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return out, nil
}

func (m *memStore) level(orgID, locationID, supplierItemID string) (repository.StockLevel, bool) {
	l, ok := m.levels[levelKey(locationID, supplierItemID)]
	return l, ok && l.OrgID == orgID
}

// BarcodeStore

func (m *memStore) ListMappings(ctx context.Context, orgID string) ([]repository.BarcodeMapping, error) {
	var out []repository.BarcodeMapping
	for _, mp := range m.mappings {
		if mp.OrgID == orgID {
			out = append(out, mp)
		}
	}
	return out, nil
}

func (m *memStore) Upsert(ctx context.Context, mp *repository.BarcodeMapping) error {
	for i, existing := range m.mappings {
		if existing.OrgID == mp.OrgID && existing.Barcode == mp.Barcode {
			mp.ID = existing.ID
			m.mappings[i] = *mp
			return nil
		}
	}
	mp.ID = m.id("mapping")
	m.mappings = append(m.mappings, *mp)
	return nil
}

// ExpiryStore

func (m *memStore) CreateRule(ctx context.Context, rule *repository.ExpiryRule) error {
	rule.ID = m.id("rule")
	m.rules = append(m.rules, *rule)
	return nil
}

func (m *memStore) ListRules(ctx context.Context, orgID string) ([]repository.ExpiryRule, error) {
	var out []repository.ExpiryRule
	for _, r := range m.rules {
		if r.OrgID == orgID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ListEnabledRules(ctx context.Context, orgID string) ([]repository.ExpiryRule, error) {
	var out []repository.ExpiryRule
	for _, r := range m.rules {
		if r.OrgID == orgID && r.IsEnabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) SetRuleEnabled(ctx context.Context, orgID, id string, enabled bool) (*repository.ExpiryRule, error) {
	for i, r := range m.rules {
		if r.OrgID == orgID && r.ID == id {
			m.rules[i].IsEnabled = enabled
			out := m.rules[i]
			return &out, nil
		}
	}
	return nil, errors.NotFound("expiry rule")
}

func (m *memStore) ListOrgsWithEnabledRules(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, r := range m.rules {
		if r.IsEnabled && !seen[r.OrgID] {
			seen[r.OrgID] = true
			out = append(out, r.OrgID)
		}
	}
	return out, nil
}

func (m *memStore) candidates(orgID string, cutoff time.Time) []repository.StockBatch {
	var out []repository.StockBatch
	for _, b := range m.batches {
		if b.OrgID == orgID && b.ExpiresAt != nil && !b.ExpiresAt.After(cutoff) {
			out = append(out, b)
		}
	}
	return out
}

func (m *memStore) CountCandidates(ctx context.Context, orgID string, cutoff time.Time) (int, error) {
	return len(m.candidates(orgID, cutoff)), nil
}

func (m *memStore) CreateAlerts(ctx context.Context, orgID, ruleID string, cutoff time.Time) ([]string, error) {
	ids := []string{}
	for _, b := range m.candidates(orgID, cutoff) {
		exists := false
		for _, a := range m.alerts {
			if a.batchID == b.ID && a.ruleID == ruleID {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		a := memAlert{id: m.id("alert"), orgID: orgID, batchID: b.ID, ruleID: ruleID, status: repository.AlertOpen}
		m.alerts = append(m.alerts, a)
		ids = append(ids, a.id)
	}
	return ids, nil
}

func (m *memStore) ListAlerts(ctx context.Context, orgID, status string) ([]repository.ExpiryAlertView, error) {
	var out []repository.ExpiryAlertView
	for _, a := range m.alerts {
		if a.orgID != orgID || a.status != status {
			continue
		}
		view := repository.ExpiryAlertView{ID: a.id, BatchID: a.batchID, RuleID: a.ruleID, Status: a.status, ProductName: "Lote"}
		for _, b := range m.batches {
			if b.ID == a.batchID {
				view.ExpiresAt = b.ExpiresAt
				view.Qty = b.Qty
				view.Unit = b.Unit
				view.LocationID = b.LocationID
			}
		}
		out = append(out, view)
	}
	return out, nil
}

func (m *memStore) DismissAlert(ctx context.Context, orgID, id string) error {
	for i, a := range m.alerts {
		if a.orgID == orgID && a.id == id && a.status == repository.AlertOpen {
			m.alerts[i].status = repository.AlertDismissed
			return nil
		}
	}
	return errors.NotFound("expiry alert")
}

// PreparationStore

func (m *memStore) GetPreparation(ctx context.Context, orgID, id string) (*repository.Preparation, error) {
	p, ok := m.preps[id]
	if !ok || p.OrgID != orgID {
		return nil, errors.NotFound("preparation")
	}
	return &p, nil
}

func (m *memStore) ListPreparations(ctx context.Context, orgID string) ([]repository.Preparation, error) {
	out := []repository.Preparation{}
	for _, p := range m.preps {
		if p.OrgID == orgID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) CreatePreparation(ctx context.Context, p *repository.Preparation) error {
	for _, existing := range m.preps {
		if existing.OrgID == p.OrgID && strings.EqualFold(existing.Name, p.Name) {
			return errors.Conflict("duplicate preparation")
		}
	}
	p.ID = m.id("prep")
	p.CreatedAt = time.Now()
	m.preps[p.ID] = *p
	return nil
}

func (m *memStore) InsertRun(ctx context.Context, run *repository.PreparationRun) error {
	run.ID = m.id("run")
	m.runs = append(m.runs, *run)
	return nil
}

// recordingEvents captures published events
type recordingEvents struct {
	shipments []string
	received  []string
	alerts    [][]string
	runs      []string
}

func (e *recordingEvents) PublishShipmentIngested(ctx context.Context, s *repository.InboundShipment, outcome string, linesTotal, linesApplied int) {
	e.shipments = append(e.shipments, outcome)
}

func (e *recordingEvents) PublishStockReceived(ctx context.Context, b *repository.StockBatch, onHand decimal.Decimal) {
	e.received = append(e.received, b.ID)
}

func (e *recordingEvents) PublishExpiryAlertsCreated(ctx context.Context, orgID string, alertIDs []string) {
	e.alerts = append(e.alerts, alertIDs)
}

func (e *recordingEvents) PublishPreparationRunCreated(ctx context.Context, run *repository.PreparationRun) {
	e.runs = append(e.runs, run.ID)
}
