package service

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/chefos/chefos-backend/pkg/logger"
)

// SweepResult counts what an expiry sweep did. Skipped candidates already had
// an alert for the same rule.
type SweepResult struct {
	Orgs           int      `json:"orgs"`
	RulesEvaluated int      `json:"rules_evaluated"`
	Candidates     int      `json:"candidates"`
	Created        int      `json:"created"`
	Skipped        int      `json:"skipped"`
	AlertIDs       []string `json:"-"`
}

func (r *SweepResult) add(o SweepResult) {
	r.Orgs += o.Orgs
	r.RulesEvaluated += o.RulesEvaluated
	r.Candidates += o.Candidates
	r.Created += o.Created
	r.Skipped += o.Skipped
	r.AlertIDs = append(r.AlertIDs, o.AlertIDs...)
}

// ExpirySweeper opens expiry alerts for batches covered by enabled rules.
// Re-running it over unchanged data creates nothing.
type ExpirySweeper struct {
	uow    UnitOfWork
	store  ExpiryStore
	events EventPublisher
	logger *logger.Logger
	now    func() time.Time
}

// NewExpirySweeper creates a new expiry sweeper
func NewExpirySweeper(uow UnitOfWork, store ExpiryStore, events EventPublisher, log *logger.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		uow:    uow,
		store:  store,
		events: events,
		logger: log,
		now:    time.Now,
	}
}

// SweepAll sweeps every organization with an enabled rule. A failing
// organization does not stop the others; its error is returned joined.
func (s *ExpirySweeper) SweepAll(ctx context.Context) (SweepResult, error) {
	start := time.Now()

	orgIDs, err := s.store.ListOrgsWithEnabledRules(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	var total SweepResult
	var errs []error
	for _, orgID := range orgIDs {
		res, err := s.SweepOrg(ctx, orgID)
		if err != nil {
			s.logger.Error().Err(err).Str("org_id", orgID).Msg("expiry sweep failed for organization")
			errs = append(errs, err)
			continue
		}
		total.add(res)
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("orgs", total.Orgs).
		Int("rules", total.RulesEvaluated).
		Int("created", total.Created).
		Int("skipped", total.Skipped).
		Msg("expiry sweep completed")

	return total, stderrors.Join(errs...)
}

// SweepOrg evaluates one organization's enabled rules in one transaction
func (s *ExpirySweeper) SweepOrg(ctx context.Context, orgID string) (SweepResult, error) {
	now := s.now()
	res := SweepResult{Orgs: 1, AlertIDs: []string{}}

	err := s.uow.WithOrg(ctx, orgID, func(ctx context.Context) error {
		rules, err := s.store.ListEnabledRules(ctx, orgID)
		if err != nil {
			return err
		}

		for _, rule := range rules {
			cutoff := now.Add(time.Duration(rule.DaysBefore) * 24 * time.Hour)

			candidates, err := s.store.CountCandidates(ctx, orgID, cutoff)
			if err != nil {
				return err
			}
			ids, err := s.store.CreateAlerts(ctx, orgID, rule.ID, cutoff)
			if err != nil {
				return err
			}

			res.RulesEvaluated++
			res.Candidates += candidates
			res.Created += len(ids)
			res.Skipped += candidates - len(ids)
			res.AlertIDs = append(res.AlertIDs, ids...)
		}
		return nil
	})
	if err != nil {
		return SweepResult{}, err
	}

	if res.Created > 0 {
		s.logger.Info().Str("org_id", orgID).Int("created", res.Created).Msg("expiry alerts opened")
		if s.events != nil {
			s.events.PublishExpiryAlertsCreated(ctx, orgID, res.AlertIDs)
		}
	}
	return res, nil
}
