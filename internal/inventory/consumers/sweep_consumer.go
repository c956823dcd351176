package consumers

import (
	"context"

	"github.com/chefos/chefos-backend/internal/inventory/service"
	"github.com/chefos/chefos-backend/pkg/logger"
	"github.com/chefos/chefos-backend/pkg/messaging"
)

const sweepQueue = "expiry-sweep"

// Sweeper runs the expiry sweep. *service.ExpirySweeper implements it.
type Sweeper interface {
	SweepAll(ctx context.Context) (service.SweepResult, error)
	SweepOrg(ctx context.Context, orgID string) (service.SweepResult, error)
}

// SweepRequestConsumer runs the expiry sweep on request from other services
type SweepRequestConsumer struct {
	consumer *messaging.Consumer
	sweeper  Sweeper
	logger   *logger.Logger
}

// NewSweepRequestConsumer creates a new sweep request consumer
func NewSweepRequestConsumer(rmq *messaging.RabbitMQ, sweeper Sweeper, log *logger.Logger) (*SweepRequestConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, sweepQueue, log, messaging.EventExpirySweepRequested)
	if err != nil {
		return nil, err
	}

	c := &SweepRequestConsumer{
		consumer: consumer,
		sweeper:  sweeper,
		logger:   log,
	}
	consumer.RegisterHandler(messaging.EventExpirySweepRequested, c.handleSweepRequested)

	return c, nil
}

// Start starts consuming messages
func (c *SweepRequestConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *SweepRequestConsumer) handleSweepRequested(ctx context.Context, event *messaging.Event) error {
	var data messaging.ExpirySweepRequestedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Info().
		Str("org_id", data.OrgID).
		Str("source", event.Source).
		Msg("received expiry sweep request")

	var (
		res service.SweepResult
		err error
	)
	if data.OrgID == "" {
		res, err = c.sweeper.SweepAll(ctx)
	} else {
		res, err = c.sweeper.SweepOrg(ctx, data.OrgID)
	}
	if err != nil {
		return err
	}

	c.logger.Info().Int("created", res.Created).Int("skipped", res.Skipped).Msg("requested expiry sweep done")
	return nil
}
