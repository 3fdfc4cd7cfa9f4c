package consumers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/waveline/crm-services/dispatcher/internal/service"
	"github.com/waveline/crm-services/dispatcher/pkg/mq"
	"go.uber.org/zap"
)

type CampaignRunConsumer interface {
	Consume(ctx context.Context) error
}

type campaignRunConsumer struct {
	engine   service.ExecutionEngine
	consumer mq.Consumer
	prefetch int
	logger   *zap.Logger
}

func NewCampaignRunConsumer(engine service.ExecutionEngine, consumer mq.Consumer,
	prefetch int, logger *zap.Logger) CampaignRunConsumer {
	return &campaignRunConsumer{
		engine:   engine,
		consumer: consumer,
		prefetch: prefetch,
		logger:   logger,
	}
}

func (c *campaignRunConsumer) Consume(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.prefetch, "campaign.run", c.handleMessage)
}

func (c *campaignRunConsumer) handleMessage(ctx context.Context, body []byte) error {
	c.logger.Info("received campaign run command", zap.ByteString("body", body))

	var cmd service.RunCampaignCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		c.logger.Warn("invalid campaign run command", zap.Error(err))
		return err
	}

	stats, err := c.engine.Execute(ctx, cmd.OrgID, cmd.CampaignID)
	if err != nil {
		// A missing campaign or a dead lifecycle state will not heal on
		// redelivery; only infrastructure errors are worth a requeue.
		if errors.Is(err, service.ErrDatabase) {
			return mq.Temporary(err)
		}

		c.logger.Warn("dropping campaign run command",
			zap.Error(err),
			zap.Int64("campaignID", cmd.CampaignID))
		return nil
	}

	c.logger.Info("campaign run finished",
		zap.Int64("campaignID", cmd.CampaignID),
		zap.String("status", stats.Status),
		zap.Int64("sent", stats.Sent),
		zap.Int64("failed", stats.Failed))

	return nil
}
