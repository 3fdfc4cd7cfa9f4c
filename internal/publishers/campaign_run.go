package publishers

import (
	"context"
	"encoding/json"

	"github.com/waveline/crm-services/dispatcher/internal/service"
	"github.com/waveline/crm-services/dispatcher/pkg/mq"
	"go.uber.org/zap"
)

const QueueCampaignRun = "campaign.run"

// RunPublisher hands a single campaign to the worker fleet. The API uses it
// for explicit start/resume requests.
type RunPublisher interface {
	PublishRun(ctx context.Context, cmd service.RunCampaignCommand) error
}

type runPublisher struct {
	publisher mq.Publisher
	logger    *zap.Logger
}

func NewRunPublisher(publisher mq.Publisher, logger *zap.Logger) RunPublisher {
	return &runPublisher{publisher: publisher, logger: logger}
}

func (r *runPublisher) PublishRun(ctx context.Context, cmd service.RunCampaignCommand) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	if err := r.publisher.Publish(ctx, "", QueueCampaignRun, body); err != nil {
		r.logger.Error("Failed to publish campaign run",
			zap.Error(err),
			zap.Int64("campaignID", cmd.CampaignID))
		return err
	}

	r.logger.Info("Published campaign run",
		zap.Int64("orgID", cmd.OrgID),
		zap.Int64("campaignID", cmd.CampaignID))

	return nil
}
