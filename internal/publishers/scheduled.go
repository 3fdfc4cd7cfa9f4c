package publishers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/waveline/crm-services/dispatcher/internal/model"
	"github.com/waveline/crm-services/dispatcher/internal/repository"
	"github.com/waveline/crm-services/dispatcher/internal/service"
	"github.com/waveline/crm-services/dispatcher/pkg/mq"
	"go.uber.org/zap"
)

// ScheduledPublisher sweeps SCHEDULED campaigns whose scheduled_at has passed
// and enqueues them for the campaign worker.
type ScheduledPublisher interface {
	Publish(ctx context.Context) error
}

type scheduledPublisher struct {
	campaigns repository.CampaignRepository
	publisher mq.Publisher
	logger    *zap.Logger
}

func NewScheduledPublisher(campaigns repository.CampaignRepository, publisher mq.Publisher,
	logger *zap.Logger) ScheduledPublisher {
	return &scheduledPublisher{campaigns: campaigns, publisher: publisher, logger: logger}
}

func (s *scheduledPublisher) Publish(ctx context.Context) error {
	campaigns, err := s.campaigns.FindDueScheduled(time.Now(), 100)
	if err != nil {
		return err
	}

	if len(campaigns) == 0 {
		return nil
	}

	s.logger.Info("Publishing due campaigns", zap.Int("count", len(campaigns)))

	successCount := 0
	for _, campaign := range campaigns {
		cmd := service.RunCampaignCommand{OrgID: campaign.OrgID, CampaignID: campaign.ID}

		body, _ := json.Marshal(cmd)
		if err := s.publisher.Publish(ctx, "", QueueCampaignRun, body); err != nil {
			s.logger.Error("Failed to publish due campaign",
				zap.Error(err),
				zap.Int64("campaignID", campaign.ID))
			continue
		}

		// Claim the campaign so the next tick does not enqueue it again. The
		// worker tolerates an already-RUNNING campaign, so a failed claim only
		// costs a duplicate publish.
		now := time.Now()
		err := s.campaigns.TransitionStatus(ctx, campaign.OrgID, campaign.ID,
			[]model.CampaignStatus{model.CampaignStatusScheduled},
			model.CampaignStatusRunning,
			map[string]interface{}{"started_at": now})
		if err != nil {
			continue
		}

		successCount++
	}

	if successCount > 0 {
		s.logger.Info("Successfully published due campaigns",
			zap.Int("published", successCount),
			zap.Int("total", len(campaigns)))
	}

	return nil
}
