package service

import (
	"context"
	"errors"

	"github.com/waveline/crm-services/dispatcher/internal/model"
	"github.com/waveline/crm-services/dispatcher/internal/repository"
	"go.uber.org/zap"
)

// Reconciler applies asynchronous delivery callbacks to Message records.
// Updates are idempotent under at-least-once, out-of-order webhook delivery:
// a callback reporting an earlier lifecycle state than the recorded one is
// dropped.
type Reconciler interface {
	// Apply never returns an error for unknown message ids or stale statuses;
	// webhooks cannot be meaningfully rejected. It reports whether the
	// callback changed anything.
	Apply(ctx context.Context, callback StatusCallback) (bool, error)
}

type reconciler struct {
	messages   repository.MessageRepository
	recipients repository.RecipientRepository
	campaigns  repository.CampaignRepository
	logger     *zap.Logger
}

func NewReconciler(messages repository.MessageRepository, recipients repository.RecipientRepository,
	campaigns repository.CampaignRepository, logger *zap.Logger) Reconciler {
	return &reconciler{messages: messages, recipients: recipients, campaigns: campaigns, logger: logger}
}

func (r *reconciler) Apply(ctx context.Context, callback StatusCallback) (bool, error) {
	status := model.MessageStatus(callback.NewStatus)

	message, err := r.messages.GetByProviderMessageID(callback.ProviderMessageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			r.logger.Warn("status callback for unknown message dropped",
				zap.String("providerMessageID", callback.ProviderMessageID),
				zap.String("status", callback.NewStatus))
			return false, nil
		}
		return false, ErrDatabase
	}

	if status == model.MessageStatusFailed {
		err := r.messages.FailTerminal(ctx, message.OrgID, message.ID, callback.ErrorDetail)
		if err != nil {
			if errors.Is(err, repository.ErrNoRowsAffected) {
				return false, nil
			}
			return false, ErrDatabase
		}
		return true, nil
	}

	if _, ok := model.StatusRank(status); !ok {
		r.logger.Warn("status callback with unknown status dropped",
			zap.String("providerMessageID", callback.ProviderMessageID),
			zap.String("status", callback.NewStatus))
		return false, nil
	}

	err = r.messages.AdvanceStatus(ctx, message.OrgID, message.ID, status, callback.Timestamp)
	if err != nil {
		if errors.Is(err, repository.ErrNoRowsAffected) {
			// Out-of-order or duplicate callback; already past this state.
			return false, nil
		}
		return false, ErrDatabase
	}

	if status == model.MessageStatusDelivered && message.CampaignID != nil {
		r.bumpDelivered(ctx, message)
	}

	return true, nil
}

// bumpDelivered patches campaign-side delivery bookkeeping; best effort, the
// message row is already authoritative.
func (r *reconciler) bumpDelivered(ctx context.Context, message *model.Message) {
	if err := r.recipients.MarkDelivered(ctx, message.OrgID, *message.CampaignID, message.ContactID); err != nil {
		r.logger.Error("failed to mark recipient delivered",
			zap.Int64("messageID", message.ID), zap.Error(err))
		return
	}

	if err := r.campaigns.IncrementDelivered(ctx, message.OrgID, *message.CampaignID); err != nil {
		r.logger.Error("failed to increment delivered counter",
			zap.Int64("campaignID", *message.CampaignID), zap.Error(err))
	}
}
