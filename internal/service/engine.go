package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/waveline/crm-services/dispatcher/internal/config"
	"github.com/waveline/crm-services/dispatcher/internal/model"
	"github.com/waveline/crm-services/dispatcher/internal/repository"
	"github.com/waveline/crm-services/dispatcher/pkg/transport"
	"go.uber.org/zap"
)

// Sender is the transport surface the engine needs; satisfied by
// transport.Registry.
type Sender interface {
	Send(ctx context.Context, channel transport.Channel, to string, payload transport.Payload) (transport.Response, error)
}

// ExecutionEngine drives a campaign run: it pulls claimable recipients in
// batches, paces them through the rate governor and transport, records
// per-recipient outcomes and advances the campaign lifecycle.
type ExecutionEngine interface {
	Execute(ctx context.Context, orgID, campaignID int64) (CampaignStats, error)
	Pause(ctx context.Context, orgID, campaignID int64) (CampaignStats, error)
	Cancel(ctx context.Context, orgID, campaignID int64) (CampaignStats, error)
	Stats(ctx context.Context, orgID, campaignID int64) (CampaignStats, error)
}

type engine struct {
	campaigns     repository.CampaignRepository
	recipients    repository.RecipientRepository
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	channels      repository.ChannelRepository
	governor      RateGovernor
	transports    Sender
	cfg           config.Engine
	logger        *zap.Logger
}

func NewExecutionEngine(campaigns repository.CampaignRepository, recipients repository.RecipientRepository,
	messages repository.MessageRepository, conversations repository.ConversationRepository,
	channels repository.ChannelRepository, governor RateGovernor, transports Sender,
	cfg *config.Config, logger *zap.Logger) ExecutionEngine {
	return &engine{
		campaigns:     campaigns,
		recipients:    recipients,
		messages:      messages,
		conversations: conversations,
		channels:      channels,
		governor:      governor,
		transports:    transports,
		cfg:           cfg.Engine,
		logger:        logger,
	}
}

func (e *engine) Execute(ctx context.Context, orgID, campaignID int64) (CampaignStats, error) {
	campaign, err := e.campaigns.GetByID(orgID, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return CampaignStats{}, ErrCampaignNotFound
		}
		return CampaignStats{}, ErrDatabase
	}

	channel, err := e.channels.GetByID(orgID, campaign.ChannelID)
	if err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			return CampaignStats{}, ErrChannelNotFound
		}
		return CampaignStats{}, ErrDatabase
	}

	if !channel.IsActive {
		return CampaignStats{}, ErrChannelNotFound
	}

	extra := map[string]interface{}{}
	if campaign.StartedAt == nil {
		extra["started_at"] = time.Now()
	}

	err = e.campaigns.TransitionStatus(ctx, orgID, campaignID,
		[]model.CampaignStatus{model.CampaignStatusDraft, model.CampaignStatusScheduled, model.CampaignStatusPaused},
		model.CampaignStatusRunning, extra)
	if err != nil {
		if !errors.Is(err, repository.ErrNoRowsAffected) {
			return CampaignStats{}, ErrDatabase
		}

		current, loadErr := e.campaigns.GetByID(orgID, campaignID)
		if loadErr != nil {
			return CampaignStats{}, ErrDatabase
		}

		// A campaign already RUNNING is safe to re-enter: the claim step
		// skips everything another worker holds, so a duplicate invocation
		// sends nothing twice and a crashed run is resumed.
		if current.Status != model.CampaignStatusRunning {
			return CampaignStats{}, ErrInvalidStateTransition
		}
	}

	e.logger.Info("campaign run started",
		zap.Int64("orgID", orgID),
		zap.Int64("campaignID", campaignID),
		zap.Int("rateLimit", campaign.RateLimit))

	e.governor.SetChannelCeiling(channel.ID, channel.RateCeiling)

	if err := e.runLoop(ctx, orgID, campaign, channel); err != nil {
		return CampaignStats{}, err
	}

	return e.Stats(ctx, orgID, campaignID)
}

func (e *engine) runLoop(ctx context.Context, orgID int64, campaign *model.Campaign, channel *model.Channel) error {
	defer e.governor.ReleaseCampaign(campaign.ID)

	tchannel := toTransportChannel(channel)
	payload := toTransportPayload(campaign, e.logger)

	for {
		// Reload so pause/cancel is observed before any new claim is issued.
		// In-flight sends always finish.
		stopped, err := e.stoppedByStatusChange(orgID, campaign.ID)
		if err != nil {
			return err
		}
		if stopped {
			return nil
		}

		staleThreshold := time.Now().Add(-e.cfg.ClaimStaleness)
		batch, err := e.recipients.ListClaimable(orgID, campaign.ID, e.cfg.BatchSize, staleThreshold)
		if err != nil {
			return ErrDatabase
		}

		if len(batch) == 0 {
			return e.tryComplete(ctx, orgID, campaign.ID)
		}

		claimed := 0
		for i := range batch {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			// A pause or cancel must stop the run mid-batch, not after up to a
			// whole batch of further sends. The row just checked at the loop
			// top covers the first claim.
			if i > 0 {
				stopped, err := e.stoppedByStatusChange(orgID, campaign.ID)
				if err != nil {
					return err
				}
				if stopped {
					return nil
				}
			}

			recipient := batch[i]
			if err := e.recipients.ClaimForSending(ctx, &recipient, staleThreshold); err != nil {
				if errors.Is(err, repository.ErrNoRowsAffected) {
					continue
				}
				return ErrDatabase
			}
			claimed++

			e.processRecipient(ctx, campaign, tchannel, payload, &recipient)
		}

		// Every claim lost to another worker: let the other run finish
		// instead of spinning on its in-flight rows.
		if claimed == 0 {
			return nil
		}
	}
}

func (e *engine) stoppedByStatusChange(orgID, campaignID int64) (bool, error) {
	current, err := e.campaigns.GetByID(orgID, campaignID)
	if err != nil {
		return false, ErrDatabase
	}

	if current.Status != model.CampaignStatusRunning {
		e.logger.Info("campaign run stopped by status change",
			zap.Int64("campaignID", campaignID),
			zap.String("status", string(current.Status)))
		return true, nil
	}

	return false, nil
}

// processRecipient attempts one send and records the outcome. Failures are
// data, not errors: nothing here aborts the run.
func (e *engine) processRecipient(ctx context.Context, campaign *model.Campaign,
	tchannel transport.Channel, payload transport.Payload, recipient *model.CampaignRecipient) {
	orgID := campaign.OrgID

	if err := e.governor.Acquire(ctx, tchannel.ID, campaign.ID, float64(campaign.RateLimit)); err != nil {
		// Shutdown while waiting for a slot; the recipient was claimed but
		// never attempted, so hand it back.
		if releaseErr := e.recipients.ReleaseToPending(ctx, orgID, recipient.ID, "shutdown before send"); releaseErr != nil {
			e.logger.Error("failed to release recipient after shutdown",
				zap.Int64("recipientID", recipient.ID), zap.Error(releaseErr))
		}
		return
	}

	conversation, err := e.conversations.FindOrCreateOpen(ctx, orgID, recipient.ContactID, tchannel.ID)
	if err != nil {
		e.logger.Error("failed to resolve conversation",
			zap.Int64("recipientID", recipient.ID),
			zap.Int64("contactID", recipient.ContactID),
			zap.Error(err))
		e.recordTransientFailure(ctx, campaign, recipient, "conversation lookup failed")
		return
	}

	message := &model.Message{
		OrgID:          orgID,
		ConversationID: conversation.ID,
		ChannelID:      tchannel.ID,
		ContactID:      recipient.ContactID,
		CampaignID:     &campaign.ID,
		Direction:      model.MessageDirectionOut,
		Kind:           campaign.PayloadKind,
		Body:           campaign.BodyText,
		MediaURL:       campaign.MediaURL,
		MediaCaption:   campaign.MediaCaption,
		Status:         model.MessageStatusQueued,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	if err := e.messages.Create(ctx, message); err != nil {
		e.logger.Error("failed to create message record",
			zap.Int64("recipientID", recipient.ID), zap.Error(err))
		e.recordTransientFailure(ctx, campaign, recipient, "message create failed")
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.cfg.SendTimeout)
	response, sendErr := e.transports.Send(sendCtx, tchannel, recipient.Phone, payload)
	cancel()

	if sendErr == nil {
		e.recordSuccess(ctx, campaign, recipient, message, response.ProviderMessageID)
		return
	}

	e.logger.Debug("send attempt failed",
		zap.Int64("campaignID", campaign.ID),
		zap.Int64("recipientID", recipient.ID),
		zap.Int("attempt", recipient.AttemptCount),
		zap.Error(sendErr))

	if err := e.messages.FailTerminal(ctx, orgID, message.ID, sendErr.Error()); err != nil &&
		!errors.Is(err, repository.ErrNoRowsAffected) {
		e.logger.Error("failed to mark message failed",
			zap.Int64("messageID", message.ID), zap.Error(err))
	}

	if transport.IsPermanent(sendErr) {
		e.recordPermanentFailure(ctx, campaign, recipient, sendErr.Error())
		return
	}

	e.recordTransientFailure(ctx, campaign, recipient, sendErr.Error())
}

func (e *engine) recordSuccess(ctx context.Context, campaign *model.Campaign,
	recipient *model.CampaignRecipient, message *model.Message, providerMessageID string) {
	orgID := campaign.OrgID

	if err := e.messages.MarkSent(ctx, orgID, message.ID, providerMessageID); err != nil {
		e.logger.Error("failed to mark message sent",
			zap.Int64("messageID", message.ID), zap.Error(err))
	}

	if err := e.recipients.MarkSent(ctx, orgID, recipient.ID, message.ID); err != nil {
		e.logger.Error("failed to mark recipient sent",
			zap.Int64("recipientID", recipient.ID), zap.Error(err))
		return
	}

	if err := e.campaigns.IncrementSent(ctx, orgID, campaign.ID); err != nil {
		e.logger.Error("failed to increment sent counter",
			zap.Int64("campaignID", campaign.ID), zap.Error(err))
	}
}

func (e *engine) recordPermanentFailure(ctx context.Context, campaign *model.Campaign,
	recipient *model.CampaignRecipient, lastError string) {
	orgID := campaign.OrgID

	if err := e.recipients.MarkFailed(ctx, orgID, recipient.ID, lastError); err != nil {
		e.logger.Error("failed to mark recipient failed",
			zap.Int64("recipientID", recipient.ID), zap.Error(err))
		return
	}

	if err := e.campaigns.IncrementFailed(ctx, orgID, campaign.ID); err != nil {
		e.logger.Error("failed to increment failed counter",
			zap.Int64("campaignID", campaign.ID), zap.Error(err))
	}
}

// recordTransientFailure returns the recipient to PENDING for a later pass,
// converting to FAILED once the attempt budget is spent.
func (e *engine) recordTransientFailure(ctx context.Context, campaign *model.Campaign,
	recipient *model.CampaignRecipient, lastError string) {
	if recipient.AttemptCount >= e.cfg.MaxAttempts {
		e.logger.Warn("recipient exceeded max attempts",
			zap.Int64("recipientID", recipient.ID),
			zap.Int("attempts", recipient.AttemptCount))
		e.recordPermanentFailure(ctx, campaign, recipient, "exceeded max attempts: "+lastError)
		return
	}

	if err := e.recipients.ReleaseToPending(ctx, campaign.OrgID, recipient.ID, lastError); err != nil {
		e.logger.Error("failed to release recipient to pending",
			zap.Int64("recipientID", recipient.ID), zap.Error(err))
	}
}

func (e *engine) tryComplete(ctx context.Context, orgID, campaignID int64) error {
	pending, err := e.recipients.CountByStatus(orgID, campaignID, model.RecipientStatusPending)
	if err != nil {
		return ErrDatabase
	}

	inFlight, err := e.recipients.CountByStatus(orgID, campaignID, model.RecipientStatusSending)
	if err != nil {
		return ErrDatabase
	}

	if pending > 0 || inFlight > 0 {
		return nil
	}

	err = e.campaigns.TransitionStatus(ctx, orgID, campaignID,
		[]model.CampaignStatus{model.CampaignStatusRunning},
		model.CampaignStatusCompleted,
		map[string]interface{}{"completed_at": time.Now()})
	if err != nil && !errors.Is(err, repository.ErrNoRowsAffected) {
		return ErrDatabase
	}

	if err == nil {
		e.logger.Info("campaign completed",
			zap.Int64("orgID", orgID),
			zap.Int64("campaignID", campaignID))
	}

	return nil
}

func (e *engine) Pause(ctx context.Context, orgID, campaignID int64) (CampaignStats, error) {
	err := e.campaigns.TransitionStatus(ctx, orgID, campaignID,
		[]model.CampaignStatus{model.CampaignStatusRunning},
		model.CampaignStatusPaused, nil)
	if err != nil {
		if !errors.Is(err, repository.ErrNoRowsAffected) {
			return CampaignStats{}, ErrDatabase
		}

		current, loadErr := e.campaigns.GetByID(orgID, campaignID)
		if loadErr != nil {
			if errors.Is(loadErr, repository.ErrCampaignNotFound) {
				return CampaignStats{}, ErrCampaignNotFound
			}
			return CampaignStats{}, ErrDatabase
		}

		if current.Status != model.CampaignStatusPaused {
			return CampaignStats{}, ErrInvalidStateTransition
		}
	}

	return e.Stats(ctx, orgID, campaignID)
}

func (e *engine) Cancel(ctx context.Context, orgID, campaignID int64) (CampaignStats, error) {
	// Remaining PENDING recipients stay PENDING so the reached/unreached
	// split stays inspectable after cancellation.
	err := e.campaigns.TransitionStatus(ctx, orgID, campaignID,
		[]model.CampaignStatus{model.CampaignStatusDraft, model.CampaignStatusScheduled,
			model.CampaignStatusRunning, model.CampaignStatusPaused},
		model.CampaignStatusCancelled, nil)
	if err != nil {
		if !errors.Is(err, repository.ErrNoRowsAffected) {
			return CampaignStats{}, ErrDatabase
		}

		current, loadErr := e.campaigns.GetByID(orgID, campaignID)
		if loadErr != nil {
			if errors.Is(loadErr, repository.ErrCampaignNotFound) {
				return CampaignStats{}, ErrCampaignNotFound
			}
			return CampaignStats{}, ErrDatabase
		}

		if current.Status != model.CampaignStatusCancelled {
			return CampaignStats{}, ErrInvalidStateTransition
		}
	}

	return e.Stats(ctx, orgID, campaignID)
}

func (e *engine) Stats(ctx context.Context, orgID, campaignID int64) (CampaignStats, error) {
	campaign, err := e.campaigns.GetByID(orgID, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return CampaignStats{}, ErrCampaignNotFound
		}
		return CampaignStats{}, ErrDatabase
	}

	pending, err := e.recipients.CountByStatus(orgID, campaignID, model.RecipientStatusPending)
	if err != nil {
		return CampaignStats{}, ErrDatabase
	}

	return CampaignStats{
		CampaignID:      campaign.ID,
		Status:          string(campaign.Status),
		TotalRecipients: campaign.TotalRecipients,
		Sent:            campaign.SentCount,
		Delivered:       campaign.DeliveredCount,
		Failed:          campaign.FailedCount,
		Pending:         pending,
	}, nil
}

func toTransportChannel(channel *model.Channel) transport.Channel {
	return transport.Channel{
		ID:            channel.ID,
		Kind:          channel.Kind,
		PhoneNumberID: channel.PhoneNumberID,
		InstanceURL:   channel.InstanceURL,
		Token:         channel.Token,
	}
}

func toTransportPayload(campaign *model.Campaign, logger *zap.Logger) transport.Payload {
	payload := transport.Payload{
		Kind:         campaign.PayloadKind,
		Text:         campaign.BodyText,
		MediaURL:     campaign.MediaURL,
		MediaCaption: campaign.MediaCaption,
		TemplateName: campaign.TemplateName,
	}

	if campaign.TemplateParams != "" {
		var params []string
		if err := json.Unmarshal([]byte(campaign.TemplateParams), &params); err != nil {
			// The template goes out without parameters; the provider rejects
			// it as PAYLOAD_REJECTED if they were required.
			logger.Warn("corrupt template params, sending without them",
				zap.Int64("campaignID", campaign.ID),
				zap.Error(err))
		} else {
			payload.TemplateParams = params
		}
	}

	return payload
}
