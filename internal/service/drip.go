package service

import (
	"context"
	"errors"
	"time"

	"github.com/waveline/crm-services/dispatcher/internal/config"
	"github.com/waveline/crm-services/dispatcher/internal/model"
	"github.com/waveline/crm-services/dispatcher/internal/repository"
	"go.uber.org/zap"
)

const sweepBatchSize = 200

// DripScheduler advances active enrollments through their sequence on a
// periodic sweep. It is not a hard real-time scheduler; due times have
// minute granularity.
type DripScheduler interface {
	Sweep(ctx context.Context) (SweepResult, error)
	Enroll(ctx context.Context, cmd EnrollCommand) (*model.DripEnrollment, error)
	CancelEnrollment(ctx context.Context, orgID, sequenceID, contactID int64) error
}

type dripScheduler struct {
	drip          repository.DripRepository
	campaigns     repository.CampaignRepository
	channels      repository.ChannelRepository
	contacts      repository.ContactRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	governor      RateGovernor
	transports    Sender
	cfg           config.Drip
	sendTimeout   time.Duration
	logger        *zap.Logger
}

func NewDripScheduler(drip repository.DripRepository, campaigns repository.CampaignRepository,
	channels repository.ChannelRepository, contacts repository.ContactRepository,
	conversations repository.ConversationRepository, messages repository.MessageRepository,
	governor RateGovernor, transports Sender, cfg *config.Config, logger *zap.Logger) DripScheduler {
	return &dripScheduler{
		drip:          drip,
		campaigns:     campaigns,
		channels:      channels,
		contacts:      contacts,
		conversations: conversations,
		messages:      messages,
		governor:      governor,
		transports:    transports,
		cfg:           cfg.Drip,
		sendTimeout:   cfg.Engine.SendTimeout,
		logger:        logger,
	}
}

func (s *dripScheduler) Sweep(ctx context.Context) (SweepResult, error) {
	now := time.Now()

	enrollments, err := s.drip.FindDueEnrollments(now, sweepBatchSize)
	if err != nil {
		return SweepResult{}, ErrDatabase
	}

	var result SweepResult
	for i := range enrollments {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		enrollment := enrollments[i]
		completed, err := s.processEnrollment(ctx, &enrollment)
		if err != nil {
			// One broken enrollment never aborts the sweep; the row stays
			// due and is retried next tick.
			s.logger.Warn("enrollment sweep failed",
				zap.Int64("enrollmentID", enrollment.ID),
				zap.Int64("sequenceID", enrollment.SequenceID),
				zap.Error(err))
			result.Errors++
			continue
		}

		result.Processed++
		if completed {
			result.Completed++
		}
	}

	if result.Processed > 0 || result.Errors > 0 {
		s.logger.Info("drip sweep finished",
			zap.Int("processed", result.Processed),
			zap.Int("completed", result.Completed),
			zap.Int("errors", result.Errors))
	}

	return result, nil
}

func (s *dripScheduler) processEnrollment(ctx context.Context, enrollment *model.DripEnrollment) (bool, error) {
	orgID := enrollment.OrgID

	step, err := s.campaigns.GetStep(orgID, enrollment.SequenceID, enrollment.CurrentStep+1)
	if err != nil {
		if errors.Is(err, repository.ErrStepNotFound) {
			if err := s.drip.Complete(ctx, orgID, enrollment.ID); err != nil &&
				!errors.Is(err, repository.ErrNoRowsAffected) {
				return false, err
			}
			return true, nil
		}
		return false, err
	}

	sequence, err := s.drip.GetSequence(orgID, enrollment.SequenceID)
	if err != nil {
		return false, err
	}

	channel, err := s.channels.GetByID(orgID, sequence.ChannelID)
	if err != nil {
		return false, err
	}
	if !channel.IsActive {
		return false, ErrChannelNotFound
	}

	contact, err := s.contacts.GetByID(orgID, enrollment.ContactID)
	if err != nil {
		return false, err
	}

	conversation, err := s.conversations.FindOrCreateOpen(ctx, orgID, contact.ID, channel.ID)
	if err != nil {
		return false, err
	}

	// The provider ceiling must be registered here too: the drip worker runs
	// without the engine, and an unregistered channel would pace at the
	// absolute maximum instead of the channel's own limit.
	s.governor.SetChannelCeiling(channel.ID, channel.RateCeiling)

	if err := s.governor.Acquire(ctx, channel.ID, step.ID, float64(step.RateLimit)); err != nil {
		return false, err
	}

	message := &model.Message{
		OrgID:          orgID,
		ConversationID: conversation.ID,
		ChannelID:      channel.ID,
		ContactID:      contact.ID,
		CampaignID:     &step.ID,
		Direction:      model.MessageDirectionOut,
		Kind:           step.PayloadKind,
		Body:           step.BodyText,
		MediaURL:       step.MediaURL,
		MediaCaption:   step.MediaCaption,
		Status:         model.MessageStatusQueued,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	if err := s.messages.Create(ctx, message); err != nil {
		return false, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	response, sendErr := s.transports.Send(sendCtx, toTransportChannel(channel), contact.Phone, toTransportPayload(step, s.logger))
	cancel()

	if sendErr != nil {
		if err := s.messages.FailTerminal(ctx, orgID, message.ID, sendErr.Error()); err != nil &&
			!errors.Is(err, repository.ErrNoRowsAffected) {
			s.logger.Error("failed to mark drip message failed",
				zap.Int64("messageID", message.ID), zap.Error(err))
		}
		// The enrollment stays due; retry happens on the next sweep.
		return false, sendErr
	}

	if err := s.messages.MarkSent(ctx, orgID, message.ID, response.ProviderMessageID); err != nil {
		s.logger.Error("failed to mark drip message sent",
			zap.Int64("messageID", message.ID), zap.Error(err))
	}

	nextDue := s.nextDueTime(orgID, enrollment.SequenceID, enrollment.CurrentStep+2)

	if err := s.drip.Advance(ctx, orgID, enrollment.ID, enrollment.CurrentStep+1, nextDue); err != nil &&
		!errors.Is(err, repository.ErrNoRowsAffected) {
		return false, err
	}

	s.logger.Debug("enrollment advanced",
		zap.Int64("enrollmentID", enrollment.ID),
		zap.Int("step", enrollment.CurrentStep+1),
		zap.Time("nextDue", nextDue))

	return false, nil
}

// nextDueTime derives the due time for the step at stepOrder. A step with no
// configured delay is due immediately on the next sweep rather than stalling
// the enrollment; a missing step is also due now so the completing sweep runs
// promptly.
func (s *dripScheduler) nextDueTime(orgID, sequenceID int64, stepOrder int) time.Time {
	now := time.Now()

	step, err := s.campaigns.GetStep(orgID, sequenceID, stepOrder)
	if err != nil {
		return now
	}

	if step.DelayMinutes > 0 {
		return now.Add(time.Duration(step.DelayMinutes) * time.Minute)
	}

	if s.cfg.ZeroDelayImmediate {
		return now
	}

	return now.Add(s.cfg.SweepInterval)
}

func (s *dripScheduler) Enroll(ctx context.Context, cmd EnrollCommand) (*model.DripEnrollment, error) {
	sequence, err := s.drip.GetSequence(cmd.OrgID, cmd.SequenceID)
	if err != nil {
		if errors.Is(err, repository.ErrSequenceNotFound) {
			return nil, ErrSequenceNotFound
		}
		return nil, ErrDatabase
	}

	contact, err := s.contacts.GetByID(cmd.OrgID, cmd.ContactID)
	if err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, ErrDatabase
	}

	if !contact.IsOptedIn {
		return nil, ErrContactOptedOut
	}

	firstDue := s.nextDueTime(cmd.OrgID, sequence.ID, 1)

	existing, err := s.drip.GetEnrollment(cmd.OrgID, cmd.SequenceID, cmd.ContactID)
	if err == nil {
		// Exactly one enrollment per (sequence, contact): re-enrollment
		// resets the existing row instead of inserting a duplicate.
		if err := s.drip.ResetEnrollment(ctx, cmd.OrgID, existing.ID, firstDue); err != nil {
			return nil, ErrDatabase
		}

		existing.Status = model.EnrollmentStatusActive
		existing.CurrentStep = 0
		existing.NextMessageAt = &firstDue
		return existing, nil
	}

	if !errors.Is(err, repository.ErrEnrollmentNotFound) {
		return nil, ErrDatabase
	}

	enrollment := &model.DripEnrollment{
		OrgID:         cmd.OrgID,
		SequenceID:    cmd.SequenceID,
		ContactID:     cmd.ContactID,
		CurrentStep:   0,
		NextMessageAt: &firstDue,
		Status:        model.EnrollmentStatusActive,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	if err := s.drip.CreateEnrollment(ctx, enrollment); err != nil {
		return nil, ErrDatabase
	}

	return enrollment, nil
}

func (s *dripScheduler) CancelEnrollment(ctx context.Context, orgID, sequenceID, contactID int64) error {
	enrollment, err := s.drip.GetEnrollment(orgID, sequenceID, contactID)
	if err != nil {
		if errors.Is(err, repository.ErrEnrollmentNotFound) {
			return ErrEnrollmentNotFound
		}
		return ErrDatabase
	}

	if err := s.drip.Cancel(ctx, orgID, enrollment.ID); err != nil &&
		!errors.Is(err, repository.ErrNoRowsAffected) {
		return ErrDatabase
	}

	return nil
}
