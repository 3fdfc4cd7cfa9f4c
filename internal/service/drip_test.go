package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/waveline/crm-services/dispatcher/internal/config"
	"github.com/waveline/crm-services/dispatcher/internal/mocks"
	"github.com/waveline/crm-services/dispatcher/internal/model"
	"github.com/waveline/crm-services/dispatcher/internal/repository"
	"github.com/waveline/crm-services/dispatcher/internal/service"
	"github.com/waveline/crm-services/dispatcher/pkg/transport"
	"go.uber.org/zap"
)

const (
	testSequenceID   = int64(11)
	testEnrollmentID = int64(500)
	testContactID    = int64(101)
)

type dripMocks struct {
	drip          *mocks.DripRepository
	campaigns     *mocks.CampaignRepository
	channels      *mocks.ChannelRepository
	contacts      *mocks.ContactRepository
	conversations *mocks.ConversationRepository
	messages      *mocks.MessageRepository
	governor      *mocks.RateGovernor
	sender        *mocks.Sender
}

func newDripScheduler(t *testing.T) (service.DripScheduler, *dripMocks) {
	t.Helper()

	m := &dripMocks{
		drip:          &mocks.DripRepository{},
		campaigns:     &mocks.CampaignRepository{},
		channels:      &mocks.ChannelRepository{},
		contacts:      &mocks.ContactRepository{},
		conversations: &mocks.ConversationRepository{},
		messages:      &mocks.MessageRepository{},
		governor:      &mocks.RateGovernor{},
		sender:        &mocks.Sender{},
	}

	cfg := &config.Config{
		Engine: config.Engine{SendTimeout: time.Second},
		Drip: config.Drip{
			SweepInterval:      time.Minute,
			ZeroDelayImmediate: true,
		},
	}

	scheduler := service.NewDripScheduler(m.drip, m.campaigns, m.channels, m.contacts,
		m.conversations, m.messages, m.governor, m.sender, cfg, zap.NewNop())

	return scheduler, m
}

func testSequence() *model.DripSequence {
	return &model.DripSequence{
		ID:        testSequenceID,
		OrgID:     testOrgID,
		ChannelID: testChannelID,
		Name:      "onboarding",
		IsActive:  true,
	}
}

func testEnrollment(currentStep int) model.DripEnrollment {
	due := time.Now().Add(-time.Second)
	return model.DripEnrollment{
		ID:            testEnrollmentID,
		OrgID:         testOrgID,
		SequenceID:    testSequenceID,
		ContactID:     testContactID,
		CurrentStep:   currentStep,
		NextMessageAt: &due,
		Status:        model.EnrollmentStatusActive,
	}
}

func testStep(order, delayMinutes int) *model.Campaign {
	id := testSequenceID
	return &model.Campaign{
		ID:             int64(1000 + order),
		OrgID:          testOrgID,
		ChannelID:      testChannelID,
		PayloadKind:    model.PayloadKindText,
		BodyText:       "step body",
		RateLimit:      5,
		IsDripStep:     true,
		DripSequenceID: &id,
		StepOrder:      order,
		DelayMinutes:   delayMinutes,
	}
}

func testDripContact() *model.Contact {
	return &model.Contact{
		ID:        testContactID,
		OrgID:     testOrgID,
		Phone:     "4915112345678",
		IsOptedIn: true,
	}
}

func expectStepSend(m *dripMocks, step *model.Campaign) {
	m.drip.On("GetSequence", testOrgID, testSequenceID).Return(testSequence(), nil)
	m.channels.On("GetByID", testOrgID, testChannelID).Return(testChannel(), nil)
	m.contacts.On("GetByID", testOrgID, testContactID).Return(testDripContact(), nil)
	m.conversations.On("FindOrCreateOpen", mock.Anything, testOrgID, testContactID, testChannelID).
		Return(&model.Conversation{ID: 901}, nil)
	m.governor.On("SetChannelCeiling", testChannelID, float64(10)).Return()
	m.governor.On("Acquire", mock.Anything, testChannelID, step.ID, float64(step.RateLimit)).Return(nil)
	m.messages.On("Create", mock.Anything, mock.AnythingOfType("*model.Message")).Return(nil)
	m.sender.On("Send", mock.Anything, mock.Anything, "4915112345678", mock.Anything).
		Return(transport.Response{ProviderMessageID: "wamid.d1"}, nil)
	m.messages.On("MarkSent", mock.Anything, testOrgID, mock.Anything, "wamid.d1").Return(nil)
}

// The delays [0, 60, 120] drive the canonical walk through a three-step
// sequence: step 1 goes out on the first sweep, step 2 sixty minutes later,
// step 3 after another 120, and the sweep after that completes the
// enrollment with no next due time.
func TestDripScheduler_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("sends the next step and schedules the following delay", func(t *testing.T) {
		scheduler, m := newDripScheduler(t)

		m.drip.On("FindDueEnrollments", mock.AnythingOfType("time.Time"), 200).
			Return([]model.DripEnrollment{testEnrollment(0)}, nil)
		m.campaigns.On("GetStep", testOrgID, testSequenceID, 1).Return(testStep(1, 0), nil)
		expectStepSend(m, testStep(1, 0))

		// The following step carries a 60 minute delay.
		m.campaigns.On("GetStep", testOrgID, testSequenceID, 2).Return(testStep(2, 60), nil)
		m.drip.On("Advance", mock.Anything, testOrgID, testEnrollmentID, 1,
			mock.MatchedBy(func(next time.Time) bool {
				delta := time.Until(next)
				return delta > 59*time.Minute && delta <= 60*time.Minute
			})).Return(nil)

		result, err := scheduler.Sweep(ctx)

		assert.NoError(t, err)
		assert.Equal(t, 1, result.Processed)
		assert.Equal(t, 0, result.Completed)
		assert.Equal(t, 0, result.Errors)
		m.drip.AssertExpectations(t)
	})

	t.Run("zero delay step is due immediately", func(t *testing.T) {
		scheduler, m := newDripScheduler(t)

		m.drip.On("FindDueEnrollments", mock.AnythingOfType("time.Time"), 200).
			Return([]model.DripEnrollment{testEnrollment(0)}, nil)
		m.campaigns.On("GetStep", testOrgID, testSequenceID, 1).Return(testStep(1, 0), nil)
		expectStepSend(m, testStep(1, 0))

		m.campaigns.On("GetStep", testOrgID, testSequenceID, 2).Return(testStep(2, 0), nil)
		m.drip.On("Advance", mock.Anything, testOrgID, testEnrollmentID, 1,
			mock.MatchedBy(func(next time.Time) bool {
				return time.Until(next) < time.Second
			})).Return(nil)

		_, err := scheduler.Sweep(ctx)

		assert.NoError(t, err)
		m.drip.AssertExpectations(t)
	})

	t.Run("last step advances due-now so the next sweep completes", func(t *testing.T) {
		scheduler, m := newDripScheduler(t)

		m.drip.On("FindDueEnrollments", mock.AnythingOfType("time.Time"), 200).
			Return([]model.DripEnrollment{testEnrollment(2)}, nil)
		m.campaigns.On("GetStep", testOrgID, testSequenceID, 3).Return(testStep(3, 120), nil)
		expectStepSend(m, testStep(3, 120))

		// No step 4: the enrollment is advanced with an immediate due time.
		m.campaigns.On("GetStep", testOrgID, testSequenceID, 4).Return(nil, repository.ErrStepNotFound)
		m.drip.On("Advance", mock.Anything, testOrgID, testEnrollmentID, 3,
			mock.MatchedBy(func(next time.Time) bool {
				return time.Until(next) < time.Second
			})).Return(nil)

		result, err := scheduler.Sweep(ctx)

		assert.NoError(t, err)
		assert.Equal(t, 1, result.Processed)
		assert.Equal(t, 0, result.Completed)
	})

	t.Run("enrollment past the last step completes", func(t *testing.T) {
		scheduler, m := newDripScheduler(t)

		m.drip.On("FindDueEnrollments", mock.AnythingOfType("time.Time"), 200).
			Return([]model.DripEnrollment{testEnrollment(3)}, nil)
		m.campaigns.On("GetStep", testOrgID, testSequenceID, 4).Return(nil, repository.ErrStepNotFound)
		m.drip.On("Complete", mock.Anything, testOrgID, testEnrollmentID).Return(nil)

		result, err := scheduler.Sweep(ctx)

		assert.NoError(t, err)
		assert.Equal(t, 1, result.Processed)
		assert.Equal(t, 1, result.Completed)
		m.sender.AssertNumberOfCalls(t, "Send", 0)
	})

	t.Run("send failure leaves the enrollment due for the next sweep", func(t *testing.T) {
		scheduler, m := newDripScheduler(t)

		m.drip.On("FindDueEnrollments", mock.AnythingOfType("time.Time"), 200).
			Return([]model.DripEnrollment{testEnrollment(0)}, nil)
		step := testStep(1, 0)
		m.campaigns.On("GetStep", testOrgID, testSequenceID, 1).Return(step, nil)
		m.drip.On("GetSequence", testOrgID, testSequenceID).Return(testSequence(), nil)
		m.channels.On("GetByID", testOrgID, testChannelID).Return(testChannel(), nil)
		m.contacts.On("GetByID", testOrgID, testContactID).Return(testDripContact(), nil)
		m.conversations.On("FindOrCreateOpen", mock.Anything, testOrgID, testContactID, testChannelID).
			Return(&model.Conversation{ID: 901}, nil)
		m.governor.On("SetChannelCeiling", testChannelID, float64(10)).Return()
		m.governor.On("Acquire", mock.Anything, testChannelID, step.ID, float64(step.RateLimit)).Return(nil)
		m.messages.On("Create", mock.Anything, mock.AnythingOfType("*model.Message")).Return(nil)
		m.sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(transport.Response{}, &transport.SendError{Code: transport.CodeProviderUnavailable, Message: "upstream 502"})
		m.messages.On("FailTerminal", mock.Anything, testOrgID, mock.Anything, mock.Anything).Return(nil)

		result, err := scheduler.Sweep(ctx)

		assert.NoError(t, err)
		assert.Equal(t, 0, result.Processed)
		assert.Equal(t, 1, result.Errors)
		m.drip.AssertNotCalled(t, "Advance",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("channel ceiling is registered before pacing", func(t *testing.T) {
		scheduler, m := newDripScheduler(t)

		// Provider allows 2 msg/s even though the step asks for 10; the
		// governor caps at whatever ceiling is registered here.
		channel := testChannel()
		channel.RateCeiling = 2
		step := testStep(1, 0)

		m.drip.On("FindDueEnrollments", mock.AnythingOfType("time.Time"), 200).
			Return([]model.DripEnrollment{testEnrollment(0)}, nil)
		m.campaigns.On("GetStep", testOrgID, testSequenceID, 1).Return(step, nil)
		m.drip.On("GetSequence", testOrgID, testSequenceID).Return(testSequence(), nil)
		m.channels.On("GetByID", testOrgID, testChannelID).Return(channel, nil)
		m.contacts.On("GetByID", testOrgID, testContactID).Return(testDripContact(), nil)
		m.conversations.On("FindOrCreateOpen", mock.Anything, testOrgID, testContactID, testChannelID).
			Return(&model.Conversation{ID: 901}, nil)
		m.governor.On("SetChannelCeiling", testChannelID, float64(2)).Return()
		m.governor.On("Acquire", mock.Anything, testChannelID, step.ID, float64(step.RateLimit)).Return(nil)
		m.messages.On("Create", mock.Anything, mock.AnythingOfType("*model.Message")).Return(nil)
		m.sender.On("Send", mock.Anything, mock.Anything, "4915112345678", mock.Anything).
			Return(transport.Response{ProviderMessageID: "wamid.d1"}, nil)
		m.messages.On("MarkSent", mock.Anything, testOrgID, mock.Anything, "wamid.d1").Return(nil)
		m.campaigns.On("GetStep", testOrgID, testSequenceID, 2).Return(nil, repository.ErrStepNotFound)
		m.drip.On("Advance", mock.Anything, testOrgID, testEnrollmentID, 1,
			mock.AnythingOfType("time.Time")).Return(nil)

		_, err := scheduler.Sweep(ctx)

		assert.NoError(t, err)
		m.governor.AssertCalled(t, "SetChannelCeiling", testChannelID, float64(2))
	})

	t.Run("one broken enrollment does not abort the sweep", func(t *testing.T) {
		scheduler, m := newDripScheduler(t)

		broken := testEnrollment(0)
		broken.ID = 600
		healthy := testEnrollment(3)

		m.drip.On("FindDueEnrollments", mock.AnythingOfType("time.Time"), 200).
			Return([]model.DripEnrollment{broken, healthy}, nil)

		// The broken row fails on sequence lookup; the healthy one completes.
		m.campaigns.On("GetStep", testOrgID, testSequenceID, 1).Return(testStep(1, 0), nil)
		m.drip.On("GetSequence", testOrgID, testSequenceID).Return(nil, repository.ErrSequenceNotFound).Once()
		m.campaigns.On("GetStep", testOrgID, testSequenceID, 4).Return(nil, repository.ErrStepNotFound)
		m.drip.On("Complete", mock.Anything, testOrgID, testEnrollmentID).Return(nil)

		result, err := scheduler.Sweep(ctx)

		assert.NoError(t, err)
		assert.Equal(t, 1, result.Processed)
		assert.Equal(t, 1, result.Errors)
		assert.Equal(t, 1, result.Completed)
	})
}

func TestDripScheduler_Enroll(t *testing.T) {
	ctx := context.Background()

	cmd := service.EnrollCommand{OrgID: testOrgID, SequenceID: testSequenceID, ContactID: testContactID}

	t.Run("creates a fresh active enrollment", func(t *testing.T) {
		scheduler, m := newDripScheduler(t)

		m.drip.On("GetSequence", testOrgID, testSequenceID).Return(testSequence(), nil)
		m.contacts.On("GetByID", testOrgID, testContactID).Return(testDripContact(), nil)
		m.campaigns.On("GetStep", testOrgID, testSequenceID, 1).Return(testStep(1, 0), nil)
		m.drip.On("GetEnrollment", testOrgID, testSequenceID, testContactID).
			Return(nil, repository.ErrEnrollmentNotFound)
		m.drip.On("CreateEnrollment", mock.Anything, mock.MatchedBy(func(e *model.DripEnrollment) bool {
			return e.Status == model.EnrollmentStatusActive &&
				e.CurrentStep == 0 &&
				e.NextMessageAt != nil
		})).Return(nil)

		enrollment, err := scheduler.Enroll(ctx, cmd)

		assert.NoError(t, err)
		assert.Equal(t, model.EnrollmentStatusActive, enrollment.Status)
		m.drip.AssertExpectations(t)
	})

	t.Run("re-enrollment resets the existing row", func(t *testing.T) {
		scheduler, m := newDripScheduler(t)

		existing := testEnrollment(3)
		existing.Status = model.EnrollmentStatusCompleted
		existing.NextMessageAt = nil

		m.drip.On("GetSequence", testOrgID, testSequenceID).Return(testSequence(), nil)
		m.contacts.On("GetByID", testOrgID, testContactID).Return(testDripContact(), nil)
		m.campaigns.On("GetStep", testOrgID, testSequenceID, 1).Return(testStep(1, 0), nil)
		m.drip.On("GetEnrollment", testOrgID, testSequenceID, testContactID).Return(&existing, nil)
		m.drip.On("ResetEnrollment", mock.Anything, testOrgID, testEnrollmentID,
			mock.AnythingOfType("time.Time")).Return(nil)

		enrollment, err := scheduler.Enroll(ctx, cmd)

		assert.NoError(t, err)
		assert.Equal(t, model.EnrollmentStatusActive, enrollment.Status)
		assert.Equal(t, 0, enrollment.CurrentStep)
		assert.NotNil(t, enrollment.NextMessageAt)
		m.drip.AssertNotCalled(t, "CreateEnrollment", mock.Anything, mock.Anything)
	})

	t.Run("opted out contact cannot be enrolled", func(t *testing.T) {
		scheduler, m := newDripScheduler(t)

		contact := testDripContact()
		contact.IsOptedIn = false

		m.drip.On("GetSequence", testOrgID, testSequenceID).Return(testSequence(), nil)
		m.contacts.On("GetByID", testOrgID, testContactID).Return(contact, nil)

		_, err := scheduler.Enroll(ctx, cmd)

		assert.ErrorIs(t, err, service.ErrContactOptedOut)
		m.drip.AssertNotCalled(t, "CreateEnrollment", mock.Anything, mock.Anything)
	})

	t.Run("unknown sequence is rejected", func(t *testing.T) {
		scheduler, m := newDripScheduler(t)

		m.drip.On("GetSequence", testOrgID, testSequenceID).Return(nil, repository.ErrSequenceNotFound)

		_, err := scheduler.Enroll(ctx, cmd)

		assert.ErrorIs(t, err, service.ErrSequenceNotFound)
	})

	t.Run("first step delay defers the first send", func(t *testing.T) {
		scheduler, m := newDripScheduler(t)

		m.drip.On("GetSequence", testOrgID, testSequenceID).Return(testSequence(), nil)
		m.contacts.On("GetByID", testOrgID, testContactID).Return(testDripContact(), nil)
		m.campaigns.On("GetStep", testOrgID, testSequenceID, 1).Return(testStep(1, 30), nil)
		m.drip.On("GetEnrollment", testOrgID, testSequenceID, testContactID).
			Return(nil, repository.ErrEnrollmentNotFound)
		m.drip.On("CreateEnrollment", mock.Anything, mock.MatchedBy(func(e *model.DripEnrollment) bool {
			return e.NextMessageAt != nil && time.Until(*e.NextMessageAt) > 29*time.Minute
		})).Return(nil)

		_, err := scheduler.Enroll(ctx, cmd)

		assert.NoError(t, err)
		m.drip.AssertExpectations(t)
	})
}

func TestDripScheduler_CancelEnrollment(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels an active enrollment", func(t *testing.T) {
		scheduler, m := newDripScheduler(t)

		enrollment := testEnrollment(1)
		m.drip.On("GetEnrollment", testOrgID, testSequenceID, testContactID).Return(&enrollment, nil)
		m.drip.On("Cancel", mock.Anything, testOrgID, testEnrollmentID).Return(nil)

		err := scheduler.CancelEnrollment(ctx, testOrgID, testSequenceID, testContactID)

		assert.NoError(t, err)
		m.drip.AssertExpectations(t)
	})

	t.Run("unknown enrollment is rejected", func(t *testing.T) {
		scheduler, m := newDripScheduler(t)

		m.drip.On("GetEnrollment", testOrgID, testSequenceID, testContactID).
			Return(nil, repository.ErrEnrollmentNotFound)

		err := scheduler.CancelEnrollment(ctx, testOrgID, testSequenceID, testContactID)

		assert.ErrorIs(t, err, service.ErrEnrollmentNotFound)
	})
}
