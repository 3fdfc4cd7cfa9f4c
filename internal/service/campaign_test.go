package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/waveline/crm-services/dispatcher/internal/mocks"
	"github.com/waveline/crm-services/dispatcher/internal/model"
	"github.com/waveline/crm-services/dispatcher/internal/repository"
	"github.com/waveline/crm-services/dispatcher/internal/service"
	"go.uber.org/zap"
)

type campaignMocks struct {
	campaigns  *mocks.CampaignRepository
	recipients *mocks.RecipientRepository
	contacts   *mocks.ContactRepository
	channels   *mocks.ChannelRepository
	tx         *mocks.TxManager
	staging    *mocks.StagingStore
}

func newCampaignService(t *testing.T) (service.CampaignService, *campaignMocks) {
	t.Helper()

	m := &campaignMocks{
		campaigns:  &mocks.CampaignRepository{},
		recipients: &mocks.RecipientRepository{},
		contacts:   &mocks.ContactRepository{},
		channels:   &mocks.ChannelRepository{},
		tx:         &mocks.TxManager{},
		staging:    &mocks.StagingStore{},
	}

	svc := service.NewCampaignService(m.campaigns, m.recipients, m.contacts,
		m.channels, m.tx, m.staging, zap.NewNop())

	return svc, m
}

func optedInContact(id int64, phone string) model.Contact {
	return model.Contact{
		ID:        id,
		OrgID:     testOrgID,
		Phone:     phone,
		IsOptedIn: true,
	}
}

func TestCampaignService_CreateCampaign(t *testing.T) {
	ctx := context.Background()

	baseCmd := func() service.CreateCampaignCommand {
		return service.CreateCampaignCommand{
			OrgID:       testOrgID,
			ChannelID:   testChannelID,
			Name:        "spring promo",
			PayloadKind: model.PayloadKindText,
			BodyText:    "hello",
			RateLimit:   5,
		}
	}

	t.Run("creates a draft campaign", func(t *testing.T) {
		svc, m := newCampaignService(t)

		m.channels.On("GetByID", testOrgID, testChannelID).Return(testChannel(), nil)
		m.campaigns.On("Create", mock.Anything, mock.MatchedBy(func(c *model.Campaign) bool {
			return c.Status == model.CampaignStatusDraft && c.RateLimit == 5
		})).Return(nil)

		resp, err := svc.CreateCampaign(ctx, baseCmd())

		assert.NoError(t, err)
		assert.Equal(t, string(model.CampaignStatusDraft), resp.Status)
		m.campaigns.AssertExpectations(t)
	})

	t.Run("scheduled_at puts the campaign in SCHEDULED", func(t *testing.T) {
		svc, m := newCampaignService(t)

		cmd := baseCmd()
		at := time.Now().Add(time.Hour)
		cmd.ScheduledAt = &at

		m.channels.On("GetByID", testOrgID, testChannelID).Return(testChannel(), nil)
		m.campaigns.On("Create", mock.Anything, mock.MatchedBy(func(c *model.Campaign) bool {
			return c.Status == model.CampaignStatusScheduled && c.ScheduledAt != nil
		})).Return(nil)

		resp, err := svc.CreateCampaign(ctx, cmd)

		assert.NoError(t, err)
		assert.Equal(t, string(model.CampaignStatusScheduled), resp.Status)
	})

	t.Run("rate limit is clamped to the allowed range", func(t *testing.T) {
		svc, m := newCampaignService(t)

		cmd := baseCmd()
		cmd.RateLimit = 100

		m.channels.On("GetByID", testOrgID, testChannelID).Return(testChannel(), nil)
		m.campaigns.On("Create", mock.Anything, mock.MatchedBy(func(c *model.Campaign) bool {
			return c.RateLimit == model.MaxRateLimit
		})).Return(nil)

		_, err := svc.CreateCampaign(ctx, cmd)

		assert.NoError(t, err)
		m.campaigns.AssertExpectations(t)
	})

	t.Run("text campaign without body is rejected", func(t *testing.T) {
		svc, m := newCampaignService(t)

		cmd := baseCmd()
		cmd.BodyText = ""

		_, err := svc.CreateCampaign(ctx, cmd)

		assert.ErrorIs(t, err, service.ErrInvalidPayload)
		m.campaigns.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("template campaign requires a template name", func(t *testing.T) {
		svc, _ := newCampaignService(t)

		cmd := baseCmd()
		cmd.PayloadKind = model.PayloadKindTemplate
		cmd.TemplateName = ""

		_, err := svc.CreateCampaign(ctx, cmd)

		assert.ErrorIs(t, err, service.ErrInvalidPayload)
	})

	t.Run("unknown channel is rejected", func(t *testing.T) {
		svc, m := newCampaignService(t)

		m.channels.On("GetByID", testOrgID, testChannelID).Return(nil, repository.ErrChannelNotFound)

		_, err := svc.CreateCampaign(ctx, baseCmd())

		assert.ErrorIs(t, err, service.ErrChannelNotFound)
	})
}

func TestCampaignService_AddRecipients(t *testing.T) {
	ctx := context.Background()

	cmd := service.AddRecipientsCommand{
		OrgID:      testOrgID,
		CampaignID: testCampaignID,
		ContactIDs: []int64{101, 102, 103},
	}

	t.Run("adds opted-in contacts and bumps the total", func(t *testing.T) {
		svc, m := newCampaignService(t)

		m.campaigns.On("GetByID", testOrgID, testCampaignID).Return(testCampaign(model.CampaignStatusDraft), nil)
		m.contacts.On("ListByIDs", testOrgID, cmd.ContactIDs).Return([]model.Contact{
			optedInContact(101, "4915100000001"),
			optedInContact(102, "4915100000002"),
			optedInContact(103, "4915100000003"),
		}, nil)
		m.recipients.On("Create", mock.Anything, mock.AnythingOfType("*model.CampaignRecipient")).Return(nil)
		m.campaigns.On("AddTotalRecipients", mock.Anything, testOrgID, testCampaignID, int64(1)).Return(nil)

		resp, err := svc.AddRecipients(ctx, cmd)

		assert.NoError(t, err)
		assert.Equal(t, 3, resp.Added)
		m.campaigns.AssertNumberOfCalls(t, "AddTotalRecipients", 3)
	})

	t.Run("duplicate contact is skipped without counting", func(t *testing.T) {
		svc, m := newCampaignService(t)

		m.campaigns.On("GetByID", testOrgID, testCampaignID).Return(testCampaign(model.CampaignStatusDraft), nil)
		m.contacts.On("ListByIDs", testOrgID, cmd.ContactIDs).Return([]model.Contact{
			optedInContact(101, "4915100000001"),
			optedInContact(102, "4915100000002"),
			optedInContact(103, "4915100000003"),
		}, nil)
		m.recipients.On("Create", mock.Anything, mock.MatchedBy(func(r *model.CampaignRecipient) bool {
			return r.ContactID == 102
		})).Return(repository.ErrRecipientDuplicate)
		m.recipients.On("Create", mock.Anything, mock.AnythingOfType("*model.CampaignRecipient")).Return(nil)
		m.campaigns.On("AddTotalRecipients", mock.Anything, testOrgID, testCampaignID, int64(1)).Return(nil)

		resp, err := svc.AddRecipients(ctx, cmd)

		assert.NoError(t, err)
		assert.Equal(t, 2, resp.Added)
		assert.Equal(t, 1, resp.Skipped)
		m.campaigns.AssertNumberOfCalls(t, "AddTotalRecipients", 2)
	})

	t.Run("opted-out contact is excluded even when requested", func(t *testing.T) {
		svc, m := newCampaignService(t)

		optedOut := optedInContact(102, "4915100000002")
		optedOut.IsOptedIn = false

		m.campaigns.On("GetByID", testOrgID, testCampaignID).Return(testCampaign(model.CampaignStatusDraft), nil)
		m.contacts.On("ListByIDs", testOrgID, cmd.ContactIDs).Return([]model.Contact{
			optedInContact(101, "4915100000001"),
			optedOut,
			optedInContact(103, "4915100000003"),
		}, nil)
		m.recipients.On("Create", mock.Anything, mock.AnythingOfType("*model.CampaignRecipient")).Return(nil)
		m.campaigns.On("AddTotalRecipients", mock.Anything, testOrgID, testCampaignID, int64(1)).Return(nil)

		resp, err := svc.AddRecipients(ctx, cmd)

		assert.NoError(t, err)
		assert.Equal(t, 2, resp.Added)
		assert.Equal(t, 1, resp.OptedOut)
		m.recipients.AssertNumberOfCalls(t, "Create", 2)
	})

	t.Run("unknown contacts are reported not found", func(t *testing.T) {
		svc, m := newCampaignService(t)

		m.campaigns.On("GetByID", testOrgID, testCampaignID).Return(testCampaign(model.CampaignStatusDraft), nil)
		m.contacts.On("ListByIDs", testOrgID, cmd.ContactIDs).Return([]model.Contact{
			optedInContact(101, "4915100000001"),
		}, nil)
		m.recipients.On("Create", mock.Anything, mock.AnythingOfType("*model.CampaignRecipient")).Return(nil)
		m.campaigns.On("AddTotalRecipients", mock.Anything, testOrgID, testCampaignID, int64(1)).Return(nil)

		resp, err := svc.AddRecipients(ctx, cmd)

		assert.NoError(t, err)
		assert.Equal(t, 1, resp.Added)
		assert.Equal(t, 2, resp.NotFound)
	})

	t.Run("non-draft campaign rejects recipient changes", func(t *testing.T) {
		svc, m := newCampaignService(t)

		m.campaigns.On("GetByID", testOrgID, testCampaignID).Return(testCampaign(model.CampaignStatusRunning), nil)

		_, err := svc.AddRecipients(ctx, cmd)

		assert.ErrorIs(t, err, service.ErrCampaignNotDraft)
		m.recipients.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestCampaignService_ImportRecipients(t *testing.T) {
	ctx := context.Background()

	const stagingKey = "imports/7/recipients.txt"

	t.Run("parses the staged file and resolves contacts by phone", func(t *testing.T) {
		svc, m := newCampaignService(t)

		file := []byte("# spring promo list\n4915100000001\n\n4915100000002\n4915100000001\n4915100000099\n")

		m.campaigns.On("GetByID", testOrgID, testCampaignID).Return(testCampaign(model.CampaignStatusDraft), nil)
		m.staging.On("ConsumeOnce", mock.Anything, stagingKey).Return(file, nil)
		// Comments, blanks and the duplicate line are stripped before lookup.
		m.contacts.On("ListByPhones", testOrgID,
			[]string{"4915100000001", "4915100000002", "4915100000099"}).
			Return([]model.Contact{
				optedInContact(101, "4915100000001"),
				optedInContact(102, "4915100000002"),
			}, nil)
		m.recipients.On("Create", mock.Anything, mock.AnythingOfType("*model.CampaignRecipient")).Return(nil)
		m.campaigns.On("AddTotalRecipients", mock.Anything, testOrgID, testCampaignID, int64(1)).Return(nil)

		resp, err := svc.ImportRecipients(ctx, testOrgID, testCampaignID, stagingKey)

		assert.NoError(t, err)
		assert.Equal(t, 2, resp.Added)
		assert.Equal(t, 1, resp.NotFound)
		m.staging.AssertExpectations(t)
	})

	t.Run("non-draft campaign discards the upload", func(t *testing.T) {
		svc, m := newCampaignService(t)

		m.campaigns.On("GetByID", testOrgID, testCampaignID).Return(testCampaign(model.CampaignStatusRunning), nil)
		m.staging.On("Delete", mock.Anything, stagingKey).Return(nil)

		_, err := svc.ImportRecipients(ctx, testOrgID, testCampaignID, stagingKey)

		assert.ErrorIs(t, err, service.ErrCampaignNotDraft)
		m.staging.AssertCalled(t, "Delete", mock.Anything, stagingKey)
		m.staging.AssertNotCalled(t, "ConsumeOnce", mock.Anything, mock.Anything)
	})

	t.Run("empty file imports nothing", func(t *testing.T) {
		svc, m := newCampaignService(t)

		m.campaigns.On("GetByID", testOrgID, testCampaignID).Return(testCampaign(model.CampaignStatusDraft), nil)
		m.staging.On("ConsumeOnce", mock.Anything, stagingKey).Return([]byte("\n# nothing here\n\n"), nil)

		resp, err := svc.ImportRecipients(ctx, testOrgID, testCampaignID, stagingKey)

		assert.NoError(t, err)
		assert.Zero(t, resp.Added)
		m.contacts.AssertNotCalled(t, "ListByPhones", mock.Anything, mock.Anything)
	})

	t.Run("missing staged object fails the import", func(t *testing.T) {
		svc, m := newCampaignService(t)

		m.campaigns.On("GetByID", testOrgID, testCampaignID).Return(testCampaign(model.CampaignStatusDraft), nil)
		m.staging.On("ConsumeOnce", mock.Anything, stagingKey).Return(nil, assert.AnError)

		_, err := svc.ImportRecipients(ctx, testOrgID, testCampaignID, stagingKey)

		assert.ErrorIs(t, err, service.ErrDatabase)
	})
}

func TestCampaignService_DeleteCampaign(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes a draft with its recipients", func(t *testing.T) {
		svc, m := newCampaignService(t)

		m.campaigns.On("GetByID", testOrgID, testCampaignID).Return(testCampaign(model.CampaignStatusDraft), nil)
		m.tx.On("WithTx", mock.Anything, mock.Anything).Return(nil)
		m.recipients.On("DeleteByCampaign", mock.Anything, testOrgID, testCampaignID).Return(int64(5), nil)
		m.campaigns.On("Delete", mock.Anything, testOrgID, testCampaignID).Return(nil)

		err := svc.DeleteCampaign(ctx, testOrgID, testCampaignID)

		assert.NoError(t, err)
		m.campaigns.AssertExpectations(t)
	})

	t.Run("running campaign cannot be deleted", func(t *testing.T) {
		svc, m := newCampaignService(t)

		m.campaigns.On("GetByID", testOrgID, testCampaignID).Return(testCampaign(model.CampaignStatusRunning), nil)

		err := svc.DeleteCampaign(ctx, testOrgID, testCampaignID)

		assert.ErrorIs(t, err, service.ErrCampaignRunning)
		m.tx.AssertNotCalled(t, "WithTx", mock.Anything, mock.Anything)
	})

	t.Run("losing the race to a concurrent start surfaces as running", func(t *testing.T) {
		svc, m := newCampaignService(t)

		m.campaigns.On("GetByID", testOrgID, testCampaignID).Return(testCampaign(model.CampaignStatusDraft), nil)
		m.tx.On("WithTx", mock.Anything, mock.Anything).Return(nil)
		m.recipients.On("DeleteByCampaign", mock.Anything, testOrgID, testCampaignID).Return(int64(0), nil)
		m.campaigns.On("Delete", mock.Anything, testOrgID, testCampaignID).Return(repository.ErrNoRowsAffected)

		err := svc.DeleteCampaign(ctx, testOrgID, testCampaignID)

		assert.ErrorIs(t, err, service.ErrCampaignRunning)
	})
}

func TestCampaignService_RemoveAllRecipients(t *testing.T) {
	ctx := context.Background()

	t.Run("clears recipients and decrements the total", func(t *testing.T) {
		svc, m := newCampaignService(t)

		m.campaigns.On("GetByID", testOrgID, testCampaignID).Return(testCampaign(model.CampaignStatusDraft), nil)
		m.tx.On("WithTx", mock.Anything, mock.Anything).Return(nil)
		m.recipients.On("DeleteByCampaign", mock.Anything, testOrgID, testCampaignID).Return(int64(7), nil)
		m.campaigns.On("AddTotalRecipients", mock.Anything, testOrgID, testCampaignID, int64(-7)).Return(nil)

		err := svc.RemoveAllRecipients(ctx, testOrgID, testCampaignID)

		assert.NoError(t, err)
		m.campaigns.AssertExpectations(t)
	})

	t.Run("non-draft campaign is rejected", func(t *testing.T) {
		svc, m := newCampaignService(t)

		m.campaigns.On("GetByID", testOrgID, testCampaignID).Return(testCampaign(model.CampaignStatusCompleted), nil)

		err := svc.RemoveAllRecipients(ctx, testOrgID, testCampaignID)

		assert.ErrorIs(t, err, service.ErrCampaignNotDraft)
		m.recipients.AssertNotCalled(t, "DeleteByCampaign", mock.Anything, mock.Anything, mock.Anything)
	})
}
