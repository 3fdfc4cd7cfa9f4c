package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/waveline/crm-services/dispatcher/internal/model"
)

type RecipientRepository struct {
	mock.Mock
}

func (m *RecipientRepository) Create(ctx context.Context, recipient *model.CampaignRecipient) error {
	args := m.Called(ctx, recipient)
	return args.Error(0)
}

func (m *RecipientRepository) ListClaimable(orgID, campaignID int64, limit int, staleThreshold time.Time) ([]model.CampaignRecipient, error) {
	args := m.Called(orgID, campaignID, limit, staleThreshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CampaignRecipient), args.Error(1)
}

func (m *RecipientRepository) ClaimForSending(ctx context.Context, recipient *model.CampaignRecipient, staleThreshold time.Time) error {
	args := m.Called(ctx, recipient, staleThreshold)
	return args.Error(0)
}

func (m *RecipientRepository) MarkSent(ctx context.Context, orgID, id int64, messageID int64) error {
	args := m.Called(ctx, orgID, id, messageID)
	return args.Error(0)
}

func (m *RecipientRepository) MarkFailed(ctx context.Context, orgID, id int64, lastError string) error {
	args := m.Called(ctx, orgID, id, lastError)
	return args.Error(0)
}

func (m *RecipientRepository) ReleaseToPending(ctx context.Context, orgID, id int64, lastError string) error {
	args := m.Called(ctx, orgID, id, lastError)
	return args.Error(0)
}

func (m *RecipientRepository) MarkDelivered(ctx context.Context, orgID, campaignID, contactID int64) error {
	args := m.Called(ctx, orgID, campaignID, contactID)
	return args.Error(0)
}

func (m *RecipientRepository) CountByStatus(orgID, campaignID int64, status model.RecipientStatus) (int64, error) {
	args := m.Called(orgID, campaignID, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *RecipientRepository) ListByCampaign(orgID, campaignID int64, limit, offset int) ([]model.CampaignRecipient, error) {
	args := m.Called(orgID, campaignID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CampaignRecipient), args.Error(1)
}

func (m *RecipientRepository) DeleteByCampaign(ctx context.Context, orgID, campaignID int64) (int64, error) {
	args := m.Called(ctx, orgID, campaignID)
	return args.Get(0).(int64), args.Error(1)
}
