package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/waveline/crm-services/dispatcher/internal/model"
)

type CampaignRepository struct {
	mock.Mock
}

func (m *CampaignRepository) Create(ctx context.Context, campaign *model.Campaign) error {
	args := m.Called(ctx, campaign)
	return args.Error(0)
}

func (m *CampaignRepository) GetByID(orgID, id int64) (*model.Campaign, error) {
	args := m.Called(orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *CampaignRepository) Delete(ctx context.Context, orgID, id int64) error {
	args := m.Called(ctx, orgID, id)
	return args.Error(0)
}

func (m *CampaignRepository) TransitionStatus(ctx context.Context, orgID, id int64,
	from []model.CampaignStatus, to model.CampaignStatus, extra map[string]interface{}) error {
	args := m.Called(ctx, orgID, id, from, to, extra)
	return args.Error(0)
}

func (m *CampaignRepository) IncrementSent(ctx context.Context, orgID, id int64) error {
	args := m.Called(ctx, orgID, id)
	return args.Error(0)
}

func (m *CampaignRepository) IncrementFailed(ctx context.Context, orgID, id int64) error {
	args := m.Called(ctx, orgID, id)
	return args.Error(0)
}

func (m *CampaignRepository) IncrementDelivered(ctx context.Context, orgID, id int64) error {
	args := m.Called(ctx, orgID, id)
	return args.Error(0)
}

func (m *CampaignRepository) AddTotalRecipients(ctx context.Context, orgID, id int64, n int64) error {
	args := m.Called(ctx, orgID, id, n)
	return args.Error(0)
}

func (m *CampaignRepository) FindDueScheduled(now time.Time, limit int) ([]model.Campaign, error) {
	args := m.Called(now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Campaign), args.Error(1)
}

func (m *CampaignRepository) GetStep(orgID, sequenceID int64, stepOrder int) (*model.Campaign, error) {
	args := m.Called(orgID, sequenceID, stepOrder)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}
