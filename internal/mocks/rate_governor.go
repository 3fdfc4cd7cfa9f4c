package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type RateGovernor struct {
	mock.Mock
}

func (m *RateGovernor) Acquire(ctx context.Context, channelID, campaignID int64, perSecond float64) error {
	args := m.Called(ctx, channelID, campaignID, perSecond)
	return args.Error(0)
}

func (m *RateGovernor) SetChannelCeiling(channelID int64, perSecond float64) {
	m.Called(channelID, perSecond)
}

func (m *RateGovernor) ReleaseCampaign(campaignID int64) {
	m.Called(campaignID)
}
