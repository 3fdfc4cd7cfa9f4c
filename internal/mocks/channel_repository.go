package mocks

import (
	"github.com/stretchr/testify/mock"
	"github.com/waveline/crm-services/dispatcher/internal/model"
)

type ChannelRepository struct {
	mock.Mock
}

func (m *ChannelRepository) GetByID(orgID, id int64) (*model.Channel, error) {
	args := m.Called(orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Channel), args.Error(1)
}

func (m *ChannelRepository) Invalidate(orgID, id int64) {
	m.Called(orgID, id)
}
