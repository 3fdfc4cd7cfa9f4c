package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/waveline/crm-services/dispatcher/internal/model"
)

type ConversationRepository struct {
	mock.Mock
}

func (m *ConversationRepository) FindOrCreateOpen(ctx context.Context, orgID, contactID, channelID int64) (*model.Conversation, error) {
	args := m.Called(ctx, orgID, contactID, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}
