package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/waveline/crm-services/dispatcher/internal/model"
)

type MessageRepository struct {
	mock.Mock
}

func (m *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MessageRepository) GetByProviderMessageID(providerMessageID string) (*model.Message, error) {
	args := m.Called(providerMessageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MessageRepository) MarkSent(ctx context.Context, orgID, id int64, providerMessageID string) error {
	args := m.Called(ctx, orgID, id, providerMessageID)
	return args.Error(0)
}

func (m *MessageRepository) MarkFailed(ctx context.Context, orgID, id int64, lastError string) error {
	args := m.Called(ctx, orgID, id, lastError)
	return args.Error(0)
}

func (m *MessageRepository) AdvanceStatus(ctx context.Context, orgID, id int64, status model.MessageStatus, at time.Time) error {
	args := m.Called(ctx, orgID, id, status, at)
	return args.Error(0)
}

func (m *MessageRepository) FailTerminal(ctx context.Context, orgID, id int64, lastError string) error {
	args := m.Called(ctx, orgID, id, lastError)
	return args.Error(0)
}
