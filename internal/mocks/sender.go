package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/waveline/crm-services/dispatcher/pkg/transport"
)

type Sender struct {
	mock.Mock
}

func (m *Sender) Send(ctx context.Context, channel transport.Channel, to string, payload transport.Payload) (transport.Response, error) {
	args := m.Called(ctx, channel, to, payload)
	return args.Get(0).(transport.Response), args.Error(1)
}
