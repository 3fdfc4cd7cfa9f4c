package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

type StagingStore struct {
	mock.Mock
}

func (m *StagingStore) Put(ctx context.Context, orgID int64, name string, contentType string, body io.Reader) (string, error) {
	args := m.Called(ctx, orgID, name, contentType, body)
	return args.String(0), args.Error(1)
}

func (m *StagingStore) ConsumeOnce(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *StagingStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
