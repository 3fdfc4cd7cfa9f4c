package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/waveline/crm-services/dispatcher/internal/model"
)

type DripRepository struct {
	mock.Mock
}

func (m *DripRepository) GetSequence(orgID, id int64) (*model.DripSequence, error) {
	args := m.Called(orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DripSequence), args.Error(1)
}

func (m *DripRepository) FindDueEnrollments(now time.Time, limit int) ([]model.DripEnrollment, error) {
	args := m.Called(now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DripEnrollment), args.Error(1)
}

func (m *DripRepository) GetEnrollment(orgID, sequenceID, contactID int64) (*model.DripEnrollment, error) {
	args := m.Called(orgID, sequenceID, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DripEnrollment), args.Error(1)
}

func (m *DripRepository) CreateEnrollment(ctx context.Context, enrollment *model.DripEnrollment) error {
	args := m.Called(ctx, enrollment)
	return args.Error(0)
}

func (m *DripRepository) ResetEnrollment(ctx context.Context, orgID, id int64, nextMessageAt time.Time) error {
	args := m.Called(ctx, orgID, id, nextMessageAt)
	return args.Error(0)
}

func (m *DripRepository) Advance(ctx context.Context, orgID, id int64, currentStep int, nextMessageAt time.Time) error {
	args := m.Called(ctx, orgID, id, currentStep, nextMessageAt)
	return args.Error(0)
}

func (m *DripRepository) Complete(ctx context.Context, orgID, id int64) error {
	args := m.Called(ctx, orgID, id)
	return args.Error(0)
}

func (m *DripRepository) Cancel(ctx context.Context, orgID, id int64) error {
	args := m.Called(ctx, orgID, id)
	return args.Error(0)
}
