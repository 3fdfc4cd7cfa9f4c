package mocks

import (
	"github.com/stretchr/testify/mock"
	"github.com/waveline/crm-services/dispatcher/internal/model"
)

type ContactRepository struct {
	mock.Mock
}

func (m *ContactRepository) GetByID(orgID, id int64) (*model.Contact, error) {
	args := m.Called(orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *ContactRepository) ListByIDs(orgID int64, ids []int64) ([]model.Contact, error) {
	args := m.Called(orgID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}

func (m *ContactRepository) ListByPhones(orgID int64, phones []string) ([]model.Contact, error) {
	args := m.Called(orgID, phones)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}

func (m *ContactRepository) ListOptedIn(orgID int64, limit, offset int) ([]model.Contact, error) {
	args := m.Called(orgID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}
