package repository

import (
	"errors"

	"github.com/waveline/crm-services/dispatcher/internal/model"
	"gorm.io/gorm"
)

type ContactRepository interface {
	GetByID(orgID, id int64) (*model.Contact, error)
	ListByIDs(orgID int64, ids []int64) ([]model.Contact, error)
	ListByPhones(orgID int64, phones []string) ([]model.Contact, error)
	ListOptedIn(orgID int64, limit, offset int) ([]model.Contact, error)
}

type Contact struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &Contact{db: db}
}

func (r *Contact) GetByID(orgID, id int64) (*model.Contact, error) {
	var contact model.Contact

	err := r.db.Where("id = ? AND org_id = ?", id, orgID).First(&contact).Error
	if err == nil {
		return &contact, nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrContactNotFound
	}

	return nil, err
}

func (r *Contact) ListByIDs(orgID int64, ids []int64) ([]model.Contact, error) {
	var contacts []model.Contact

	err := r.db.Where("org_id = ? AND id IN ?", orgID, ids).Find(&contacts).Error
	if err != nil {
		return nil, err
	}

	return contacts, nil
}

func (r *Contact) ListByPhones(orgID int64, phones []string) ([]model.Contact, error) {
	var contacts []model.Contact

	err := r.db.Where("org_id = ? AND phone IN ?", orgID, phones).Find(&contacts).Error
	if err != nil {
		return nil, err
	}

	return contacts, nil
}

func (r *Contact) ListOptedIn(orgID int64, limit, offset int) ([]model.Contact, error) {
	var contacts []model.Contact

	err := r.db.Where("org_id = ? AND is_opted_in = ?", orgID, true).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&contacts).Error
	if err != nil {
		return nil, err
	}

	return contacts, nil
}
