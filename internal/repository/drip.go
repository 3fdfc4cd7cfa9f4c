package repository

import (
	"context"
	"errors"
	"time"

	"github.com/waveline/crm-services/dispatcher/internal/model"
	"gorm.io/gorm"
)

type DripRepository interface {
	GetSequence(orgID, id int64) (*model.DripSequence, error)

	// FindDueEnrollments returns ACTIVE enrollments due at or before now that
	// belong to active sequences, across all tenants. Org scoping is carried
	// per row.
	FindDueEnrollments(now time.Time, limit int) ([]model.DripEnrollment, error)

	GetEnrollment(orgID, sequenceID, contactID int64) (*model.DripEnrollment, error)
	CreateEnrollment(ctx context.Context, enrollment *model.DripEnrollment) error

	// ResetEnrollment re-activates an existing (sequence, contact) row for
	// re-enrollment instead of inserting a duplicate.
	ResetEnrollment(ctx context.Context, orgID, id int64, nextMessageAt time.Time) error

	// Advance moves current_step and next_message_at in one update.
	Advance(ctx context.Context, orgID, id int64, currentStep int, nextMessageAt time.Time) error

	Complete(ctx context.Context, orgID, id int64) error
	Cancel(ctx context.Context, orgID, id int64) error
}

type Drip struct {
	db *gorm.DB
}

func NewDripRepository(db *gorm.DB) DripRepository {
	return &Drip{db: db}
}

func (r *Drip) GetSequence(orgID, id int64) (*model.DripSequence, error) {
	var sequence model.DripSequence

	err := r.db.Where("id = ? AND org_id = ?", id, orgID).First(&sequence).Error
	if err == nil {
		return &sequence, nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSequenceNotFound
	}

	return nil, err
}

func (r *Drip) FindDueEnrollments(now time.Time, limit int) ([]model.DripEnrollment, error) {
	var enrollments []model.DripEnrollment

	err := r.db.
		Joins("JOIN drip_sequences ON drip_sequences.id = drip_enrollments.sequence_id").
		Where("drip_enrollments.status = ? AND drip_enrollments.next_message_at IS NOT NULL AND drip_enrollments.next_message_at <= ? AND drip_sequences.is_active = ?",
			model.EnrollmentStatusActive, now, true).
		Order("drip_enrollments.next_message_at ASC").
		Limit(limit).
		Find(&enrollments).Error
	if err != nil {
		return nil, err
	}

	return enrollments, nil
}

func (r *Drip) GetEnrollment(orgID, sequenceID, contactID int64) (*model.DripEnrollment, error) {
	var enrollment model.DripEnrollment

	err := r.db.Where("org_id = ? AND sequence_id = ? AND contact_id = ?",
		orgID, sequenceID, contactID).First(&enrollment).Error
	if err == nil {
		return &enrollment, nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEnrollmentNotFound
	}

	return nil, err
}

func (r *Drip) CreateEnrollment(ctx context.Context, enrollment *model.DripEnrollment) error {
	db := GetTx(ctx, r.db)
	return db.Create(enrollment).Error
}

func (r *Drip) ResetEnrollment(ctx context.Context, orgID, id int64, nextMessageAt time.Time) error {
	db := GetTx(ctx, r.db)

	return db.Model(&model.DripEnrollment{}).
		Where("id = ? AND org_id = ?", id, orgID).
		Updates(map[string]interface{}{
			"status":          model.EnrollmentStatusActive,
			"current_step":    0,
			"next_message_at": nextMessageAt,
			"updated_at":      time.Now(),
		}).Error
}

func (r *Drip) Advance(ctx context.Context, orgID, id int64, currentStep int, nextMessageAt time.Time) error {
	db := GetTx(ctx, r.db)

	result := db.Model(&model.DripEnrollment{}).
		Where("id = ? AND org_id = ? AND status = ?", id, orgID, model.EnrollmentStatusActive).
		Updates(map[string]interface{}{
			"current_step":    currentStep,
			"next_message_at": nextMessageAt,
			"updated_at":      time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}

func (r *Drip) Complete(ctx context.Context, orgID, id int64) error {
	return r.terminate(ctx, orgID, id, model.EnrollmentStatusCompleted)
}

func (r *Drip) Cancel(ctx context.Context, orgID, id int64) error {
	return r.terminate(ctx, orgID, id, model.EnrollmentStatusCancelled)
}

// terminate clears next_message_at in the same update; a terminal enrollment
// never has a due time.
func (r *Drip) terminate(ctx context.Context, orgID, id int64, status model.EnrollmentStatus) error {
	db := GetTx(ctx, r.db)

	result := db.Model(&model.DripEnrollment{}).
		Where("id = ? AND org_id = ? AND status = ?", id, orgID, model.EnrollmentStatusActive).
		Updates(map[string]interface{}{
			"status":          status,
			"next_message_at": nil,
			"updated_at":      time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}
