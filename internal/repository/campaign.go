package repository

import (
	"context"
	"errors"
	"time"

	"github.com/waveline/crm-services/dispatcher/internal/model"
	"gorm.io/gorm"
)

type CampaignRepository interface {
	Create(ctx context.Context, campaign *model.Campaign) error
	GetByID(orgID, id int64) (*model.Campaign, error)
	Delete(ctx context.Context, orgID, id int64) error

	// TransitionStatus conditionally moves a campaign from one of the given
	// statuses to the target, applying extra column updates in the same
	// statement. Returns ErrNoRowsAffected when the campaign was not in an
	// allowed source status.
	TransitionStatus(ctx context.Context, orgID, id int64, from []model.CampaignStatus,
		to model.CampaignStatus, extra map[string]interface{}) error

	IncrementSent(ctx context.Context, orgID, id int64) error
	IncrementFailed(ctx context.Context, orgID, id int64) error
	IncrementDelivered(ctx context.Context, orgID, id int64) error
	AddTotalRecipients(ctx context.Context, orgID, id int64, n int64) error

	FindDueScheduled(now time.Time, limit int) ([]model.Campaign, error)
	GetStep(orgID, sequenceID int64, stepOrder int) (*model.Campaign, error)
}

type Campaign struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &Campaign{db: db}
}

func (r *Campaign) Create(ctx context.Context, campaign *model.Campaign) error {
	db := GetTx(ctx, r.db)
	return db.Create(campaign).Error
}

func (r *Campaign) GetByID(orgID, id int64) (*model.Campaign, error) {
	var campaign model.Campaign

	err := r.db.Where("id = ? AND org_id = ?", id, orgID).First(&campaign).Error
	if err == nil {
		return &campaign, nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCampaignNotFound
	}

	return nil, err
}

func (r *Campaign) Delete(ctx context.Context, orgID, id int64) error {
	db := GetTx(ctx, r.db)

	result := db.Where("id = ? AND org_id = ? AND status <> ?",
		id, orgID, model.CampaignStatusRunning).Delete(&model.Campaign{})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}

func (r *Campaign) TransitionStatus(ctx context.Context, orgID, id int64, from []model.CampaignStatus,
	to model.CampaignStatus, extra map[string]interface{}) error {
	db := GetTx(ctx, r.db)

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for col, val := range extra {
		updates[col] = val
	}

	result := db.Model(&model.Campaign{}).
		Where("id = ? AND org_id = ? AND status IN ?", id, orgID, from).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}

func (r *Campaign) IncrementSent(ctx context.Context, orgID, id int64) error {
	return r.increment(ctx, orgID, id, "sent_count")
}

func (r *Campaign) IncrementFailed(ctx context.Context, orgID, id int64) error {
	return r.increment(ctx, orgID, id, "failed_count")
}

func (r *Campaign) IncrementDelivered(ctx context.Context, orgID, id int64) error {
	return r.increment(ctx, orgID, id, "delivered_count")
}

// increment uses a SQL-side expression so concurrent workers never lose
// updates to read-modify-write races.
func (r *Campaign) increment(ctx context.Context, orgID, id int64, column string) error {
	db := GetTx(ctx, r.db)

	return db.Model(&model.Campaign{}).
		Where("id = ? AND org_id = ?", id, orgID).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error
}

func (r *Campaign) AddTotalRecipients(ctx context.Context, orgID, id int64, n int64) error {
	db := GetTx(ctx, r.db)

	return db.Model(&model.Campaign{}).
		Where("id = ? AND org_id = ?", id, orgID).
		UpdateColumn("total_recipients", gorm.Expr("total_recipients + ?", n)).Error
}

func (r *Campaign) FindDueScheduled(now time.Time, limit int) ([]model.Campaign, error) {
	var campaigns []model.Campaign

	err := r.db.Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?",
		model.CampaignStatusScheduled, now).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&campaigns).Error
	if err != nil {
		return nil, err
	}

	return campaigns, nil
}

func (r *Campaign) GetStep(orgID, sequenceID int64, stepOrder int) (*model.Campaign, error) {
	var step model.Campaign

	err := r.db.Where("org_id = ? AND drip_sequence_id = ? AND is_drip_step = ? AND step_order = ?",
		orgID, sequenceID, true, stepOrder).First(&step).Error
	if err == nil {
		return &step, nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStepNotFound
	}

	return nil, err
}
