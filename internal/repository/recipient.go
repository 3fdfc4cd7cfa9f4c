package repository

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/waveline/crm-services/dispatcher/internal/model"
	"gorm.io/gorm"
)

type RecipientRepository interface {
	Create(ctx context.Context, recipient *model.CampaignRecipient) error

	// ListClaimable returns recipients eligible for a send attempt: PENDING
	// rows plus SENDING rows whose claim went stale (crashed worker).
	ListClaimable(orgID, campaignID int64, limit int, staleThreshold time.Time) ([]model.CampaignRecipient, error)

	// ClaimForSending transitions a recipient to SENDING only if it is still
	// claimable. ErrNoRowsAffected means another worker holds it.
	ClaimForSending(ctx context.Context, recipient *model.CampaignRecipient, staleThreshold time.Time) error

	MarkSent(ctx context.Context, orgID, id int64, messageID int64) error
	MarkFailed(ctx context.Context, orgID, id int64, lastError string) error
	ReleaseToPending(ctx context.Context, orgID, id int64, lastError string) error
	MarkDelivered(ctx context.Context, orgID, campaignID, contactID int64) error

	CountByStatus(orgID, campaignID int64, status model.RecipientStatus) (int64, error)
	ListByCampaign(orgID, campaignID int64, limit, offset int) ([]model.CampaignRecipient, error)
	DeleteByCampaign(ctx context.Context, orgID, campaignID int64) (int64, error)
}

type Recipient struct {
	db *gorm.DB
}

func NewRecipientRepository(db *gorm.DB) RecipientRepository {
	return &Recipient{db: db}
}

func (r *Recipient) Create(ctx context.Context, recipient *model.CampaignRecipient) error {
	db := GetTx(ctx, r.db)

	err := db.Create(recipient).Error
	if err == nil {
		return nil
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return ErrRecipientDuplicate
	}

	return err
}

func (r *Recipient) ListClaimable(orgID, campaignID int64, limit int, staleThreshold time.Time) ([]model.CampaignRecipient, error) {
	var recipients []model.CampaignRecipient

	err := r.db.Where("org_id = ? AND campaign_id = ? AND (status = ? OR (status = ? AND last_attempt_at < ?))",
		orgID, campaignID,
		model.RecipientStatusPending,
		model.RecipientStatusSending, staleThreshold).
		Order("id ASC").
		Limit(limit).
		Find(&recipients).Error
	if err != nil {
		return nil, err
	}

	return recipients, nil
}

func (r *Recipient) ClaimForSending(ctx context.Context, recipient *model.CampaignRecipient, staleThreshold time.Time) error {
	db := GetTx(ctx, r.db)

	now := time.Now()
	result := db.Model(&model.CampaignRecipient{}).
		Where("id = ? AND org_id = ? AND (status = ? OR (status = ? AND last_attempt_at < ?))",
			recipient.ID, recipient.OrgID,
			model.RecipientStatusPending,
			model.RecipientStatusSending, staleThreshold).
		Updates(map[string]interface{}{
			"status":          model.RecipientStatusSending,
			"attempt_count":   recipient.AttemptCount + 1,
			"last_attempt_at": now,
			"updated_at":      now,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNoRowsAffected
	}

	recipient.Status = model.RecipientStatusSending
	recipient.AttemptCount++
	recipient.LastAttemptAt = &now

	return nil
}

func (r *Recipient) MarkSent(ctx context.Context, orgID, id int64, messageID int64) error {
	db := GetTx(ctx, r.db)

	return db.Model(&model.CampaignRecipient{}).
		Where("id = ? AND org_id = ? AND status = ?", id, orgID, model.RecipientStatusSending).
		Updates(map[string]interface{}{
			"status":     model.RecipientStatusSent,
			"message_id": messageID,
			"last_error": nil,
			"updated_at": time.Now(),
		}).Error
}

func (r *Recipient) MarkFailed(ctx context.Context, orgID, id int64, lastError string) error {
	db := GetTx(ctx, r.db)

	return db.Model(&model.CampaignRecipient{}).
		Where("id = ? AND org_id = ?", id, orgID).
		Updates(map[string]interface{}{
			"status":     model.RecipientStatusFailed,
			"last_error": lastError,
			"updated_at": time.Now(),
		}).Error
}

func (r *Recipient) ReleaseToPending(ctx context.Context, orgID, id int64, lastError string) error {
	db := GetTx(ctx, r.db)

	return db.Model(&model.CampaignRecipient{}).
		Where("id = ? AND org_id = ? AND status = ?", id, orgID, model.RecipientStatusSending).
		Updates(map[string]interface{}{
			"status":     model.RecipientStatusPending,
			"last_error": lastError,
			"updated_at": time.Now(),
		}).Error
}

func (r *Recipient) MarkDelivered(ctx context.Context, orgID, campaignID, contactID int64) error {
	db := GetTx(ctx, r.db)

	return db.Model(&model.CampaignRecipient{}).
		Where("org_id = ? AND campaign_id = ? AND contact_id = ? AND status = ?",
			orgID, campaignID, contactID, model.RecipientStatusSent).
		Updates(map[string]interface{}{
			"status":     model.RecipientStatusDelivered,
			"updated_at": time.Now(),
		}).Error
}

func (r *Recipient) CountByStatus(orgID, campaignID int64, status model.RecipientStatus) (int64, error) {
	var count int64

	err := r.db.Model(&model.CampaignRecipient{}).
		Where("org_id = ? AND campaign_id = ? AND status = ?", orgID, campaignID, status).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *Recipient) ListByCampaign(orgID, campaignID int64, limit, offset int) ([]model.CampaignRecipient, error) {
	var recipients []model.CampaignRecipient

	err := r.db.Where("org_id = ? AND campaign_id = ?", orgID, campaignID).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&recipients).Error
	if err != nil {
		return nil, err
	}

	return recipients, nil
}

func (r *Recipient) DeleteByCampaign(ctx context.Context, orgID, campaignID int64) (int64, error) {
	db := GetTx(ctx, r.db)

	result := db.Where("org_id = ? AND campaign_id = ?", orgID, campaignID).
		Delete(&model.CampaignRecipient{})

	return result.RowsAffected, result.Error
}
