package repository

import (
	"context"
	"errors"
	"time"

	"github.com/waveline/crm-services/dispatcher/internal/model"
	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(ctx context.Context, message *model.Message) error
	GetByProviderMessageID(providerMessageID string) (*model.Message, error)

	MarkSent(ctx context.Context, orgID, id int64, providerMessageID string) error
	MarkFailed(ctx context.Context, orgID, id int64, lastError string) error

	// AdvanceStatus applies status only when it is strictly later in the
	// delivery lifecycle than the current row value; out-of-order callbacks
	// fall through with ErrNoRowsAffected.
	AdvanceStatus(ctx context.Context, orgID, id int64, status model.MessageStatus, at time.Time) error

	// FailTerminal moves a message to FAILED from any non-terminal status.
	FailTerminal(ctx context.Context, orgID, id int64, lastError string) error
}

type Message struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &Message{db: db}
}

func (r *Message) Create(ctx context.Context, message *model.Message) error {
	db := GetTx(ctx, r.db)
	return db.Create(message).Error
}

func (r *Message) GetByProviderMessageID(providerMessageID string) (*model.Message, error) {
	var message model.Message

	err := r.db.Where("provider_message_id = ?", providerMessageID).First(&message).Error
	if err == nil {
		return &message, nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}

	return nil, err
}

func (r *Message) MarkSent(ctx context.Context, orgID, id int64, providerMessageID string) error {
	db := GetTx(ctx, r.db)

	now := time.Now()
	return db.Model(&model.Message{}).
		Where("id = ? AND org_id = ? AND status = ?", id, orgID, model.MessageStatusQueued).
		Updates(map[string]interface{}{
			"status":              model.MessageStatusSent,
			"provider_message_id": providerMessageID,
			"sent_at":             now,
			"updated_at":          now,
		}).Error
}

func (r *Message) MarkFailed(ctx context.Context, orgID, id int64, lastError string) error {
	return r.failTerminal(ctx, orgID, id, lastError)
}

func (r *Message) AdvanceStatus(ctx context.Context, orgID, id int64, status model.MessageStatus, at time.Time) error {
	db := GetTx(ctx, r.db)

	below := model.StatusesBelow(status)
	if len(below) == 0 {
		return ErrNoRowsAffected
	}

	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}

	switch status {
	case model.MessageStatusSent:
		updates["sent_at"] = at
	case model.MessageStatusDelivered:
		updates["delivered_at"] = at
	case model.MessageStatusRead:
		updates["read_at"] = at
	}

	result := db.Model(&model.Message{}).
		Where("id = ? AND org_id = ? AND status IN ?", id, orgID, below).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}

func (r *Message) FailTerminal(ctx context.Context, orgID, id int64, lastError string) error {
	return r.failTerminal(ctx, orgID, id, lastError)
}

func (r *Message) failTerminal(ctx context.Context, orgID, id int64, lastError string) error {
	db := GetTx(ctx, r.db)

	result := db.Model(&model.Message{}).
		Where("id = ? AND org_id = ? AND status <> ?", id, orgID, model.MessageStatusFailed).
		Updates(map[string]interface{}{
			"status":     model.MessageStatusFailed,
			"last_error": lastError,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}
