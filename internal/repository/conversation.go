package repository

import (
	"context"
	"errors"
	"time"

	"github.com/waveline/crm-services/dispatcher/internal/model"
	"gorm.io/gorm"
)

type ConversationRepository interface {
	// FindOrCreateOpen resolves the open conversation for a (contact,
	// channel) pair, creating one when none exists.
	FindOrCreateOpen(ctx context.Context, orgID, contactID, channelID int64) (*model.Conversation, error)
}

type Conversation struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &Conversation{db: db}
}

func (r *Conversation) FindOrCreateOpen(ctx context.Context, orgID, contactID, channelID int64) (*model.Conversation, error) {
	db := GetTx(ctx, r.db)

	var conversation model.Conversation
	err := db.Where("org_id = ? AND contact_id = ? AND channel_id = ? AND status = ?",
		orgID, contactID, channelID, model.ConversationStatusOpen).
		First(&conversation).Error
	if err == nil {
		return &conversation, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conversation = model.Conversation{
		OrgID:     orgID,
		ContactID: contactID,
		ChannelID: channelID,
		Status:    model.ConversationStatusOpen,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := db.Create(&conversation).Error; err != nil {
		return nil, err
	}

	return &conversation, nil
}
