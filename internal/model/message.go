package model

import "time"

type MessageStatus string

const (
	MessageStatusQueued    MessageStatus = "QUEUED"
	MessageStatusSent      MessageStatus = "SENT"
	MessageStatusDelivered MessageStatus = "DELIVERED"
	MessageStatusRead      MessageStatus = "READ"
	MessageStatusFailed    MessageStatus = "FAILED"
)

// messageStatusRank orders the delivery lifecycle. FAILED is a terminal
// branch handled separately and has no rank.
var messageStatusRank = map[MessageStatus]int{
	MessageStatusQueued:    0,
	MessageStatusSent:      1,
	MessageStatusDelivered: 2,
	MessageStatusRead:      3,
}

// StatusRank returns the position of s in the delivery lifecycle and whether
// s participates in the ordering at all.
func StatusRank(s MessageStatus) (int, bool) {
	rank, ok := messageStatusRank[s]
	return rank, ok
}

// StatusesBelow returns every lifecycle status strictly earlier than s.
// Used for conditional updates that must never regress a status.
func StatusesBelow(s MessageStatus) []MessageStatus {
	rank, ok := messageStatusRank[s]
	if !ok {
		return nil
	}

	below := make([]MessageStatus, 0, rank)
	for status, r := range messageStatusRank {
		if r < rank {
			below = append(below, status)
		}
	}

	return below
}

const (
	MessageDirectionOut = "OUT"
	MessageDirectionIn  = "IN"
)

type Message struct {
	ID             int64  `gorm:"primaryKey;autoIncrement;column:id;<-:create"`
	OrgID          int64  `gorm:"column:org_id;index;<-:create"`
	ConversationID int64  `gorm:"column:conversation_id;index"`
	ChannelID      int64  `gorm:"column:channel_id"`
	ContactID      int64  `gorm:"column:contact_id"`
	CampaignID     *int64 `gorm:"column:campaign_id;index"`
	Direction      string `gorm:"column:direction"`

	Kind         string `gorm:"column:kind"`
	Body         string `gorm:"column:body"`
	MediaURL     string `gorm:"column:media_url"`
	MediaCaption string `gorm:"column:media_caption"`

	Status            MessageStatus `gorm:"column:status"`
	ProviderMessageID *string       `gorm:"column:provider_message_id;index:idx_provider_msg_id"`
	LastError         *string       `gorm:"column:last_error"`

	CreatedAt   time.Time  `gorm:"column:created_at"`
	SentAt      *time.Time `gorm:"column:sent_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	ReadAt      *time.Time `gorm:"column:read_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}
