package model

import "time"

type ConversationStatus string

const (
	ConversationStatusOpen   ConversationStatus = "OPEN"
	ConversationStatusClosed ConversationStatus = "CLOSED"
)

// Conversation anchors Message records for one (contact, channel) pair.
type Conversation struct {
	ID        int64              `gorm:"primaryKey;autoIncrement;column:id;<-:create"`
	OrgID     int64              `gorm:"column:org_id;index;<-:create"`
	ContactID int64              `gorm:"column:contact_id;index:idx_convo_contact_channel"`
	ChannelID int64              `gorm:"column:channel_id;index:idx_convo_contact_channel"`
	Status    ConversationStatus `gorm:"column:status"`
	CreatedAt time.Time          `gorm:"column:created_at"`
	UpdatedAt time.Time          `gorm:"column:updated_at"`
}
