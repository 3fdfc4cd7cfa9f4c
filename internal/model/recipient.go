package model

import "time"

type RecipientStatus string

const (
	RecipientStatusPending   RecipientStatus = "PENDING"
	RecipientStatusSending   RecipientStatus = "SENDING"
	RecipientStatusSent      RecipientStatus = "SENT"
	RecipientStatusDelivered RecipientStatus = "DELIVERED"
	RecipientStatusFailed    RecipientStatus = "FAILED"
)

// CampaignRecipient joins a campaign to one addressable contact. The unique
// index on (campaign_id, contact_id) makes duplicate adds a no-op.
type CampaignRecipient struct {
	ID         int64           `gorm:"primaryKey;autoIncrement;column:id;<-:create"`
	OrgID      int64           `gorm:"column:org_id;<-:create"`
	CampaignID int64           `gorm:"column:campaign_id;index:idx_campaign_contact,unique;<-:create"`
	ContactID  int64           `gorm:"column:contact_id;index:idx_campaign_contact,unique;<-:create"`
	Phone      string          `gorm:"column:phone"`
	Status     RecipientStatus `gorm:"column:status;index:idx_recipient_status"`

	AttemptCount  int        `gorm:"column:attempt_count"`
	LastError     *string    `gorm:"column:last_error"`
	LastAttemptAt *time.Time `gorm:"column:last_attempt_at"`
	MessageID     *int64     `gorm:"column:message_id"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}
