package model

import "time"

const (
	ChannelKindCloudAPI = "CLOUD_API"
	ChannelKindGateway  = "GATEWAY"
)

// Channel is a configured outbound messaging endpoint belonging to a tenant:
// a cloud API phone number or a self-hosted gateway instance.
type Channel struct {
	ID    int64  `gorm:"primaryKey;autoIncrement;column:id;<-:create"`
	OrgID int64  `gorm:"column:org_id;index;<-:create"`
	Name  string `gorm:"column:name"`
	Kind  string `gorm:"column:kind"`

	PhoneNumberID string `gorm:"column:phone_number_id"`
	InstanceURL   string `gorm:"column:instance_url"`
	Token         string `gorm:"column:token"`

	// RateCeiling is the provider-level messages/second limit for this
	// channel; campaign rates are capped at it.
	RateCeiling float64 `gorm:"column:rate_ceiling"`
	IsActive    bool    `gorm:"column:is_active"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}
