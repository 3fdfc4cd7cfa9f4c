package model

import "time"

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "DRAFT"
	CampaignStatusScheduled CampaignStatus = "SCHEDULED"
	CampaignStatusRunning   CampaignStatus = "RUNNING"
	CampaignStatusPaused    CampaignStatus = "PAUSED"
	CampaignStatusCompleted CampaignStatus = "COMPLETED"
	CampaignStatusCancelled CampaignStatus = "CANCELLED"
)

const (
	PayloadKindText     = "TEXT"
	PayloadKindMedia    = "MEDIA"
	PayloadKindTemplate = "TEMPLATE"
)

const (
	MinRateLimit = 1
	MaxRateLimit = 10
)

type Campaign struct {
	ID        int64  `gorm:"primaryKey;autoIncrement;column:id;<-:create"`
	OrgID     int64  `gorm:"column:org_id;index:idx_campaign_org;<-:create"`
	ChannelID int64  `gorm:"column:channel_id"`
	Name      string `gorm:"column:name"`

	PayloadKind    string `gorm:"column:payload_kind"`
	BodyText       string `gorm:"column:body_text"`
	MediaURL       string `gorm:"column:media_url"`
	MediaCaption   string `gorm:"column:media_caption"`
	TemplateName   string `gorm:"column:template_name"`
	TemplateParams string `gorm:"column:template_params"` // JSON array

	RateLimit int            `gorm:"column:rate_limit"` // messages per second, 1..10
	Status    CampaignStatus `gorm:"column:status;index:idx_campaign_status"`

	ScheduledAt *time.Time `gorm:"column:scheduled_at"`

	TotalRecipients int64 `gorm:"column:total_recipients"`
	SentCount       int64 `gorm:"column:sent_count"`
	DeliveredCount  int64 `gorm:"column:delivered_count"`
	FailedCount     int64 `gorm:"column:failed_count"`

	IsDripStep     bool   `gorm:"column:is_drip_step"`
	DripSequenceID *int64 `gorm:"column:drip_sequence_id;index"`
	StepOrder      int    `gorm:"column:step_order"`
	DelayMinutes   int    `gorm:"column:delay_minutes"`

	CreatedAt   time.Time  `gorm:"column:created_at"`
	StartedAt   *time.Time `gorm:"column:started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

// runnableFrom lists the statuses a campaign may leave for RUNNING.
var runnableFrom = map[CampaignStatus]bool{
	CampaignStatusDraft:     true,
	CampaignStatusScheduled: true,
	CampaignStatusPaused:    true,
}

func (c *Campaign) CanRun() bool {
	return runnableFrom[c.Status]
}

func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignStatusCompleted || c.Status == CampaignStatusCancelled
}
