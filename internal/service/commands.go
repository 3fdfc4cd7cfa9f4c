package service

import "time"

type CreateCampaignCommand struct {
	OrgID          int64
	ChannelID      int64
	Name           string
	PayloadKind    string
	BodyText       string
	MediaURL       string
	MediaCaption   string
	TemplateName   string
	TemplateParams []string
	RateLimit      int
	ScheduledAt    *time.Time
}

type CreateCampaignResponse struct {
	CampaignID int64
	Status     string
}

// RunCampaignCommand is the queue contract between the API and the campaign
// worker. Both sides unmarshal this exact shape.
type RunCampaignCommand struct {
	OrgID      int64 `json:"org_id"`
	CampaignID int64 `json:"campaign_id"`
}

type AddRecipientsCommand struct {
	OrgID      int64
	CampaignID int64
	ContactIDs []int64
}

type AddRecipientsResponse struct {
	Added     int
	Skipped   int // duplicates
	OptedOut  int
	NotFound  int
}

type CampaignStats struct {
	CampaignID      int64  `json:"campaign_id"`
	Status          string `json:"status"`
	TotalRecipients int64  `json:"total_recipients"`
	Sent            int64  `json:"sent"`
	Delivered       int64  `json:"delivered"`
	Failed          int64  `json:"failed"`
	Pending         int64  `json:"pending"`
}

type EnrollCommand struct {
	OrgID      int64
	SequenceID int64
	ContactID  int64
}

type StatusCallback struct {
	ProviderMessageID string    `json:"provider_message_id"`
	NewStatus         string    `json:"new_status"`
	Timestamp         time.Time `json:"timestamp"`
	ErrorDetail       string    `json:"error_detail,omitempty"`
}

type SweepResult struct {
	Processed int `json:"processed"`
	Completed int `json:"completed"`
	Errors    int `json:"errors"`
}
