package v1

import "time"

type CreateCampaignRequest struct {
	Name           string     `json:"name"`
	ChannelID      int64      `json:"channel_id"`
	PayloadKind    string     `json:"payload_kind"`
	BodyText       string     `json:"body_text,omitempty"`
	MediaURL       string     `json:"media_url,omitempty"`
	MediaCaption   string     `json:"media_caption,omitempty"`
	TemplateName   string     `json:"template_name,omitempty"`
	TemplateParams []string   `json:"template_params,omitempty"`
	RateLimit      int        `json:"rate_limit"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
}

type ExecuteCampaignRequest struct {
	Action string `json:"action"` // start, pause, resume, cancel
}

type AddRecipientsRequest struct {
	ContactIDs []int64 `json:"contact_ids"`
}

type EnrollRequest struct {
	SequenceID int64 `json:"sequence_id"`
	ContactID  int64 `json:"contact_id"`
}

type StatusWebhookRequest struct {
	Statuses []StatusUpdate `json:"statuses"`
}

type StatusUpdate struct {
	ProviderMessageID string    `json:"provider_message_id"`
	Status            string    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
	ErrorDetail       string    `json:"error_detail,omitempty"`
}
