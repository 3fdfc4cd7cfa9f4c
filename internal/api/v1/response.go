package v1

type CreateCampaignResponse struct {
	CampaignID int64  `json:"campaign_id"`
	Status     string `json:"status"`
}

type CampaignResponse struct {
	CampaignID      int64  `json:"campaign_id"`
	Name            string `json:"name"`
	ChannelID       int64  `json:"channel_id"`
	PayloadKind     string `json:"payload_kind"`
	Status          string `json:"status"`
	RateLimit       int    `json:"rate_limit"`
	TotalRecipients int64  `json:"total_recipients"`
	SentCount       int64  `json:"sent_count"`
	DeliveredCount  int64  `json:"delivered_count"`
	FailedCount     int64  `json:"failed_count"`
	ScheduledAt     string `json:"scheduled_at,omitempty"`
	StartedAt       string `json:"started_at,omitempty"`
	CompletedAt     string `json:"completed_at,omitempty"`
}

type ExecuteCampaignResponse struct {
	Status string `json:"status"`
}

type AddRecipientsResponse struct {
	Added    int `json:"added"`
	Skipped  int `json:"skipped"`
	OptedOut int `json:"opted_out"`
	NotFound int `json:"not_found"`
}

type RecipientResponse struct {
	ContactID    int64  `json:"contact_id"`
	Phone        string `json:"phone"`
	Status       string `json:"status"`
	AttemptCount int    `json:"attempt_count"`
	LastError    string `json:"last_error,omitempty"`
}

type ListRecipientsResponse struct {
	Recipients []RecipientResponse `json:"recipients"`
	Total      int                 `json:"total"`
}

type EnrollResponse struct {
	EnrollmentID  int64  `json:"enrollment_id"`
	Status        string `json:"status"`
	NextMessageAt string `json:"next_message_at,omitempty"`
}

type StatusWebhookResponse struct {
	Processed int `json:"processed"`
	Dropped   int `json:"dropped"`
}

type ImportResponse struct {
	StagingKey string `json:"staging_key"`
}
