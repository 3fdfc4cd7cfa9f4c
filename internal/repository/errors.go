package repository

import "errors"

var (
	ErrCampaignNotFound     = errors.New("CAMPAIGN_NOT_FOUND")
	ErrChannelNotFound      = errors.New("CHANNEL_NOT_FOUND")
	ErrContactNotFound      = errors.New("CONTACT_NOT_FOUND")
	ErrMessageNotFound      = errors.New("MESSAGE_NOT_FOUND")
	ErrSequenceNotFound     = errors.New("SEQUENCE_NOT_FOUND")
	ErrStepNotFound         = errors.New("STEP_NOT_FOUND")
	ErrEnrollmentNotFound   = errors.New("ENROLLMENT_NOT_FOUND")
	ErrRecipientDuplicate   = errors.New("RECIPIENT_DUPLICATE")
	ErrNoRowsAffected       = errors.New("NO_ROWS_AFFECTED")
)
