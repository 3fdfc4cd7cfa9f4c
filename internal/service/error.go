package service

import "errors"

var (
	ErrCampaignNotFound       = errors.New("CAMPAIGN_NOT_FOUND")
	ErrChannelNotFound        = errors.New("CHANNEL_NOT_FOUND")
	ErrContactNotFound        = errors.New("CONTACT_NOT_FOUND")
	ErrSequenceNotFound       = errors.New("SEQUENCE_NOT_FOUND")
	ErrEnrollmentNotFound     = errors.New("ENROLLMENT_NOT_FOUND")
	ErrInvalidStateTransition = errors.New("INVALID_STATE_TRANSITION")
	ErrCampaignNotDraft       = errors.New("CAMPAIGN_NOT_DRAFT")
	ErrCampaignRunning        = errors.New("CAMPAIGN_RUNNING")
	ErrContactOptedOut        = errors.New("CONTACT_OPTED_OUT")
	ErrInvalidPayload         = errors.New("INVALID_PAYLOAD")
	ErrDatabase               = errors.New("DATABASE_ERROR")
)

type Error struct {
	Code  string
	Cause error
}

func NewServiceError(code string, cause error) error {
	return Error{Code: code, Cause: cause}
}

func (e Error) Error() string {
	return e.Cause.Error()
}

func (e Error) Unwrap() error {
	return e.Cause
}
