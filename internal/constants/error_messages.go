package constants

const (
	ErrCodeCampaignNotFound       = "CAMPAIGN_NOT_FOUND"
	ErrCodeChannelNotFound        = "CHANNEL_NOT_FOUND"
	ErrCodeContactNotFound        = "CONTACT_NOT_FOUND"
	ErrCodeSequenceNotFound       = "SEQUENCE_NOT_FOUND"
	ErrCodeEnrollmentNotFound     = "ENROLLMENT_NOT_FOUND"
	ErrCodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	ErrCodeContactOptedOut        = "CONTACT_OPTED_OUT"
	ErrCodeInvalidPayload         = "INVALID_PAYLOAD"
	ErrCodeCampaignNotDraft       = "CAMPAIGN_NOT_DRAFT"
	ErrCodeCampaignRunning        = "CAMPAIGN_RUNNING"
	ErrCodeInvalidRequestBody     = "INVALID_REQUEST_BODY"
	ErrCodeInternalError          = "INTERNAL_ERROR"
)

const (
	ErrMsgCampaignNotFound       = "campaign not found"
	ErrMsgChannelNotFound        = "channel not found or inactive"
	ErrMsgContactNotFound        = "contact not found"
	ErrMsgSequenceNotFound       = "drip sequence not found"
	ErrMsgEnrollmentNotFound     = "enrollment not found"
	ErrMsgInvalidStateTransition = "campaign cannot transition from its current status"
	ErrMsgContactOptedOut        = "contact has opted out of messaging"
	ErrMsgInvalidPayload         = "campaign payload is missing required fields for its kind"
	ErrMsgCampaignNotDraft       = "recipients can only be changed while the campaign is a draft"
	ErrMsgCampaignRunning        = "operation is forbidden while the campaign is running"
	ErrMsgInvalidRequestBody     = "failed to parse request body"
	ErrMsgInternalError          = "Internal server error"
)

var errorMessages = map[string]string{
	ErrCodeCampaignNotFound:       ErrMsgCampaignNotFound,
	ErrCodeChannelNotFound:        ErrMsgChannelNotFound,
	ErrCodeContactNotFound:        ErrMsgContactNotFound,
	ErrCodeSequenceNotFound:       ErrMsgSequenceNotFound,
	ErrCodeEnrollmentNotFound:     ErrMsgEnrollmentNotFound,
	ErrCodeInvalidStateTransition: ErrMsgInvalidStateTransition,
	ErrCodeContactOptedOut:        ErrMsgContactOptedOut,
	ErrCodeInvalidPayload:         ErrMsgInvalidPayload,
	ErrCodeCampaignNotDraft:       ErrMsgCampaignNotDraft,
	ErrCodeCampaignRunning:        ErrMsgCampaignRunning,
	ErrCodeInvalidRequestBody:     ErrMsgInvalidRequestBody,
	ErrCodeInternalError:          ErrMsgInternalError,
}

func GetErrorMessage(code string) string {
	if msg, exists := errorMessages[code]; exists {
		return msg
	}
	return ErrMsgInternalError
}

func GetHTTPStatus(code string) int {
	switch code {
	case ErrCodeInvalidRequestBody, ErrCodeInvalidPayload:
		return 400
	case ErrCodeCampaignNotFound, ErrCodeChannelNotFound, ErrCodeContactNotFound,
		ErrCodeSequenceNotFound, ErrCodeEnrollmentNotFound:
		return 404
	case ErrCodeInvalidStateTransition, ErrCodeCampaignNotDraft, ErrCodeCampaignRunning, ErrCodeContactOptedOut:
		return 409
	case ErrCodeInternalError:
		return 500
	default:
		return 500
	}
}
