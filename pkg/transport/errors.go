package transport

import "errors"

const (
	CodeRateLimited         = "RATE_LIMITED"         // provider signals backoff; retry later
	CodeInvalidRecipient    = "INVALID_RECIPIENT"    // permanent; do not retry
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE" // transient; bounded retries
	CodePayloadRejected     = "PAYLOAD_REJECTED"     // permanent; misconfigured template/media
)

type SendError struct {
	Code    string
	Message string
}

func (e *SendError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// IsPermanent reports whether err is a send error that must not be retried.
func IsPermanent(err error) bool {
	var se *SendError
	if errors.As(err, &se) {
		return se.Code == CodeInvalidRecipient || se.Code == CodePayloadRejected
	}
	return false
}

// IsRateLimited reports whether the provider asked for backoff.
func IsRateLimited(err error) bool {
	var se *SendError
	return errors.As(err, &se) && se.Code == CodeRateLimited
}
