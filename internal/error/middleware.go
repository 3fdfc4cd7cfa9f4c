package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/waveline/crm-services/dispatcher/internal/constants"
	"github.com/waveline/crm-services/dispatcher/internal/service"
)

// serviceCodes maps service sentinels to API error codes.
var serviceCodes = map[error]string{
	service.ErrCampaignNotFound:       constants.ErrCodeCampaignNotFound,
	service.ErrChannelNotFound:        constants.ErrCodeChannelNotFound,
	service.ErrContactNotFound:        constants.ErrCodeContactNotFound,
	service.ErrSequenceNotFound:       constants.ErrCodeSequenceNotFound,
	service.ErrEnrollmentNotFound:     constants.ErrCodeEnrollmentNotFound,
	service.ErrInvalidStateTransition: constants.ErrCodeInvalidStateTransition,
	service.ErrCampaignNotDraft:       constants.ErrCodeCampaignNotDraft,
	service.ErrCampaignRunning:        constants.ErrCodeCampaignRunning,
	service.ErrContactOptedOut:        constants.ErrCodeContactOptedOut,
	service.ErrInvalidPayload:         constants.ErrCodeInvalidPayload,
	service.ErrDatabase:               constants.ErrCodeInternalError,
}

func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var serviceErr service.Error
		if errors.As(err, &serviceErr) {
			return respond(c, serviceErr.Code)
		}

		for sentinel, code := range serviceCodes {
			if errors.Is(err, sentinel) {
				return respond(c, code)
			}
		}

		return respond(c, constants.ErrCodeInternalError)
	}
}

func respond(c *fiber.Ctx, code string) error {
	status := constants.GetHTTPStatus(code)
	if status == 500 && code != constants.ErrCodeInternalError {
		code = constants.ErrCodeInternalError
	}

	return c.Status(status).JSON(fiber.Map{
		"code":    code,
		"message": constants.GetErrorMessage(code),
	})
}
