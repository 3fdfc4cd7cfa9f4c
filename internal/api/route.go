package api

import (
	"github.com/gofiber/fiber/v2"
	v1 "github.com/waveline/crm-services/dispatcher/internal/api/v1"
)

func SetupRoutes(app *fiber.App, handler *v1.Handler) {
	app.Get("/ping", handler.Pong)

	app.Post("/v1/campaigns", handler.CreateCampaign)
	app.Get("/v1/campaigns/:id", handler.GetCampaign)
	app.Delete("/v1/campaigns/:id", handler.DeleteCampaign)
	app.Post("/v1/campaigns/:id/execute", handler.ExecuteCampaign)
	app.Get("/v1/campaigns/:id/stats", handler.CampaignStats)

	app.Post("/v1/campaigns/:id/recipients", handler.AddRecipients)
	app.Get("/v1/campaigns/:id/recipients", handler.ListRecipients)
	app.Delete("/v1/campaigns/:id/recipients", handler.RemoveRecipients)
	app.Post("/v1/campaigns/:id/recipients/import", handler.ImportRecipients)
	app.Post("/v1/imports", handler.UploadImport)

	app.Post("/v1/drip/enrollments", handler.Enroll)
	app.Delete("/v1/drip/sequences/:id/contacts/:contactID", handler.CancelEnrollment)

	app.Post("/v1/webhooks/status", handler.StatusWebhook)
}
