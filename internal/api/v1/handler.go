package v1

import (
	"bytes"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/waveline/crm-services/dispatcher/internal/constants"
	"github.com/waveline/crm-services/dispatcher/internal/model"
	"github.com/waveline/crm-services/dispatcher/internal/publishers"
	"github.com/waveline/crm-services/dispatcher/internal/service"
	"github.com/waveline/crm-services/dispatcher/pkg/staging"
	"go.uber.org/zap"
)

type Handler struct {
	logger     *zap.Logger
	campaigns  service.CampaignService
	engine     service.ExecutionEngine
	drip       service.DripScheduler
	reconciler service.Reconciler
	runs       publishers.RunPublisher
	staging    staging.Store
}

func NewHandler(logger *zap.Logger, campaigns service.CampaignService, engine service.ExecutionEngine,
	drip service.DripScheduler, reconciler service.Reconciler, runs publishers.RunPublisher,
	store staging.Store) *Handler {
	return &Handler{
		logger:     logger,
		campaigns:  campaigns,
		engine:     engine,
		drip:       drip,
		reconciler: reconciler,
		runs:       runs,
		staging:    store,
	}
}

func (h *Handler) Pong(c *fiber.Ctx) error {
	return c.SendString("pong")
}

var errMissingOrg = errors.New("missing or invalid X-Org-ID header")

// orgID reads the tenant from the X-Org-ID header and writes the 400 itself.
// Every route except the webhook requires it; there is no cross-tenant
// access path.
func orgID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Get("X-Org-ID"), 10, 64)
	if err != nil || id <= 0 {
		_ = badRequest(c)
		return 0, errMissingOrg
	}

	return id, nil
}

func badRequest(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"code":    constants.ErrCodeInvalidRequestBody,
		"message": constants.GetErrorMessage(constants.ErrCodeInvalidRequestBody),
	})
}

func (h *Handler) CreateCampaign(c *fiber.Ctx) error {
	ctx := c.UserContext()

	org, err := orgID(c)
	if err != nil {
		return nil
	}

	var request CreateCampaignRequest
	if err := c.BodyParser(&request); err != nil {
		h.logger.Warn("Failed to parse body", zap.Error(err))
		return badRequest(c)
	}

	cmd := service.CreateCampaignCommand{
		OrgID:          org,
		ChannelID:      request.ChannelID,
		Name:           request.Name,
		PayloadKind:    request.PayloadKind,
		BodyText:       request.BodyText,
		MediaURL:       request.MediaURL,
		MediaCaption:   request.MediaCaption,
		TemplateName:   request.TemplateName,
		TemplateParams: request.TemplateParams,
		RateLimit:      request.RateLimit,
		ScheduledAt:    request.ScheduledAt,
	}

	resp, err := h.campaigns.CreateCampaign(ctx, cmd)
	if err != nil {
		return err
	}

	h.logger.Info("Campaign created",
		zap.Int64("orgID", org),
		zap.Int64("campaignID", resp.CampaignID))

	return c.Status(fiber.StatusCreated).JSON(
		CreateCampaignResponse{CampaignID: resp.CampaignID, Status: resp.Status})
}

func (h *Handler) GetCampaign(c *fiber.Ctx) error {
	ctx := c.UserContext()

	org, err := orgID(c)
	if err != nil {
		return nil
	}

	campaignID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c)
	}

	campaign, err := h.campaigns.GetCampaign(ctx, org, int64(campaignID))
	if err != nil {
		return err
	}

	return c.JSON(toCampaignResponse(campaign))
}

func (h *Handler) DeleteCampaign(c *fiber.Ctx) error {
	ctx := c.UserContext()

	org, err := orgID(c)
	if err != nil {
		return nil
	}

	campaignID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c)
	}

	if err := h.campaigns.DeleteCampaign(ctx, org, int64(campaignID)); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ExecuteCampaign drives the campaign lifecycle. Start and resume are
// asynchronous: the campaign is handed to the worker fleet over the queue.
// Pause and cancel act inline so the caller observes the new state.
func (h *Handler) ExecuteCampaign(c *fiber.Ctx) error {
	ctx := c.UserContext()

	org, err := orgID(c)
	if err != nil {
		return nil
	}

	campaignID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c)
	}

	var request ExecuteCampaignRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c)
	}

	switch request.Action {
	case "start", "resume":
		campaign, err := h.campaigns.GetCampaign(ctx, org, int64(campaignID))
		if err != nil {
			return err
		}

		if !campaign.CanRun() && campaign.Status != model.CampaignStatusRunning {
			return service.ErrInvalidStateTransition
		}

		cmd := service.RunCampaignCommand{OrgID: org, CampaignID: int64(campaignID)}
		if err := h.runs.PublishRun(ctx, cmd); err != nil {
			return err
		}

		return c.Status(fiber.StatusAccepted).JSON(ExecuteCampaignResponse{Status: "QUEUED"})

	case "pause":
		stats, err := h.engine.Pause(ctx, org, int64(campaignID))
		if err != nil {
			return err
		}
		return c.JSON(ExecuteCampaignResponse{Status: stats.Status})

	case "cancel":
		stats, err := h.engine.Cancel(ctx, org, int64(campaignID))
		if err != nil {
			return err
		}
		return c.JSON(ExecuteCampaignResponse{Status: stats.Status})

	default:
		return badRequest(c)
	}
}

func (h *Handler) CampaignStats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	org, err := orgID(c)
	if err != nil {
		return nil
	}

	campaignID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c)
	}

	stats, err := h.engine.Stats(ctx, org, int64(campaignID))
	if err != nil {
		return err
	}

	return c.JSON(stats)
}

func (h *Handler) AddRecipients(c *fiber.Ctx) error {
	ctx := c.UserContext()

	org, err := orgID(c)
	if err != nil {
		return nil
	}

	campaignID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c)
	}

	var request AddRecipientsRequest
	if err := c.BodyParser(&request); err != nil || len(request.ContactIDs) == 0 {
		return badRequest(c)
	}

	cmd := service.AddRecipientsCommand{
		OrgID:      org,
		CampaignID: int64(campaignID),
		ContactIDs: request.ContactIDs,
	}

	resp, err := h.campaigns.AddRecipients(ctx, cmd)
	if err != nil {
		return err
	}

	return c.JSON(toAddRecipientsResponse(resp))
}

func (h *Handler) RemoveRecipients(c *fiber.Ctx) error {
	ctx := c.UserContext()

	org, err := orgID(c)
	if err != nil {
		return nil
	}

	campaignID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c)
	}

	if err := h.campaigns.RemoveAllRecipients(ctx, org, int64(campaignID)); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) ListRecipients(c *fiber.Ctx) error {
	ctx := c.UserContext()

	org, err := orgID(c)
	if err != nil {
		return nil
	}

	campaignID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c)
	}

	limit := c.QueryInt("limit", 100)
	offset := c.QueryInt("offset", 0)

	recipients, err := h.campaigns.ListRecipients(ctx, org, int64(campaignID), limit, offset)
	if err != nil {
		return err
	}

	resp := ListRecipientsResponse{Recipients: make([]RecipientResponse, 0, len(recipients))}
	for _, recipient := range recipients {
		row := RecipientResponse{
			ContactID:    recipient.ContactID,
			Phone:        recipient.Phone,
			Status:       string(recipient.Status),
			AttemptCount: recipient.AttemptCount,
		}
		if recipient.LastError != nil {
			row.LastError = *recipient.LastError
		}
		resp.Recipients = append(resp.Recipients, row)
	}
	resp.Total = len(resp.Recipients)

	return c.JSON(resp)
}

// UploadImport stages a raw recipient file. The returned key feeds
// ImportRecipients, which consumes the object exactly once.
func (h *Handler) UploadImport(c *fiber.Ctx) error {
	ctx := c.UserContext()

	org, err := orgID(c)
	if err != nil {
		return nil
	}

	body := c.Body()
	if len(body) == 0 {
		return badRequest(c)
	}

	name := c.Query("name", "recipients.txt")

	key, err := h.staging.Put(ctx, org, name, "text/plain", bytes.NewReader(body))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(ImportResponse{StagingKey: key})
}

func (h *Handler) ImportRecipients(c *fiber.Ctx) error {
	ctx := c.UserContext()

	org, err := orgID(c)
	if err != nil {
		return nil
	}

	campaignID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c)
	}

	var request struct {
		StagingKey string `json:"staging_key"`
	}
	if err := c.BodyParser(&request); err != nil || request.StagingKey == "" {
		return badRequest(c)
	}

	resp, err := h.campaigns.ImportRecipients(ctx, org, int64(campaignID), request.StagingKey)
	if err != nil {
		return err
	}

	return c.JSON(toAddRecipientsResponse(resp))
}

func (h *Handler) Enroll(c *fiber.Ctx) error {
	ctx := c.UserContext()

	org, err := orgID(c)
	if err != nil {
		return nil
	}

	var request EnrollRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c)
	}

	enrollment, err := h.drip.Enroll(ctx, service.EnrollCommand{
		OrgID:      org,
		SequenceID: request.SequenceID,
		ContactID:  request.ContactID,
	})
	if err != nil {
		return err
	}

	resp := EnrollResponse{
		EnrollmentID: enrollment.ID,
		Status:       string(enrollment.Status),
	}
	if enrollment.NextMessageAt != nil {
		resp.NextMessageAt = enrollment.NextMessageAt.Format(time.RFC3339)
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *Handler) CancelEnrollment(c *fiber.Ctx) error {
	ctx := c.UserContext()

	org, err := orgID(c)
	if err != nil {
		return nil
	}

	sequenceID, err := c.ParamsInt("id")
	if err != nil {
		return badRequest(c)
	}

	contactID, err := c.ParamsInt("contactID")
	if err != nil {
		return badRequest(c)
	}

	if err := h.drip.CancelEnrollment(ctx, org, int64(sequenceID), int64(contactID)); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// StatusWebhook ingests provider delivery callbacks. It always answers 200;
// a provider cannot do anything useful with an error, and retries are
// harmless because Apply is idempotent.
func (h *Handler) StatusWebhook(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var request StatusWebhookRequest
	if err := c.BodyParser(&request); err != nil {
		h.logger.Warn("unparseable status webhook", zap.Error(err))
		return c.JSON(StatusWebhookResponse{})
	}

	var resp StatusWebhookResponse
	for _, update := range request.Statuses {
		applied, err := h.reconciler.Apply(ctx, service.StatusCallback{
			ProviderMessageID: update.ProviderMessageID,
			NewStatus:         update.Status,
			Timestamp:         update.Timestamp,
			ErrorDetail:       update.ErrorDetail,
		})
		if err != nil {
			h.logger.Error("failed to apply status callback",
				zap.String("providerMessageID", update.ProviderMessageID),
				zap.Error(err))
			resp.Dropped++
			continue
		}

		if applied {
			resp.Processed++
		} else {
			resp.Dropped++
		}
	}

	return c.JSON(resp)
}

func toCampaignResponse(campaign *model.Campaign) CampaignResponse {
	resp := CampaignResponse{
		CampaignID:      campaign.ID,
		Name:            campaign.Name,
		ChannelID:       campaign.ChannelID,
		PayloadKind:     campaign.PayloadKind,
		Status:          string(campaign.Status),
		RateLimit:       campaign.RateLimit,
		TotalRecipients: campaign.TotalRecipients,
		SentCount:       campaign.SentCount,
		DeliveredCount:  campaign.DeliveredCount,
		FailedCount:     campaign.FailedCount,
	}

	if campaign.ScheduledAt != nil {
		resp.ScheduledAt = campaign.ScheduledAt.Format(time.RFC3339)
	}
	if campaign.StartedAt != nil {
		resp.StartedAt = campaign.StartedAt.Format(time.RFC3339)
	}
	if campaign.CompletedAt != nil {
		resp.CompletedAt = campaign.CompletedAt.Format(time.RFC3339)
	}

	return resp
}

func toAddRecipientsResponse(resp service.AddRecipientsResponse) AddRecipientsResponse {
	return AddRecipientsResponse{
		Added:    resp.Added,
		Skipped:  resp.Skipped,
		OptedOut: resp.OptedOut,
		NotFound: resp.NotFound,
	}
}
