package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/waveline/crm-services/dispatcher/internal/model"
	"github.com/waveline/crm-services/dispatcher/internal/repository"
	"github.com/waveline/crm-services/dispatcher/pkg/staging"
	"go.uber.org/zap"
)

// CampaignService owns campaign setup: creation, recipient management and
// deletion. Execution belongs to the ExecutionEngine.
type CampaignService interface {
	CreateCampaign(ctx context.Context, cmd CreateCampaignCommand) (CreateCampaignResponse, error)
	GetCampaign(ctx context.Context, orgID, campaignID int64) (*model.Campaign, error)
	DeleteCampaign(ctx context.Context, orgID, campaignID int64) error

	AddRecipients(ctx context.Context, cmd AddRecipientsCommand) (AddRecipientsResponse, error)
	ImportRecipients(ctx context.Context, orgID, campaignID int64, stagingKey string) (AddRecipientsResponse, error)
	RemoveAllRecipients(ctx context.Context, orgID, campaignID int64) error
	ListRecipients(ctx context.Context, orgID, campaignID int64, limit, offset int) ([]model.CampaignRecipient, error)
}

type campaignService struct {
	campaigns  repository.CampaignRepository
	recipients repository.RecipientRepository
	contacts   repository.ContactRepository
	channels   repository.ChannelRepository
	txManager  repository.TxManager
	staging    staging.Store
	logger     *zap.Logger
}

func NewCampaignService(campaigns repository.CampaignRepository, recipients repository.RecipientRepository,
	contacts repository.ContactRepository, channels repository.ChannelRepository,
	txManager repository.TxManager, store staging.Store, logger *zap.Logger) CampaignService {
	return &campaignService{
		campaigns:  campaigns,
		recipients: recipients,
		contacts:   contacts,
		channels:   channels,
		txManager:  txManager,
		staging:    store,
		logger:     logger,
	}
}

func (s *campaignService) CreateCampaign(ctx context.Context, cmd CreateCampaignCommand) (CreateCampaignResponse, error) {
	if err := validatePayload(cmd); err != nil {
		return CreateCampaignResponse{}, err
	}

	if _, err := s.channels.GetByID(cmd.OrgID, cmd.ChannelID); err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			return CreateCampaignResponse{}, ErrChannelNotFound
		}
		return CreateCampaignResponse{}, ErrDatabase
	}

	rateLimit := cmd.RateLimit
	if rateLimit < model.MinRateLimit {
		rateLimit = model.MinRateLimit
	}
	if rateLimit > model.MaxRateLimit {
		rateLimit = model.MaxRateLimit
	}

	status := model.CampaignStatusDraft
	if cmd.ScheduledAt != nil {
		status = model.CampaignStatusScheduled
	}

	var params string
	if len(cmd.TemplateParams) > 0 {
		encoded, err := json.Marshal(cmd.TemplateParams)
		if err != nil {
			return CreateCampaignResponse{}, ErrInvalidPayload
		}
		params = string(encoded)
	}

	campaign := &model.Campaign{
		OrgID:          cmd.OrgID,
		ChannelID:      cmd.ChannelID,
		Name:           cmd.Name,
		PayloadKind:    cmd.PayloadKind,
		BodyText:       cmd.BodyText,
		MediaURL:       cmd.MediaURL,
		MediaCaption:   cmd.MediaCaption,
		TemplateName:   cmd.TemplateName,
		TemplateParams: params,
		RateLimit:      rateLimit,
		Status:         status,
		ScheduledAt:    cmd.ScheduledAt,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	if err := s.campaigns.Create(ctx, campaign); err != nil {
		s.logger.Error("failed to create campaign",
			zap.Int64("orgID", cmd.OrgID), zap.Error(err))
		return CreateCampaignResponse{}, ErrDatabase
	}

	s.logger.Info("campaign created",
		zap.Int64("orgID", cmd.OrgID),
		zap.Int64("campaignID", campaign.ID),
		zap.String("status", string(status)))

	return CreateCampaignResponse{CampaignID: campaign.ID, Status: string(status)}, nil
}

func validatePayload(cmd CreateCampaignCommand) error {
	switch cmd.PayloadKind {
	case model.PayloadKindText:
		if cmd.BodyText == "" {
			return ErrInvalidPayload
		}
	case model.PayloadKindMedia:
		if cmd.MediaURL == "" {
			return ErrInvalidPayload
		}
	case model.PayloadKindTemplate:
		if cmd.TemplateName == "" {
			return ErrInvalidPayload
		}
	default:
		return ErrInvalidPayload
	}

	return nil
}

func (s *campaignService) GetCampaign(ctx context.Context, orgID, campaignID int64) (*model.Campaign, error) {
	campaign, err := s.campaigns.GetByID(orgID, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, ErrDatabase
	}

	return campaign, nil
}

func (s *campaignService) DeleteCampaign(ctx context.Context, orgID, campaignID int64) error {
	campaign, err := s.campaigns.GetByID(orgID, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return ErrCampaignNotFound
		}
		return ErrDatabase
	}

	if campaign.Status == model.CampaignStatusRunning {
		return ErrCampaignRunning
	}

	return s.txManager.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.recipients.DeleteByCampaign(ctx, orgID, campaignID); err != nil {
			return err
		}

		if err := s.campaigns.Delete(ctx, orgID, campaignID); err != nil {
			// Lost a race with a concurrent start.
			if errors.Is(err, repository.ErrNoRowsAffected) {
				return ErrCampaignRunning
			}
			return err
		}

		return nil
	})
}

// AddRecipients attaches contacts to a DRAFT campaign. Opt-in is re-checked
// per contact at add time; opted-out contacts are excluded even when
// explicitly requested, and duplicates are a no-op.
func (s *campaignService) AddRecipients(ctx context.Context, cmd AddRecipientsCommand) (AddRecipientsResponse, error) {
	campaign, err := s.campaigns.GetByID(cmd.OrgID, cmd.CampaignID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return AddRecipientsResponse{}, ErrCampaignNotFound
		}
		return AddRecipientsResponse{}, ErrDatabase
	}

	if campaign.Status != model.CampaignStatusDraft {
		return AddRecipientsResponse{}, ErrCampaignNotDraft
	}

	contacts, err := s.contacts.ListByIDs(cmd.OrgID, cmd.ContactIDs)
	if err != nil {
		return AddRecipientsResponse{}, ErrDatabase
	}

	byID := make(map[int64]*model.Contact, len(contacts))
	for i := range contacts {
		byID[contacts[i].ID] = &contacts[i]
	}

	var resp AddRecipientsResponse
	for _, contactID := range cmd.ContactIDs {
		contact, ok := byID[contactID]
		if !ok {
			resp.NotFound++
			continue
		}

		if err := s.addContact(ctx, cmd.OrgID, cmd.CampaignID, contact, &resp); err != nil {
			return resp, err
		}
	}

	s.logger.Info("recipients added",
		zap.Int64("campaignID", cmd.CampaignID),
		zap.Int("added", resp.Added),
		zap.Int("skipped", resp.Skipped),
		zap.Int("optedOut", resp.OptedOut))

	return resp, nil
}

// addContact inserts one recipient row, folding the outcome into resp.
// Opt-in is checked here so every add path enforces it.
func (s *campaignService) addContact(ctx context.Context, orgID, campaignID int64,
	contact *model.Contact, resp *AddRecipientsResponse) error {
	if !contact.IsOptedIn {
		resp.OptedOut++
		return nil
	}

	recipient := &model.CampaignRecipient{
		OrgID:      orgID,
		CampaignID: campaignID,
		ContactID:  contact.ID,
		Phone:      contact.Phone,
		Status:     model.RecipientStatusPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	if err := s.recipients.Create(ctx, recipient); err != nil {
		if errors.Is(err, repository.ErrRecipientDuplicate) {
			resp.Skipped++
			return nil
		}
		return ErrDatabase
	}

	if err := s.campaigns.AddTotalRecipients(ctx, orgID, campaignID, 1); err != nil {
		s.logger.Error("failed to bump total recipients",
			zap.Int64("campaignID", campaignID), zap.Error(err))
	}

	resp.Added++
	return nil
}

// ImportRecipients runs a staged recipient file (one phone number per line)
// through the same add path as the JSON endpoint. The staged object is
// consumed exactly once; a campaign in the wrong state rejects the import and
// discards the upload.
func (s *campaignService) ImportRecipients(ctx context.Context, orgID, campaignID int64,
	stagingKey string) (AddRecipientsResponse, error) {
	campaign, err := s.campaigns.GetByID(orgID, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return AddRecipientsResponse{}, ErrCampaignNotFound
		}
		return AddRecipientsResponse{}, ErrDatabase
	}

	if campaign.Status != model.CampaignStatusDraft {
		if err := s.staging.Delete(ctx, stagingKey); err != nil {
			s.logger.Warn("failed to discard rejected import",
				zap.String("key", stagingKey), zap.Error(err))
		}
		return AddRecipientsResponse{}, ErrCampaignNotDraft
	}

	data, err := s.staging.ConsumeOnce(ctx, stagingKey)
	if err != nil {
		s.logger.Error("failed to consume staged import",
			zap.String("key", stagingKey), zap.Error(err))
		return AddRecipientsResponse{}, ErrDatabase
	}

	phones := parseImportFile(data)
	if len(phones) == 0 {
		return AddRecipientsResponse{}, nil
	}

	contacts, err := s.contacts.ListByPhones(orgID, phones)
	if err != nil {
		return AddRecipientsResponse{}, ErrDatabase
	}

	byPhone := make(map[string]*model.Contact, len(contacts))
	for i := range contacts {
		byPhone[contacts[i].Phone] = &contacts[i]
	}

	var resp AddRecipientsResponse
	for _, phone := range phones {
		contact, ok := byPhone[phone]
		if !ok {
			resp.NotFound++
			continue
		}

		if err := s.addContact(ctx, orgID, campaignID, contact, &resp); err != nil {
			return resp, err
		}
	}

	s.logger.Info("recipients imported",
		zap.Int64("campaignID", campaignID),
		zap.String("key", stagingKey),
		zap.Int("added", resp.Added),
		zap.Int("skipped", resp.Skipped),
		zap.Int("optedOut", resp.OptedOut),
		zap.Int("notFound", resp.NotFound))

	return resp, nil
}

// parseImportFile returns the distinct non-empty lines of a recipient file.
func parseImportFile(data []byte) []string {
	seen := make(map[string]bool)

	var phones []string
	for _, line := range strings.Split(string(data), "\n") {
		phone := strings.TrimSpace(line)
		if phone == "" || strings.HasPrefix(phone, "#") {
			continue
		}

		if seen[phone] {
			continue
		}
		seen[phone] = true

		phones = append(phones, phone)
	}

	return phones
}

func (s *campaignService) RemoveAllRecipients(ctx context.Context, orgID, campaignID int64) error {
	campaign, err := s.campaigns.GetByID(orgID, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return ErrCampaignNotFound
		}
		return ErrDatabase
	}

	if campaign.Status != model.CampaignStatusDraft {
		return ErrCampaignNotDraft
	}

	return s.txManager.WithTx(ctx, func(ctx context.Context) error {
		removed, err := s.recipients.DeleteByCampaign(ctx, orgID, campaignID)
		if err != nil {
			return err
		}

		return s.campaigns.AddTotalRecipients(ctx, orgID, campaignID, -removed)
	})
}

func (s *campaignService) ListRecipients(ctx context.Context, orgID, campaignID int64, limit, offset int) ([]model.CampaignRecipient, error) {
	if _, err := s.campaigns.GetByID(orgID, campaignID); err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, ErrDatabase
	}

	recipients, err := s.recipients.ListByCampaign(orgID, campaignID, limit, offset)
	if err != nil {
		return nil, ErrDatabase
	}

	return recipients, nil
}
