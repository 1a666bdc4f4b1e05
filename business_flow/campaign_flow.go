// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/lorenrocu/whatsapp-campaigns/app/dto"
	"github.com/lorenrocu/whatsapp-campaigns/models"
	"github.com/lorenrocu/whatsapp-campaigns/repository"
	"github.com/lorenrocu/whatsapp-campaigns/utils"
	"github.com/xuri/excelize/v2"
)

// reportPageSize bounds each delivery-record read while building a report
const reportPageSize = 1000

// WhatsappCampaignFlow handles the campaign business logic
type WhatsappCampaignFlow interface {
	EnsureFeature(ctx context.Context, accountID uint) error
	CreateCampaign(ctx context.Context, req *dto.CreateWhatsappCampaignRequest) (*dto.WhatsappCampaignResponse, error)
	UpdateCampaign(ctx context.Context, req *dto.UpdateWhatsappCampaignRequest) (*dto.WhatsappCampaignResponse, error)
	DeleteCampaign(ctx context.Context, accountID, id uint) error
	GetCampaign(ctx context.Context, accountID, id uint) (*dto.WhatsappCampaignResponse, error)
	ListCampaigns(ctx context.Context, req *dto.ListWhatsappCampaignsRequest) (*dto.ListWhatsappCampaignsResponse, error)
	TriggerCampaign(ctx context.Context, accountID, id uint) (*dto.TriggerWhatsappCampaignResponse, error)
	DeliveryReport(ctx context.Context, accountID, id uint) (*dto.DeliveryReport, error)
}

// WhatsappCampaignFlowImpl implements the campaign business flow
type WhatsappCampaignFlowImpl struct {
	campaignRepo repository.WhatsappCampaignRepository
	accountRepo  repository.AccountRepository
	inboxRepo    repository.InboxRepository
	deliveryRepo repository.CampaignDeliveryRepository
	sequenceRepo repository.SequenceCounterRepository
	lifecycle    WhatsappCampaignLifecycle
	transact     repository.Transactor
	scheduleSkew time.Duration
}

// NewWhatsappCampaignFlow creates a new campaign flow instance
func NewWhatsappCampaignFlow(
	campaignRepo repository.WhatsappCampaignRepository,
	accountRepo repository.AccountRepository,
	inboxRepo repository.InboxRepository,
	deliveryRepo repository.CampaignDeliveryRepository,
	sequenceRepo repository.SequenceCounterRepository,
	lifecycle WhatsappCampaignLifecycle,
	transact repository.Transactor,
) WhatsappCampaignFlow {
	return &WhatsappCampaignFlowImpl{
		campaignRepo: campaignRepo,
		accountRepo:  accountRepo,
		inboxRepo:    inboxRepo,
		deliveryRepo: deliveryRepo,
		sequenceRepo: sequenceRepo,
		lifecycle:    lifecycle,
		transact:     transact,
		scheduleSkew: utils.ScheduleClockSkew,
	}
}

// EnsureFeature returns ErrFeatureDisabled unless the account has WhatsApp API campaigns switched on
func (s *WhatsappCampaignFlowImpl) EnsureFeature(ctx context.Context, accountID uint) error {
	enabled, err := s.accountRepo.FeatureEnabled(ctx, accountID, models.FeatureWhatsappAPICampaigns)
	if err != nil {
		return NewBusinessError("FEATURE_LOOKUP_FAILED", "Failed to lookup account features", err)
	}
	if !enabled {
		return ErrFeatureDisabled
	}
	return nil
}

// CreateCampaign validates the request and stores a new pending campaign
func (s *WhatsappCampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateWhatsappCampaignRequest) (*dto.WhatsappCampaignResponse, error) {
	if err := s.EnsureFeature(ctx, req.AccountID); err != nil {
		return nil, err
	}

	if err := s.validateCreateRequest(req); err != nil {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", err)
	}

	if _, err := s.validateInbox(ctx, req.AccountID, req.InboxID); err != nil {
		return nil, err
	}

	if req.SenderID == 0 {
		return nil, ErrUserIdentityRequired
	}
	member, err := s.accountRepo.HasUser(ctx, req.AccountID, req.SenderID)
	if err != nil {
		return nil, NewBusinessError("SENDER_LOOKUP_FAILED", "Failed to lookup sender", err)
	}
	if !member {
		return nil, ErrSenderNotAccountUser
	}

	now := utils.UTCNow()
	scheduledAt := now
	if req.ScheduledAt != nil && !req.ScheduledAt.IsZero() {
		scheduledAt = req.ScheduledAt.UTC()
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	campaign := &models.WhatsappCampaign{
		AccountID:   req.AccountID,
		InboxID:     req.InboxID,
		Title:       strings.TrimSpace(req.Title),
		Message:     req.Message,
		Audience:    toAudienceSpec(req.Audience),
		Multimedia:  toMultimedia(req.Multimedia),
		ScheduledAt: scheduledAt,
		Status:      models.WhatsappCampaignStatusPending,
		SenderID:    utils.ToPtr(req.SenderID),
		Enabled:     enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.transact(ctx, func(txCtx context.Context) error {
		displayID, err := s.sequenceRepo.Next(txCtx, models.WhatsappCampaignDisplayIDSequence(req.AccountID))
		if err != nil {
			return err
		}
		campaign.DisplayID = uint(displayID)
		return s.campaignRepo.Save(txCtx, campaign)
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	log.Printf("campaign: created whatsapp campaign %d (display %d) for account %d", campaign.ID, campaign.DisplayID, campaign.AccountID)

	resp := ToWhatsappCampaignResponse(campaign)
	return &resp, nil
}

// UpdateCampaign applies the provided fields to a pending or failed campaign
func (s *WhatsappCampaignFlowImpl) UpdateCampaign(ctx context.Context, req *dto.UpdateWhatsappCampaignRequest) (*dto.WhatsappCampaignResponse, error) {
	if err := s.EnsureFeature(ctx, req.AccountID); err != nil {
		return nil, err
	}

	campaign, err := s.getCampaign(ctx, req.AccountID, req.ID)
	if err != nil {
		return nil, err
	}
	if !campaign.CanBeUpdated() {
		return nil, ErrCampaignUpdateNotAllowed
	}

	if req.Title == nil && req.Message == nil && req.InboxID == nil && req.ScheduledAt == nil &&
		req.Enabled == nil && req.Audience == nil && req.Multimedia == nil {
		return nil, ErrCampaignUpdateRequired
	}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return nil, ErrCampaignTitleRequired
		}
		campaign.Title = strings.TrimSpace(*req.Title)
	}
	if req.Message != nil {
		if strings.TrimSpace(*req.Message) == "" {
			return nil, ErrCampaignMessageRequired
		}
		campaign.Message = *req.Message
	}
	if req.InboxID != nil {
		if _, err := s.validateInbox(ctx, req.AccountID, *req.InboxID); err != nil {
			return nil, err
		}
		campaign.InboxID = *req.InboxID
	}
	if req.ScheduledAt != nil && !req.ScheduledAt.IsZero() {
		if utils.IsPast(*req.ScheduledAt, s.scheduleSkew) {
			return nil, ErrScheduleTimeInPast
		}
		campaign.ScheduledAt = req.ScheduledAt.UTC()
	}
	if req.Enabled != nil {
		campaign.Enabled = *req.Enabled
	}
	if req.Audience != nil {
		campaign.Audience = toAudienceSpec(*req.Audience)
	}
	if req.Multimedia != nil {
		if err := validateMultimedia(req.Multimedia); err != nil {
			return nil, err
		}
		campaign.Multimedia = toMultimedia(req.Multimedia)
	}

	updated, err := s.campaignRepo.UpdateMutable(ctx, campaign)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Campaign update failed", err)
	}
	if !updated {
		// status moved on since it was read
		return nil, ErrCampaignUpdateNotAllowed
	}

	fresh, err := s.getCampaign(ctx, req.AccountID, req.ID)
	if err != nil {
		return nil, err
	}
	resp := ToWhatsappCampaignResponse(fresh)
	return &resp, nil
}

// DeleteCampaign removes a pending or failed campaign. Queued tasks of a deleted campaign no-op.
func (s *WhatsappCampaignFlowImpl) DeleteCampaign(ctx context.Context, accountID, id uint) error {
	if err := s.EnsureFeature(ctx, accountID); err != nil {
		return err
	}

	campaign, err := s.getCampaign(ctx, accountID, id)
	if err != nil {
		return err
	}
	if !campaign.CanBeUpdated() {
		return ErrCampaignDeleteNotAllowed
	}

	deleted, err := s.campaignRepo.DeleteMutable(ctx, accountID, id)
	if err != nil {
		return NewBusinessError("CAMPAIGN_DELETE_FAILED", "Campaign delete failed", err)
	}
	if !deleted {
		return ErrCampaignDeleteNotAllowed
	}
	return nil
}

// GetCampaign returns one campaign of the account
func (s *WhatsappCampaignFlowImpl) GetCampaign(ctx context.Context, accountID, id uint) (*dto.WhatsappCampaignResponse, error) {
	if err := s.EnsureFeature(ctx, accountID); err != nil {
		return nil, err
	}

	campaign, err := s.getCampaign(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	resp := ToWhatsappCampaignResponse(campaign)
	return &resp, nil
}

// ListCampaigns returns the account's campaigns, newest first
func (s *WhatsappCampaignFlowImpl) ListCampaigns(ctx context.Context, req *dto.ListWhatsappCampaignsRequest) (*dto.ListWhatsappCampaignsResponse, error) {
	if err := s.EnsureFeature(ctx, req.AccountID); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit == 0 {
		limit = 25
	}
	if limit < 1 || limit > 100 || req.Offset < 0 {
		return nil, ErrInvalidLimit
	}

	filter := models.WhatsappCampaignFilter{AccountID: utils.ToPtr(req.AccountID)}
	if req.Status != nil && *req.Status != "" {
		status := models.WhatsappCampaignStatus(*req.Status)
		filter.Status = &status
	}

	rows, err := s.campaignRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", limit, req.Offset)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to list campaigns", err)
	}
	total, err := s.campaignRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to count campaigns", err)
	}

	items := make([]dto.WhatsappCampaignResponse, 0, len(rows))
	for _, c := range rows {
		items = append(items, ToWhatsappCampaignResponse(c))
	}

	return &dto.ListWhatsappCampaignsResponse{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: req.Offset,
	}, nil
}

// TriggerCampaign starts a pending campaign immediately
func (s *WhatsappCampaignFlowImpl) TriggerCampaign(ctx context.Context, accountID, id uint) (*dto.TriggerWhatsappCampaignResponse, error) {
	if err := s.EnsureFeature(ctx, accountID); err != nil {
		return nil, err
	}

	campaign, err := s.getCampaign(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.WhatsappCampaignStatusPending {
		return nil, ErrCampaignNotPending
	}

	triggered, err := s.lifecycle.Trigger(ctx, campaign)
	if err != nil {
		if IsCampaignNotDue(err) {
			return nil, err
		}
		if triggered {
			if _, ferr := s.lifecycle.Fail(ctx, campaign, "Trigger error: "+err.Error()); ferr != nil {
				log.Printf("campaign: failed to mark campaign %d as failed: %v", campaign.ID, ferr)
			}
		}
		return nil, NewBusinessError("CAMPAIGN_TRIGGER_FAILED", "Campaign trigger failed", err)
	}
	if !triggered {
		return nil, ErrCampaignNotPending
	}

	return &dto.TriggerWhatsappCampaignResponse{
		Message: "Campaign triggered successfully",
		ID:      campaign.ID,
		Status:  campaign.Status.String(),
	}, nil
}

// DeliveryReport builds an XLSX workbook with a summary sheet and one row per delivery record
func (s *WhatsappCampaignFlowImpl) DeliveryReport(ctx context.Context, accountID, id uint) (*dto.DeliveryReport, error) {
	if err := s.EnsureFeature(ctx, accountID); err != nil {
		return nil, err
	}

	campaign, err := s.getCampaign(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	const summary = "summary"
	const deliveries = "deliveries"
	xl.SetSheetName(xl.GetSheetName(0), summary)
	if _, err := xl.NewSheet(deliveries); err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to create report sheet", err)
	}

	stats := campaign.Stats()
	errorMessage := ""
	if campaign.ErrorMessage != nil {
		errorMessage = *campaign.ErrorMessage
	}
	summaryRows := [][]any{
		{"campaign_id", campaign.ID},
		{"display_id", campaign.DisplayID},
		{"title", campaign.Title},
		{"status", campaign.Status.String()},
		{"scheduled_at", campaign.ScheduledAt.UTC().Format(time.RFC3339)},
		{"sent", stats.Sent},
		{"delivered", stats.Delivered},
		{"failed", stats.Failed},
		{"success_rate", stats.SuccessRate()},
		{"error_message", errorMessage},
	}
	for i, row := range summaryRows {
		cellRef, _ := excelize.CoordinatesToCellName(1, i+1)
		_ = xl.SetSheetRow(summary, cellRef, &row)
	}

	header := []string{"contact_id", "source_id", "outcome", "status_code", "attempts", "error", "created_at"}
	_ = xl.SetSheetRow(deliveries, "A1", &header)

	rowIndex := 2
	for offset := 0; ; offset += reportPageSize {
		page, err := s.deliveryRepo.ListByCampaign(ctx, campaign.ID, reportPageSize, offset)
		if err != nil {
			return nil, NewBusinessError("DELIVERY_LIST_FAILED", "Failed to fetch delivery records", err)
		}
		for _, d := range page {
			deliveryErr := ""
			if d.Error != nil {
				deliveryErr = *d.Error
			}
			record := []string{
				strconv.FormatUint(uint64(d.ContactID), 10),
				d.SourceID,
				string(d.Outcome),
				strconv.Itoa(d.StatusCode),
				strconv.Itoa(d.Attempts),
				deliveryErr,
				d.CreatedAt.UTC().Format(time.RFC3339),
			}
			cellRef, _ := excelize.CoordinatesToCellName(1, rowIndex)
			_ = xl.SetSheetRow(deliveries, cellRef, &record)
			rowIndex++
		}
		if len(page) < reportPageSize {
			break
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	return &dto.DeliveryReport{
		Filename: fmt.Sprintf("whatsapp_campaign_%d_deliveries.xlsx", campaign.DisplayID),
		Content:  buf.Bytes(),
	}, nil
}

func (s *WhatsappCampaignFlowImpl) getCampaign(ctx context.Context, accountID, id uint) (*models.WhatsappCampaign, error) {
	campaign, err := s.campaignRepo.ByAccountAndID(ctx, accountID, id)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	return campaign, nil
}

// validateInbox enforces that campaigns only target whatsapp-enabled API inboxes of the account
func (s *WhatsappCampaignFlowImpl) validateInbox(ctx context.Context, accountID, inboxID uint) (*models.Inbox, error) {
	inbox, err := s.inboxRepo.ByAccountAndID(ctx, accountID, inboxID)
	if err != nil {
		return nil, NewBusinessError("INBOX_LOOKUP_FAILED", "Failed to lookup inbox", err)
	}
	if inbox == nil {
		return nil, ErrInboxNotFound
	}
	if !inbox.AcceptsWhatsappCampaigns() {
		if !inbox.IsAPIChannel() {
			return nil, ErrInboxNotAPIChannel
		}
		return nil, ErrInboxWhatsappAPIDisabled
	}
	return inbox, nil
}

func (s *WhatsappCampaignFlowImpl) validateCreateRequest(req *dto.CreateWhatsappCampaignRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return ErrCampaignTitleRequired
	}
	if strings.TrimSpace(req.Message) == "" {
		return ErrCampaignMessageRequired
	}
	if req.ScheduledAt != nil && !req.ScheduledAt.IsZero() && utils.IsPast(*req.ScheduledAt, s.scheduleSkew) {
		return ErrScheduleTimeInPast
	}
	return validateMultimedia(req.Multimedia)
}

func validateMultimedia(m *dto.MultimediaDTO) error {
	if m == nil {
		return nil
	}
	if strings.TrimSpace(m.URL) == "" {
		return ErrMultimediaURLRequired
	}
	switch m.Type {
	case models.MultimediaTypeImage, models.MultimediaTypeVideo, models.MultimediaTypeAudio, models.MultimediaTypeDocument:
		return nil
	default:
		return ErrMultimediaTypeInvalid
	}
}

func toAudienceSpec(a dto.AudienceDTO) models.AudienceSpec {
	return models.AudienceSpec{
		ContactIDs:       a.ContactIDs,
		Labels:           a.Labels,
		CustomAttributes: a.CustomAttributes,
	}
}

func toMultimedia(m *dto.MultimediaDTO) models.Multimedia {
	if m == nil {
		return models.Multimedia{}
	}
	return models.Multimedia{
		Type:     m.Type,
		URL:      strings.TrimSpace(m.URL),
		Filename: m.Filename,
		Mimetype: m.Mimetype,
	}
}

// ToWhatsappCampaignResponse converts a campaign model to its API representation
func ToWhatsappCampaignResponse(c *models.WhatsappCampaign) dto.WhatsappCampaignResponse {
	stats := c.Stats()
	resp := dto.WhatsappCampaignResponse{
		ID:        c.ID,
		DisplayID: c.DisplayID,
		AccountID: c.AccountID,
		InboxID:   c.InboxID,
		Title:     c.Title,
		Message:   c.Message,
		Audience: dto.AudienceDTO{
			ContactIDs:       c.Audience.ContactIDs,
			Labels:           c.Audience.Labels,
			CustomAttributes: c.Audience.CustomAttributes,
		},
		ScheduledAt: c.ScheduledAt,
		Status:      c.Status.String(),
		Enabled:     c.Enabled,
		DeliveryStats: dto.DeliveryStatsDTO{
			Sent:        stats.Sent,
			Delivered:   stats.Delivered,
			Failed:      stats.Failed,
			SuccessRate: stats.SuccessRate(),
		},
		ErrorMessage: c.ErrorMessage,
		SenderID:     c.SenderID,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if c.Multimedia.Present() {
		resp.Multimedia = &dto.MultimediaDTO{
			Type:     c.Multimedia.Type,
			URL:      c.Multimedia.URL,
			Filename: c.Multimedia.Filename,
			Mimetype: c.Multimedia.Mimetype,
		}
	}
	return resp
}
