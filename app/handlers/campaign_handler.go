package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/lorenrocu/whatsapp-campaigns/app/dto"
	businessflow "github.com/lorenrocu/whatsapp-campaigns/business_flow"
	"github.com/lorenrocu/whatsapp-campaigns/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WhatsappCampaignHandlerInterface defines the contract for WhatsApp campaign handlers
type WhatsappCampaignHandlerInterface interface {
	ListCampaigns(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
	CreateCampaign(c fiber.Ctx) error
	UpdateCampaign(c fiber.Ctx) error
	DeleteCampaign(c fiber.Ctx) error
	TriggerCampaign(c fiber.Ctx) error
	DeliveryReport(c fiber.Ctx) error
}

// WhatsappCampaignHandler handles WhatsApp API campaign HTTP requests
type WhatsappCampaignHandler struct {
	campaignFlow businessflow.WhatsappCampaignFlow
	validator    *validator.Validate
}

func (h *WhatsappCampaignHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *WhatsappCampaignHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewWhatsappCampaignHandler creates a new campaign handler
func NewWhatsappCampaignHandler(campaignFlow businessflow.WhatsappCampaignFlow) *WhatsappCampaignHandler {
	return &WhatsappCampaignHandler{
		campaignFlow: campaignFlow,
		validator:    validator.New(),
	}
}

// ListCampaigns returns the account's campaigns, newest first
// @Router /api/v1/accounts/{account_id}/whatsapp_api_campaigns [get]
func (h *WhatsappCampaignHandler) ListCampaigns(c fiber.Ctx) error {
	accountID, err := h.pathID(c, "account_id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid account id", "INVALID_ACCOUNT_ID", nil)
	}

	var req dto.ListWhatsappCampaignsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if errs := h.validate(&req); errs != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", errs)
	}
	req.AccountID = accountID

	result, err := h.campaignFlow.ListCampaigns(h.createRequestContext(c, "/api/v1/accounts/:account_id/whatsapp_api_campaigns"), &req)
	if err != nil {
		return h.handleFlowError(c, err, "Failed to list campaigns", "LIST_CAMPAIGNS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaigns retrieved successfully", result)
}

// GetCampaign returns one campaign
// @Router /api/v1/accounts/{account_id}/whatsapp_api_campaigns/{id} [get]
func (h *WhatsappCampaignHandler) GetCampaign(c fiber.Ctx) error {
	accountID, id, err := h.campaignPath(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid path parameter", "INVALID_PATH", err.Error())
	}

	result, err := h.campaignFlow.GetCampaign(h.createRequestContext(c, "/api/v1/accounts/:account_id/whatsapp_api_campaigns/:id"), accountID, id)
	if err != nil {
		return h.handleFlowError(c, err, "Failed to get campaign", "GET_CAMPAIGN_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign retrieved successfully", result)
}

// CreateCampaign creates a pending campaign sent on behalf of the current user
// @Router /api/v1/accounts/{account_id}/whatsapp_api_campaigns [post]
func (h *WhatsappCampaignHandler) CreateCampaign(c fiber.Ctx) error {
	accountID, err := h.pathID(c, "account_id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid account id", "INVALID_ACCOUNT_ID", nil)
	}

	var req dto.CreateWhatsappCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if errs := h.validate(&req); errs != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", errs)
	}

	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.AccountID = accountID
	req.SenderID = userID

	result, err := h.campaignFlow.CreateCampaign(h.createRequestContext(c, "/api/v1/accounts/:account_id/whatsapp_api_campaigns"), &req)
	if err != nil {
		return h.handleFlowError(c, err, "Campaign creation failed", "CAMPAIGN_CREATION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign created successfully", result)
}

// UpdateCampaign edits a pending or failed campaign
// @Router /api/v1/accounts/{account_id}/whatsapp_api_campaigns/{id} [put]
func (h *WhatsappCampaignHandler) UpdateCampaign(c fiber.Ctx) error {
	accountID, id, err := h.campaignPath(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid path parameter", "INVALID_PATH", err.Error())
	}

	var req dto.UpdateWhatsappCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if errs := h.validate(&req); errs != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", errs)
	}
	req.AccountID = accountID
	req.ID = id

	result, err := h.campaignFlow.UpdateCampaign(h.createRequestContext(c, "/api/v1/accounts/:account_id/whatsapp_api_campaigns/:id"), &req)
	if err != nil {
		return h.handleFlowError(c, err, "Campaign update failed", "CAMPAIGN_UPDATE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign updated successfully", result)
}

// DeleteCampaign removes a pending or failed campaign
// @Router /api/v1/accounts/{account_id}/whatsapp_api_campaigns/{id} [delete]
func (h *WhatsappCampaignHandler) DeleteCampaign(c fiber.Ctx) error {
	accountID, id, err := h.campaignPath(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid path parameter", "INVALID_PATH", err.Error())
	}

	if err := h.campaignFlow.DeleteCampaign(h.createRequestContext(c, "/api/v1/accounts/:account_id/whatsapp_api_campaigns/:id"), accountID, id); err != nil {
		return h.handleFlowError(c, err, "Campaign delete failed", "CAMPAIGN_DELETE_FAILED")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// TriggerCampaign starts a pending campaign now
// @Router /api/v1/accounts/{account_id}/whatsapp_api_campaigns/{id}/trigger [post]
func (h *WhatsappCampaignHandler) TriggerCampaign(c fiber.Ctx) error {
	accountID, id, err := h.campaignPath(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid path parameter", "INVALID_PATH", err.Error())
	}

	result, err := h.campaignFlow.TriggerCampaign(h.createRequestContext(c, "/api/v1/accounts/:account_id/whatsapp_api_campaigns/:id/trigger"), accountID, id)
	if err != nil {
		return h.handleFlowError(c, err, "Campaign trigger failed", "CAMPAIGN_TRIGGER_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// DeliveryReport downloads the XLSX delivery report of a campaign
// @Router /api/v1/accounts/{account_id}/whatsapp_api_campaigns/{id}/report [get]
func (h *WhatsappCampaignHandler) DeliveryReport(c fiber.Ctx) error {
	accountID, id, err := h.campaignPath(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid path parameter", "INVALID_PATH", err.Error())
	}

	report, err := h.campaignFlow.DeliveryReport(h.createRequestContextWithTimeout(c, "/api/v1/accounts/:account_id/whatsapp_api_campaigns/:id/report", 2*time.Minute), accountID, id)
	if err != nil {
		return h.handleFlowError(c, err, "Failed to build delivery report", "REPORT_FAILED")
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", report.Filename))
	return c.Status(fiber.StatusOK).Send(report.Content)
}

// handleFlowError maps business errors onto HTTP responses
func (h *WhatsappCampaignHandler) handleFlowError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	switch {
	case businessflow.IsFeatureDisabled(err):
		return h.ErrorResponse(c, fiber.StatusForbidden, "WhatsApp API Campaigns feature is not enabled", "FEATURE_DISABLED", nil)
	case businessflow.IsCampaignNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "WhatsApp API Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
	case businessflow.IsUserIdentityRequired(err):
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User identity is required", "MISSING_USER_ID", nil)
	case businessflow.IsSenderNotAccountUser(err):
		return h.ErrorResponse(c, fiber.StatusForbidden, "User does not belong to the account", "SENDER_NOT_ACCOUNT_USER", nil)
	case businessflow.IsCampaignUpdateNotAllowed(err):
		return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Campaign cannot be updated in current status", "CAMPAIGN_UPDATE_NOT_ALLOWED", nil)
	case businessflow.IsCampaignDeleteNotAllowed(err):
		return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Campaign cannot be deleted in current status", "CAMPAIGN_DELETE_NOT_ALLOWED", nil)
	case businessflow.IsCampaignNotPending(err):
		return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Campaign can only be triggered when pending", "CAMPAIGN_NOT_PENDING", nil)
	case businessflow.IsCampaignNotDue(err):
		return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Campaign is scheduled in the future", "CAMPAIGN_NOT_DUE", nil)
	case businessflow.IsInboxNotFound(err):
		return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Inbox not found", "INBOX_NOT_FOUND", nil)
	case businessflow.IsInboxNotAPIChannel(err):
		return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Inbox must be an API Channel", "INBOX_NOT_API_CHANNEL", nil)
	case businessflow.IsInboxWhatsappAPIDisabled(err):
		return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "API Inbox is not enabled for WhatsApp API campaigns", "INBOX_WHATSAPP_API_DISABLED", nil)
	case businessflow.IsScheduleTimeInPast(err):
		return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Scheduled time must be in the future", "SCHEDULE_TIME_IN_PAST", nil)
	case businessflow.IsCampaignTitleRequired(err),
		businessflow.IsCampaignMessageRequired(err),
		businessflow.IsMultimediaURLRequired(err),
		businessflow.IsMultimediaTypeInvalid(err),
		businessflow.IsCampaignUpdateRequired(err),
		businessflow.IsInvalidLimit(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationCause(err))
	}

	log.Println(fallbackMessage, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}

func (h *WhatsappCampaignHandler) validate(req any) []string {
	err := h.validator.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	var validationErrors []string
	for _, e := range verrs {
		validationErrors = append(validationErrors, getValidationErrorMessage(e))
	}
	return validationErrors
}

func (h *WhatsappCampaignHandler) pathID(c fiber.Ctx, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return uint(v), nil
}

func (h *WhatsappCampaignHandler) campaignPath(c fiber.Ctx) (uint, uint, error) {
	accountID, err := h.pathID(c, "account_id")
	if err != nil {
		return 0, 0, err
	}
	id, err := h.pathID(c, "id")
	if err != nil {
		return 0, 0, err
	}
	return accountID, id, nil
}

// validationCause returns the innermost error message, which is the one worth showing to clients
func validationCause(err error) []string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return []string{err.Error()}
		}
		err = next
	}
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *WhatsappCampaignHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *WhatsappCampaignHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	if userID, ok := c.Locals("user_id").(uint); ok {
		ctx = context.WithValue(ctx, utils.UserIDKey, userID)
	}

	return ctx
}
