package dto

import (
	"time"
)

// AudienceDTO selects campaign recipients. ContactIDs win over Labels and CustomAttributes.
type AudienceDTO struct {
	ContactIDs       []uint         `json:"contact_ids,omitempty" validate:"omitempty,max=10000,dive,gt=0"`
	Labels           []string       `json:"labels,omitempty" validate:"omitempty,max=100,dive,required,max=255"`
	CustomAttributes map[string]any `json:"custom_attributes,omitempty" validate:"omitempty,max=50"`
}

// MultimediaDTO is an optional media attachment
type MultimediaDTO struct {
	Type     string `json:"type" validate:"required,oneof=image video audio document"`
	URL      string `json:"url" validate:"required,url,max=2048"`
	Filename string `json:"filename,omitempty" validate:"omitempty,max=255"`
	Mimetype string `json:"mimetype,omitempty" validate:"omitempty,max=127"`
}

// CreateWhatsappCampaignRequest represents the request to create a new campaign
type CreateWhatsappCampaignRequest struct {
	AccountID   uint           `json:"-"`
	SenderID    uint           `json:"-"`
	Title       string         `json:"title" validate:"required,min=1,max=255"`
	Message     string         `json:"message" validate:"required,min=1,max=4096"`
	InboxID     uint           `json:"inbox_id" validate:"required,gt=0"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty"`
	Enabled     *bool          `json:"enabled,omitempty"`
	Audience    AudienceDTO    `json:"audience"`
	Multimedia  *MultimediaDTO `json:"multimedia,omitempty" validate:"omitempty"`
}

// UpdateWhatsappCampaignRequest represents the request to update an existing campaign.
// Nil fields keep their stored value.
type UpdateWhatsappCampaignRequest struct {
	AccountID   uint           `json:"-"`
	ID          uint           `json:"-"`
	Title       *string        `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Message     *string        `json:"message,omitempty" validate:"omitempty,min=1,max=4096"`
	InboxID     *uint          `json:"inbox_id,omitempty" validate:"omitempty,gt=0"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty"`
	Enabled     *bool          `json:"enabled,omitempty"`
	Audience    *AudienceDTO   `json:"audience,omitempty" validate:"omitempty"`
	Multimedia  *MultimediaDTO `json:"multimedia,omitempty" validate:"omitempty"`
}

// ListWhatsappCampaignsRequest represents the request to list an account's campaigns
type ListWhatsappCampaignsRequest struct {
	AccountID uint    `json:"-"`
	Status    *string `query:"status" validate:"omitempty,oneof=pending running completed failed"`
	Limit     int     `query:"limit" validate:"omitempty,gte=1,lte=100"`
	Offset    int     `query:"offset" validate:"omitempty,gte=0"`
}

// DeliveryStatsDTO mirrors the campaign counters
type DeliveryStatsDTO struct {
	Sent        int64   `json:"sent"`
	Delivered   int64   `json:"delivered"`
	Failed      int64   `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// WhatsappCampaignResponse is the campaign representation in responses
type WhatsappCampaignResponse struct {
	ID            uint             `json:"id"`
	DisplayID     uint             `json:"display_id"`
	AccountID     uint             `json:"account_id"`
	InboxID       uint             `json:"inbox_id"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	Audience      AudienceDTO      `json:"audience"`
	Multimedia    *MultimediaDTO   `json:"multimedia,omitempty"`
	ScheduledAt   time.Time        `json:"scheduled_at"`
	Status        string           `json:"status"`
	Enabled       bool             `json:"enabled"`
	DeliveryStats DeliveryStatsDTO `json:"delivery_stats"`
	ErrorMessage  *string          `json:"error_message,omitempty"`
	SenderID      *uint            `json:"sender_id,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// ListWhatsappCampaignsResponse wraps a page of campaigns
type ListWhatsappCampaignsResponse struct {
	Items  []WhatsappCampaignResponse `json:"items"`
	Total  int64                      `json:"total"`
	Limit  int                        `json:"limit"`
	Offset int                        `json:"offset"`
}

// TriggerWhatsappCampaignResponse represents the response to a manual trigger
type TriggerWhatsappCampaignResponse struct {
	Message string `json:"message"`
	ID      uint   `json:"id"`
	Status  string `json:"status"`
}

// DeliveryReport is an XLSX export of a campaign's delivery records
type DeliveryReport struct {
	Filename string
	Content  []byte
}
