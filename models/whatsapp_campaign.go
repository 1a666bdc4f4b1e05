package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lorenrocu/whatsapp-campaigns/utils"
	"gorm.io/gorm"
)

// WhatsappCampaignStatus represents the lifecycle status of a WhatsApp API campaign
type WhatsappCampaignStatus string

const (
	WhatsappCampaignStatusPending   WhatsappCampaignStatus = "pending"
	WhatsappCampaignStatusRunning   WhatsappCampaignStatus = "running"
	WhatsappCampaignStatusCompleted WhatsappCampaignStatus = "completed"
	WhatsappCampaignStatusFailed    WhatsappCampaignStatus = "failed"
)

// String returns the string representation of the status
func (s WhatsappCampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s WhatsappCampaignStatus) Valid() bool {
	switch s {
	case WhatsappCampaignStatusPending, WhatsappCampaignStatusRunning,
		WhatsappCampaignStatusCompleted, WhatsappCampaignStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for WhatsappCampaignStatus
func (s *WhatsappCampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = WhatsappCampaignStatus(v)
	case []byte:
		*s = WhatsappCampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into WhatsappCampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for WhatsappCampaignStatus
func (s WhatsappCampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid WhatsappCampaignStatus: %s", s)
	}
	return string(s), nil
}

// MutableWhatsappCampaignStatuses lists the statuses in which a campaign may be edited or deleted
var MutableWhatsappCampaignStatuses = []WhatsappCampaignStatus{
	WhatsappCampaignStatusPending,
	WhatsappCampaignStatusFailed,
}

// AudienceSpec is the declarative audience of a campaign. Explicit contact ids take
// precedence; otherwise labels and custom attributes narrow the account's contacts.
type AudienceSpec struct {
	ContactIDs       []uint         `json:"contact_ids,omitempty"`
	Labels           []string       `json:"labels,omitempty"`
	CustomAttributes map[string]any `json:"custom_attributes,omitempty"`
}

// IsBlank reports whether the audience selects nobody
func (a AudienceSpec) IsBlank() bool {
	return len(a.ContactIDs) == 0 && len(a.Labels) == 0 && len(a.CustomAttributes) == 0
}

// HasExplicitIDs reports whether the audience targets an explicit set of contacts
func (a AudienceSpec) HasExplicitIDs() bool {
	return len(a.ContactIDs) > 0
}

// AttributePredicates returns the custom attribute filters with their values rendered as text
func (a AudienceSpec) AttributePredicates() map[string]string {
	out := make(map[string]string, len(a.CustomAttributes))
	for k, v := range a.CustomAttributes {
		out[k] = AttributeText(v)
	}
	return out
}

// AttributeText renders a JSON attribute value the way it is compared against stored text
func AttributeText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// Value implements the driver.Valuer interface for AudienceSpec
func (a AudienceSpec) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for AudienceSpec
func (a *AudienceSpec) Scan(value any) error {
	if value == nil {
		*a = AudienceSpec{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AudienceSpec", value)
	}

	return json.Unmarshal(bytes, a)
}

// Multimedia types accepted by the gateway
const (
	MultimediaTypeImage    = "image"
	MultimediaTypeVideo    = "video"
	MultimediaTypeAudio    = "audio"
	MultimediaTypeDocument = "document"
)

// Multimedia describes an optional media attachment of a campaign
type Multimedia struct {
	Type     string `json:"type,omitempty"`
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
}

// Present reports whether the campaign carries media
func (m Multimedia) Present() bool {
	return strings.TrimSpace(m.URL) != "" || strings.TrimSpace(m.Type) != ""
}

// Value implements the driver.Valuer interface for Multimedia
func (m Multimedia) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for Multimedia
func (m *Multimedia) Scan(value any) error {
	if value == nil {
		*m = Multimedia{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Multimedia", value)
	}

	return json.Unmarshal(bytes, m)
}

// DeliveryStats is a snapshot of a campaign's delivery counters
type DeliveryStats struct {
	Sent      int64 `json:"sent"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}

// Processed counts recipients that reached a terminal outcome
func (d DeliveryStats) Processed() int64 {
	return d.Sent + d.Failed
}

// SuccessRate returns sent/(sent+failed) as a percentage rounded to two decimals
func (d DeliveryStats) SuccessRate() float64 {
	total := d.Sent + d.Failed
	if total == 0 {
		return 0
	}
	rate := float64(d.Sent) / float64(total) * 100
	return math.Round(rate*100) / 100
}

// DeliveryStat names a counter column
type DeliveryStat string

const (
	DeliveryStatSent      DeliveryStat = "sent"
	DeliveryStatDelivered DeliveryStat = "delivered"
	DeliveryStatFailed    DeliveryStat = "failed"
)

// Valid checks if the stat names a known counter
func (s DeliveryStat) Valid() bool {
	switch s {
	case DeliveryStatSent, DeliveryStatDelivered, DeliveryStatFailed:
		return true
	default:
		return false
	}
}

// WhatsappCampaign represents a scheduled WhatsApp API campaign
type WhatsappCampaign struct {
	ID           uint                   `gorm:"primaryKey" json:"id"`
	AccountID    uint                   `gorm:"not null;index:idx_whatsapp_campaigns_account_id;uniqueIndex:uk_whatsapp_campaigns_account_display,priority:1" json:"account_id"`
	InboxID      uint                   `gorm:"not null;index:idx_whatsapp_campaigns_inbox_id" json:"inbox_id"`
	DisplayID    uint                   `gorm:"not null;uniqueIndex:uk_whatsapp_campaigns_account_display,priority:2" json:"display_id"`
	Title        string                 `gorm:"size:255;not null" json:"title"`
	Message      string                 `gorm:"type:text;not null" json:"message"`
	Audience     AudienceSpec           `gorm:"type:jsonb;not null" json:"audience"`
	Multimedia   Multimedia             `gorm:"type:jsonb;not null" json:"multimedia"`
	ScheduledAt  time.Time              `gorm:"not null;index:idx_whatsapp_campaigns_scheduled_at" json:"scheduled_at"`
	Status       WhatsappCampaignStatus `gorm:"size:20;not null;index:idx_whatsapp_campaigns_status" json:"status"`
	Sent         int64                  `gorm:"not null" json:"sent"`
	Delivered    int64                  `gorm:"not null" json:"delivered"`
	Failed       int64                  `gorm:"not null" json:"failed"`
	ErrorMessage *string                `gorm:"type:text" json:"error_message,omitempty"`
	SenderID     *uint                  `json:"sender_id,omitempty"`
	Enabled      bool                   `gorm:"not null" json:"enabled"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`

	// Relations
	Inbox *Inbox `gorm:"foreignKey:InboxID;references:ID" json:"inbox,omitempty"`
}

// TableName returns the table name for the model
func (WhatsappCampaign) TableName() string {
	return "whatsapp_campaigns"
}

// BeforeCreate is called before creating a new record
func (c *WhatsappCampaign) BeforeCreate(tx *gorm.DB) error {
	if c.Status == "" {
		c.Status = WhatsappCampaignStatusPending
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	if c.ScheduledAt.IsZero() {
		c.ScheduledAt = c.CreatedAt
	}
	return nil
}

// Stats returns the campaign's counters as a snapshot
func (c *WhatsappCampaign) Stats() DeliveryStats {
	return DeliveryStats{Sent: c.Sent, Delivered: c.Delivered, Failed: c.Failed}
}

// IsRunning reports whether the campaign is currently dispatching
func (c *WhatsappCampaign) IsRunning() bool {
	return c.Status == WhatsappCampaignStatusRunning
}

// IsDue reports whether the campaign's schedule has been reached
func (c *WhatsappCampaign) IsDue(now time.Time) bool {
	return !c.ScheduledAt.After(now)
}

// CanBeUpdated checks if the campaign can be edited or deleted
func (c *WhatsappCampaign) CanBeUpdated() bool {
	return c.Status == WhatsappCampaignStatusPending ||
		c.Status == WhatsappCampaignStatusFailed
}

// CanTransitionTo checks if the campaign can transition to the given status
func (c *WhatsappCampaign) CanTransitionTo(newStatus WhatsappCampaignStatus) bool {
	return CanTransitionWhatsappCampaign(c.Status, newStatus)
}

// CanTransitionWhatsappCampaign encodes the campaign state machine. Nothing returns to
// pending and nothing leaves completed.
func CanTransitionWhatsappCampaign(from, to WhatsappCampaignStatus) bool {
	switch from {
	case WhatsappCampaignStatusPending:
		return to == WhatsappCampaignStatusRunning ||
			to == WhatsappCampaignStatusFailed
	case WhatsappCampaignStatusRunning:
		return to == WhatsappCampaignStatusCompleted ||
			to == WhatsappCampaignStatusFailed
	default:
		return false
	}
}

// WhatsappCampaignFilter represents filter criteria for campaigns
type WhatsappCampaignFilter struct {
	ID              *uint                   `json:"id,omitempty"`
	AccountID       *uint                   `json:"account_id,omitempty"`
	InboxID         *uint                   `json:"inbox_id,omitempty"`
	Status          *WhatsappCampaignStatus `json:"status,omitempty"`
	Enabled         *bool                   `json:"enabled,omitempty"`
	ScheduledBefore *time.Time              `json:"scheduled_before,omitempty"`
	CreatedAfter    *time.Time              `json:"created_after,omitempty"`
	CreatedBefore   *time.Time              `json:"created_before,omitempty"`
}
