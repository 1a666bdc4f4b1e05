package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ChannelTypeAPI is the only channel type WhatsApp API campaigns may target
const ChannelTypeAPI = "Channel::Api"

// GatewayCredentials are the per-inbox settings used to reach the WhatsApp gateway
type GatewayCredentials struct {
	BaseURL      string `json:"base_url,omitempty"`
	Token        string `json:"token,omitempty"`
	InstanceName string `json:"instance_name,omitempty"`
}

// Complete reports whether every field needed for a request is present
func (g GatewayCredentials) Complete() bool {
	return strings.TrimSpace(g.BaseURL) != "" &&
		strings.TrimSpace(g.Token) != "" &&
		strings.TrimSpace(g.InstanceName) != ""
}

// Value implements the driver.Valuer interface for GatewayCredentials
func (g GatewayCredentials) Value() (driver.Value, error) {
	return json.Marshal(g)
}

// Scan implements the sql.Scanner interface for GatewayCredentials
func (g *GatewayCredentials) Scan(value any) error {
	if value == nil {
		*g = GatewayCredentials{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into GatewayCredentials", value)
	}

	return json.Unmarshal(bytes, g)
}

// Inbox is a messaging channel belonging to an account
type Inbox struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	AccountID          uint               `gorm:"not null;index:idx_inboxes_account_id" json:"account_id"`
	Name               string             `gorm:"size:255;not null" json:"name"`
	ChannelType        string             `gorm:"size:64;not null" json:"channel_type"`
	WhatsappAPIEnabled bool               `gorm:"not null;default:false" json:"whatsapp_api_enabled"`
	Credentials        GatewayCredentials `gorm:"type:jsonb;not null;default:'{}'" json:"-"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func (Inbox) TableName() string { return "inboxes" }

// IsAPIChannel reports whether the inbox is an API channel
func (i *Inbox) IsAPIChannel() bool {
	return i.ChannelType == ChannelTypeAPI
}

// AcceptsWhatsappCampaigns reports whether campaigns may target this inbox
func (i *Inbox) AcceptsWhatsappCampaigns() bool {
	return i.IsAPIChannel() && i.WhatsappAPIEnabled
}
