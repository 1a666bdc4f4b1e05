package models

import (
	"slices"
	"time"

	"github.com/lib/pq"
)

// FeatureWhatsappAPICampaigns gates the WhatsApp API campaign feature per account
const FeatureWhatsappAPICampaigns = "whatsapp_api_campaigns"

// Account is the tenant that owns inboxes, contacts and campaigns
type Account struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	Features  pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"features"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

// FeatureEnabled reports whether the named feature flag is switched on
func (a *Account) FeatureEnabled(feature string) bool {
	return slices.Contains(a.Features, feature)
}

// AccountUser links an agent to an account
type AccountUser struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"not null;uniqueIndex:uk_account_users_account_user,priority:1" json:"account_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:uk_account_users_account_user,priority:2;index:idx_account_users_user_id" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (AccountUser) TableName() string { return "account_users" }
