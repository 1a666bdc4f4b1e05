package models

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// Contact is an addressable person in an account's directory
type Contact struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	AccountID        uint            `gorm:"not null;index:idx_contacts_account_id" json:"account_id"`
	Name             string          `gorm:"size:255" json:"name"`
	Labels           pq.StringArray  `gorm:"type:text[];not null;default:'{}'" json:"labels"`
	CustomAttributes json.RawMessage `gorm:"type:jsonb;not null;default:'{}'" json:"custom_attributes"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (Contact) TableName() string { return "contacts" }

// ContactInbox holds a contact's address (source id) on a specific inbox
type ContactInbox struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ContactID uint      `gorm:"not null;index:idx_contact_inboxes_contact_id" json:"contact_id"`
	InboxID   uint      `gorm:"not null;index:idx_contact_inboxes_inbox_id" json:"inbox_id"`
	SourceID  *string   `gorm:"size:255" json:"source_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (ContactInbox) TableName() string { return "contact_inboxes" }

// Recipient is a contact resolved together with its address on the campaign inbox
type Recipient struct {
	ContactID uint   `json:"contact_id"`
	SourceID  string `json:"source_id"`
}
