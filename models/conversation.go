package models

import "time"

// ConversationStatus is the state of a conversation thread
type ConversationStatus string

const (
	ConversationStatusOpen     ConversationStatus = "open"
	ConversationStatusResolved ConversationStatus = "resolved"
)

// MessageType is the direction of a conversation message
type MessageType string

const (
	MessageTypeIncoming MessageType = "incoming"
	MessageTypeOutgoing MessageType = "outgoing"
	MessageTypeActivity MessageType = "activity"
)

// Conversation is a thread between an inbox and a contact
type Conversation struct {
	ID         uint               `gorm:"primaryKey" json:"id"`
	AccountID  uint               `gorm:"not null;uniqueIndex:uk_conversations_account_inbox_contact,priority:1" json:"account_id"`
	InboxID    uint               `gorm:"not null;uniqueIndex:uk_conversations_account_inbox_contact,priority:2" json:"inbox_id"`
	ContactID  uint               `gorm:"not null;uniqueIndex:uk_conversations_account_inbox_contact,priority:3" json:"contact_id"`
	Status     ConversationStatus `gorm:"size:20;not null" json:"status"`
	AssigneeID *uint              `json:"assignee_id,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

// Message is a single entry in a conversation
type Message struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	AccountID      uint        `gorm:"not null" json:"account_id"`
	InboxID        uint        `gorm:"not null" json:"inbox_id"`
	ConversationID uint        `gorm:"not null;index:idx_messages_conversation_id" json:"conversation_id"`
	ContactID      *uint       `json:"contact_id,omitempty"`
	UserID         *uint       `json:"user_id,omitempty"`
	MessageType    MessageType `gorm:"size:20;not null" json:"message_type"`
	Content        string      `gorm:"type:text" json:"content"`
	SourceID       string      `gorm:"size:64;index:idx_messages_source_id" json:"source_id"`
	CreatedAt      time.Time   `json:"created_at"`

	Attachments []Attachment `gorm:"foreignKey:MessageID" json:"attachments,omitempty"`
}

func (Message) TableName() string { return "messages" }

// Attachment points a message at an externally hosted file
type Attachment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AccountID   uint      `gorm:"not null" json:"account_id"`
	MessageID   uint      `gorm:"not null;index:idx_attachments_message_id" json:"message_id"`
	FileType    string    `gorm:"size:32;not null" json:"file_type"`
	ExternalURL string    `gorm:"type:text;not null" json:"external_url"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Attachment) TableName() string { return "attachments" }
