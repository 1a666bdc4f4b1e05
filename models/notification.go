package models

import "time"

// NotificationTypeCampaignCompleted marks the summary sent when a campaign finishes
const NotificationTypeCampaignCompleted = "whatsapp_campaign_completed"

// Notification is an in-app message addressed to an agent
type Notification struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	AccountID  uint       `gorm:"not null;index:idx_notifications_account_id" json:"account_id"`
	UserID     uint       `gorm:"not null;index:idx_notifications_user_id" json:"user_id"`
	Type       string     `gorm:"size:64;not null" json:"type"`
	CampaignID *uint      `gorm:"index:idx_notifications_campaign_id" json:"campaign_id,omitempty"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
