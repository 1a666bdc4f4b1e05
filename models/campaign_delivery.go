package models

import "time"

// DeliveryOutcome is the terminal result for one recipient of a campaign
type DeliveryOutcome string

const (
	DeliveryOutcomeSent   DeliveryOutcome = "sent"
	DeliveryOutcomeFailed DeliveryOutcome = "failed"
)

// Stat returns the counter this outcome increments
func (o DeliveryOutcome) Stat() DeliveryStat {
	if o == DeliveryOutcomeSent {
		return DeliveryStatSent
	}
	return DeliveryStatFailed
}

// CampaignDelivery records the terminal outcome of one recipient. The unique key on
// (campaign_id, contact_id) keeps every recipient in exactly one counter bucket.
type CampaignDelivery struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	CampaignID uint            `gorm:"not null;uniqueIndex:uk_campaign_deliveries_campaign_contact,priority:1" json:"campaign_id"`
	ContactID  uint            `gorm:"not null;uniqueIndex:uk_campaign_deliveries_campaign_contact,priority:2" json:"contact_id"`
	SourceID   string          `gorm:"size:255" json:"source_id"`
	Outcome    DeliveryOutcome `gorm:"size:20;not null;index:idx_campaign_deliveries_outcome" json:"outcome"`
	StatusCode int             `json:"status_code"`
	Attempts   int             `gorm:"not null" json:"attempts"`
	Error      *string         `gorm:"type:text" json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (CampaignDelivery) TableName() string { return "campaign_deliveries" }

// CampaignDeliveryFilter provides filter fields for repository queries
type CampaignDeliveryFilter struct {
	CampaignID *uint
	ContactID  *uint
	Outcome    *DeliveryOutcome
}
