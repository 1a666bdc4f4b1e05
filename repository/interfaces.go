// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/lorenrocu/whatsapp-campaigns/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// WhatsappCampaignRepository is the campaign store. Status writes are compare-and-set
// and counters only move through atomic increments.
type WhatsappCampaignRepository interface {
	Repository[models.WhatsappCampaign, models.WhatsappCampaignFilter]
	ByAccountAndID(ctx context.Context, accountID, id uint) (*models.WhatsappCampaign, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.WhatsappCampaign, error)
	UpdateMutable(ctx context.Context, campaign *models.WhatsappCampaign) (bool, error)
	DeleteMutable(ctx context.Context, accountID, id uint) (bool, error)
	TransitionStatus(ctx context.Context, id uint, from []models.WhatsappCampaignStatus, to models.WhatsappCampaignStatus, errorMessage *string) (bool, error)
	IncrementStat(ctx context.Context, id uint, stat models.DeliveryStat, delta int64) error
}

// SequenceCounterRepository hands out monotonic values per named sequence
type SequenceCounterRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}

// AccountRepository defines operations for accounts and their members
type AccountRepository interface {
	ByID(ctx context.Context, id uint) (*models.Account, error)
	FeatureEnabled(ctx context.Context, accountID uint, feature string) (bool, error)
	HasUser(ctx context.Context, accountID, userID uint) (bool, error)
}

// InboxRepository defines operations for inboxes
type InboxRepository interface {
	ByID(ctx context.Context, id uint) (*models.Inbox, error)
	ByAccountAndID(ctx context.Context, accountID, id uint) (*models.Inbox, error)
}

// ContactRepository is the contact directory used to resolve audiences
type ContactRepository interface {
	Recipients(ctx context.Context, accountID, inboxID uint, audience models.AudienceSpec) ([]models.Recipient, error)
	SourceID(ctx context.Context, contactID, inboxID uint) (string, error)
}

// ConversationRepository is the conversation/message log written by dispatch
type ConversationRepository interface {
	FindOrCreate(ctx context.Context, accountID, inboxID, contactID uint, assigneeID *uint) (*models.Conversation, bool, error)
	AppendMessage(ctx context.Context, message *models.Message) error
}

// CampaignDeliveryRepository records per-recipient terminal outcomes
type CampaignDeliveryRepository interface {
	Record(ctx context.Context, delivery *models.CampaignDelivery) (bool, error)
	Exists(ctx context.Context, campaignID, contactID uint) (bool, error)
	ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.CampaignDelivery, error)
}

// NotificationRepository defines operations for in-app notifications
type NotificationRepository interface {
	Save(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, accountID, userID uint, limit, offset int) ([]*models.Notification, error)
}
