package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lorenrocu/whatsapp-campaigns/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepositoryImpl implements ConversationRepository
type ConversationRepositoryImpl struct {
	*BaseRepository[models.Conversation, any]
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &ConversationRepositoryImpl{BaseRepository: NewBaseRepository[models.Conversation, any](db)}
}

// FindOrCreate returns the conversation between the inbox and the contact, opening one
// assigned to assigneeID when none exists. The bool reports whether it was created.
func (r *ConversationRepositoryImpl) FindOrCreate(ctx context.Context, accountID, inboxID, contactID uint, assigneeID *uint) (*models.Conversation, bool, error) {
	existing, err := r.find(ctx, accountID, inboxID, contactID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	conversation := &models.Conversation{
		AccountID:  accountID,
		InboxID:    inboxID,
		ContactID:  contactID,
		Status:     models.ConversationStatusOpen,
		AssigneeID: assigneeID,
	}

	db := r.getDB(ctx)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "inbox_id"}, {Name: "contact_id"}},
		DoNothing: true,
	}).Create(conversation)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to create conversation for contact %d: %w", contactID, res.Error)
	}
	if res.RowsAffected == 1 {
		return conversation, true, nil
	}

	// lost the race to a concurrent sender
	existing, err = r.find(ctx, accountID, inboxID, contactID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("conversation for contact %d vanished after conflict", contactID)
	}
	return existing, false, nil
}

func (r *ConversationRepositoryImpl) find(ctx context.Context, accountID, inboxID, contactID uint) (*models.Conversation, error) {
	db := r.getDB(ctx)

	var conversation models.Conversation
	err := db.Where("account_id = ? AND inbox_id = ? AND contact_id = ?", accountID, inboxID, contactID).
		First(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find conversation for contact %d: %w", contactID, err)
	}

	return &conversation, nil
}

// AppendMessage inserts a message together with its attachments
func (r *ConversationRepositoryImpl) AppendMessage(ctx context.Context, message *models.Message) error {
	db := r.getDB(ctx)
	if err := db.Create(message).Error; err != nil {
		return fmt.Errorf("failed to append message to conversation %d: %w", message.ConversationID, err)
	}
	return nil
}
