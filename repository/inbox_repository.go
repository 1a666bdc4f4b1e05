package repository

import (
	"context"
	"errors"

	"github.com/lorenrocu/whatsapp-campaigns/models"
	"gorm.io/gorm"
)

// InboxRepositoryImpl implements InboxRepository
type InboxRepositoryImpl struct {
	*BaseRepository[models.Inbox, any]
}

func NewInboxRepository(db *gorm.DB) InboxRepository {
	return &InboxRepositoryImpl{BaseRepository: NewBaseRepository[models.Inbox, any](db)}
}

// ByAccountAndID retrieves an inbox only if it belongs to the account
func (r *InboxRepositoryImpl) ByAccountAndID(ctx context.Context, accountID, id uint) (*models.Inbox, error) {
	db := r.getDB(ctx)

	var inbox models.Inbox
	err := db.Where("account_id = ? AND id = ?", accountID, id).First(&inbox).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &inbox, nil
}
