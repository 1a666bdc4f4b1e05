package repository

import (
	"context"

	"github.com/lorenrocu/whatsapp-campaigns/models"
	"gorm.io/gorm"
)

// NotificationRepositoryImpl implements NotificationRepository
type NotificationRepositoryImpl struct {
	*BaseRepository[models.Notification, any]
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &NotificationRepositoryImpl{BaseRepository: NewBaseRepository[models.Notification, any](db)}
}

func (r *NotificationRepositoryImpl) ListByUser(ctx context.Context, accountID, userID uint, limit, offset int) ([]*models.Notification, error) {
	db := r.getDB(ctx).
		Where("account_id = ? AND user_id = ?", accountID, userID).
		Order("id DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	if offset > 0 {
		db = db.Offset(offset)
	}

	var rows []*models.Notification
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
