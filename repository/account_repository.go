package repository

import (
	"context"
	"fmt"

	"github.com/lorenrocu/whatsapp-campaigns/models"
	"gorm.io/gorm"
)

// AccountRepositoryImpl implements AccountRepository
type AccountRepositoryImpl struct {
	*BaseRepository[models.Account, any]
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &AccountRepositoryImpl{BaseRepository: NewBaseRepository[models.Account, any](db)}
}

// FeatureEnabled reports whether the account exists and has the feature switched on
func (r *AccountRepositoryImpl) FeatureEnabled(ctx context.Context, accountID uint, feature string) (bool, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.Account{}).
		Where("id = ? AND ? = ANY(features)", accountID, feature).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check feature %s for account %d: %w", feature, accountID, err)
	}

	return count > 0, nil
}

// HasUser reports whether the user is a member of the account
func (r *AccountRepositoryImpl) HasUser(ctx context.Context, accountID, userID uint) (bool, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.AccountUser{}).
		Where("account_id = ? AND user_id = ?", accountID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check membership of user %d in account %d: %w", userID, accountID, err)
	}

	return count > 0, nil
}
