package repository

import (
	"context"
	"fmt"

	"github.com/lorenrocu/whatsapp-campaigns/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CampaignDeliveryRepositoryImpl implements CampaignDeliveryRepository
type CampaignDeliveryRepositoryImpl struct {
	*BaseRepository[models.CampaignDelivery, models.CampaignDeliveryFilter]
}

func NewCampaignDeliveryRepository(db *gorm.DB) CampaignDeliveryRepository {
	return &CampaignDeliveryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignDelivery, models.CampaignDeliveryFilter](db),
	}
}

// Record inserts the outcome of a recipient unless one already exists.
// It reports whether this call inserted the row.
func (r *CampaignDeliveryRepositoryImpl) Record(ctx context.Context, delivery *models.CampaignDelivery) (bool, error) {
	db := r.getDB(ctx)

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "contact_id"}},
		DoNothing: true,
	}).Create(delivery)
	if res.Error != nil {
		return false, fmt.Errorf("failed to record delivery of campaign %d to contact %d: %w",
			delivery.CampaignID, delivery.ContactID, res.Error)
	}

	return res.RowsAffected == 1, nil
}

// Exists reports whether the recipient already has a terminal outcome
func (r *CampaignDeliveryRepositoryImpl) Exists(ctx context.Context, campaignID, contactID uint) (bool, error) {
	db := r.getDB(ctx)

	var count int64
	err := db.Model(&models.CampaignDelivery{}).
		Where("campaign_id = ? AND contact_id = ?", campaignID, contactID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check delivery of campaign %d to contact %d: %w", campaignID, contactID, err)
	}

	return count > 0, nil
}

// ListByCampaign returns the delivery records of a campaign in insertion order
func (r *CampaignDeliveryRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.CampaignDelivery, error) {
	db := r.getDB(ctx).Where("campaign_id = ?", campaignID).Order("id ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	if offset > 0 {
		db = db.Offset(offset)
	}

	var rows []*models.CampaignDelivery
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
