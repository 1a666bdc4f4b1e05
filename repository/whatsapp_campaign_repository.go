package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lorenrocu/whatsapp-campaigns/models"
	"gorm.io/gorm"
)

// WhatsappCampaignRepositoryImpl implements the WhatsappCampaignRepository interface
type WhatsappCampaignRepositoryImpl struct {
	*BaseRepository[models.WhatsappCampaign, models.WhatsappCampaignFilter]
}

// NewWhatsappCampaignRepository creates a new campaign repository
func NewWhatsappCampaignRepository(db *gorm.DB) WhatsappCampaignRepository {
	return &WhatsappCampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.WhatsappCampaign, models.WhatsappCampaignFilter](db),
	}
}

// ByAccountAndID retrieves a campaign scoped to its owning account
func (r *WhatsappCampaignRepositoryImpl) ByAccountAndID(ctx context.Context, accountID, id uint) (*models.WhatsappCampaign, error) {
	db := r.getDB(ctx)

	var campaign models.WhatsappCampaign
	err := db.Where("account_id = ? AND id = ?", accountID, id).First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &campaign, nil
}

// ListDue returns enabled pending campaigns whose schedule has been reached
func (r *WhatsappCampaignRepositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.WhatsappCampaign, error) {
	status := models.WhatsappCampaignStatusPending
	enabled := true
	filter := models.WhatsappCampaignFilter{
		Status:          &status,
		Enabled:         &enabled,
		ScheduledBefore: &now,
	}
	return r.ByFilter(ctx, filter, "scheduled_at ASC, id ASC", limit, 0)
}

// UpdateMutable writes the editable fields of a campaign, but only while it is pending or failed
func (r *WhatsappCampaignRepositoryImpl) UpdateMutable(ctx context.Context, campaign *models.WhatsappCampaign) (bool, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.WhatsappCampaign{}).
		Where("id = ? AND account_id = ? AND status IN ?", campaign.ID, campaign.AccountID, models.MutableWhatsappCampaignStatuses).
		Updates(map[string]any{
			"title":        campaign.Title,
			"message":      campaign.Message,
			"inbox_id":     campaign.InboxID,
			"audience":     campaign.Audience,
			"multimedia":   campaign.Multimedia,
			"scheduled_at": campaign.ScheduledAt,
			"enabled":      campaign.Enabled,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update campaign %d: %w", campaign.ID, res.Error)
	}

	return res.RowsAffected == 1, nil
}

// DeleteMutable removes a campaign, but only while it is pending or failed
func (r *WhatsappCampaignRepositoryImpl) DeleteMutable(ctx context.Context, accountID, id uint) (bool, error) {
	db := r.getDB(ctx)

	res := db.Where("id = ? AND account_id = ? AND status IN ?", id, accountID, models.MutableWhatsappCampaignStatuses).
		Delete(&models.WhatsappCampaign{})
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete campaign %d: %w", id, res.Error)
	}

	return res.RowsAffected == 1, nil
}

// TransitionStatus moves a campaign to a new status if its current status is one of from.
// It reports whether this call performed the transition.
func (r *WhatsappCampaignRepositoryImpl) TransitionStatus(
	ctx context.Context,
	id uint,
	from []models.WhatsappCampaignStatus,
	to models.WhatsappCampaignStatus,
	errorMessage *string,
) (bool, error) {
	allowed := make([]models.WhatsappCampaignStatus, 0, len(from))
	for _, s := range from {
		if models.CanTransitionWhatsappCampaign(s, to) {
			allowed = append(allowed, s)
		}
	}
	if len(allowed) == 0 {
		return false, fmt.Errorf("invalid campaign transition %v -> %s", from, to)
	}

	updates := map[string]any{"status": to}
	if errorMessage != nil {
		updates["error_message"] = *errorMessage
	}

	db := r.getDB(ctx)
	res := db.Model(&models.WhatsappCampaign{}).
		Where("id = ? AND status IN ?", id, allowed).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition campaign %d to %s: %w", id, to, res.Error)
	}

	return res.RowsAffected == 1, nil
}

// IncrementStat atomically adds delta to one of the delivery counters
func (r *WhatsappCampaignRepositoryImpl) IncrementStat(ctx context.Context, id uint, stat models.DeliveryStat, delta int64) error {
	if !stat.Valid() {
		return fmt.Errorf("unknown delivery stat: %s", stat)
	}

	db := r.getDB(ctx)
	err := db.Model(&models.WhatsappCampaign{}).
		Where("id = ?", id).
		UpdateColumn(string(stat), gorm.Expr(string(stat)+" + ?", delta)).Error
	if err != nil {
		return fmt.Errorf("failed to increment %s of campaign %d: %w", stat, id, err)
	}

	return nil
}

// ByFilter retrieves campaigns based on filter criteria
func (r *WhatsappCampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.WhatsappCampaignFilter, orderBy string, limit, offset int) ([]*models.WhatsappCampaign, error) {
	db := r.getDB(ctx)

	var campaigns []*models.WhatsappCampaign
	query := r.applyFilter(db, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&campaigns).Error; err != nil {
		return nil, err
	}

	return campaigns, nil
}

// Count returns the number of campaigns matching the filter
func (r *WhatsappCampaignRepositoryImpl) Count(ctx context.Context, filter models.WhatsappCampaignFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.WhatsappCampaign{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any campaign matching the filter exists
func (r *WhatsappCampaignRepositoryImpl) Exists(ctx context.Context, filter models.WhatsappCampaignFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// applyFilter applies filter conditions to the GORM query
func (r *WhatsappCampaignRepositoryImpl) applyFilter(db *gorm.DB, filter models.WhatsappCampaignFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.AccountID != nil {
		db = db.Where("account_id = ?", *filter.AccountID)
	}
	if filter.InboxID != nil {
		db = db.Where("inbox_id = ?", *filter.InboxID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.Enabled != nil {
		db = db.Where("enabled = ?", *filter.Enabled)
	}
	if filter.ScheduledBefore != nil {
		db = db.Where("scheduled_at <= ?", *filter.ScheduledBefore)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at < ?", *filter.CreatedBefore)
	}

	return db
}
