package repository

import (
	"context"
	"fmt"

	"github.com/lorenrocu/whatsapp-campaigns/models"
	"gorm.io/gorm"
)

// SequenceCounterRepositoryImpl implements SequenceCounterRepository
type SequenceCounterRepositoryImpl struct {
	*BaseRepository[models.SequenceCounter, any]
}

func NewSequenceCounterRepository(db *gorm.DB) SequenceCounterRepository {
	return &SequenceCounterRepositoryImpl{BaseRepository: NewBaseRepository[models.SequenceCounter, any](db)}
}

// Next increments the named counter, creating it on first use, and returns the new value.
// Concurrent callers serialize on the counter row.
func (r *SequenceCounterRepositoryImpl) Next(ctx context.Context, name string) (int64, error) {
	db := r.getDB(ctx)

	var value int64
	err := db.Raw(`
		INSERT INTO sequence_counters (name, last_value, created_at, updated_at)
		VALUES (?, 1, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE
		SET last_value = sequence_counters.last_value + 1, updated_at = NOW()
		RETURNING last_value`, name).Scan(&value).Error
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", name, err)
	}

	return value, nil
}
