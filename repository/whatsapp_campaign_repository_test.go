package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lorenrocu/whatsapp-campaigns/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pendingOrRunning = []models.WhatsappCampaignStatus{
		models.WhatsappCampaignStatusPending,
		models.WhatsappCampaignStatusRunning,
	}
)

func TestTransitionStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("WinsWhenRowMatches", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewWhatsappCampaignRepository(db)

		mock.ExpectExec(`UPDATE "whatsapp_campaigns" SET .*"status"=.* WHERE id = \$\d+ AND status IN \(\$\d+\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		won, err := repo.TransitionStatus(ctx, 7,
			[]models.WhatsappCampaignStatus{models.WhatsappCampaignStatusPending},
			models.WhatsappCampaignStatusRunning, nil)
		require.NoError(t, err)
		assert.True(t, won)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("LosesWhenStatusMovedOn", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewWhatsappCampaignRepository(db)

		mock.ExpectExec(`UPDATE "whatsapp_campaigns" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		won, err := repo.TransitionStatus(ctx, 7,
			[]models.WhatsappCampaignStatus{models.WhatsappCampaignStatusRunning},
			models.WhatsappCampaignStatusCompleted, nil)
		require.NoError(t, err)
		assert.False(t, won)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("WritesErrorMessage", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewWhatsappCampaignRepository(db)

		mock.ExpectExec(`UPDATE "whatsapp_campaigns" SET "error_message"=.*"status"=.* WHERE id = \$\d+ AND status IN \(\$\d+,\$\d+\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		msg := "boom"
		won, err := repo.TransitionStatus(ctx, 7, pendingOrRunning, models.WhatsappCampaignStatusFailed, &msg)
		require.NoError(t, err)
		assert.True(t, won)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RejectsIllegalTransitionWithoutQuery", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewWhatsappCampaignRepository(db)

		won, err := repo.TransitionStatus(ctx, 7,
			[]models.WhatsappCampaignStatus{models.WhatsappCampaignStatusCompleted},
			models.WhatsappCampaignStatusRunning, nil)
		assert.Error(t, err)
		assert.False(t, won)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("PropagatesDatabaseError", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewWhatsappCampaignRepository(db)

		mock.ExpectExec(`UPDATE "whatsapp_campaigns" SET`).
			WillReturnError(errors.New("connection reset"))

		won, err := repo.TransitionStatus(ctx, 7, pendingOrRunning, models.WhatsappCampaignStatusFailed, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
		assert.False(t, won)
	})
}

func TestIncrementStat(t *testing.T) {
	ctx := context.Background()

	t.Run("AddsToCounterColumn", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewWhatsappCampaignRepository(db)

		mock.ExpectExec(`UPDATE "whatsapp_campaigns" SET "sent"=sent \+ \$1 WHERE id = \$2`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.IncrementStat(ctx, 9, models.DeliveryStatSent, 1))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RejectsUnknownStat", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewWhatsappCampaignRepository(db)

		err := repo.IncrementStat(ctx, 9, models.DeliveryStat("sent = 0; --"), 1)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMutableWrites(t *testing.T) {
	ctx := context.Background()

	t.Run("UpdateOnlyTouchesMutableStatuses", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewWhatsappCampaignRepository(db)

		mock.ExpectExec(`UPDATE "whatsapp_campaigns" SET .* WHERE id = \$\d+ AND account_id = \$\d+ AND status IN \(\$\d+,\$\d+\)`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		updated, err := repo.UpdateMutable(ctx, &models.WhatsappCampaign{
			ID:          3,
			AccountID:   1,
			Title:       "t",
			Message:     "m",
			InboxID:     2,
			ScheduledAt: time.Now().UTC(),
		})
		require.NoError(t, err)
		assert.False(t, updated)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DeleteReportsRemoval", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewWhatsappCampaignRepository(db)

		mock.ExpectExec(`DELETE FROM "whatsapp_campaigns" WHERE id = \$1 AND account_id = \$2 AND status IN \(\$3,\$4\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		deleted, err := repo.DeleteMutable(ctx, 1, 3)
		require.NoError(t, err)
		assert.True(t, deleted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestByAccountAndID(t *testing.T) {
	ctx := context.Background()

	t.Run("NotFoundIsNil", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewWhatsappCampaignRepository(db)

		mock.ExpectQuery(`SELECT \* FROM "whatsapp_campaigns" WHERE account_id = \$1 AND id = \$2`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		campaign, err := repo.ByAccountAndID(ctx, 1, 99)
		require.NoError(t, err)
		assert.Nil(t, campaign)
	})

	t.Run("ScansJSONColumns", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewWhatsappCampaignRepository(db)

		rows := sqlmock.NewRows([]string{"id", "account_id", "inbox_id", "title", "status", "audience", "multimedia", "sent", "failed"}).
			AddRow(5, 1, 2, "Promo", "running", []byte(`{"labels":["vip"]}`), []byte(`{}`), 3, 1)
		mock.ExpectQuery(`SELECT \* FROM "whatsapp_campaigns"`).WillReturnRows(rows)

		campaign, err := repo.ByAccountAndID(ctx, 1, 5)
		require.NoError(t, err)
		require.NotNil(t, campaign)
		assert.Equal(t, models.WhatsappCampaignStatusRunning, campaign.Status)
		assert.Equal(t, []string{"vip"}, campaign.Audience.Labels)
		assert.False(t, campaign.Multimedia.Present())
		assert.Equal(t, 75.0, campaign.Stats().SuccessRate())
	})
}
