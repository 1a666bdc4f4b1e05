package repository_test

import (
	"errors"
	"testing"

	"github.com/lorenrocu/whatsapp-campaigns/models"
	"github.com/lorenrocu/whatsapp-campaigns/repository"
	testingutil "github.com/lorenrocu/whatsapp-campaigns/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withDB(t *testing.T, fn func(*testingutil.TestDB) error) {
	t.Helper()
	err := testingutil.TestWithDB(fn)
	if errors.Is(err, testingutil.ErrNoTestDatabase) {
		t.Skip("integration database not configured")
	}
	require.NoError(t, err)
}

func TestContactRepositoryRecipients(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		repo := repository.NewContactRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		account, err := fixtures.CreateTestAccount(1, models.FeatureWhatsappAPICampaigns)
		require.NoError(t, err)
		inbox, err := fixtures.CreateTestInbox(account.ID, true)
		require.NoError(t, err)

		vip, err := fixtures.CreateTestContact(account.ID, inbox.ID, "551100000001", []string{"vip"}, map[string]any{"city": "Lima", "tier": 2})
		require.NoError(t, err)
		regular, err := fixtures.CreateTestContact(account.ID, inbox.ID, "551100000002", []string{"regular"}, map[string]any{"city": "Cusco"})
		require.NoError(t, err)
		unreachable, err := fixtures.CreateTestContact(account.ID, inbox.ID, "", []string{"vip"}, nil)
		require.NoError(t, err)

		t.Run("BlankAudience", func(t *testing.T) {
			got, err := repo.Recipients(ctx, account.ID, inbox.ID, models.AudienceSpec{})
			require.NoError(t, err)
			assert.Empty(t, got)
		})

		t.Run("ExplicitIDsSkipUnaddressable", func(t *testing.T) {
			got, err := repo.Recipients(ctx, account.ID, inbox.ID, models.AudienceSpec{
				ContactIDs: []uint{regular.ID, vip.ID, unreachable.ID},
				Labels:     []string{"nobody"},
			})
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, vip.ID, got[0].ContactID)
			assert.Equal(t, regular.ID, got[1].ContactID)
		})

		t.Run("Labels", func(t *testing.T) {
			got, err := repo.Recipients(ctx, account.ID, inbox.ID, models.AudienceSpec{Labels: []string{"vip"}})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "551100000001", got[0].SourceID)
		})

		t.Run("CustomAttributes", func(t *testing.T) {
			got, err := repo.Recipients(ctx, account.ID, inbox.ID, models.AudienceSpec{
				CustomAttributes: map[string]any{"city": "Lima", "tier": float64(2)},
			})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, vip.ID, got[0].ContactID)
		})

		t.Run("SourceID", func(t *testing.T) {
			sourceID, err := repo.SourceID(ctx, regular.ID, inbox.ID)
			require.NoError(t, err)
			assert.Equal(t, "551100000002", sourceID)

			sourceID, err = repo.SourceID(ctx, unreachable.ID, inbox.ID)
			require.NoError(t, err)
			assert.Empty(t, sourceID)
		})

		return nil
	})
}

func TestAccountRepository(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		repo := repository.NewAccountRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		enabled, err := fixtures.CreateTestAccount(7, models.FeatureWhatsappAPICampaigns)
		require.NoError(t, err)
		disabled, err := fixtures.CreateTestAccount(0)
		require.NoError(t, err)

		ok, err := repo.FeatureEnabled(ctx, enabled.ID, models.FeatureWhatsappAPICampaigns)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.FeatureEnabled(ctx, disabled.ID, models.FeatureWhatsappAPICampaigns)
		require.NoError(t, err)
		assert.False(t, ok)

		member, err := repo.HasUser(ctx, enabled.ID, 7)
		require.NoError(t, err)
		assert.True(t, member)

		member, err = repo.HasUser(ctx, disabled.ID, 7)
		require.NoError(t, err)
		assert.False(t, member)

		return nil
	})
}

func TestWhatsappCampaignLifecycleWrites(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		campaigns := repository.NewWhatsappCampaignRepository(testDB.DB)
		deliveries := repository.NewCampaignDeliveryRepository(testDB.DB)
		sequences := repository.NewSequenceCounterRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		account, err := fixtures.CreateTestAccount(1, models.FeatureWhatsappAPICampaigns)
		require.NoError(t, err)
		inbox, err := fixtures.CreateTestInbox(account.ID, true)
		require.NoError(t, err)
		campaign, err := fixtures.CreateTestCampaign(account.ID, inbox.ID, 1, models.WhatsappCampaignStatusPending, models.AudienceSpec{Labels: []string{"vip"}})
		require.NoError(t, err)

		due, err := campaigns.ListDue(ctx, campaign.ScheduledAt, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)

		pending := []models.WhatsappCampaignStatus{models.WhatsappCampaignStatusPending}
		won, err := campaigns.TransitionStatus(ctx, campaign.ID, pending, models.WhatsappCampaignStatusRunning, nil)
		require.NoError(t, err)
		assert.True(t, won)

		won, err = campaigns.TransitionStatus(ctx, campaign.ID, pending, models.WhatsappCampaignStatusRunning, nil)
		require.NoError(t, err)
		assert.False(t, won)

		inserted, err := deliveries.Record(ctx, &models.CampaignDelivery{
			CampaignID: campaign.ID, ContactID: 1, Outcome: models.DeliveryOutcomeSent, Attempts: 1,
		})
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = deliveries.Record(ctx, &models.CampaignDelivery{
			CampaignID: campaign.ID, ContactID: 1, Outcome: models.DeliveryOutcomeFailed, Attempts: 3,
		})
		require.NoError(t, err)
		assert.False(t, inserted)

		require.NoError(t, campaigns.IncrementStat(ctx, campaign.ID, models.DeliveryStatSent, 1))
		require.NoError(t, campaigns.IncrementStat(ctx, campaign.ID, models.DeliveryStatSent, 1))

		stored, err := campaigns.ByAccountAndID(ctx, account.ID, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stored.Sent)
		assert.Equal(t, models.WhatsappCampaignStatusRunning, stored.Status)

		updated, err := campaigns.UpdateMutable(ctx, stored)
		require.NoError(t, err)
		assert.False(t, updated)

		first, err := sequences.Next(ctx, models.WhatsappCampaignDisplayIDSequence(account.ID))
		require.NoError(t, err)
		second, err := sequences.Next(ctx, models.WhatsappCampaignDisplayIDSequence(account.ID))
		require.NoError(t, err)
		assert.Equal(t, first+1, second)

		return nil
	})
}
