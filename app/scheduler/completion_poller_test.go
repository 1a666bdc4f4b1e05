package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lorenrocu/whatsapp-campaigns/app/queue"
	businessflow "github.com/lorenrocu/whatsapp-campaigns/business_flow"
	"github.com/lorenrocu/whatsapp-campaigns/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pollerFixture struct {
	campaigns     *fakeCampaignRepo
	contacts      *fakeContactRepo
	notifications *fakeNotificationRepo
	queue         *recordingQueue
	poller        *CompletionPoller
}

func newPollerFixture(campaign *models.WhatsappCampaign, audience int) *pollerFixture {
	f := &pollerFixture{
		campaigns:     newFakeCampaignRepo(campaign),
		contacts:      &fakeContactRepo{recipients: recipients(audience)},
		notifications: &fakeNotificationRepo{},
		queue:         &recordingQueue{},
	}
	lifecycle := businessflow.NewWhatsappCampaignLifecycle(f.campaigns, f.queue, nil)
	f.poller = NewCompletionPoller(f.campaigns, f.notifications, NewAudienceResolver(f.contacts), lifecycle, f.queue, testDispatchConfig(), testLogger())
	return f
}

func TestCompletionPoller_CompletesOnceProcessed(t *testing.T) {
	c := runningCampaign(1)
	c.Sent, c.Failed = 2, 1
	f := newPollerFixture(c, 3)

	require.NoError(t, f.poller.Check(context.Background(), queue.NewCheckTask(1, 1)))

	stored := f.campaigns.get(1)
	assert.Equal(t, models.WhatsappCampaignStatusCompleted, stored.Status)
	assert.Nil(t, stored.ErrorMessage)
	assert.Empty(t, f.queue.items)

	require.Len(t, f.notifications.saved, 1)
	n := f.notifications.saved[0]
	assert.Equal(t, uint(7), n.UserID)
	assert.Equal(t, models.NotificationTypeCampaignCompleted, n.Type)
	assert.Equal(t,
		"WhatsApp API Campaign 'Spring sale' has completed. Processed: 3, Sent: 2, Delivered: 0, Failed: 1, Success Rate: 66.67%",
		n.Content)

	// a second check after completion is a no-op and does not notify again
	require.NoError(t, f.poller.Check(context.Background(), queue.NewCheckTask(1, 2)))
	assert.Len(t, f.notifications.saved, 1)
}

func TestCompletionPoller_ConcurrentChecksNotifyOnce(t *testing.T) {
	c := runningCampaign(1)
	c.Sent, c.Failed = 3, 1
	f := newPollerFixture(c, 4)

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 1; i <= 2; i++ {
		wg.Add(1)
		go func(check int) {
			defer wg.Done()
			<-start
			assert.NoError(t, f.poller.Check(context.Background(), queue.NewCheckTask(1, check)))
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, models.WhatsappCampaignStatusCompleted, f.campaigns.get(1).Status)
	saved, err := f.notifications.ListByUser(context.Background(), 1, 7, 0, 0)
	require.NoError(t, err)
	assert.Len(t, saved, 1)
	assert.Empty(t, f.queue.items)
}

func TestCompletionPoller_LoadErrorKeepsChecking(t *testing.T) {
	t.Run("BeforeLastCheck", func(t *testing.T) {
		f := newPollerFixture(runningCampaign(1), 3)
		f.campaigns.byIDErr = errors.New("connection reset")

		err := f.poller.Check(context.Background(), queue.NewCheckTask(1, 3))
		require.Error(t, err)

		checks := f.queue.ofKind(queue.TaskKindCheck)
		require.Len(t, checks, 1)
		assert.Equal(t, 4, checks[0].task.Check)
		assert.Equal(t, time.Minute, checks[0].delay)
	})

	t.Run("AtLastCheckRetriesThenForces", func(t *testing.T) {
		c := runningCampaign(1)
		c.Sent = 1
		f := newPollerFixture(c, 3)
		f.campaigns.byIDErr = errors.New("connection reset")

		require.Error(t, f.poller.Check(context.Background(), queue.NewCheckTask(1, 20)))

		checks := f.queue.ofKind(queue.TaskKindCheck)
		require.Len(t, checks, 1)
		assert.Equal(t, 20, checks[0].task.Check)

		f.campaigns.byIDErr = nil
		require.NoError(t, f.poller.Check(context.Background(), checks[0].task))

		stored := f.campaigns.get(1)
		assert.Equal(t, models.WhatsappCampaignStatusCompleted, stored.Status)
		require.NotNil(t, stored.ErrorMessage)
		assert.Len(t, f.notifications.saved, 1)
	})

	t.Run("QueueDownToo", func(t *testing.T) {
		f := newPollerFixture(runningCampaign(1), 3)
		f.campaigns.byIDErr = errors.New("connection reset")
		f.queue.err = errors.New("redis down")

		err := f.poller.Check(context.Background(), queue.NewCheckTask(1, 1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "re-enqueue failed")
	})
}

func TestCompletionPoller_RearmsWhileIncomplete(t *testing.T) {
	c := runningCampaign(1)
	c.Sent = 1
	f := newPollerFixture(c, 3)

	require.NoError(t, f.poller.Check(context.Background(), queue.NewCheckTask(1, 4)))

	assert.Equal(t, models.WhatsappCampaignStatusRunning, f.campaigns.get(1).Status)
	checks := f.queue.ofKind(queue.TaskKindCheck)
	require.Len(t, checks, 1)
	assert.Equal(t, 5, checks[0].task.Check)
	assert.Equal(t, time.Minute, checks[0].delay)
	assert.Empty(t, f.notifications.saved)
}

func TestCompletionPoller_ForcesAfterLastCheck(t *testing.T) {
	c := runningCampaign(1)
	c.Sent = 1
	f := newPollerFixture(c, 3)

	require.NoError(t, f.poller.Check(context.Background(), queue.NewCheckTask(1, 20)))

	stored := f.campaigns.get(1)
	assert.Equal(t, models.WhatsappCampaignStatusCompleted, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "Completion forced after 20 checks: processed 1 of 3 recipients", *stored.ErrorMessage)
	assert.Empty(t, f.queue.items)
	assert.Len(t, f.notifications.saved, 1)
}

func TestCompletionPoller_TotalIsLive(t *testing.T) {
	c := runningCampaign(1)
	c.Sent = 2
	f := newPollerFixture(c, 3)

	require.NoError(t, f.poller.Check(context.Background(), queue.NewCheckTask(1, 1)))
	assert.Equal(t, models.WhatsappCampaignStatusRunning, f.campaigns.get(1).Status)

	// a contact left the audience after dispatch
	f.contacts.setRecipients(recipients(2))

	require.NoError(t, f.poller.Check(context.Background(), queue.NewCheckTask(1, 2)))
	assert.Equal(t, models.WhatsappCampaignStatusCompleted, f.campaigns.get(1).Status)
	assert.Equal(t, 2, f.contacts.calls)
}

func TestCompletionPoller_NoSenderNoNotification(t *testing.T) {
	c := runningCampaign(1)
	c.SenderID = nil
	c.Sent = 1
	f := newPollerFixture(c, 1)

	require.NoError(t, f.poller.Check(context.Background(), queue.NewCheckTask(1, 1)))
	assert.Equal(t, models.WhatsappCampaignStatusCompleted, f.campaigns.get(1).Status)
	assert.Empty(t, f.notifications.saved)
}

func TestCompletionSummary(t *testing.T) {
	tests := []struct {
		name      string
		sent      int64
		delivered int64
		failed    int64
		want      string
	}{
		{"nothing processed", 0, 0, 0, "Processed: 0, Sent: 0, Delivered: 0, Failed: 0, Success Rate: 0%"},
		{"all sent", 4, 3, 0, "Processed: 4, Sent: 4, Delivered: 3, Failed: 0, Success Rate: 100%"},
		{"mixed", 1, 0, 2, "Processed: 3, Sent: 1, Delivered: 0, Failed: 2, Success Rate: 33.33%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := runningCampaign(1)
			c.Sent, c.Delivered, c.Failed = tt.sent, tt.delivered, tt.failed
			assert.Equal(t, "WhatsApp API Campaign 'Spring sale' has completed. "+tt.want, CompletionSummary(c))
		})
	}
}
