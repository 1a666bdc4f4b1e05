package businessflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lorenrocu/whatsapp-campaigns/app/events"
	"github.com/lorenrocu/whatsapp-campaigns/app/queue"
	"github.com/lorenrocu/whatsapp-campaigns/models"
	"github.com/lorenrocu/whatsapp-campaigns/repository"
	"github.com/lorenrocu/whatsapp-campaigns/utils"
)

// WhatsappCampaignLifecycle owns every status transition of a campaign. Each method
// reports whether this call won the compare-and-set; losing is not an error.
type WhatsappCampaignLifecycle interface {
	Trigger(ctx context.Context, campaign *models.WhatsappCampaign) (bool, error)
	Complete(ctx context.Context, campaign *models.WhatsappCampaign, errorMessage *string) (bool, error)
	Fail(ctx context.Context, campaign *models.WhatsappCampaign, message string) (bool, error)
}

// WhatsappCampaignLifecycleImpl implements WhatsappCampaignLifecycle
type WhatsappCampaignLifecycleImpl struct {
	campaignRepo repository.WhatsappCampaignRepository
	queue        queue.Queue
	publisher    events.Publisher
	now          func() time.Time
}

// NewWhatsappCampaignLifecycle creates a new lifecycle instance
func NewWhatsappCampaignLifecycle(
	campaignRepo repository.WhatsappCampaignRepository,
	q queue.Queue,
	publisher events.Publisher,
) WhatsappCampaignLifecycle {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &WhatsappCampaignLifecycleImpl{
		campaignRepo: campaignRepo,
		queue:        q,
		publisher:    publisher,
		now:          utils.UTCNow,
	}
}

// Trigger moves a due pending campaign to running and enqueues its dispatch.
// Completed, failed and already running campaigns are left untouched.
func (l *WhatsappCampaignLifecycleImpl) Trigger(ctx context.Context, campaign *models.WhatsappCampaign) (bool, error) {
	if campaign == nil {
		return false, ErrCampaignNotFound
	}
	if campaign.Status != models.WhatsappCampaignStatusPending {
		return false, nil
	}
	if !campaign.IsDue(l.now()) {
		return false, ErrCampaignNotDue
	}

	won, err := l.campaignRepo.TransitionStatus(ctx, campaign.ID,
		[]models.WhatsappCampaignStatus{models.WhatsappCampaignStatusPending},
		models.WhatsappCampaignStatusRunning, nil)
	if err != nil {
		return false, err
	}
	if !won {
		return false, nil
	}
	campaign.Status = models.WhatsappCampaignStatusRunning

	if err := l.queue.Enqueue(ctx, queue.NewDispatchTask(campaign.ID), 0); err != nil {
		return true, fmt.Errorf("failed to enqueue dispatch of campaign %d: %w", campaign.ID, err)
	}

	l.publish(ctx, events.EventCampaignTriggered, campaign)
	return true, nil
}

// Complete moves a running campaign to completed
func (l *WhatsappCampaignLifecycleImpl) Complete(ctx context.Context, campaign *models.WhatsappCampaign, errorMessage *string) (bool, error) {
	if campaign == nil {
		return false, ErrCampaignNotFound
	}

	won, err := l.campaignRepo.TransitionStatus(ctx, campaign.ID,
		[]models.WhatsappCampaignStatus{models.WhatsappCampaignStatusRunning},
		models.WhatsappCampaignStatusCompleted, errorMessage)
	if err != nil || !won {
		return false, err
	}

	campaign.Status = models.WhatsappCampaignStatusCompleted
	if errorMessage != nil {
		campaign.ErrorMessage = errorMessage
	}
	l.publish(ctx, events.EventCampaignCompleted, campaign)
	return true, nil
}

// Fail moves a pending or running campaign to failed with the given message
func (l *WhatsappCampaignLifecycleImpl) Fail(ctx context.Context, campaign *models.WhatsappCampaign, message string) (bool, error) {
	if campaign == nil {
		return false, ErrCampaignNotFound
	}

	won, err := l.campaignRepo.TransitionStatus(ctx, campaign.ID,
		[]models.WhatsappCampaignStatus{models.WhatsappCampaignStatusPending, models.WhatsappCampaignStatusRunning},
		models.WhatsappCampaignStatusFailed, &message)
	if err != nil || !won {
		return false, err
	}

	campaign.Status = models.WhatsappCampaignStatusFailed
	campaign.ErrorMessage = &message
	l.publish(ctx, events.EventCampaignFailed, campaign)
	return true, nil
}

func (l *WhatsappCampaignLifecycleImpl) publish(ctx context.Context, eventType events.EventType, campaign *models.WhatsappCampaign) {
	ev := events.CampaignEvent{
		Type:       eventType,
		CampaignID: campaign.ID,
		AccountID:  campaign.AccountID,
		Status:     campaign.Status.String(),
		Sent:       campaign.Sent,
		Delivered:  campaign.Delivered,
		Failed:     campaign.Failed,
		OccurredAt: l.now(),
	}
	if campaign.ErrorMessage != nil {
		ev.ErrorMessage = *campaign.ErrorMessage
	}
	if err := l.publisher.Publish(ctx, ev); err != nil {
		log.Printf("lifecycle: publish %s for campaign %d failed: %v", eventType, campaign.ID, err)
	}
}
