package scheduler

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/lorenrocu/whatsapp-campaigns/app/queue"
	businessflow "github.com/lorenrocu/whatsapp-campaigns/business_flow"
	"github.com/lorenrocu/whatsapp-campaigns/config"
	"github.com/lorenrocu/whatsapp-campaigns/models"
	"github.com/lorenrocu/whatsapp-campaigns/repository"
	"github.com/lorenrocu/whatsapp-campaigns/utils"
)

// CompletionPoller decides when a running campaign has processed its whole audience
type CompletionPoller struct {
	campaignRepo     repository.WhatsappCampaignRepository
	notificationRepo repository.NotificationRepository
	resolver         Resolver
	lifecycle        businessflow.WhatsappCampaignLifecycle
	queue            queue.Queue
	cfg              config.DispatchConfig
	logger           *log.Logger
}

func NewCompletionPoller(
	campaignRepo repository.WhatsappCampaignRepository,
	notificationRepo repository.NotificationRepository,
	resolver Resolver,
	lifecycle businessflow.WhatsappCampaignLifecycle,
	q queue.Queue,
	cfg config.DispatchConfig,
	logger *log.Logger,
) *CompletionPoller {
	if logger == nil {
		logger = log.Default()
	}
	return &CompletionPoller{
		campaignRepo:     campaignRepo,
		notificationRepo: notificationRepo,
		resolver:         resolver,
		lifecycle:        lifecycle,
		queue:            q,
		cfg:              withDispatchDefaults(cfg),
		logger:           logger,
	}
}

// HandleTask runs a completion check task
func (p *CompletionPoller) HandleTask(ctx context.Context, t queue.Task) error {
	return p.Check(ctx, t)
}

// Check compares processed recipients against the live audience size. It re-arms
// itself until the check budget is spent and then forces completion.
func (p *CompletionPoller) Check(ctx context.Context, t queue.Task) error {
	if t.Check < 1 {
		t.Check = 1
	}

	campaign, err := p.campaignRepo.ByID(ctx, t.CampaignID)
	if err != nil {
		// keep the chain alive; at the last check the same task comes back and forces completion
		retry := t
		if t.Check < p.cfg.MaxCompletionChecks {
			retry = t.NextCheck()
		}
		if qerr := p.queue.Enqueue(ctx, retry, p.cfg.RecheckInterval); qerr != nil {
			return fmt.Errorf("load campaign %d: %w (re-enqueue failed: %v)", t.CampaignID, err, qerr)
		}
		return fmt.Errorf("load campaign %d: %w", t.CampaignID, err)
	}
	if campaign == nil || !campaign.IsRunning() {
		return nil
	}

	processed := campaign.Stats().Processed()
	total := -1
	recipients, err := p.resolver.Resolve(ctx, campaign)
	if err != nil {
		p.logger.Printf("scheduler: resolve audience of campaign id=%d failed: %v", campaign.ID, err)
	} else {
		total = len(recipients)
	}

	if total >= 0 && processed >= int64(total) {
		return p.finish(ctx, campaign, nil)
	}

	if t.Check < p.cfg.MaxCompletionChecks {
		if err := p.queue.Enqueue(ctx, t.NextCheck(), p.cfg.RecheckInterval); err != nil {
			return fmt.Errorf("re-enqueue %s: %w", t, err)
		}
		return nil
	}

	var msg string
	if total >= 0 {
		msg = fmt.Sprintf("Completion forced after %d checks: processed %d of %d recipients", t.Check, processed, total)
	} else {
		msg = fmt.Sprintf("Completion forced after %d checks: processed %d recipients, audience could not be resolved", t.Check, processed)
	}
	return p.finish(ctx, campaign, &msg)
}

func (p *CompletionPoller) finish(ctx context.Context, campaign *models.WhatsappCampaign, errorMessage *string) error {
	won, err := p.lifecycle.Complete(ctx, campaign, errorMessage)
	if err != nil {
		return fmt.Errorf("complete campaign %d: %w", campaign.ID, err)
	}
	if !won {
		return nil
	}
	campaignTransitionsTotal.WithLabelValues(models.WhatsappCampaignStatusCompleted.String()).Inc()

	summary := CompletionSummary(campaign)
	p.logger.Printf("scheduler: %s", summary)

	if campaign.SenderID == nil || p.notificationRepo == nil {
		return nil
	}
	notification := &models.Notification{
		AccountID:  campaign.AccountID,
		UserID:     *campaign.SenderID,
		Type:       models.NotificationTypeCampaignCompleted,
		CampaignID: utils.ToPtr(campaign.ID),
		Content:    summary,
		CreatedAt:  utils.UTCNow(),
	}
	if err := p.notificationRepo.Save(ctx, notification); err != nil {
		return fmt.Errorf("save completion notification of campaign %d: %w", campaign.ID, err)
	}
	return nil
}

// CompletionSummary renders the notification text sent when a campaign completes
func CompletionSummary(campaign *models.WhatsappCampaign) string {
	stats := campaign.Stats()
	rate := strconv.FormatFloat(stats.SuccessRate(), 'f', -1, 64)
	return fmt.Sprintf(
		"WhatsApp API Campaign '%s' has completed. Processed: %d, Sent: %d, Delivered: %d, Failed: %d, Success Rate: %s%%",
		campaign.Title, stats.Processed(), stats.Sent, stats.Delivered, stats.Failed, rate,
	)
}
