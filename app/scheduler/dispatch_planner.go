package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lorenrocu/whatsapp-campaigns/app/queue"
	businessflow "github.com/lorenrocu/whatsapp-campaigns/business_flow"
	"github.com/lorenrocu/whatsapp-campaigns/config"
	"github.com/lorenrocu/whatsapp-campaigns/models"
	"github.com/lorenrocu/whatsapp-campaigns/repository"
	"github.com/lorenrocu/whatsapp-campaigns/utils"
)

// withDispatchDefaults fills unset cadence values with the package constants
func withDispatchDefaults(cfg config.DispatchConfig) config.DispatchConfig {
	if cfg.SendInterval <= 0 {
		cfg.SendInterval = utils.SendInterval
	}
	if cfg.CompletionGrace <= 0 {
		cfg.CompletionGrace = utils.CompletionGrace
	}
	if cfg.RecheckInterval <= 0 {
		cfg.RecheckInterval = utils.CompletionRecheckInterval
	}
	if cfg.MaxCompletionChecks <= 0 {
		cfg.MaxCompletionChecks = utils.MaxCompletionChecks
	}
	if cfg.MaxSendAttempts <= 0 {
		cfg.MaxSendAttempts = utils.MaxSendAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = utils.SendRetryBackoff
	}
	return cfg
}

// DispatchPlanner fans a running campaign out into paced send tasks and the first completion check
type DispatchPlanner struct {
	campaignRepo repository.WhatsappCampaignRepository
	accountRepo  repository.AccountRepository
	resolver     Resolver
	lifecycle    businessflow.WhatsappCampaignLifecycle
	queue        queue.Queue
	cfg          config.DispatchConfig
	logger       *log.Logger
}

func NewDispatchPlanner(
	campaignRepo repository.WhatsappCampaignRepository,
	accountRepo repository.AccountRepository,
	resolver Resolver,
	lifecycle businessflow.WhatsappCampaignLifecycle,
	q queue.Queue,
	cfg config.DispatchConfig,
	logger *log.Logger,
) *DispatchPlanner {
	if logger == nil {
		logger = log.Default()
	}
	return &DispatchPlanner{
		campaignRepo: campaignRepo,
		accountRepo:  accountRepo,
		resolver:     resolver,
		lifecycle:    lifecycle,
		queue:        q,
		cfg:          withDispatchDefaults(cfg),
		logger:       logger,
	}
}

// HandleTask runs a dispatch task
func (p *DispatchPlanner) HandleTask(ctx context.Context, t queue.Task) error {
	return p.Dispatch(ctx, t.CampaignID)
}

// Dispatch plans the sends of one running campaign. Failures never propagate: they
// move the campaign to failed.
func (p *DispatchPlanner) Dispatch(ctx context.Context, campaignID uint) (err error) {
	campaign := &models.WhatsappCampaign{ID: campaignID}
	defer func() {
		if r := recover(); r != nil {
			p.fail(ctx, campaign, fmt.Sprintf("panic: %v", r))
			err = nil
		}
	}()

	stored, err := p.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		p.fail(ctx, campaign, err.Error())
		return nil
	}
	if stored == nil || !stored.IsRunning() {
		return nil
	}
	campaign = stored

	enabled, err := p.accountRepo.FeatureEnabled(ctx, campaign.AccountID, models.FeatureWhatsappAPICampaigns)
	if err != nil {
		p.fail(ctx, campaign, err.Error())
		return nil
	}
	if !enabled {
		p.logger.Printf("scheduler: dispatch skipped for campaign id=%d: feature disabled", campaign.ID)
		return nil
	}

	recipients, err := p.resolver.Resolve(ctx, campaign)
	if err != nil {
		p.fail(ctx, campaign, err.Error())
		return nil
	}
	audienceSize.Observe(float64(len(recipients)))

	if len(recipients) == 0 {
		msg := utils.NoRecipientsErrorMessage
		won, err := p.lifecycle.Complete(ctx, campaign, &msg)
		if err != nil {
			p.logger.Printf("scheduler: complete empty campaign id=%d failed: %v", campaign.ID, err)
			return nil
		}
		if won {
			campaignTransitionsTotal.WithLabelValues(models.WhatsappCampaignStatusCompleted.String()).Inc()
			p.logger.Printf("scheduler: campaign id=%d has no recipients", campaign.ID)
		}
		return nil
	}

	for i, r := range recipients {
		delay := time.Duration(i) * p.cfg.SendInterval
		if err := p.queue.Enqueue(ctx, queue.NewSendTask(campaign.ID, r.ContactID, 1), delay); err != nil {
			p.fail(ctx, campaign, err.Error())
			return nil
		}
	}

	firstCheck := time.Duration(len(recipients)-1)*p.cfg.SendInterval + p.cfg.CompletionGrace
	if err := p.queue.Enqueue(ctx, queue.NewCheckTask(campaign.ID, 1), firstCheck); err != nil {
		p.fail(ctx, campaign, err.Error())
		return nil
	}

	p.logger.Printf("scheduler: campaign id=%d planned %d sends, first check in %s", campaign.ID, len(recipients), firstCheck)
	return nil
}

func (p *DispatchPlanner) fail(ctx context.Context, campaign *models.WhatsappCampaign, message string) {
	p.logger.Printf("scheduler: dispatch of campaign id=%d failed: %s", campaign.ID, message)
	won, err := p.lifecycle.Fail(ctx, campaign, message)
	if err != nil {
		p.logger.Printf("scheduler: mark campaign id=%d failed: %v", campaign.ID, err)
		// the campaign is still running; try the dispatch again later
		if qerr := p.queue.Enqueue(ctx, queue.NewDispatchTask(campaign.ID), p.cfg.RecheckInterval); qerr != nil {
			p.logger.Printf("scheduler: re-enqueue dispatch of campaign id=%d: %v", campaign.ID, qerr)
		}
		return
	}
	if won {
		campaignTransitionsTotal.WithLabelValues(models.WhatsappCampaignStatusFailed.String()).Inc()
	}
}
