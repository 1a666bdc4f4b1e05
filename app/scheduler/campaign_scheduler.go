// Package scheduler runs the WhatsApp campaign engine: the due-campaign sweep and the
// dispatch, send and completion tasks it fans out into.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lorenrocu/whatsapp-campaigns/app/queue"
	businessflow "github.com/lorenrocu/whatsapp-campaigns/business_flow"
	"github.com/lorenrocu/whatsapp-campaigns/config"
	"github.com/lorenrocu/whatsapp-campaigns/models"
	"github.com/lorenrocu/whatsapp-campaigns/repository"
	"github.com/lorenrocu/whatsapp-campaigns/utils"
	"github.com/redis/go-redis/v9"
)

// releaseLockScript deletes the sweep lock only while this replica still owns it
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// CampaignScheduler periodically picks up due campaigns and triggers them
type CampaignScheduler struct {
	campaignRepo repository.WhatsappCampaignRepository
	lifecycle    businessflow.WhatsappCampaignLifecycle
	rc           *redis.Client
	lockKey      string
	cfg          config.SchedulerConfig
	logger       *log.Logger
	now          func() time.Time
}

// NewCampaignScheduler creates the sweep. A nil redis client disables the cross-replica lock.
func NewCampaignScheduler(
	campaignRepo repository.WhatsappCampaignRepository,
	lifecycle businessflow.WhatsappCampaignLifecycle,
	rc *redis.Client,
	keyPrefix string,
	cfg config.SchedulerConfig,
	logger *log.Logger,
) *CampaignScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = utils.SchedulerInterval
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = utils.SweepLockTTL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = utils.SweepBatchSize
	}
	if logger == nil {
		logger = log.Default()
	}

	return &CampaignScheduler{
		campaignRepo: campaignRepo,
		lifecycle:    lifecycle,
		rc:           rc,
		lockKey:      keyPrefix + "scheduler:sweep_lock",
		cfg:          cfg,
		logger:       logger,
		now:          utils.UTCNow,
	}
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *CampaignScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *CampaignScheduler) runOnce(ctx context.Context) {
	n, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Printf("scheduler: sweep failed: %v", err)
		return
	}
	if n > 0 {
		s.logger.Printf("scheduler: sweep triggered %d campaigns", n)
	}
}

// Sweep triggers every due campaign once and returns how many were triggered.
// A failing campaign is marked failed and never stops the rest of the sweep.
func (s *CampaignScheduler) Sweep(ctx context.Context) (int, error) {
	release, acquired, err := s.lock(ctx)
	if err != nil {
		sweepsTotal.WithLabelValues("lock_error").Inc()
		return 0, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !acquired {
		sweepsTotal.WithLabelValues("skipped").Inc()
		return 0, nil
	}
	defer release()

	due, err := s.campaignRepo.ListDue(ctx, s.now(), s.cfg.BatchSize)
	if err != nil {
		sweepsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("list due campaigns: %w", err)
	}

	triggered := 0
	for _, c := range due {
		if s.triggerOne(ctx, c) {
			triggered++
		}
	}
	sweepsTotal.WithLabelValues("ok").Inc()
	return triggered, nil
}

func (s *CampaignScheduler) triggerOne(ctx context.Context, c *models.WhatsappCampaign) (won bool) {
	defer func() {
		if r := recover(); r != nil {
			s.failCampaign(ctx, c, fmt.Errorf("panic: %v", r))
			won = false
		}
	}()

	won, err := s.lifecycle.Trigger(ctx, c)
	if err != nil {
		if businessflow.IsCampaignNotDue(err) {
			return false
		}
		s.failCampaign(ctx, c, err)
		return false
	}
	if won {
		campaignTransitionsTotal.WithLabelValues(models.WhatsappCampaignStatusRunning.String()).Inc()
		s.logger.Printf("scheduler: campaign id=%d moved to running", c.ID)
	}
	return won
}

func (s *CampaignScheduler) failCampaign(ctx context.Context, c *models.WhatsappCampaign, cause error) {
	s.logger.Printf("scheduler: trigger campaign id=%d failed: %v", c.ID, cause)
	won, err := s.lifecycle.Fail(ctx, c, "Scheduler error: "+cause.Error())
	if err != nil {
		s.logger.Printf("scheduler: mark campaign id=%d failed: %v", c.ID, err)
		return
	}
	if won {
		campaignTransitionsTotal.WithLabelValues(models.WhatsappCampaignStatusFailed.String()).Inc()
	}
}

func (s *CampaignScheduler) lock(ctx context.Context) (func(), bool, error) {
	if s.rc == nil {
		return func() {}, true, nil
	}

	token := uuid.NewString()
	ok, err := s.rc.SetNX(ctx, s.lockKey, token, s.cfg.LockTTL).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseLockScript.Run(releaseCtx, s.rc, []string{s.lockKey}, token).Err(); err != nil {
			s.logger.Printf("scheduler: release sweep lock failed: %v", err)
		}
	}
	return release, true, nil
}

// RegisterHandlers binds the engine components to their task kinds
func RegisterHandlers(w *queue.Worker, planner *DispatchPlanner, sender *MessageSender, poller *CompletionPoller) {
	w.Handle(queue.TaskKindDispatch, planner.HandleTask)
	w.Handle(queue.TaskKindSend, sender.HandleTask)
	w.Handle(queue.TaskKindCheck, poller.HandleTask)
}
