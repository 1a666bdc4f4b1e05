package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/lorenrocu/whatsapp-campaigns/app/queue"
	"github.com/lorenrocu/whatsapp-campaigns/config"
	"github.com/lorenrocu/whatsapp-campaigns/models"
	"github.com/lorenrocu/whatsapp-campaigns/repository"
	"github.com/lorenrocu/whatsapp-campaigns/utils"
)

var (
	errMissingSourceID   = errors.New("contact has no source id on the campaign inbox")
	errInboxNotFound     = errors.New("campaign inbox not found")
	errIncompleteGateway = errors.New("inbox whatsapp api credentials are incomplete")
)

// MessageSender delivers one campaign message per send task and accounts for the outcome
type MessageSender struct {
	campaignRepo     repository.WhatsappCampaignRepository
	accountRepo      repository.AccountRepository
	inboxRepo        repository.InboxRepository
	contactRepo      repository.ContactRepository
	conversationRepo repository.ConversationRepository
	deliveryRepo     repository.CampaignDeliveryRepository
	client           WhatsappClient
	queue            queue.Queue
	transact         repository.Transactor
	cfg              config.DispatchConfig
	logger           *log.Logger
}

func NewMessageSender(
	campaignRepo repository.WhatsappCampaignRepository,
	accountRepo repository.AccountRepository,
	inboxRepo repository.InboxRepository,
	contactRepo repository.ContactRepository,
	conversationRepo repository.ConversationRepository,
	deliveryRepo repository.CampaignDeliveryRepository,
	client WhatsappClient,
	q queue.Queue,
	transact repository.Transactor,
	cfg config.DispatchConfig,
	logger *log.Logger,
) *MessageSender {
	if logger == nil {
		logger = log.Default()
	}
	return &MessageSender{
		campaignRepo:     campaignRepo,
		accountRepo:      accountRepo,
		inboxRepo:        inboxRepo,
		contactRepo:      contactRepo,
		conversationRepo: conversationRepo,
		deliveryRepo:     deliveryRepo,
		client:           client,
		queue:            q,
		transact:         transact,
		cfg:              withDispatchDefaults(cfg),
		logger:           logger,
	}
}

// HandleTask runs a send task
func (s *MessageSender) HandleTask(ctx context.Context, t queue.Task) error {
	_, err := s.Send(ctx, t)
	return err
}

// Send performs one delivery attempt. A returned error means the task could not be
// evaluated at all; gateway failures are reported through the outcome.
func (s *MessageSender) Send(ctx context.Context, t queue.Task) (SendOutcome, error) {
	if t.Attempt < 1 {
		t.Attempt = 1
	}

	campaign, err := s.campaignRepo.ByID(ctx, t.CampaignID)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("load campaign %d: %w", t.CampaignID, err)
	}
	if campaign == nil || !campaign.IsRunning() {
		return OutcomeSkipped, nil
	}

	enabled, err := s.accountRepo.FeatureEnabled(ctx, campaign.AccountID, models.FeatureWhatsappAPICampaigns)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("check feature of account %d: %w", campaign.AccountID, err)
	}
	if !enabled {
		return OutcomeSkipped, nil
	}

	done, err := s.deliveryRepo.Exists(ctx, campaign.ID, t.ContactID)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("check delivery of contact %d: %w", t.ContactID, err)
	}
	if done {
		return OutcomeSkipped, nil
	}

	sourceID, err := s.contactRepo.SourceID(ctx, t.ContactID, campaign.InboxID)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("resolve source id of contact %d: %w", t.ContactID, err)
	}
	if strings.TrimSpace(sourceID) == "" {
		return OutcomeTerminal, s.recordFailure(ctx, campaign, t, "", 0, errMissingSourceID)
	}

	inbox, err := s.inboxRepo.ByID(ctx, campaign.InboxID)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("load inbox %d: %w", campaign.InboxID, err)
	}
	if inbox == nil {
		return OutcomeTerminal, s.recordFailure(ctx, campaign, t, sourceID, 0, errInboxNotFound)
	}
	if !inbox.Credentials.Complete() {
		return OutcomeTerminal, s.recordFailure(ctx, campaign, t, sourceID, 0, errIncompleteGateway)
	}

	res := s.client.Send(ctx, inbox.Credentials, WhatsappMessage{
		Number: sourceID,
		Text:   campaign.Message,
		Media:  campaign.Multimedia,
	})
	sendAttemptsTotal.WithLabelValues(res.Outcome.String()).Inc()

	switch res.Outcome {
	case OutcomeOK:
		return OutcomeOK, s.recordSent(ctx, campaign, t, sourceID, res.StatusCode)
	case OutcomeTransient:
		if t.Attempt < s.cfg.MaxSendAttempts {
			s.logger.Printf("scheduler: %s transient failure, retrying in %s: %v", t, s.cfg.RetryBackoff, res.Err)
			if err := s.queue.Enqueue(ctx, t.Retry(), s.cfg.RetryBackoff); err != nil {
				return OutcomeTransient, fmt.Errorf("re-enqueue %s: %w", t, err)
			}
			return OutcomeTransient, nil
		}
		return OutcomeTerminal, s.recordFailure(ctx, campaign, t, sourceID, res.StatusCode, res.Err)
	default:
		return OutcomeTerminal, s.recordFailure(ctx, campaign, t, sourceID, res.StatusCode, res.Err)
	}
}

func (s *MessageSender) recordSent(ctx context.Context, campaign *models.WhatsappCampaign, t queue.Task, sourceID string, statusCode int) error {
	inserted, err := s.record(ctx, &models.CampaignDelivery{
		CampaignID: campaign.ID,
		ContactID:  t.ContactID,
		SourceID:   sourceID,
		Outcome:    models.DeliveryOutcomeSent,
		StatusCode: statusCode,
		Attempts:   t.Attempt,
	})
	if err != nil || !inserted {
		return err
	}

	if err := s.logConversation(ctx, campaign, t.ContactID); err != nil {
		s.logger.Printf("scheduler: conversation log for campaign id=%d contact id=%d failed: %v", campaign.ID, t.ContactID, err)
	}
	return nil
}

func (s *MessageSender) recordFailure(ctx context.Context, campaign *models.WhatsappCampaign, t queue.Task, sourceID string, statusCode int, cause error) error {
	var msg *string
	if cause != nil {
		msg = utils.ToPtr(cause.Error())
	}
	s.logger.Printf("scheduler: %s failed terminally: %v", t, cause)
	_, err := s.record(ctx, &models.CampaignDelivery{
		CampaignID: campaign.ID,
		ContactID:  t.ContactID,
		SourceID:   sourceID,
		Outcome:    models.DeliveryOutcomeFailed,
		StatusCode: statusCode,
		Attempts:   t.Attempt,
		Error:      msg,
	})
	return err
}

// record stores the delivery and bumps the matching counter in one transaction.
// A recipient that already has a delivery is not counted again.
func (s *MessageSender) record(ctx context.Context, delivery *models.CampaignDelivery) (bool, error) {
	inserted := false
	err := s.transact(ctx, func(txCtx context.Context) error {
		ok, err := s.deliveryRepo.Record(txCtx, delivery)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := s.campaignRepo.IncrementStat(txCtx, delivery.CampaignID, delivery.Outcome.Stat(), 1); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("record %s delivery of contact %d: %w", delivery.Outcome, delivery.ContactID, err)
	}
	if inserted {
		deliveriesTotal.WithLabelValues(string(delivery.Outcome)).Inc()
	}
	return inserted, nil
}

// logConversation writes the outgoing message into the contact's conversation
func (s *MessageSender) logConversation(ctx context.Context, campaign *models.WhatsappCampaign, contactID uint) error {
	conv, _, err := s.conversationRepo.FindOrCreate(ctx, campaign.AccountID, campaign.InboxID, contactID, campaign.SenderID)
	if err != nil {
		return err
	}

	message := &models.Message{
		AccountID:      campaign.AccountID,
		InboxID:        campaign.InboxID,
		ConversationID: conv.ID,
		UserID:         campaign.SenderID,
		MessageType:    models.MessageTypeOutgoing,
		Content:        campaign.Message,
		SourceID:       uuid.NewString(),
		CreatedAt:      utils.UTCNow(),
	}
	if url := strings.TrimSpace(campaign.Multimedia.URL); url != "" {
		fileType := campaign.Multimedia.Type
		if strings.TrimSpace(fileType) == "" {
			fileType = "file"
		}
		message.Attachments = []models.Attachment{{
			AccountID:   campaign.AccountID,
			FileType:    fileType,
			ExternalURL: url,
		}}
	}

	return s.conversationRepo.AppendMessage(ctx, message)
}
