package scheduler

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/lorenrocu/whatsapp-campaigns/app/queue"
	"github.com/lorenrocu/whatsapp-campaigns/models"
)

type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[uint]*models.WhatsappCampaign
	byIDErr       error
	listErr       error
	transitionErr error
}

func newFakeCampaignRepo(cs ...*models.WhatsappCampaign) *fakeCampaignRepo {
	r := &fakeCampaignRepo{campaigns: map[uint]*models.WhatsappCampaign{}}
	for _, c := range cs {
		cp := *c
		r.campaigns[c.ID] = &cp
	}
	return r
}

func (r *fakeCampaignRepo) get(id uint) *models.WhatsappCampaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

func (r *fakeCampaignRepo) ByID(_ context.Context, id uint) (*models.WhatsappCampaign, error) {
	if r.byIDErr != nil {
		return nil, r.byIDErr
	}
	return r.get(id), nil
}

func (r *fakeCampaignRepo) ByFilter(_ context.Context, _ models.WhatsappCampaignFilter, _ string, _, _ int) ([]*models.WhatsappCampaign, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeCampaignRepo) Save(_ context.Context, c *models.WhatsappCampaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *fakeCampaignRepo) Count(_ context.Context, _ models.WhatsappCampaignFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.campaigns)), nil
}

func (r *fakeCampaignRepo) Exists(ctx context.Context, f models.WhatsappCampaignFilter) (bool, error) {
	n, err := r.Count(ctx, f)
	return n > 0, err
}

func (r *fakeCampaignRepo) ByAccountAndID(_ context.Context, accountID, id uint) (*models.WhatsappCampaign, error) {
	c := r.get(id)
	if c == nil || c.AccountID != accountID {
		return nil, nil
	}
	return c, nil
}

func (r *fakeCampaignRepo) ListDue(_ context.Context, now time.Time, limit int) ([]*models.WhatsappCampaign, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.WhatsappCampaign
	for _, c := range r.campaigns {
		if c.Status == models.WhatsappCampaignStatusPending && c.Enabled && !c.ScheduledAt.After(now) {
			cp := *c
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.WhatsappCampaign) int { return int(a.ID) - int(b.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeCampaignRepo) UpdateMutable(_ context.Context, c *models.WhatsappCampaign) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.campaigns[c.ID]
	if !ok || !cur.CanBeUpdated() {
		return false, nil
	}
	cp := *c
	cp.Status = cur.Status
	r.campaigns[c.ID] = &cp
	return true, nil
}

func (r *fakeCampaignRepo) DeleteMutable(_ context.Context, accountID, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.campaigns[id]
	if !ok || cur.AccountID != accountID || !cur.CanBeUpdated() {
		return false, nil
	}
	delete(r.campaigns, id)
	return true, nil
}

func (r *fakeCampaignRepo) TransitionStatus(_ context.Context, id uint, from []models.WhatsappCampaignStatus, to models.WhatsappCampaignStatus, errorMessage *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transitionErr != nil {
		return false, r.transitionErr
	}
	cur, ok := r.campaigns[id]
	if !ok || !slices.Contains(from, cur.Status) || !models.CanTransitionWhatsappCampaign(cur.Status, to) {
		return false, nil
	}
	cur.Status = to
	if errorMessage != nil {
		msg := *errorMessage
		cur.ErrorMessage = &msg
	}
	return true, nil
}

func (r *fakeCampaignRepo) IncrementStat(_ context.Context, id uint, stat models.DeliveryStat, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.campaigns[id]
	if !ok {
		return nil
	}
	switch stat {
	case models.DeliveryStatSent:
		cur.Sent += delta
	case models.DeliveryStatDelivered:
		cur.Delivered += delta
	case models.DeliveryStatFailed:
		cur.Failed += delta
	default:
		return errors.New("unknown stat")
	}
	return nil
}

type fakeAccountRepo struct {
	disabled   bool
	featureErr error
}

func (r *fakeAccountRepo) ByID(_ context.Context, id uint) (*models.Account, error) {
	return &models.Account{ID: id}, nil
}

func (r *fakeAccountRepo) FeatureEnabled(_ context.Context, _ uint, _ string) (bool, error) {
	if r.featureErr != nil {
		return false, r.featureErr
	}
	return !r.disabled, nil
}

func (r *fakeAccountRepo) HasUser(_ context.Context, _, _ uint) (bool, error) {
	return true, nil
}

type fakeInboxRepo struct {
	inboxes map[uint]*models.Inbox
}

func (r *fakeInboxRepo) ByID(_ context.Context, id uint) (*models.Inbox, error) {
	return r.inboxes[id], nil
}

func (r *fakeInboxRepo) ByAccountAndID(_ context.Context, accountID, id uint) (*models.Inbox, error) {
	i := r.inboxes[id]
	if i == nil || i.AccountID != accountID {
		return nil, nil
	}
	return i, nil
}

type fakeContactRepo struct {
	mu         sync.Mutex
	recipients []models.Recipient
	err        error
	calls      int
}

func (r *fakeContactRepo) setRecipients(rs []models.Recipient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recipients = rs
}

func (r *fakeContactRepo) Recipients(_ context.Context, _, _ uint, _ models.AudienceSpec) ([]models.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return slices.Clone(r.recipients), nil
}

func (r *fakeContactRepo) SourceID(_ context.Context, contactID, _ uint) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rc := range r.recipients {
		if rc.ContactID == contactID {
			return rc.SourceID, nil
		}
	}
	return "", nil
}

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations []*models.Conversation
	messages      []*models.Message
}

func (r *fakeConversationRepo) FindOrCreate(_ context.Context, accountID, inboxID, contactID uint, assigneeID *uint) (*models.Conversation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conversations {
		if c.AccountID == accountID && c.InboxID == inboxID && c.ContactID == contactID {
			return c, false, nil
		}
	}
	c := &models.Conversation{
		ID:         uint(len(r.conversations) + 1),
		AccountID:  accountID,
		InboxID:    inboxID,
		ContactID:  contactID,
		Status:     models.ConversationStatusOpen,
		AssigneeID: assigneeID,
	}
	r.conversations = append(r.conversations, c)
	return c, true, nil
}

func (r *fakeConversationRepo) AppendMessage(_ context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
	return nil
}

type fakeDeliveryRepo struct {
	mu         sync.Mutex
	deliveries map[[2]uint]*models.CampaignDelivery
}

func newFakeDeliveryRepo() *fakeDeliveryRepo {
	return &fakeDeliveryRepo{deliveries: map[[2]uint]*models.CampaignDelivery{}}
}

func (r *fakeDeliveryRepo) Record(_ context.Context, d *models.CampaignDelivery) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]uint{d.CampaignID, d.ContactID}
	if _, ok := r.deliveries[key]; ok {
		return false, nil
	}
	cp := *d
	r.deliveries[key] = &cp
	return true, nil
}

func (r *fakeDeliveryRepo) Exists(_ context.Context, campaignID, contactID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.deliveries[[2]uint{campaignID, contactID}]
	return ok, nil
}

func (r *fakeDeliveryRepo) ListByCampaign(_ context.Context, campaignID uint, _, _ int) ([]*models.CampaignDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.CampaignDelivery
	for k, d := range r.deliveries {
		if k[0] == campaignID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeDeliveryRepo) get(campaignID, contactID uint) *models.CampaignDelivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deliveries[[2]uint{campaignID, contactID}]
}

type fakeNotificationRepo struct {
	mu    sync.Mutex
	saved []*models.Notification
}

func (r *fakeNotificationRepo) Save(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, n)
	return nil
}

func (r *fakeNotificationRepo) ListByUser(_ context.Context, _, _ uint, _, _ int) ([]*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.saved), nil
}

type enqueued struct {
	task  queue.Task
	delay time.Duration
}

type recordingQueue struct {
	mu    sync.Mutex
	items []enqueued
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, t queue.Task, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.items = append(q.items, enqueued{task: t, delay: delay})
	return nil
}

func (q *recordingQueue) ofKind(kind queue.TaskKind) []enqueued {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []enqueued
	for _, it := range q.items {
		if it.task.Kind == kind {
			out = append(out, it)
		}
	}
	return out
}

func directTransact(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
