package businessflow

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/lorenrocu/whatsapp-campaigns/app/events"
	"github.com/lorenrocu/whatsapp-campaigns/app/queue"
	"github.com/lorenrocu/whatsapp-campaigns/models"
)

type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[uint]*models.WhatsappCampaign
	nextID    uint
}

func newFakeCampaignRepo(cs ...*models.WhatsappCampaign) *fakeCampaignRepo {
	r := &fakeCampaignRepo{campaigns: map[uint]*models.WhatsappCampaign{}, nextID: 1000}
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

func (r *fakeCampaignRepo) setStatus(id uint, s models.WhatsappCampaignStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[id].Status = s
}

func (r *fakeCampaignRepo) ByID(_ context.Context, id uint) (*models.WhatsappCampaign, error) {
	return r.get(id), nil
}

func (r *fakeCampaignRepo) matching(f models.WhatsappCampaignFilter) []*models.WhatsappCampaign {
	var out []*models.WhatsappCampaign
	for _, c := range r.campaigns {
		if f.AccountID != nil && c.AccountID != *f.AccountID {
			continue
		}
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.WhatsappCampaign) int { return int(b.ID) - int(a.ID) })
	return out
}

func (r *fakeCampaignRepo) ByFilter(_ context.Context, f models.WhatsappCampaignFilter, _ string, limit, offset int) ([]*models.WhatsappCampaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.matching(f)
	if offset >= len(out) {
		return []*models.WhatsappCampaign{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeCampaignRepo) Save(_ context.Context, c *models.WhatsappCampaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		r.nextID++
		c.ID = r.nextID
	}
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *fakeCampaignRepo) Count(_ context.Context, f models.WhatsappCampaignFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.matching(f))), nil
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

func (r *fakeCampaignRepo) ListDue(_ context.Context, _ time.Time, _ int) ([]*models.WhatsappCampaign, error) {
	return nil, errors.New("not implemented")
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

func (r *fakeCampaignRepo) IncrementStat(_ context.Context, _ uint, _ models.DeliveryStat, _ int64) error {
	return nil
}

type fakeAccountRepo struct {
	disabled bool
	members  map[uint]bool
}

func (r *fakeAccountRepo) ByID(_ context.Context, id uint) (*models.Account, error) {
	return &models.Account{ID: id}, nil
}

func (r *fakeAccountRepo) FeatureEnabled(_ context.Context, _ uint, _ string) (bool, error) {
	return !r.disabled, nil
}

func (r *fakeAccountRepo) HasUser(_ context.Context, _, userID uint) (bool, error) {
	return r.members[userID], nil
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

type fakeDeliveryRepo struct {
	rows []*models.CampaignDelivery
}

func (r *fakeDeliveryRepo) Record(_ context.Context, d *models.CampaignDelivery) (bool, error) {
	r.rows = append(r.rows, d)
	return true, nil
}

func (r *fakeDeliveryRepo) Exists(_ context.Context, campaignID, contactID uint) (bool, error) {
	for _, d := range r.rows {
		if d.CampaignID == campaignID && d.ContactID == contactID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeDeliveryRepo) ListByCampaign(_ context.Context, campaignID uint, limit, offset int) ([]*models.CampaignDelivery, error) {
	var out []*models.CampaignDelivery
	for _, d := range r.rows {
		if d.CampaignID == campaignID {
			out = append(out, d)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeSequenceRepo struct {
	values map[string]int64
}

func (r *fakeSequenceRepo) Next(_ context.Context, name string) (int64, error) {
	if r.values == nil {
		r.values = map[string]int64{}
	}
	r.values[name]++
	return r.values[name], nil
}

type recordingQueue struct {
	mu    sync.Mutex
	tasks []queue.Task
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, t queue.Task, _ time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, t)
	return nil
}

type recordingPublisher struct {
	events []events.CampaignEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.CampaignEvent) error {
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func directTransact(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
