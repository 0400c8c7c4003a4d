package service_test

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lurehook/lurehook-backend/internal/model"
	"github.com/lurehook/lurehook-backend/internal/queue"
	"github.com/lurehook/lurehook-backend/internal/service"
)

// memStore is an in-memory stand-in for the database. Conditional updates
// mirror the repository SQL predicates so status-guard behavior is
// exercised for real, including under concurrent callers.
type memStore struct {
	mu         sync.Mutex
	campaigns  map[uuid.UUID]*model.Campaign
	targets    map[uuid.UUID]*model.CampaignTarget
	tasks      map[uuid.UUID]*model.EmailTask
	recipients map[uuid.UUID]*model.Recipient
	templates  map[uuid.UUID]*model.EmailTemplate
}

func newMemStore() *memStore {
	return &memStore{
		campaigns:  map[uuid.UUID]*model.Campaign{},
		targets:    map[uuid.UUID]*model.CampaignTarget{},
		tasks:      map[uuid.UUID]*model.EmailTask{},
		recipients: map[uuid.UUID]*model.Recipient{},
		templates:  map[uuid.UUID]*model.EmailTemplate{},
	}
}

// --- campaign repository ---

type memCampaignRepo struct{ s *memStore }

func (r *memCampaignRepo) Create(c *model.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	c.CreatedAt = time.Now().UTC()
	cp := *c
	r.s.campaigns[c.ID] = &cp
	return nil
}

func (r *memCampaignRepo) GetByID(id uuid.UUID) (*model.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memCampaignRepo) List(companyID uuid.UUID, offset, limit int, status string) ([]model.Campaign, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []model.Campaign
	for _, c := range r.s.campaigns {
		if c.CompanyID != companyID {
			continue
		}
		if status != "" && string(c.Status) != status {
			continue
		}
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset > total {
		return []model.Campaign{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *memCampaignRepo) MarkScheduled(id uuid.UUID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok || c.Status != model.CampaignStatusDraft {
		return false, nil
	}
	c.Status = model.CampaignStatusScheduled
	c.ScheduledAt = &at
	return true, nil
}

func (r *memCampaignRepo) MarkRunning(id uuid.UUID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok || (c.Status != model.CampaignStatusDraft && c.Status != model.CampaignStatusScheduled) {
		return false, nil
	}
	c.Status = model.CampaignStatusRunning
	c.StartedAt = &at
	return true, nil
}

func (r *memCampaignRepo) MarkCompleted(id uuid.UUID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok || c.Status != model.CampaignStatusRunning {
		return false, nil
	}
	c.Status = model.CampaignStatusCompleted
	c.CompletedAt = &at
	return true, nil
}

func (r *memCampaignRepo) Delete(id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok || c.Status != model.CampaignStatusDraft {
		return false, nil
	}
	delete(r.s.campaigns, id)
	for tid, t := range r.s.targets {
		if t.CampaignID == id {
			delete(r.s.targets, tid)
		}
	}
	return true, nil
}

// --- campaign target repository ---

type memTargetRepo struct{ s *memStore }

func (r *memTargetRepo) Create(t *model.CampaignTarget) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.TrackingToken == "" {
		token, err := model.NewTrackingToken()
		if err != nil {
			return err
		}
		t.TrackingToken = token
	}
	t.CreatedAt = time.Now().UTC()
	cp := *t
	r.s.targets[t.ID] = &cp
	return nil
}

func (r *memTargetRepo) GetByID(id uuid.UUID) (*model.CampaignTarget, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.targets[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *memTargetRepo) ListByCampaign(campaignID uuid.UUID) ([]model.CampaignTarget, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.CampaignTarget
	for _, t := range r.s.targets {
		if t.CampaignID == campaignID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memTargetRepo) ExistsForRecipient(campaignID, recipientID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.targets {
		if t.CampaignID == campaignID && t.RecipientID == recipientID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memTargetRepo) Stats(campaignID uuid.UUID) (*model.CampaignStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stats := &model.CampaignStats{}
	for _, t := range r.s.targets {
		if t.CampaignID != campaignID {
			continue
		}
		stats.TotalTargets++
		if t.EmailSent {
			stats.EmailsSent++
		}
		if t.EmailOpened {
			stats.EmailsOpened++
		}
		if t.LinkClicked {
			stats.LinksClicked++
		}
		if t.CredentialsSubmitted {
			stats.CredentialsSubmitted++
		}
	}
	return stats, nil
}

func (r *memTargetRepo) MarkEmailSent(id uuid.UUID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.targets[id]
	if !ok || t.EmailSent {
		return false, nil
	}
	t.EmailSent = true
	t.EmailSentAt = &at
	return true, nil
}

func (r *memTargetRepo) MarkOpened(token string, at time.Time) (bool, error) {
	return r.markByToken(token, func(t *model.CampaignTarget) bool {
		if t.EmailOpened {
			return false
		}
		t.EmailOpened = true
		t.EmailOpenedAt = &at
		return true
	})
}

func (r *memTargetRepo) MarkClicked(token string, at time.Time) (bool, error) {
	return r.markByToken(token, func(t *model.CampaignTarget) bool {
		if t.LinkClicked {
			return false
		}
		t.LinkClicked = true
		t.LinkClickedAt = &at
		return true
	})
}

func (r *memTargetRepo) MarkSubmitted(token string, at time.Time) (bool, error) {
	return r.markByToken(token, func(t *model.CampaignTarget) bool {
		if t.CredentialsSubmitted {
			return false
		}
		t.CredentialsSubmitted = true
		t.CredentialsSubmittedAt = &at
		return true
	})
}

func (r *memTargetRepo) markByToken(token string, mark func(*model.CampaignTarget) bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.targets {
		if t.TrackingToken == token {
			return mark(t), nil
		}
	}
	return false, nil
}

// --- email task repository ---

type memTaskRepo struct{ s *memStore }

func (r *memTaskRepo) Create(t *model.EmailTask) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = model.EmailTaskStatusPending
	}
	t.CreatedAt = time.Now().UTC()
	cp := *t
	r.s.tasks[t.ID] = &cp
	return nil
}

func (r *memTaskRepo) GetByID(id uuid.UUID) (*model.EmailTask, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *memTaskRepo) GetByTargetID(targetID uuid.UUID) (*model.EmailTask, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *model.EmailTask
	for _, t := range r.s.tasks {
		if t.CampaignTargetID != targetID {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) {
			latest = t
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *memTaskRepo) ListDue(now time.Time, limit int) ([]model.EmailTask, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var due []model.EmailTask
	for _, t := range r.s.tasks {
		if t.Status != model.EmailTaskStatusPending && t.Status != model.EmailTaskStatusQueued {
			continue
		}
		if t.ScheduledAt == nil || t.ScheduledAt.After(now) {
			continue
		}
		due = append(due, *t)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledAt.Before(*due[j].ScheduledAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *memTaskRepo) TransitionToQueued(id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok || t.Status != model.EmailTaskStatusPending {
		return false, nil
	}
	t.Status = model.EmailTaskStatusQueued
	return true, nil
}

func (r *memTaskRepo) Requeue(id uuid.UUID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok || t.Status == model.EmailTaskStatusSent {
		return false, nil
	}
	t.Status = model.EmailTaskStatusQueued
	t.ScheduledAt = &at
	t.LastError = nil
	t.ProcessedAt = nil
	return true, nil
}

func (r *memTaskRepo) MarkSent(id uuid.UUID, attempts int, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok || (t.Status != model.EmailTaskStatusPending && t.Status != model.EmailTaskStatusQueued) {
		return false, nil
	}
	t.Status = model.EmailTaskStatusSent
	if attempts > t.Attempts {
		t.Attempts = attempts
	}
	t.ProcessedAt = &at
	return true, nil
}

func (r *memTaskRepo) MarkFailed(id uuid.UUID, attempts int, lastError string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok || (t.Status != model.EmailTaskStatusPending && t.Status != model.EmailTaskStatusQueued) {
		return false, nil
	}
	t.Status = model.EmailTaskStatusFailed
	if attempts > t.Attempts {
		t.Attempts = attempts
	}
	t.LastError = &lastError
	t.ProcessedAt = &at
	return true, nil
}

func (r *memTaskRepo) RecordFailure(id uuid.UUID, attempts int, lastError string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return nil
	}
	if attempts > t.Attempts {
		t.Attempts = attempts
	}
	t.LastError = &lastError
	return nil
}

// --- recipient / template repositories ---

type memRecipientRepo struct{ s *memStore }

func (r *memRecipientRepo) Create(rec *model.Recipient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	cp := *rec
	r.s.recipients[rec.ID] = &cp
	return nil
}

func (r *memRecipientRepo) GetByID(id uuid.UUID) (*model.Recipient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.recipients[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *memRecipientRepo) GetForCompany(id, companyID uuid.UUID) (*model.Recipient, error) {
	rec, err := r.GetByID(id)
	if err != nil || rec == nil || rec.CompanyID != companyID {
		return nil, err
	}
	return rec, nil
}

type memTemplateRepo struct{ s *memStore }

func (r *memTemplateRepo) Create(t *model.EmailTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	cp := *t
	r.s.templates[t.ID] = &cp
	return nil
}

func (r *memTemplateRepo) GetByID(id uuid.UUID) (*model.EmailTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.templates[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

// --- broker ---

type publishedMessage struct {
	msg       queue.EmailMessage
	immediate bool
	priority  uint8
}

type retryMessage struct {
	msg   queue.EmailMessage
	delay time.Duration
}

type memBroker struct {
	mu          sync.Mutex
	published   []publishedMessage
	retries     []retryMessage
	publishErr  error
	retryErr    error
}

func (b *memBroker) PublishEmailTask(msg queue.EmailMessage, immediate bool, priority uint8) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, publishedMessage{msg: msg, immediate: immediate, priority: priority})
	return nil
}

func (b *memBroker) PublishRetry(msg queue.EmailMessage, delay time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.retryErr != nil {
		return b.retryErr
	}
	b.retries = append(b.retries, retryMessage{msg: msg, delay: delay})
	return nil
}

func (b *memBroker) publishedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

// --- fixture ---

type fixture struct {
	store     *memStore
	broker    *memBroker
	svc       *service.CampaignService
	companyID uuid.UUID
}

func newFixture() *fixture {
	store := newMemStore()
	broker := &memBroker{}
	f := &fixture{
		store:     store,
		broker:    broker,
		companyID: uuid.New(),
	}
	f.svc = &service.CampaignService{
		Campaigns:  &memCampaignRepo{s: store},
		Targets:    &memTargetRepo{s: store},
		Tasks:      &memTaskRepo{s: store},
		Recipients: &memRecipientRepo{s: store},
		Templates:  &memTemplateRepo{s: store},
		Broker:     broker,
		Renderer:   &service.Renderer{TrackingBaseURL: "https://phish.test"},
		Logger:     zap.NewNop(),
	}
	return f
}

func (f *fixture) seedRecipient(email, first, last string) *model.Recipient {
	rec := &model.Recipient{CompanyID: f.companyID, Email: email, FirstName: first, LastName: last}
	(&memRecipientRepo{s: f.store}).Create(rec)
	return rec
}

func (f *fixture) seedTemplate() *model.EmailTemplate {
	tpl := &model.EmailTemplate{
		CompanyID: f.companyID,
		Name:      "Password reset",
		Subject:   "Reset your password, {{first_name}}",
		BodyHTML:  `<html><body><p>Hi {{recipient_name}},</p><a href="{{phishing_url}}">Reset</a></body></html>`,
	}
	(&memTemplateRepo{s: f.store}).Create(tpl)
	return tpl
}

// seedCampaign creates a draft campaign with a template and n targets.
func (f *fixture) seedCampaign(n int) *model.Campaign {
	tpl := f.seedTemplate()
	var ids []uuid.UUID
	for i := 0; i < n; i++ {
		rec := f.seedRecipient(
			string(rune('a'+i))+"@corp.test",
			"User",
			string(rune('A'+i)),
		)
		ids = append(ids, rec.ID)
	}
	campaign, err := f.svc.Create(f.companyID, service.CreateCampaignInput{
		Name:         "Awareness drill",
		TemplateID:   &tpl.ID,
		RecipientIDs: ids,
	})
	if err != nil {
		panic(err)
	}
	return campaign
}

func (f *fixture) taskForTarget(targetID uuid.UUID) *model.EmailTask {
	task, _ := (&memTaskRepo{s: f.store}).GetByTargetID(targetID)
	return task
}

func (f *fixture) targets(campaignID uuid.UUID) []model.CampaignTarget {
	targets, _ := (&memTargetRepo{s: f.store}).ListByCampaign(campaignID)
	return targets
}
