package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/contractor-followups/internal/channel"
	appErrors "github.com/unclebandit/contractor-followups/internal/errors"
	"github.com/unclebandit/contractor-followups/internal/model"
	"github.com/unclebandit/contractor-followups/internal/repository"
)

// memStore is an in-memory stand-in for the Postgres tables. Each repository view
// below shares it, and memTx restores a snapshot when a transaction fails.
type memStore struct {
	mu       sync.Mutex
	leads    map[uuid.UUID]model.Lead
	quotes   map[uuid.UUID]model.Quote
	projects map[uuid.UUID]model.Project
	clients  map[uuid.UUID]model.Client
	messages map[uuid.UUID]model.FollowUpMessage

	clock        func() time.Time
	failInsertAt int // InsertSequence fails when it reaches this sequence day
	listErr      error
}

func newMemStore() *memStore {
	return &memStore{
		leads:    map[uuid.UUID]model.Lead{},
		quotes:   map[uuid.UUID]model.Quote{},
		projects: map[uuid.UUID]model.Project{},
		clients:  map[uuid.UUID]model.Client{},
		messages: map[uuid.UUID]model.FollowUpMessage{},
		clock:    time.Now,
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) message(id uuid.UUID) model.FollowUpMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[id]
}

func (s *memStore) messagesOf(ref model.ParentRef) []model.FollowUpMessage {
	msgs, _ := (&memMessages{s}).ListByParent(context.Background(), ref)
	return msgs
}

func (s *memStore) addClient(name, phone string) model.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := model.Client{ID: uuid.New(), Name: name, Phone: phone}
	s.clients[c.ID] = c
	return c
}

func (s *memStore) addProject(clientID uuid.UUID, status string) model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := model.Project{ID: uuid.New(), ClientID: clientID, ProjectType: "kitchen", Status: status}
	s.projects[p.ID] = p
	return p
}

func (s *memStore) insertMessages(msgs []model.FollowUpMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.messages[m.ID] = m
	}
}

type memTx struct{ s *memStore }

func (t memTx) WithTx(ctx context.Context, fn func(q repository.DBTX) error) error {
	t.s.mu.Lock()
	leads, quotes, msgs := copyMap(t.s.leads), copyMap(t.s.quotes), copyMap(t.s.messages)
	t.s.mu.Unlock()

	if err := fn(nil); err != nil {
		t.s.mu.Lock()
		t.s.leads, t.s.quotes, t.s.messages = leads, quotes, msgs
		t.s.mu.Unlock()
		return err
	}
	return nil
}

type memLeads struct{ s *memStore }

func (r memLeads) Create(ctx context.Context, q repository.DBTX, l *model.Lead) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.leads[l.ID] = *l
	return nil
}

func (r memLeads) GetByID(ctx context.Context, id uuid.UUID) (*model.Lead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.leads[id]
	if !ok {
		return nil, appErrors.NewParentNotFound("lead", id.String())
	}
	return &l, nil
}

func (r memLeads) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.leads[id]
	if !ok {
		return appErrors.NewParentNotFound("lead", id.String())
	}
	l.Status = status
	r.s.leads[id] = l
	return nil
}

func (r memLeads) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.leads[id]; !ok {
		return appErrors.NewParentNotFound("lead", id.String())
	}
	delete(r.s.leads, id)
	r.s.cascade(func(m model.FollowUpMessage) bool { return m.LeadID != nil && *m.LeadID == id })
	return nil
}

type memQuotes struct{ s *memStore }

func (r memQuotes) Create(ctx context.Context, q repository.DBTX, quote *model.Quote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.quotes[quote.ID] = *quote
	return nil
}

func (r memQuotes) GetByID(ctx context.Context, id uuid.UUID) (*model.Quote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.quotes[id]
	if !ok {
		return nil, appErrors.NewParentNotFound("quote", id.String())
	}
	return &q, nil
}

func (r memQuotes) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.quotes[id]
	if !ok {
		return appErrors.NewParentNotFound("quote", id.String())
	}
	q.Status = status
	r.s.quotes[id] = q
	return nil
}

func (r memQuotes) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.quotes[id]; !ok {
		return appErrors.NewParentNotFound("quote", id.String())
	}
	delete(r.s.quotes, id)
	r.s.cascade(func(m model.FollowUpMessage) bool { return m.QuoteID != nil && *m.QuoteID == id })
	return nil
}

type memProjects struct{ s *memStore }

func (r memProjects) GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return nil, appErrors.NewParentNotFound("project", id.String())
	}
	return &p, nil
}

func (r memProjects) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return appErrors.NewParentNotFound("project", id.String())
	}
	p.Status = status
	r.s.projects[id] = p
	return nil
}

func (r memProjects) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.projects[id]; !ok {
		return appErrors.NewParentNotFound("project", id.String())
	}
	delete(r.s.projects, id)
	r.s.cascade(func(m model.FollowUpMessage) bool { return m.ProjectID != nil && *m.ProjectID == id })
	return nil
}

type memClients struct{ s *memStore }

func (r memClients) GetByID(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clients[id]
	if !ok {
		return nil, appErrors.NewParentNotFound("client", id.String())
	}
	return &c, nil
}

// cascade must be called with s.mu held.
func (s *memStore) cascade(match func(model.FollowUpMessage) bool) {
	for id, m := range s.messages {
		if match(m) {
			delete(s.messages, id)
		}
	}
}

type memMessages struct{ s *memStore }

func (r *memMessages) InsertSequence(ctx context.Context, q repository.DBTX, msgs []model.FollowUpMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range msgs {
		if r.s.failInsertAt != 0 && m.SequenceDay == r.s.failInsertAt {
			return fmt.Errorf("insert follow-up day %d: connection reset", m.SequenceDay)
		}
		r.s.messages[m.ID] = m
	}
	return nil
}

// parentState must be called with s.mu held.
func (s *memStore) parentState(m model.FollowUpMessage) (status, phone string, ok bool) {
	ref, hasParent := m.Parent()
	if !hasParent {
		return "", "", false
	}
	switch ref.Kind {
	case model.ParentLead:
		l, found := s.leads[ref.ID]
		return l.Status, l.ClientPhone, found
	case model.ParentQuote:
		q, found := s.quotes[ref.ID]
		return q.Status, s.clients[q.ClientID].Phone, found
	case model.ParentProject:
		p, found := s.projects[ref.ID]
		return p.Status, s.clients[p.ClientID].Phone, found
	}
	return "", "", false
}

func (r *memMessages) ListDue(ctx context.Context, now time.Time, limit int) ([]model.DueMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.listErr != nil {
		return nil, r.s.listErr
	}

	due := []model.DueMessage{}
	for _, m := range r.s.messages {
		if m.Status != model.MessageStatusPending || m.ScheduledFor.After(now) {
			continue
		}
		status, phone, ok := r.s.parentState(m)
		ref, _ := m.Parent()
		if !ok || !model.IsLive(ref.Kind, status) {
			continue
		}
		due = append(due, model.DueMessage{FollowUpMessage: m, Destination: phone, ParentStatus: status})
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].ScheduledFor.Equal(due[j].ScheduledFor) {
			return due[i].ScheduledFor.Before(due[j].ScheduledFor)
		}
		return due[i].ID.String() < due[j].ID.String()
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *memMessages) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok || m.Status != model.MessageStatusPending {
		return false, nil
	}
	status, _, found := r.s.parentState(m)
	ref, _ := m.Parent()
	if !found || !model.IsLive(ref.Kind, status) {
		return false, nil
	}
	m.Status = model.MessageStatusSending
	m.UpdatedAt = r.s.clock()
	r.s.messages[id] = m
	return true, nil
}

func (r *memMessages) resolve(id uuid.UUID, apply func(*model.FollowUpMessage)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok || m.Status != model.MessageStatusSending {
		return fmt.Errorf("%w: %s", appErrors.ErrNotInFlight, id)
	}
	apply(&m)
	m.UpdatedAt = r.s.clock()
	r.s.messages[id] = m
	return nil
}

func (r *memMessages) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, providerMessageID string) error {
	return r.resolve(id, func(m *model.FollowUpMessage) {
		m.Status = model.MessageStatusSent
		m.SentAt = &sentAt
		m.ProviderMessageID = providerMessageID
	})
}

func (r *memMessages) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.resolve(id, func(m *model.FollowUpMessage) {
		m.Status = model.MessageStatusFailed
		m.LastError = reason
	})
}

func (r *memMessages) FailStale(ctx context.Context, before time.Time, reason string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, m := range r.s.messages {
		if m.Status == model.MessageStatusSending && m.UpdatedAt.Before(before) {
			m.Status = model.MessageStatusFailed
			m.LastError = reason
			r.s.messages[id] = m
			n++
		}
	}
	return n, nil
}

func (r *memMessages) ListByParent(ctx context.Context, ref model.ParentRef) ([]model.FollowUpMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msgs := []model.FollowUpMessage{}
	for _, m := range r.s.messages {
		if p, ok := m.Parent(); ok && p == ref {
			msgs = append(msgs, m)
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].SequenceDay < msgs[j].SequenceDay })
	return msgs, nil
}

func (r *memMessages) CountByStatus(ctx context.Context, ref model.ParentRef) (map[string]int, error) {
	msgs, _ := r.ListByParent(ctx, ref)
	stats := map[string]int{}
	for _, m := range msgs {
		stats[string(m.Status)]++
	}
	return stats, nil
}

var (
	_ repository.LeadRepositoryInterface            = memLeads{}
	_ repository.QuoteRepositoryInterface           = memQuotes{}
	_ repository.ProjectRepositoryInterface         = memProjects{}
	_ repository.ClientRepositoryInterface          = memClients{}
	_ repository.FollowUpMessageRepositoryInterface = (*memMessages)(nil)
	_ repository.TransactorInterface                = memTx{}
	_ DispatchStore                                 = (*memMessages)(nil)
)

// recordingSender counts sends per destination and body. Destinations listed in
// fail or panics misbehave.
type recordingSender struct {
	mu     sync.Mutex
	sends  map[string]int
	fail   map[string]bool
	panics map[string]bool
	delay  time.Duration
	onSend func(to string) // runs after each send is recorded
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sends: map[string]int{}, fail: map[string]bool{}, panics: map[string]bool{}}
}

func (s *recordingSender) Send(ctx context.Context, to, body string) channel.Result {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	s.sends[to+"|"+body]++
	fail, panics := s.fail[to], s.panics[to]
	onSend := s.onSend
	s.mu.Unlock()

	if onSend != nil {
		onSend(to)
	}

	if panics {
		panic("provider client exploded")
	}
	if fail {
		return channel.Failure(errors.New("provider rejected message"))
	}
	return channel.Delivered("SM-" + uuid.NewString())
}

func (s *recordingSender) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.sends {
		n += c
	}
	return n
}

func (s *recordingSender) maxPerMessage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	highest := 0
	for _, c := range s.sends {
		highest = max(highest, c)
	}
	return highest
}
