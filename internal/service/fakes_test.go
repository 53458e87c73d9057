package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/ai"
	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/notify"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/sla"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeTickets keeps tickets in memory and mimics the conditional writes of
// the SQL repository.
type fakeTickets struct {
	mu      sync.Mutex
	seq     int
	byID    map[string]*domain.Ticket
	order   []string
	slaErr  map[repository.SLACheck]error
	similar []domain.Ticket
	lastQ   repository.SimilarQuery
	lastF   repository.TicketFilter

	// afterGet runs once GetByID has copied the row, simulating a writer
	// that commits between a service's read and its write.
	afterGet  func(id string)
	updateErr error
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{byID: map[string]*domain.Ticket{}, slaErr: map[repository.SLACheck]error{}}
}

func (f *fakeTickets) put(t domain.Ticket) *domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == "" {
		f.seq++
		t.ID = fmt.Sprintf("t-%d", f.seq)
	}
	if _, ok := f.byID[t.ID]; !ok {
		f.order = append(f.order, t.ID)
	}
	stored := t
	f.byID[t.ID] = &stored
	return &stored
}

func (f *fakeTickets) get(id string) domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.byID[id]
}

func (f *fakeTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	stored := f.put(*ticket)
	ticket.ID = stored.ID
	return nil
}

func (f *fakeTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	stored, ok := f.byID[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Title = ticket.Title
	stored.Content = ticket.Content
	stored.Status = ticket.Status
	stored.Priority = ticket.Priority
	stored.CategoryID = ticket.CategoryID
	stored.Sentiment = ticket.Sentiment
	stored.ResolvedAt = ticket.ResolvedAt
	stored.ClosedAt = ticket.ClosedAt
	stored.UpdatedAt = ticket.UpdatedAt
	if !stored.SLAResolveMet.Evaluated() {
		stored.SLAResolveMet = ticket.SLAResolveMet
	}
	*ticket = *stored
	return nil
}

func (f *fakeTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	stored, ok := f.byID[id]
	if !ok {
		f.mu.Unlock()
		return nil, pgx.ErrNoRows
	}
	cp := *stored
	hook := f.afterGet
	f.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return &cp, nil
}

func (f *fakeTickets) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastF = filter
	var out []domain.Ticket
	for _, id := range f.order {
		t := f.byID[id]
		if filter.CustomerID != nil && t.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.AgentID != nil && !t.AssignedTo(*filter.AgentID) {
			continue
		}
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (f *fakeTickets) CountActiveByAgent(ctx context.Context, agentID string) (int, error) {
	active, err := f.ListActiveByAgent(ctx, agentID)
	return len(active), err
}

func (f *fakeTickets) ListActiveByAgent(_ context.Context, agentID string) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, id := range f.order {
		t := f.byID[id]
		if t.AssignedTo(agentID) && t.Status.Active() {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTickets) CompareAndSetAgent(_ context.Context, ticketID string, expected *string, agentID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[ticketID]
	if !ok || !equalPtr(t.AgentID, expected) {
		return false, nil
	}
	id := agentID
	t.AgentID = &id
	t.UpdatedAt = at
	return true, nil
}

func (f *fakeTickets) MarkFirstResponse(_ context.Context, ticketID string, at time.Time, outcome domain.SLAOutcome) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[ticketID]
	if !ok || t.FirstResponseAt != nil {
		return false, nil
	}
	t.FirstResponseAt = &at
	t.SLAResponseMet = outcome
	return true, nil
}

func (f *fakeTickets) ListSLAAtRisk(_ context.Context, window repository.SLAWindow) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.slaErr[window.Check]; err != nil {
		return nil, err
	}
	var out []domain.Ticket
	for _, id := range f.order {
		t := f.byID[id]
		if !t.Status.Active() {
			continue
		}
		var (
			deadline time.Time
			pending  bool
		)
		switch window.Check {
		case repository.SLAApproachingResponse, repository.SLAViolatedResponse:
			deadline, pending = t.SLAResponseDeadline, t.FirstResponseAt == nil && !t.SLAResponseMet.Evaluated()
		default:
			deadline, pending = t.SLAResolveDeadline, t.ResolvedAt == nil && !t.SLAResolveMet.Evaluated()
		}
		if !pending {
			continue
		}
		switch window.Check {
		case repository.SLAApproachingResponse, repository.SLAApproachingResolve:
			if !deadline.Before(window.Now) && !deadline.After(window.Until) {
				out = append(out, *t)
			}
		default:
			if deadline.Before(window.Now) {
				out = append(out, *t)
			}
		}
	}
	return out, nil
}

func (f *fakeTickets) SearchSimilar(_ context.Context, q repository.SimilarQuery) ([]domain.Ticket, error) {
	f.lastQ = q
	return f.similar, nil
}

type fakeUsers struct {
	mu    sync.Mutex
	users []domain.User
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			cp := u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) ListAvailableAgents(_ context.Context) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.User
	for _, u := range f.users {
		if u.Available() {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) ListByRoles(_ context.Context, roles ...domain.Role) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.User
	for _, u := range f.users {
		for _, r := range roles {
			if u.Role == r {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (f *fakeUsers) UpdatePresence(_ context.Context, id string, isOnline, isAway bool, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.users {
		if f.users[i].ID == id {
			f.users[i].IsOnline = isOnline
			f.users[i].IsAway = isAway
			f.users[i].UpdatedAt = at
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeUsers) setPresence(id string, online, away bool) {
	_ = f.UpdatePresence(context.Background(), id, online, away, epoch)
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func (f *fakeHistory) Create(_ context.Context, h *domain.TicketHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h.ID = fmt.Sprintf("h-%d", len(f.entries)+1)
	f.entries = append(f.entries, *h)
	return nil
}

func (f *fakeHistory) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range f.entries {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeHistory) fields(ticketID string) []domain.HistoryField {
	entries, _ := f.ListByTicket(context.Background(), ticketID)
	out := make([]domain.HistoryField, 0, len(entries))
	for _, h := range entries {
		out = append(out, h.Field)
	}
	return out
}

type fakeComments struct {
	comments []domain.TicketComment
}

func (f *fakeComments) Create(_ context.Context, c *domain.TicketComment) error {
	c.ID = fmt.Sprintf("cm-%d", len(f.comments)+1)
	f.comments = append(f.comments, *c)
	return nil
}

func (f *fakeComments) ListByTicket(_ context.Context, ticketID string, includeInternal bool) ([]domain.TicketComment, error) {
	var out []domain.TicketComment
	for _, c := range f.comments {
		if c.TicketID == ticketID && (includeInternal || !c.IsInternal) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeCategories struct {
	categories []domain.Category
	err        error
}

func (f *fakeCategories) GetByID(_ context.Context, id string) (*domain.Category, error) {
	for _, c := range f.categories {
		if c.ID == id {
			cp := c
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeCategories) ListActive(_ context.Context) ([]domain.Category, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Category
	for _, c := range f.categories {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeKnowledge struct {
	entries   []domain.KnowledgeBaseEntry
	lastLimit int
}

func (f *fakeKnowledge) ListActiveByCategory(_ context.Context, categoryID string, limit int) ([]domain.KnowledgeBaseEntry, error) {
	f.lastLimit = limit
	var out []domain.KnowledgeBaseEntry
	for _, e := range f.entries {
		if e.IsActive && e.CategoryID != nil && *e.CategoryID == categoryID && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeTemplates struct {
	byCategory map[string]domain.PromptTemplate
}

func (f *fakeTemplates) GetActiveByCategory(_ context.Context, categoryID string) (*domain.PromptTemplate, error) {
	tmpl, ok := f.byCategory[categoryID]
	if !ok || !tmpl.IsActive {
		return nil, pgx.ErrNoRows
	}
	return &tmpl, nil
}

// recordingDispatcher keeps published events and runs subscribers inline.
type recordingDispatcher struct {
	mu       sync.Mutex
	events   []events.Event
	handlers map[events.EventType][]events.EventHandler
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	d.events = append(d.events, event)
	handlers := d.handlers[event.Type]
	d.mu.Unlock()
	for _, h := range handlers {
		_ = h(ctx, event)
	}
	return nil
}

func (d *recordingDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = map[events.EventType][]events.EventHandler{}
	}
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

type stubProvider struct {
	available bool
	text      string
	err       error
	calls     [][]ai.Message
	opts      []ai.Options
}

func (p *stubProvider) Available() bool { return p.available }

func (p *stubProvider) Complete(_ context.Context, messages []ai.Message, opts ai.Options) (*ai.Completion, error) {
	p.calls = append(p.calls, messages)
	p.opts = append(p.opts, opts)
	if p.err != nil {
		return nil, p.err
	}
	return &ai.Completion{Text: p.text}, nil
}

// recordingSink fails deliveries to the recipients listed in fail.
type recordingSink struct {
	mu   sync.Mutex
	fail map[string]error
	got  []notify.Message
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[msg.RecipientID]; err != nil {
		return err
	}
	s.got = append(s.got, msg)
	return nil
}

type sentAlert struct {
	ticketID  string
	kind      sla.Kind
	violation bool
}

type stubNotifier struct {
	fail map[string]error
	sent []sentAlert
}

func (n *stubNotifier) SendWarning(_ context.Context, t *domain.Ticket, kind sla.Kind) error {
	return n.record(t, kind, false)
}

func (n *stubNotifier) SendViolation(_ context.Context, t *domain.Ticket, kind sla.Kind) error {
	return n.record(t, kind, true)
}

func (n *stubNotifier) record(t *domain.Ticket, kind sla.Kind, violation bool) error {
	if err := n.fail[t.ID]; err != nil {
		return err
	}
	n.sent = append(n.sent, sentAlert{ticketID: t.ID, kind: kind, violation: violation})
	return nil
}

var (
	customer   = domain.Actor{ID: "cust-1", Role: domain.RoleCustomer}
	customer2  = domain.Actor{ID: "cust-2", Role: domain.RoleCustomer}
	agentOne   = domain.Actor{ID: "agent-1", Role: domain.RoleAgent}
	agentTwo   = domain.Actor{ID: "agent-2", Role: domain.RoleAgent}
	manager    = domain.Actor{ID: "mgr-1", Role: domain.RoleManager}
	adminActor = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
)

func seedUsers() *fakeUsers {
	user := func(a domain.Actor, name string, online bool, offset time.Duration) domain.User {
		return domain.User{
			ID:        a.ID,
			Name:      name,
			Email:     strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
			Role:      a.Role,
			IsOnline:  online,
			CreatedAt: epoch.Add(offset),
		}
	}
	return &fakeUsers{users: []domain.User{
		user(customer, "Carla Customer", false, 0),
		user(customer2, "Chris Customer", false, time.Minute),
		user(agentOne, "Ada Agent", true, 2*time.Minute),
		user(agentTwo, "Alan Agent", true, 3*time.Minute),
		user(manager, "Mona Manager", true, 4*time.Minute),
		user(adminActor, "Adam Admin", true, 5*time.Minute),
	}}
}

type fixture struct {
	clock      *clock.Fake
	tickets    *fakeTickets
	users      *fakeUsers
	history    *fakeHistory
	comments   *fakeComments
	categories *fakeCategories
	dispatcher *recordingDispatcher
	assignment *AssignmentService
	svc        *TicketService
}

func newFixture() *fixture {
	fx := &fixture{
		clock:      clock.NewFake(epoch),
		tickets:    newFakeTickets(),
		users:      seedUsers(),
		history:    &fakeHistory{},
		comments:   &fakeComments{},
		categories: &fakeCategories{categories: []domain.Category{
			{ID: "cat-billing", Name: "Billing", IsActive: true},
			{ID: "cat-tech", Name: "Technical", IsActive: true},
			{ID: "cat-old", Name: "Legacy", IsActive: false},
		}},
		dispatcher: &recordingDispatcher{},
	}
	fx.assignment = NewAssignmentService(AssignmentDependencies{
		TicketRepo:  fx.tickets,
		UserRepo:    fx.users,
		HistoryRepo: fx.history,
		Dispatcher:  fx.dispatcher,
		Clock:       fx.clock,
		Logger:      zap.NewNop(),
	})
	fx.svc = NewTicketService(TicketDependencies{
		TicketRepo:   fx.tickets,
		UserRepo:     fx.users,
		CommentRepo:  fx.comments,
		CategoryRepo: fx.categories,
		HistoryRepo:  fx.history,
		Assigner:     fx.assignment,
		Dispatcher:   fx.dispatcher,
		Clock:        fx.clock,
		Logger:       zap.NewNop(),
	})
	return fx
}

// seedTicket stores a ticket created at the current fake time.
func (fx *fixture) seedTicket(status domain.TicketStatus, agentID string) *domain.Ticket {
	now := fx.clock.Now()
	d := sla.ComputeDeadlines(now)
	t := domain.Ticket{
		Title:               "Cannot log in to portal",
		Content:             "The login page keeps spinning forever.",
		Status:              status,
		Priority:            domain.TicketPriorityMedium,
		CustomerID:          customer.ID,
		SLAResponseDeadline: d.Response,
		SLAResolveDeadline:  d.Resolve,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if agentID != "" {
		id := agentID
		t.AgentID = &id
	}
	return fx.tickets.put(t)
}
