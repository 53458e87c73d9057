package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/access"
	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const (
	titleMinLen   = 5
	titleMaxLen   = 200
	contentMinLen = 10
	contentMaxLen = 5000
	commentMaxLen = 2000

	defaultPageSize = 10
	maxPageSize     = 100
)

// Assigner picks an agent for a freshly created ticket.
type Assigner interface {
	AutoAssign(ctx context.Context, ticketID string, actor events.Actor) (*string, error)
}

// Triager enriches new tickets. Both calls always succeed.
type Triager interface {
	ClassifyCategory(ctx context.Context, title, content string) CategoryClassification
	AnalyzeSentiment(ctx context.Context, content string) SentimentAnalysis
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	comments   repository.TicketCommentRepository
	categories repository.CategoryRepository
	assigner   Assigner
	triage     Triager
	ticketRecorder
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	UserRepo     repository.UserRepository
	CommentRepo  repository.TicketCommentRepository
	CategoryRepo repository.CategoryRepository
	HistoryRepo  repository.TicketHistoryRepository
	Assigner     Assigner
	Triage       Triager
	Dispatcher   events.Dispatcher
	Clock        clock.Clock
	Logger       *zap.Logger
}

// CreateTicketInput describes ticket creation payload.
type CreateTicketInput struct {
	Title      string
	Content    string
	Priority   domain.TicketPriority
	CategoryID *string
	// CustomerID lets staff open a ticket on behalf of a customer.
	CustomerID       string
	AnalyzeSentiment bool
	AutoClassify     bool
}

// ListTicketsInput describes listing filters. Scope is applied on top.
type ListTicketsInput struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	CategoryID *string
	AgentID    *string
	CustomerID *string
	SearchTerm *string
	Page       int
	PageSize   int
}

// TicketPage is one page of a ticket listing.
type TicketPage struct {
	Items    []domain.Ticket
	Total    int
	Page     int
	PageSize int
}

// TicketPatch lists the editable attributes; nil fields stay unchanged.
type TicketPatch struct {
	Title         *string
	Content       *string
	Priority      *domain.TicketPriority
	CategoryID    *string
	ClearCategory bool
}

// AddCommentInput describes a new comment.
type AddCommentInput struct {
	Content    string
	IsInternal bool
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		comments:   deps.CommentRepo,
		categories: deps.CategoryRepo,
		assigner:   deps.Assigner,
		triage:     deps.Triage,
		ticketRecorder: ticketRecorder{
			history:    deps.HistoryRepo,
			dispatcher: deps.Dispatcher,
			clock:      deps.Clock,
			logger:     deps.Logger,
		},
	}
}

// CreateTicket validates and stores a new ticket, computes its SLA deadlines
// and hands it to the assignment engine.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input CreateTicketInput) (*domain.Ticket, error) {
	if err := access.Check(actor.Role, access.CreateTicket).Err(); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if err := validateLength("title", title, titleMinLen, titleMaxLen); err != nil {
		return nil, err
	}
	if err := validateLength("content", content, contentMinLen, contentMaxLen); err != nil {
		return nil, err
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}

	customerID := actor.ID
	if input.CustomerID != "" && input.CustomerID != actor.ID {
		if actor.Role == domain.RoleCustomer {
			return nil, apperrors.NewForbidden("customers may only open tickets for themselves")
		}
		customer, err := loadUser(ctx, s.users, "customer", input.CustomerID)
		if err != nil {
			return nil, err
		}
		if customer.Role != domain.RoleCustomer {
			return nil, apperrors.NewValidationError("tickets must belong to a customer", map[string]any{"customer_id": input.CustomerID})
		}
		customerID = customer.ID
	}

	categoryID := input.CategoryID
	if categoryID != nil {
		if err := s.ensureCategory(ctx, *categoryID); err != nil {
			return nil, err
		}
	} else if input.AutoClassify && s.triage != nil {
		if suggestion := s.triage.ClassifyCategory(ctx, title, content); suggestion.CategoryID != nil {
			categoryID = suggestion.CategoryID
		}
	}

	var sentiment *domain.Sentiment
	if input.AnalyzeSentiment && s.triage != nil {
		result := s.triage.AnalyzeSentiment(ctx, content)
		sentiment = &result.Sentiment
	}

	now := s.clock.Now()
	deadlines := sla.ComputeDeadlines(now)
	ticket := &domain.Ticket{
		Title:               title,
		Content:             content,
		Status:              domain.TicketStatusOpen,
		Priority:            priority,
		CategoryID:          categoryID,
		CustomerID:          customerID,
		Sentiment:           sentiment,
		SLAResponseDeadline: deadlines.Response,
		SLAResolveDeadline:  deadlines.Resolve,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	creator := events.UserActor(actor)
	if err := s.recordChange(ctx, ticket.ID, creator, domain.HistoryFieldStatus, nil, strPtr(ticket.Status)); err != nil {
		return nil, err
	}

	if s.assigner != nil {
		agentID, err := s.assigner.AutoAssign(ctx, ticket.ID, events.SystemActor())
		if err != nil {
			s.logger.Warn("auto-assignment failed; ticket left unassigned",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
		}
		ticket.AgentID = agentID
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    creator,
		Payload: events.TicketCreatedPayload{
			CustomerID: ticket.CustomerID,
			AgentID:    ticket.AgentID,
			Priority:   ticket.Priority,
			Title:      ticket.Title,
		},
	})
	return ticket, nil
}

// ListTickets returns the tickets visible to actor, newest first.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, input ListTicketsInput) (*TicketPage, error) {
	if err := access.Check(actor.Role, access.ReadTicket).Err(); err != nil {
		return nil, err
	}
	for _, st := range input.Statuses {
		if !st.Valid() {
			return nil, apperrors.NewValidationError("invalid status filter", map[string]any{"status": st})
		}
	}
	for _, p := range input.Priorities {
		if !p.Valid() {
			return nil, apperrors.NewValidationError("invalid priority filter", map[string]any{"priority": p})
		}
	}

	page := input.Page
	if page < 1 {
		page = 1
	}
	size := input.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	filter := repository.TicketFilter{
		CustomerID: input.CustomerID,
		AgentID:    input.AgentID,
		CategoryID: input.CategoryID,
		Statuses:   input.Statuses,
		Priorities: input.Priorities,
		SearchTerm: input.SearchTerm,
		Limit:      size,
		Offset:     (page - 1) * size,
	}
	if !access.Check(actor.Role, access.ListAllTickets).Allowed() {
		id := actor.ID
		switch actor.Role {
		case domain.RoleCustomer:
			filter.CustomerID = &id
		default:
			filter.AgentID = &id
		}
	}

	items, total, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &TicketPage{Items: items, Total: total, Page: page, PageSize: size}, nil
}

// GetTicket fetches a ticket within the actor's scope.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.ticketFor(ctx, actor, access.ReadTicket, ticketID)
}

// UpdateTicket edits title, content, priority and category. Every changed
// field gets its own history entry.
func (s *TicketService) UpdateTicket(ctx context.Context, actor domain.Actor, ticketID string, patch TicketPatch) (*domain.Ticket, error) {
	ticket, err := s.ticketFor(ctx, actor, access.EditTicket, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewConflict("closed tickets cannot be edited", map[string]any{"ticket_id": ticket.ID})
	}

	type change struct {
		field    domain.HistoryField
		old, new *string
	}
	var changes []change

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if err := validateLength("title", title, titleMinLen, titleMaxLen); err != nil {
			return nil, err
		}
		if title != ticket.Title {
			changes = append(changes, change{domain.HistoryFieldTitle, strPtr(ticket.Title), strPtr(title)})
			ticket.Title = title
		}
	}
	if patch.Content != nil {
		content := strings.TrimSpace(*patch.Content)
		if err := validateLength("content", content, contentMinLen, contentMaxLen); err != nil {
			return nil, err
		}
		if content != ticket.Content {
			changes = append(changes, change{domain.HistoryFieldContent, strPtr(ticket.Content), strPtr(content)})
			ticket.Content = content
		}
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *patch.Priority})
		}
		if *patch.Priority != ticket.Priority {
			changes = append(changes, change{domain.HistoryFieldPriority, strPtr(ticket.Priority), strPtr(*patch.Priority)})
			ticket.Priority = *patch.Priority
		}
	}
	switch {
	case patch.ClearCategory:
		if ticket.CategoryID != nil {
			changes = append(changes, change{domain.HistoryFieldCategory, ticket.CategoryID, nil})
			ticket.CategoryID = nil
		}
	case patch.CategoryID != nil:
		if !equalPtr(patch.CategoryID, ticket.CategoryID) {
			if err := s.ensureCategory(ctx, *patch.CategoryID); err != nil {
				return nil, err
			}
			categoryID := *patch.CategoryID
			changes = append(changes, change{domain.HistoryFieldCategory, ticket.CategoryID, &categoryID})
			ticket.CategoryID = &categoryID
		}
	}

	if len(changes) == 0 {
		return ticket, nil
	}

	ticket.UpdatedAt = s.clock.Now()
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	editor := events.UserActor(actor)
	fields := make([]domain.HistoryField, 0, len(changes))
	for _, c := range changes {
		if err := s.recordChange(ctx, ticket.ID, editor, c.field, c.old, c.new); err != nil {
			return nil, err
		}
		fields = append(fields, c.field)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: ticket.ID,
		Actor:    editor,
		Payload:  events.TicketUpdatedPayload{Fields: fields},
	})
	return ticket, nil
}

// UpdateStatus moves a ticket along the status graph. Moving to the current
// status is a no-op.
func (s *TicketService) UpdateStatus(ctx context.Context, actor domain.Actor, ticketID string, status domain.TicketStatus) (*domain.Ticket, error) {
	if err := access.Check(actor.Role, access.UpdateStatus).Err(); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": status})
	}
	ticket, err := s.ticketFor(ctx, actor, access.UpdateStatus, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == status {
		return ticket, nil
	}
	if !domain.CanTransition(ticket.Status, status) {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), string(status))
	}

	previous := ticket.Status
	now := s.clock.Now()
	ticket.Status = status
	ticket.UpdatedAt = now
	switch status {
	case domain.TicketStatusResolved:
		ticket.ResolvedAt = &now
		if !ticket.SLAResolveMet.Evaluated() {
			ticket.SLAResolveMet = sla.Evaluate(now, ticket.SLAResolveDeadline)
		}
	case domain.TicketStatusClosed:
		ticket.ClosedAt = &now
	case domain.TicketStatusOpen:
		ticket.ResolvedAt = nil
	}
	// The verdict is written by the same statement as the status, and the
	// stored row (including a concurrently reassigned agent) comes back.
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	changer := events.UserActor(actor)
	if err := s.recordChange(ctx, ticket.ID, changer, domain.HistoryFieldStatus, strPtr(previous), strPtr(status)); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    changer,
		Payload:  events.TicketStatusChangedPayload{OldStatus: previous, NewStatus: status},
	})
	return ticket, nil
}

// Reopen brings a closed ticket back to open within the reopen window.
func (s *TicketService) Reopen(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.ticketFor(ctx, actor, access.ReopenTicket, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusClosed {
		return nil, apperrors.NewReopenWindowExpired("only closed tickets can be reopened", map[string]any{"status": ticket.Status})
	}
	now := s.clock.Now()
	if !sla.CanReopen(ticket.ClosedAt, now) {
		return nil, apperrors.NewReopenWindowExpired("the reopen window has passed", map[string]any{
			"closed_at":    ticket.ClosedAt,
			"window_hours": int(sla.ReopenWindow.Hours()),
		})
	}

	ticket.Status = domain.TicketStatusOpen
	ticket.ClosedAt = nil
	ticket.ResolvedAt = nil
	ticket.UpdatedAt = now
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	reopener := events.UserActor(actor)
	if err := s.recordChange(ctx, ticket.ID, reopener, domain.HistoryFieldStatus,
		strPtr(domain.TicketStatusClosed), strPtr(domain.TicketStatusOpen)); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketReopened,
		TicketID: ticket.ID,
		Actor:    reopener,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: domain.TicketStatusClosed,
			NewStatus: domain.TicketStatusOpen,
		},
	})
	return ticket, nil
}

// AssignAgent hands a ticket to a specific agent.
func (s *TicketService) AssignAgent(ctx context.Context, actor domain.Actor, ticketID, agentID string) (*domain.Ticket, error) {
	ticket, err := s.ticketFor(ctx, actor, access.AssignTicket, ticketID)
	if err != nil {
		return nil, err
	}
	agent, err := loadUser(ctx, s.users, "agent", agentID)
	if err != nil {
		return nil, err
	}
	if agent.Role != domain.RoleAgent {
		return nil, apperrors.NewValidationError("tickets can only be assigned to agents", map[string]any{"user_id": agentID, "role": agent.Role})
	}
	if ticket.AssignedTo(agent.ID) {
		return ticket, nil
	}

	previous := ticket.AgentID
	now := s.clock.Now()
	applied, err := s.tickets.CompareAndSetAgent(ctx, ticket.ID, previous, agent.ID, now)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !applied {
		return nil, apperrors.NewConflict("ticket was reassigned concurrently", map[string]any{"ticket_id": ticket.ID})
	}
	ticket.AgentID = &agent.ID
	ticket.UpdatedAt = now

	assigner := events.UserActor(actor)
	if err := s.recordChange(ctx, ticket.ID, assigner, domain.HistoryFieldAgent, previous, &agent.ID); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    assigner,
		Payload:  events.TicketAssignedPayload{OldAgentID: previous, NewAgentID: agent.ID, Reason: "manual"},
	})
	return ticket, nil
}

// RecordFirstResponse stamps the first staff reply and evaluates the
// response SLA. Later calls leave the ticket untouched and report false.
func (s *TicketService) RecordFirstResponse(ctx context.Context, ticketID string) (bool, error) {
	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return false, err
	}
	if ticket.FirstResponseAt != nil {
		return false, nil
	}

	now := s.clock.Now()
	outcome := sla.Evaluate(now, ticket.SLAResponseDeadline)
	applied, err := s.tickets.MarkFirstResponse(ctx, ticket.ID, now, outcome)
	if err != nil {
		return false, apperrors.MapError(err)
	}
	if !applied {
		return false, nil
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketFirstResponse,
		TicketID: ticket.ID,
		Actor:    events.SystemActor(),
		Payload:  events.FirstResponsePayload{RespondedAt: now, Met: outcome == domain.SLAMet},
	})
	return true, nil
}

// AddComment posts a reply or an internal note. A public reply from staff
// counts as the first response.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, ticketID string, input AddCommentInput) (*domain.TicketComment, error) {
	if input.IsInternal {
		if err := access.Check(actor.Role, access.InternalNote).Err(); err != nil {
			return nil, err
		}
	}
	content := strings.TrimSpace(input.Content)
	if err := validateLength("content", content, 1, commentMaxLen); err != nil {
		return nil, err
	}
	ticket, err := s.ticketFor(ctx, actor, access.Comment, ticketID)
	if err != nil {
		return nil, err
	}

	comment := &domain.TicketComment{
		TicketID:   ticket.ID,
		AuthorID:   actor.ID,
		Content:    content,
		IsInternal: input.IsInternal,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventCommentAdded,
		TicketID: ticket.ID,
		Actor:    events.UserActor(actor),
		Payload: events.CommentAddedPayload{
			CommentID:  comment.ID,
			AuthorID:   comment.AuthorID,
			IsInternal: comment.IsInternal,
			Preview:    stringPreview(comment.Content, 120),
		},
	})

	if !comment.IsInternal && actor.Role != domain.RoleCustomer {
		if _, err := s.RecordFirstResponse(ctx, ticket.ID); err != nil {
			s.logger.Error("record first response failed",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
		}
	}
	return comment, nil
}

// ListComments returns the conversation; internal notes only for staff.
func (s *TicketService) ListComments(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketComment, error) {
	ticket, err := s.ticketFor(ctx, actor, access.ReadTicket, ticketID)
	if err != nil {
		return nil, err
	}
	includeInternal := access.Check(actor.Role, access.ViewInternalNotes).Allowed()
	comments, err := s.comments.ListByTicket(ctx, ticket.ID, includeInternal)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// ListHistory returns the audit trail of a ticket, oldest first.
func (s *TicketService) ListHistory(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketHistory, error) {
	ticket, err := s.ticketFor(ctx, actor, access.ReadTicket, ticketID)
	if err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *TicketService) ticketFor(ctx context.Context, actor domain.Actor, capability access.Capability, ticketID string) (*domain.Ticket, error) {
	if err := access.Check(actor.Role, capability).Err(); err != nil {
		return nil, err
	}
	ticket, err := loadTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if err := access.CheckTicket(actor, capability, ticket).Err(); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) ensureCategory(ctx context.Context, categoryID string) error {
	category, err := s.categories.GetByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewValidationError("unknown category", map[string]any{"category_id": categoryID})
		}
		return apperrors.MapError(err)
	}
	if !category.IsActive {
		return apperrors.NewValidationError("category is inactive", map[string]any{"category_id": categoryID})
	}
	return nil
}

func validateLength(field, value string, min, max int) error {
	n := runeLen(value)
	if n < min || n > max {
		return apperrors.NewValidationError(
			fmt.Sprintf("%s must be between %d and %d characters", field, min, max),
			map[string]any{"field": field, "length": n},
		)
	}
	return nil
}
