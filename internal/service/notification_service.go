package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/notify"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/sla"
)

var (
	// ErrNoRecipient is returned when an alert has nobody to go to.
	ErrNoRecipient = errors.New("notification has no recipient")
	// ErrDeadlinePassed is returned for warnings whose deadline is already reached.
	ErrDeadlinePassed = errors.New("sla deadline already reached")
)

// NotificationService turns SLA alerts and ticket events into messages.
type NotificationService struct {
	dispatcher events.Dispatcher
	sink       notify.Sink
	users      repository.UserRepository
	tickets    repository.TicketRepository
	appURL     string
	clock      clock.Clock
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Sink       notify.Sink
	UserRepo   repository.UserRepository
	TicketRepo repository.TicketRepository
	AppURL     string
	Clock      clock.Clock
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Sink == nil {
		deps.Sink = notify.NewLogSink(deps.Logger)
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		sink:       deps.Sink,
		users:      deps.UserRepo,
		tickets:    deps.TicketRepo,
		appURL:     strings.TrimRight(deps.AppURL, "/"),
		clock:      deps.Clock,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// RegisterHandlers subscribes to ticket events and reports which ones.
func (n *NotificationService) RegisterHandlers() []events.EventType {
	if n.dispatcher == nil {
		return nil
	}
	subscriptions := []struct {
		eventType events.EventType
		handler   events.EventHandler
	}{
		{events.EventTicketCreated, n.handleTicketCreated},
		{events.EventTicketStatusChanged, n.handleTicketStatusChanged},
		{events.EventTicketAssigned, n.handleTicketAssigned},
	}
	subscribed := make([]events.EventType, 0, len(subscriptions))
	for _, sub := range subscriptions {
		n.dispatcher.Subscribe(sub.eventType, sub.handler)
		subscribed = append(subscribed, sub.eventType)
	}
	return subscribed
}

// SendWarning tells the assigned agent that a deadline is close.
func (n *NotificationService) SendWarning(ctx context.Context, ticket *domain.Ticket, kind sla.Kind) error {
	if ticket.AgentID == nil {
		n.metrics.RecordSLANotification("warning", string(kind), "skipped")
		return fmt.Errorf("warn ticket %s: %w", ticket.ID, ErrNoRecipient)
	}
	now := n.clock.Now()
	deadline := deadlineOf(ticket, kind)
	minutes := sla.MinutesUntil(deadline, now)
	if minutes <= 0 {
		n.metrics.RecordSLANotification("warning", string(kind), "skipped")
		return fmt.Errorf("warn ticket %s: %w", ticket.ID, ErrDeadlinePassed)
	}

	agent, err := n.users.GetByID(ctx, *ticket.AgentID)
	if err != nil {
		n.metrics.RecordSLANotification("warning", string(kind), "failed")
		return fmt.Errorf("load agent %s: %w", *ticket.AgentID, err)
	}

	msg := n.message(notify.KindSLAWarning, ticket, agent)
	msg.Subject = fmt.Sprintf("[SLA warning] %s deadline for %q in %d minutes", kind, ticket.Title, minutes)
	msg.Body = fmt.Sprintf("The %s deadline of ticket %q is %s, %d minutes from now.\nPriority: %s\nOpen the ticket: %s",
		kind, ticket.Title, deadline.Format(time.RFC3339), minutes, ticket.Priority, msg.Link)
	if err := n.sink.Deliver(ctx, msg); err != nil {
		n.metrics.RecordSLANotification("warning", string(kind), "failed")
		return fmt.Errorf("deliver warning for ticket %s: %w", ticket.ID, err)
	}
	n.metrics.RecordSLANotification("warning", string(kind), "sent")

	n.publish(ctx, events.EventSLAWarning, ticket.ID, events.SLAAlertPayload{
		SLA:        string(kind),
		Deadline:   deadline,
		Minutes:    minutes,
		Recipients: []string{agent.ID},
	})
	return nil
}

// SendViolation tells every manager and admin that a deadline was missed.
// It succeeds when at least one of them was reached.
func (n *NotificationService) SendViolation(ctx context.Context, ticket *domain.Ticket, kind sla.Kind) error {
	recipients, err := n.users.ListByRoles(ctx, domain.RoleManager, domain.RoleAdmin)
	if err != nil {
		n.metrics.RecordSLANotification("violation", string(kind), "failed")
		return fmt.Errorf("list managers: %w", err)
	}
	if len(recipients) == 0 {
		n.metrics.RecordSLANotification("violation", string(kind), "skipped")
		return fmt.Errorf("violation for ticket %s: %w", ticket.ID, ErrNoRecipient)
	}

	deadline := deadlineOf(ticket, kind)
	overdue := sla.MinutesOverdue(deadline, n.clock.Now())
	assignee := "unassigned"
	if ticket.AgentID != nil {
		assignee = *ticket.AgentID
	}

	var (
		errs    []error
		reached []string
	)
	for i := range recipients {
		recipient := &recipients[i]
		msg := n.message(notify.KindSLAViolation, ticket, recipient)
		msg.Subject = fmt.Sprintf("[SLA violation] %s deadline missed for %q", kind, ticket.Title)
		msg.Body = fmt.Sprintf("The %s deadline of ticket %q passed %d minutes ago (%s).\nPriority: %s\nAssigned agent: %s\nOpen the ticket: %s",
			kind, ticket.Title, overdue, deadline.Format(time.RFC3339), ticket.Priority, assignee, msg.Link)
		if err := n.sink.Deliver(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", recipient.ID, err))
			continue
		}
		reached = append(reached, recipient.ID)
	}
	if len(reached) == 0 {
		n.metrics.RecordSLANotification("violation", string(kind), "failed")
		return fmt.Errorf("deliver violation for ticket %s: %w", ticket.ID, errors.Join(errs...))
	}
	if len(errs) > 0 {
		n.logger.Warn("violation not delivered to every recipient",
			zap.String("ticket_id", ticket.ID),
			zap.Int("reached", len(reached)),
			zap.Error(errors.Join(errs...)))
	}
	n.metrics.RecordSLANotification("violation", string(kind), "sent")

	n.publish(ctx, events.EventSLAViolation, ticket.ID, events.SLAAlertPayload{
		SLA:        string(kind),
		Deadline:   deadline,
		Minutes:    overdue,
		Recipients: reached,
	})
	return nil
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok || payload.AgentID == nil {
		return nil
	}
	agent, err := n.users.GetByID(ctx, *payload.AgentID)
	if err != nil {
		return fmt.Errorf("load agent %s: %w", *payload.AgentID, err)
	}
	ticket := &domain.Ticket{ID: event.TicketID, Title: payload.Title, Priority: payload.Priority}
	msg := n.message(notify.KindTicketCreated, ticket, agent)
	msg.Subject = fmt.Sprintf("New ticket assigned: %q", payload.Title)
	msg.Body = fmt.Sprintf("A new %s priority ticket was assigned to you.\nOpen the ticket: %s", payload.Priority, msg.Link)
	return n.sink.Deliver(ctx, msg)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return nil
	}
	ticket, err := n.tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		return fmt.Errorf("load ticket %s: %w", event.TicketID, err)
	}
	customer, err := n.users.GetByID(ctx, ticket.CustomerID)
	if err != nil {
		return fmt.Errorf("load customer %s: %w", ticket.CustomerID, err)
	}
	msg := n.message(notify.KindStatusChanged, ticket, customer)
	msg.Subject = fmt.Sprintf("Ticket %q is now %s", ticket.Title, payload.NewStatus)
	msg.Body = fmt.Sprintf("The status of your ticket changed from %s to %s.\nOpen the ticket: %s",
		payload.OldStatus, payload.NewStatus, msg.Link)
	return n.sink.Deliver(ctx, msg)
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return nil
	}
	ticket, err := n.tickets.GetByID(ctx, event.TicketID)
	if err != nil {
		return fmt.Errorf("load ticket %s: %w", event.TicketID, err)
	}
	agent, err := n.users.GetByID(ctx, payload.NewAgentID)
	if err != nil {
		return fmt.Errorf("load agent %s: %w", payload.NewAgentID, err)
	}
	msg := n.message(notify.KindTicketAssigned, ticket, agent)
	msg.Subject = fmt.Sprintf("Ticket assigned: %q", ticket.Title)
	msg.Body = fmt.Sprintf("Ticket %q (%s priority) is now yours (%s).\nOpen the ticket: %s",
		ticket.Title, ticket.Priority, payload.Reason, msg.Link)
	return n.sink.Deliver(ctx, msg)
}

func (n *NotificationService) message(kind notify.Kind, ticket *domain.Ticket, recipient *domain.User) notify.Message {
	return notify.Message{
		Kind:           kind,
		TicketID:       ticket.ID,
		RecipientID:    recipient.ID,
		RecipientName:  recipient.Name,
		RecipientEmail: recipient.Email,
		Link:           n.TicketLink(ticket.ID),
	}
}

// TicketLink is the web address of a ticket.
func (n *NotificationService) TicketLink(ticketID string) string {
	return n.appURL + "/tickets/" + ticketID
}

func (n *NotificationService) publish(ctx context.Context, eventType events.EventType, ticketID string, payload events.SLAAlertPayload) {
	recorder := ticketRecorder{dispatcher: n.dispatcher, clock: n.clock, logger: n.logger}
	recorder.publishEvent(ctx, events.Event{
		Type:     eventType,
		TicketID: ticketID,
		Actor:    events.SystemActor(),
		Payload:  payload,
	})
}

func deadlineOf(ticket *domain.Ticket, kind sla.Kind) time.Time {
	if kind == sla.KindResolve {
		return ticket.SLAResolveDeadline
	}
	return ticket.SLAResponseDeadline
}
