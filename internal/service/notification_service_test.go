package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/notify"
	"github.com/spec-kit/helpdesk-service/internal/sla"
)

func newNotificationService(fx *fixture, sink notify.Sink) *NotificationService {
	return NewNotificationService(NotificationDependencies{
		Dispatcher: fx.dispatcher,
		Sink:       sink,
		UserRepo:   fx.users,
		TicketRepo: fx.tickets,
		AppURL:     "https://help.example.com/",
		Clock:      fx.clock,
		Logger:     zap.NewNop(),
	})
}

func TestSendWarning(t *testing.T) {
	ctx := context.Background()

	t.Run("assigned agent is told how long is left", func(t *testing.T) {
		fx := newFixture()
		sink := &recordingSink{}
		n := newNotificationService(fx, sink)
		ticket := fx.seedTicket(domain.TicketStatusOpen, agentOne.ID)
		fx.clock.Advance(35*time.Minute + 30*time.Second)

		if err := n.SendWarning(ctx, ticket, sla.KindResponse); err != nil {
			t.Fatalf("SendWarning: %v", err)
		}
		if len(sink.got) != 1 {
			t.Fatalf("delivered %d messages", len(sink.got))
		}
		msg := sink.got[0]
		if msg.RecipientID != agentOne.ID || msg.RecipientEmail != "ada.agent@example.com" || msg.Kind != notify.KindSLAWarning {
			t.Errorf("message = %+v", msg)
		}
		if !strings.Contains(msg.Subject, "24 minutes") {
			t.Errorf("subject = %q, want floor of remaining minutes", msg.Subject)
		}
		if msg.Link != "https://help.example.com/tickets/"+ticket.ID || !strings.Contains(msg.Body, msg.Link) {
			t.Errorf("link = %q body = %q", msg.Link, msg.Body)
		}
		last := fx.dispatcher.events[len(fx.dispatcher.events)-1]
		if last.Type != events.EventSLAWarning {
			t.Errorf("event = %s", last.Type)
		}
	})

	t.Run("unassigned ticket", func(t *testing.T) {
		fx := newFixture()
		n := newNotificationService(fx, &recordingSink{})
		ticket := fx.seedTicket(domain.TicketStatusOpen, "")
		if err := n.SendWarning(ctx, ticket, sla.KindResponse); !errors.Is(err, ErrNoRecipient) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("deadline reached", func(t *testing.T) {
		fx := newFixture()
		sink := &recordingSink{}
		n := newNotificationService(fx, sink)
		ticket := fx.seedTicket(domain.TicketStatusOpen, agentOne.ID)
		fx.clock.Set(ticket.SLAResponseDeadline.Add(-30 * time.Second))
		if err := n.SendWarning(ctx, ticket, sla.KindResponse); !errors.Is(err, ErrDeadlinePassed) {
			t.Fatalf("err = %v", err)
		}
		if len(sink.got) != 0 {
			t.Error("nothing should be delivered")
		}
	})

	t.Run("sink failure", func(t *testing.T) {
		fx := newFixture()
		n := newNotificationService(fx, &recordingSink{fail: map[string]error{agentOne.ID: errors.New("smtp down")}})
		ticket := fx.seedTicket(domain.TicketStatusOpen, agentOne.ID)
		if err := n.SendWarning(ctx, ticket, sla.KindResolve); err == nil || !strings.Contains(err.Error(), "smtp down") {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestSendViolation(t *testing.T) {
	ctx := context.Background()

	t.Run("managers and admins", func(t *testing.T) {
		fx := newFixture()
		sink := &recordingSink{}
		n := newNotificationService(fx, sink)
		ticket := fx.seedTicket(domain.TicketStatusOpen, "")
		fx.clock.Advance(time.Hour + 5*time.Minute + 59*time.Second)

		if err := n.SendViolation(ctx, ticket, sla.KindResponse); err != nil {
			t.Fatalf("SendViolation: %v", err)
		}
		if len(sink.got) != 2 || sink.got[0].RecipientID != manager.ID || sink.got[1].RecipientID != adminActor.ID {
			t.Fatalf("recipients = %+v", sink.got)
		}
		if body := sink.got[0].Body; !strings.Contains(body, "5 minutes ago") || !strings.Contains(body, "unassigned") {
			t.Errorf("body = %q", body)
		}
	})

	t.Run("partial delivery succeeds", func(t *testing.T) {
		fx := newFixture()
		sink := &recordingSink{fail: map[string]error{manager.ID: errors.New("bounced")}}
		n := newNotificationService(fx, sink)
		ticket := fx.seedTicket(domain.TicketStatusOpen, agentOne.ID)
		if err := n.SendViolation(ctx, ticket, sla.KindResolve); err != nil {
			t.Fatalf("SendViolation: %v", err)
		}
		payload := fx.dispatcher.events[len(fx.dispatcher.events)-1].Payload.(events.SLAAlertPayload)
		if len(payload.Recipients) != 1 || payload.Recipients[0] != adminActor.ID {
			t.Errorf("recipients = %v", payload.Recipients)
		}
	})

	t.Run("nobody delivered", func(t *testing.T) {
		fx := newFixture()
		sink := &recordingSink{fail: map[string]error{manager.ID: errors.New("bounced"), adminActor.ID: errors.New("full")}}
		n := newNotificationService(fx, sink)
		ticket := fx.seedTicket(domain.TicketStatusOpen, agentOne.ID)
		if err := n.SendViolation(ctx, ticket, sla.KindResolve); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("no managers", func(t *testing.T) {
		fx := newFixture()
		fx.users.users = fx.users.users[:4]
		n := newNotificationService(fx, &recordingSink{})
		ticket := fx.seedTicket(domain.TicketStatusOpen, agentOne.ID)
		if err := n.SendViolation(ctx, ticket, sla.KindResponse); !errors.Is(err, ErrNoRecipient) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestNotificationHandlers(t *testing.T) {
	fx := newFixture()
	sink := &recordingSink{}
	n := newNotificationService(fx, sink)
	if subscribed := n.RegisterHandlers(); len(subscribed) != 3 {
		t.Fatalf("subscribed to %v", subscribed)
	}
	ctx := context.Background()

	ticket, err := fx.svc.CreateTicket(ctx, customer, validInput())
	if err != nil {
		t.Fatal(err)
	}
	// Assignment and creation each notify the agent.
	if len(sink.got) != 2 {
		t.Fatalf("delivered %d messages, want 2", len(sink.got))
	}
	for _, msg := range sink.got {
		if msg.RecipientID != agentOne.ID {
			t.Errorf("recipient = %s", msg.RecipientID)
		}
	}

	if _, err := fx.svc.UpdateStatus(ctx, agentOne, ticket.ID, domain.TicketStatusInProgress); err != nil {
		t.Fatal(err)
	}
	last := sink.got[len(sink.got)-1]
	if last.Kind != notify.KindStatusChanged || last.RecipientID != customer.ID || !strings.Contains(last.Subject, "in_progress") {
		t.Errorf("status message = %+v", last)
	}
}
