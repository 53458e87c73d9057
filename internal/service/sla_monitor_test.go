package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/sla"
)

// seedAt stores a ticket whose creation lies age before the current time.
func (fx *fixture) seedAt(age time.Duration, status domain.TicketStatus, agentID string) *domain.Ticket {
	now := fx.clock.Now()
	fx.clock.Set(now.Add(-age))
	ticket := fx.seedTicket(status, agentID)
	fx.clock.Set(now)
	return ticket
}

func TestRunSweep(t *testing.T) {
	fx := newFixture()
	fx.clock.Set(epoch.Add(48 * time.Hour))
	notifier := &stubNotifier{}
	monitor := NewSLAMonitor(fx.tickets, notifier, fx.clock, nil, zap.NewNop())

	approachingResponse := fx.seedAt(40*time.Minute, domain.TicketStatusOpen, agentOne.ID)
	lateResponse := fx.seedAt(2*time.Hour, domain.TicketStatusInProgress, agentTwo.ID)
	approachingResolve := fx.seedAt(23*time.Hour+45*time.Minute, domain.TicketStatusInProgress, agentOne.ID)
	unassignedLate := fx.seedAt(90*time.Minute, domain.TicketStatusOpen, "")
	// Warnings need an assignee; violations go to managers regardless.
	fx.seedAt(50*time.Minute, domain.TicketStatusOpen, "")

	// Already answered: only its resolve SLA is still pending, and that is far away.
	answered := fx.seedAt(3*time.Hour, domain.TicketStatusOpen, agentOne.ID)
	respondedAt := fx.clock.Now().Add(-150 * time.Minute)
	_, _ = fx.tickets.MarkFirstResponse(context.Background(), answered.ID, respondedAt, domain.SLAMet)

	// Finished tickets are never alerted on.
	fx.seedAt(30*time.Hour, domain.TicketStatusClosed, agentOne.ID)

	result := monitor.RunSweep(context.Background())

	if !result.Timestamp.Equal(fx.clock.Now()) {
		t.Errorf("timestamp = %v", result.Timestamp)
	}
	if result.Warnings != (SLACounts{Response: 1, Resolve: 1}) {
		t.Errorf("warnings = %+v", result.Warnings)
	}
	// lateResponse, approachingResolve and unassignedLate are all unanswered
	// past their response deadline.
	if result.Violations != (SLACounts{Response: 3, Resolve: 0}) {
		t.Errorf("violations = %+v", result.Violations)
	}
	if result.Errors == nil || len(result.Errors) != 0 {
		t.Errorf("errors = %#v, want empty non-nil slice", result.Errors)
	}

	want := map[sentAlert]bool{
		{approachingResponse.ID, sla.KindResponse, false}: true,
		{approachingResolve.ID, sla.KindResolve, false}:   true,
		{lateResponse.ID, sla.KindResponse, true}:         true,
		{approachingResolve.ID, sla.KindResponse, true}:   true,
		{unassignedLate.ID, sla.KindResponse, true}:       true,
	}
	for _, got := range notifier.sent {
		if !want[got] {
			t.Errorf("unexpected alert %+v", got)
		}
		delete(want, got)
	}
	for missing := range want {
		t.Errorf("missing alert %+v", missing)
	}

	// The sweep is observational: verdicts stay unset and a rerun repeats the alerts.
	if fx.tickets.get(lateResponse.ID).SLAResponseMet.Evaluated() {
		t.Error("sweep must not record sla verdicts")
	}
	again := monitor.RunSweep(context.Background())
	if again.Warnings != result.Warnings || again.Violations != result.Violations {
		t.Errorf("rerun = %+v", again)
	}
}

func TestRunSweepPartialFailure(t *testing.T) {
	fx := newFixture()
	fx.clock.Set(epoch.Add(48 * time.Hour))
	first := fx.seedAt(2*time.Hour, domain.TicketStatusOpen, agentOne.ID)
	second := fx.seedAt(3*time.Hour, domain.TicketStatusOpen, agentTwo.ID)
	notifier := &stubNotifier{fail: map[string]error{first.ID: errors.New("webhook returned 500")}}
	fx.tickets.slaErr[repository.SLAApproachingResolve] = errors.New("connection reset")

	result := NewSLAMonitor(fx.tickets, notifier, fx.clock, nil, nil).RunSweep(context.Background())

	if result.Violations.Response != 1 {
		t.Errorf("violations = %+v", result.Violations)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].ticketID != second.ID {
		t.Errorf("sent = %+v", notifier.sent)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("errors = %v", result.Errors)
	}
	joined := strings.Join(result.Errors, "\n")
	if !strings.Contains(joined, "connection reset") || !strings.Contains(joined, first.ID) {
		t.Errorf("errors = %v", result.Errors)
	}
}

func TestRunSweepCancelled(t *testing.T) {
	fx := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := NewSLAMonitor(fx.tickets, &stubNotifier{}, fx.clock, nil, nil).RunSweep(ctx)
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "aborted") {
		t.Errorf("errors = %v", result.Errors)
	}
}

func TestSweepWithNotificationService(t *testing.T) {
	fx := newFixture()
	sink := &recordingSink{}
	notifier := newNotificationService(fx, sink)
	fx.seedTicket(domain.TicketStatusOpen, agentOne.ID)
	fx.clock.Advance(40 * time.Minute)

	result := NewSLAMonitor(fx.tickets, notifier, fx.clock, nil, nil).RunSweep(context.Background())
	if result.Warnings.Response != 1 || len(result.Errors) != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(sink.got) != 1 || !strings.Contains(sink.got[0].Subject, "20 minutes") {
		t.Errorf("delivered = %+v", sink.got)
	}
}

// Unassigned tickets get no warning, since there is no agent to warn, but
// an overdue one is still escalated to managers and admins.
func TestSweepEscalatesUnassignedViolation(t *testing.T) {
	fx := newFixture()
	sink := &recordingSink{}
	notifier := newNotificationService(fx, sink)
	fx.seedAt(40*time.Minute, domain.TicketStatusOpen, "")
	late := fx.seedAt(90*time.Minute, domain.TicketStatusOpen, "")

	result := NewSLAMonitor(fx.tickets, notifier, fx.clock, nil, nil).RunSweep(context.Background())
	if result.Warnings.Total() != 0 || result.Violations.Response != 1 || len(result.Errors) != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(sink.got) != 2 || sink.got[0].RecipientID != manager.ID || sink.got[1].RecipientID != adminActor.ID {
		t.Fatalf("recipients = %+v", sink.got)
	}
	for _, msg := range sink.got {
		if !strings.Contains(msg.Body, "unassigned") || !strings.Contains(msg.Body, late.ID) {
			t.Errorf("body = %q", msg.Body)
		}
	}
}
