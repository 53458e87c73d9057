package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/sla"
)

// Notifier delivers SLA alerts for a single ticket.
type Notifier interface {
	SendWarning(ctx context.Context, ticket *domain.Ticket, kind sla.Kind) error
	SendViolation(ctx context.Context, ticket *domain.Ticket, kind sla.Kind) error
}

// SLACounts splits alert counts by SLA.
type SLACounts struct {
	Response int `json:"response"`
	Resolve  int `json:"resolve"`
}

// Total sums both SLAs.
func (c SLACounts) Total() int { return c.Response + c.Resolve }

// SweepResult reports one monitor run.
type SweepResult struct {
	Timestamp  time.Time `json:"timestamp"`
	Warnings   SLACounts `json:"warnings"`
	Violations SLACounts `json:"violations"`
	Errors     []string  `json:"errors"`
}

// SLAMonitor finds tickets close to or past their deadlines and raises
// alerts. It never changes the stored SLA verdicts, so running it twice
// only repeats the alerts.
type SLAMonitor struct {
	tickets  repository.TicketRepository
	notifier Notifier
	clock    clock.Clock
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewSLAMonitor creates the monitor.
func NewSLAMonitor(tickets repository.TicketRepository, notifier Notifier, clk clock.Clock, metrics *observability.Metrics, logger *zap.Logger) *SLAMonitor {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAMonitor{tickets: tickets, notifier: notifier, clock: clk, metrics: metrics, logger: logger}
}

type sweepStep struct {
	check     repository.SLACheck
	kind      sla.Kind
	violation bool
}

var sweepSteps = []sweepStep{
	{check: repository.SLAApproachingResponse, kind: sla.KindResponse},
	{check: repository.SLAApproachingResolve, kind: sla.KindResolve},
	{check: repository.SLAViolatedResponse, kind: sla.KindResponse, violation: true},
	{check: repository.SLAViolatedResolve, kind: sla.KindResolve, violation: true},
}

// RunSweep checks all four alert sets. Failures are collected in the
// result; only a cancelled context stops the run early.
func (m *SLAMonitor) RunSweep(ctx context.Context) SweepResult {
	ctx, span := otel.Tracer("github.com/spec-kit/helpdesk-service/sla").Start(ctx, "sla.sweep")
	defer span.End()

	started := time.Now()
	now := m.clock.Now()
	result := SweepResult{Timestamp: now, Errors: []string{}}
	window := repository.SLAWindow{Now: now, Until: now.Add(sla.WarningLead)}

	for _, step := range sweepSteps {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("sweep aborted: %v", err))
			break
		}
		window.Check = step.check
		tickets, err := m.tickets.ListSLAAtRisk(ctx, window)
		if err != nil {
			m.logger.Error("sla query failed", zap.String("check", string(step.check)), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", step.check, err))
			continue
		}
		for i := range tickets {
			m.alert(ctx, step, &tickets[i], &result)
		}
	}

	span.SetAttributes(
		attribute.Int("sla.warnings", result.Warnings.Total()),
		attribute.Int("sla.violations", result.Violations.Total()),
		attribute.Int("sla.errors", len(result.Errors)),
	)
	m.metrics.ObserveSweep(time.Since(started))
	m.logger.Info("sla sweep finished",
		zap.Int("warnings", result.Warnings.Total()),
		zap.Int("violations", result.Violations.Total()),
		zap.Int("errors", len(result.Errors)))
	return result
}

func (m *SLAMonitor) alert(ctx context.Context, step sweepStep, ticket *domain.Ticket, result *SweepResult) {
	if deadlineOf(ticket, step.kind).IsZero() {
		m.logger.Warn("ticket has no sla deadline", zap.String("ticket_id", ticket.ID), zap.String("sla", string(step.kind)))
		return
	}

	counts := &result.Warnings
	label := "warning"
	send := m.notifier.SendWarning
	if step.violation {
		counts = &result.Violations
		label = "violation"
		send = m.notifier.SendViolation
	} else if ticket.AgentID == nil {
		m.logger.Warn("skipping sla warning for unassigned ticket", zap.String("ticket_id", ticket.ID), zap.String("sla", string(step.kind)))
		return
	}

	if err := send(ctx, ticket, step.kind); err != nil {
		if errors.Is(err, ErrDeadlinePassed) {
			m.logger.Debug("deadline reached during sweep", zap.String("ticket_id", ticket.ID))
			return
		}
		m.logger.Warn("sla notification failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("notification", label),
			zap.String("sla", string(step.kind)),
			zap.Error(err))
		result.Errors = append(result.Errors, fmt.Sprintf("ticket %s %s %s: %v", ticket.ID, step.kind, label, err))
		return
	}

	if step.kind == sla.KindResolve {
		counts.Resolve++
	} else {
		counts.Response++
	}
}
