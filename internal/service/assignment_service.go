package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/access"
	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// AssignmentService picks agents for tickets and keeps assignments
// balanced when agents go away.
type AssignmentService struct {
	tickets repository.TicketRepository
	users   repository.UserRepository
	ticketRecorder
	metrics *observability.Metrics
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Clock       clock.Clock
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &AssignmentService{
		tickets: deps.TicketRepo,
		users:   deps.UserRepo,
		ticketRecorder: ticketRecorder{
			history:    deps.HistoryRepo,
			dispatcher: deps.Dispatcher,
			clock:      deps.Clock,
			logger:     deps.Logger,
		},
		metrics: deps.Metrics,
	}
}

// SelectAgent returns the available agent with the fewest open or
// in-progress tickets. Ties go to the agent listed first. ok is false when
// no agent is available.
func (s *AssignmentService) SelectAgent(ctx context.Context) (agentID string, ok bool, err error) {
	agents, err := s.users.ListAvailableAgents(ctx)
	if err != nil {
		return "", false, fmt.Errorf("list available agents: %w", err)
	}

	best := -1
	for _, agent := range agents {
		if !agent.Available() {
			continue
		}
		load, err := s.tickets.CountActiveByAgent(ctx, agent.ID)
		if err != nil {
			return "", false, fmt.Errorf("count load of agent %s: %w", agent.ID, err)
		}
		if best < 0 || load < best {
			best = load
			agentID = agent.ID
		}
	}
	return agentID, best >= 0, nil
}

// AutoAssign gives an unassigned ticket to the least-loaded available agent.
// It returns nil when nobody is available or the ticket was assigned in the meantime.
func (s *AssignmentService) AutoAssign(ctx context.Context, ticketID string, actor events.Actor) (*string, error) {
	agentID, ok, err := s.SelectAgent(ctx)
	if err != nil {
		s.metrics.RecordAssignment("create", "error")
		return nil, err
	}
	if !ok {
		s.metrics.RecordAssignment("create", "no_agent")
		s.logger.Info("no available agent; ticket left unassigned", zap.String("ticket_id", ticketID))
		return nil, nil
	}

	applied, err := s.tickets.CompareAndSetAgent(ctx, ticketID, nil, agentID, s.clock.Now())
	if err != nil {
		s.metrics.RecordAssignment("create", "error")
		return nil, fmt.Errorf("assign ticket %s: %w", ticketID, err)
	}
	if !applied {
		s.metrics.RecordAssignment("create", "conflict")
		s.logger.Info("ticket already assigned; skipping auto-assignment", zap.String("ticket_id", ticketID))
		return nil, nil
	}

	if err := s.recordChange(ctx, ticketID, actor, domain.HistoryFieldAgent, nil, &agentID); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticketID,
		Actor:    actor,
		Payload:  events.TicketAssignedPayload{NewAgentID: agentID, Reason: "auto"},
	})
	s.metrics.RecordAssignment("create", "assigned")
	return &agentID, nil
}

// ReassignAgentTickets moves the open and in-progress tickets of agentID to
// other available agents, one ticket at a time so load stays balanced.
// Tickets stay put when no other agent is available. It returns how many
// tickets moved.
func (s *AssignmentService) ReassignAgentTickets(ctx context.Context, agentID string) (int, error) {
	tickets, err := s.tickets.ListActiveByAgent(ctx, agentID)
	if err != nil {
		return 0, fmt.Errorf("list tickets of agent %s: %w", agentID, err)
	}

	moved := 0
	for _, ticket := range tickets {
		candidate, ok, err := s.SelectAgent(ctx)
		if err != nil {
			return moved, err
		}
		if !ok {
			s.metrics.RecordAssignment("reassign", "no_agent")
			break
		}
		if candidate == agentID {
			continue
		}

		from := agentID
		applied, err := s.tickets.CompareAndSetAgent(ctx, ticket.ID, &from, candidate, s.clock.Now())
		if err != nil {
			return moved, fmt.Errorf("reassign ticket %s: %w", ticket.ID, err)
		}
		if !applied {
			s.metrics.RecordAssignment("reassign", "conflict")
			continue
		}

		actor := events.SystemActor()
		if err := s.recordChange(ctx, ticket.ID, actor, domain.HistoryFieldAgent, &from, &candidate); err != nil {
			return moved, err
		}
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			Actor:    actor,
			Payload:  events.TicketAssignedPayload{OldAgentID: &from, NewAgentID: candidate, Reason: "agent_unavailable"},
		})
		s.metrics.RecordAssignment("reassign", "assigned")
		moved++
	}

	s.logger.Info("reassigned agent tickets",
		zap.String("agent_id", agentID),
		zap.Int("active", len(tickets)),
		zap.Int("moved", moved))
	return moved, nil
}

// PresenceUpdate carries the presence flags to change; nil leaves a flag as is.
type PresenceUpdate struct {
	IsOnline *bool
	IsAway   *bool
}

// PresenceResult reports the new presence and how many tickets moved away.
type PresenceResult struct {
	Agent      *domain.User
	Reassigned int
}

// UpdatePresence changes an agent's online and away flags. When the agent
// stops being available, their active tickets are redistributed.
func (s *AssignmentService) UpdatePresence(ctx context.Context, actor domain.Actor, agentID string, update PresenceUpdate) (*PresenceResult, error) {
	if err := access.Check(actor.Role, access.UpdatePresence).Err(); err != nil {
		return nil, err
	}
	if agentID != actor.ID {
		if err := access.Check(actor.Role, access.ManagePresence).Err(); err != nil {
			return nil, err
		}
	}
	if update.IsOnline == nil && update.IsAway == nil {
		return nil, apperrors.NewValidationError("no presence fields provided", nil)
	}

	agent, err := loadUser(ctx, s.users, "agent", agentID)
	if err != nil {
		return nil, err
	}
	if !agent.Role.Staff() {
		return nil, apperrors.NewValidationError("presence applies to staff only", map[string]any{"user_id": agentID, "role": agent.Role})
	}

	wasAvailable := agent.Available()
	if update.IsOnline != nil {
		agent.IsOnline = *update.IsOnline
	}
	if update.IsAway != nil {
		agent.IsAway = *update.IsAway
	}
	agent.UpdatedAt = s.clock.Now()

	if err := s.users.UpdatePresence(ctx, agent.ID, agent.IsOnline, agent.IsAway, agent.UpdatedAt); err != nil {
		return nil, apperrors.MapError(err)
	}

	result := &PresenceResult{Agent: agent}
	if wasAvailable && !agent.Available() {
		moved, err := s.ReassignAgentTickets(ctx, agent.ID)
		result.Reassigned = moved
		if err != nil {
			var domainErr *apperrors.DomainError
			if errors.As(err, &domainErr) {
				return nil, err
			}
			return nil, apperrors.NewInternalError(err)
		}
	}
	return result, nil
}
