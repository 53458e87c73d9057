package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketUpdated       EventType = "ticket_updated"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketReopened      EventType = "ticket_reopened"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketFirstResponse EventType = "ticket_first_response"
	EventCommentAdded        EventType = "ticket_comment_added"
	EventSLAWarning          EventType = "sla_warning"
	EventSLAViolation        EventType = "sla_violation"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type   domain.ActorType `json:"type"`
	UserID *string          `json:"user_id,omitempty"`
	Role   domain.Role      `json:"role,omitempty"`
}

// UserActor describes a change made by a signed-in user.
func UserActor(a domain.Actor) Actor {
	id := a.ID
	return Actor{Type: domain.ActorTypeUser, UserID: &id, Role: a.Role}
}

// SystemActor describes an automatic change.
func SystemActor() Actor {
	return Actor{Type: domain.ActorTypeSystem}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

type TicketCreatedPayload struct {
	CustomerID string                `json:"customer_id"`
	AgentID    *string               `json:"agent_id,omitempty"`
	Priority   domain.TicketPriority `json:"priority"`
	Title      string                `json:"title"`
}

type TicketUpdatedPayload struct {
	Fields []domain.HistoryField `json:"fields"`
}

type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

type TicketAssignedPayload struct {
	OldAgentID *string `json:"old_agent_id,omitempty"`
	NewAgentID string  `json:"new_agent_id"`
	Reason     string  `json:"reason"`
}

type FirstResponsePayload struct {
	RespondedAt time.Time `json:"responded_at"`
	Met         bool      `json:"met"`
}

type CommentAddedPayload struct {
	CommentID  string `json:"comment_id"`
	AuthorID   string `json:"author_id"`
	IsInternal bool   `json:"is_internal"`
	Preview    string `json:"preview"`
}

// SLAAlertPayload accompanies warnings and violations.
type SLAAlertPayload struct {
	SLA        string    `json:"sla"`
	Deadline   time.Time `json:"deadline"`
	Minutes    int       `json:"minutes"`
	Recipients []string  `json:"recipients"`
}
