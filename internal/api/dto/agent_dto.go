package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// PresenceRequest changes an agent's availability. At least one field is required.
type PresenceRequest struct {
	IsOnline *bool `json:"is_online"`
	IsAway   *bool `json:"is_away"`
}

// AgentResponse is the public view of a staff member.
type AgentResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	IsOnline  bool        `json:"is_online"`
	IsAway    bool        `json:"is_away"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// PresenceResponse reports the new presence and the tickets moved away.
type PresenceResponse struct {
	Agent             AgentResponse `json:"agent"`
	ReassignedTickets int           `json:"reassigned_tickets"`
}
