// Package access answers whether an actor may perform an operation.
// Every service operation consults Check or CheckTicket before doing work.
package access

import (
	"fmt"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// Capability names an operation guarded by role.
type Capability string

const (
	CreateTicket      Capability = "ticket:create"
	ReadTicket        Capability = "ticket:read"
	ListAllTickets    Capability = "ticket:list_all"
	EditTicket        Capability = "ticket:edit"
	UpdateStatus      Capability = "ticket:update_status"
	ReopenTicket      Capability = "ticket:reopen"
	AssignTicket      Capability = "ticket:assign"
	Comment           Capability = "comment:create"
	InternalNote      Capability = "comment:internal"
	ViewInternalNotes Capability = "comment:view_internal"
	UseTriage         Capability = "ai:triage"
	DraftResponse     Capability = "ai:draft"
	UpdatePresence    Capability = "agent:presence"
	ManagePresence    Capability = "agent:presence_any"
)

var grants = map[domain.Role]map[Capability]bool{
	domain.RoleCustomer: set(
		CreateTicket, ReadTicket, EditTicket, ReopenTicket, Comment, UseTriage,
	),
	domain.RoleAgent: set(
		ReadTicket, EditTicket, UpdateStatus, ReopenTicket, AssignTicket,
		Comment, InternalNote, ViewInternalNotes, UseTriage, DraftResponse, UpdatePresence,
	),
	domain.RoleManager: set(
		CreateTicket, ReadTicket, ListAllTickets, EditTicket, UpdateStatus, ReopenTicket, AssignTicket,
		Comment, InternalNote, ViewInternalNotes, UseTriage, DraftResponse, UpdatePresence,
	),
	domain.RoleAdmin: set(
		CreateTicket, ReadTicket, ListAllTickets, EditTicket, UpdateStatus, ReopenTicket, AssignTicket,
		Comment, InternalNote, ViewInternalNotes, UseTriage, DraftResponse, UpdatePresence, ManagePresence,
	),
}

func set(caps ...Capability) map[Capability]bool {
	m := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		m[c] = true
	}
	return m
}

// Decision is the result of a capability check.
type Decision struct {
	allowed bool
	Reason  string
}

func allow() Decision { return Decision{allowed: true} }

func forbid(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

func (d Decision) Allowed() bool { return d.allowed }

// Err returns a forbidden error for a denied decision and nil otherwise.
func (d Decision) Err() error {
	if d.allowed {
		return nil
	}
	return apperrors.NewForbidden(d.Reason)
}

// Check decides on role alone.
func Check(role domain.Role, capability Capability) Decision {
	if grants[role][capability] {
		return allow()
	}
	return forbid("role %q may not perform %s", role, capability)
}

// InScope reports whether the ticket belongs to the actor's working set.
// Customers see their own tickets, agents the tickets assigned to them,
// managers and admins everything.
func InScope(actor domain.Actor, ticket *domain.Ticket) bool {
	switch actor.Role {
	case domain.RoleCustomer:
		return ticket.CustomerID == actor.ID
	case domain.RoleAgent:
		return ticket.AssignedTo(actor.ID)
	case domain.RoleManager, domain.RoleAdmin:
		return true
	}
	return false
}

// CheckTicket decides on role and ticket ownership.
func CheckTicket(actor domain.Actor, capability Capability, ticket *domain.Ticket) Decision {
	if d := Check(actor.Role, capability); !d.Allowed() {
		return d
	}
	if !InScope(actor, ticket) {
		return forbid("ticket %s is outside the scope of %s %s", ticket.ID, actor.Role, actor.ID)
	}
	return allow()
}
