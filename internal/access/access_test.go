package access

import (
	"testing"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func TestCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role domain.Role
		cap  Capability
		want bool
	}{
		{domain.RoleCustomer, CreateTicket, true},
		{domain.RoleCustomer, UpdateStatus, false},
		{domain.RoleCustomer, AssignTicket, false},
		{domain.RoleCustomer, InternalNote, false},
		{domain.RoleCustomer, DraftResponse, false},
		{domain.RoleCustomer, ReopenTicket, true},
		{domain.RoleAgent, UpdateStatus, true},
		{domain.RoleAgent, ListAllTickets, false},
		{domain.RoleAgent, ManagePresence, false},
		{domain.RoleManager, ListAllTickets, true},
		{domain.RoleManager, ManagePresence, false},
		{domain.RoleAdmin, ManagePresence, true},
		{domain.Role("guest"), ReadTicket, false},
	}
	for _, tt := range tests {
		if got := Check(tt.role, tt.cap).Allowed(); got != tt.want {
			t.Errorf("Check(%s, %s) = %v, want %v", tt.role, tt.cap, got, tt.want)
		}
	}
}

func TestCheckTicketScope(t *testing.T) {
	t.Parallel()

	agentID := "agent-1"
	ticket := &domain.Ticket{ID: "t-1", CustomerID: "cust-1", AgentID: &agentID}

	tests := []struct {
		name  string
		actor domain.Actor
		want  bool
	}{
		{"owner customer", domain.Actor{ID: "cust-1", Role: domain.RoleCustomer}, true},
		{"other customer", domain.Actor{ID: "cust-2", Role: domain.RoleCustomer}, false},
		{"assigned agent", domain.Actor{ID: "agent-1", Role: domain.RoleAgent}, true},
		{"other agent", domain.Actor{ID: "agent-2", Role: domain.RoleAgent}, false},
		{"manager", domain.Actor{ID: "mgr", Role: domain.RoleManager}, true},
		{"admin", domain.Actor{ID: "adm", Role: domain.RoleAdmin}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CheckTicket(tt.actor, ReadTicket, ticket)
			if d.Allowed() != tt.want {
				t.Fatalf("allowed = %v, want %v (%s)", d.Allowed(), tt.want, d.Reason)
			}
			if !tt.want && !apperrors.HasCode(d.Err(), apperrors.CodeForbidden) {
				t.Fatalf("expected forbidden error, got %v", d.Err())
			}
		})
	}
}

func TestUnassignedTicketOutOfAgentScope(t *testing.T) {
	ticket := &domain.Ticket{ID: "t-2", CustomerID: "c"}
	if CheckTicket(domain.Actor{ID: "agent-1", Role: domain.RoleAgent}, ReadTicket, ticket).Allowed() {
		t.Fatal("agent must not see unassigned tickets")
	}
}
