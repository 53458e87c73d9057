package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload. CustomerID is honoured for staff only.
type CreateTicketRequest struct {
	Title            string                `json:"title"`
	Content          string                `json:"content"`
	Priority         domain.TicketPriority `json:"priority"`
	CategoryID       *string               `json:"category_id"`
	CustomerID       string                `json:"customer_id"`
	AnalyzeSentiment bool                  `json:"analyze_sentiment"`
	AutoClassify     bool                  `json:"auto_classify"`
}

// UpdateTicketRequest carries the editable fields; absent fields stay unchanged.
type UpdateTicketRequest struct {
	Title         *string                `json:"title"`
	Content       *string                `json:"content"`
	Priority      *domain.TicketPriority `json:"priority"`
	CategoryID    *string                `json:"category_id"`
	ClearCategory bool                   `json:"clear_category"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AgentID string `json:"agent_id"`
}

// TicketResponse is the public view of a ticket. SLA verdicts render as
// null until evaluated.
type TicketResponse struct {
	ID                  string                `json:"id"`
	Title               string                `json:"title"`
	Content             string                `json:"content"`
	Status              domain.TicketStatus   `json:"status"`
	Priority            domain.TicketPriority `json:"priority"`
	CategoryID          *string               `json:"category_id"`
	CustomerID          string                `json:"customer_id"`
	AgentID             *string               `json:"agent_id"`
	Sentiment           *domain.Sentiment     `json:"sentiment"`
	SLAResponseDeadline time.Time             `json:"sla_response_deadline"`
	SLAResolveDeadline  time.Time             `json:"sla_resolve_deadline"`
	SLAResponseMet      domain.SLAOutcome     `json:"sla_response_met"`
	SLAResolveMet       domain.SLAOutcome     `json:"sla_resolve_met"`
	FirstResponseAt     *time.Time            `json:"first_response_at"`
	ResolvedAt          *time.Time            `json:"resolved_at"`
	ClosedAt            *time.Time            `json:"closed_at"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// PageMeta describes a paged listing.
type PageMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content    string `json:"content"`
	IsInternal bool   `json:"is_internal"`
}

// CommentResponse represents a thread message.
type CommentResponse struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	AuthorID   string    `json:"author_id"`
	Content    string    `json:"content"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
}

// TicketHistoryResponse is one audit trail entry.
type TicketHistoryResponse struct {
	ID        string              `json:"id"`
	Field     domain.HistoryField `json:"field"`
	ActorType domain.ActorType    `json:"actor_type"`
	ActorID   *string             `json:"actor_id"`
	OldValue  *string             `json:"old_value"`
	NewValue  *string             `json:"new_value"`
	CreatedAt time.Time           `json:"created_at"`
}
