package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether s is one of the known statuses.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Active reports whether a ticket in this status counts towards an agent's load.
func (s TicketStatus) Active() bool {
	return s == TicketStatusOpen || s == TicketStatusInProgress
}

// TicketPriority enumerates ticket urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Sentiment is the tone detected in a customer's text.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ParseSentiment normalises free-form model output; anything unrecognised is neutral.
func ParseSentiment(raw string) Sentiment {
	switch s := Sentiment(strings.ToLower(strings.TrimSpace(raw))); s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return s
	}
	return SentimentNeutral
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID         string
	Title      string
	Content    string
	Status     TicketStatus
	Priority   TicketPriority
	CategoryID *string
	CustomerID string
	AgentID    *string
	Sentiment  *Sentiment

	SLAResponseDeadline time.Time
	SLAResolveDeadline  time.Time
	SLAResponseMet      SLAOutcome
	SLAResolveMet       SLAOutcome

	FirstResponseAt *time.Time
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AssignedTo reports whether agentID currently owns the ticket.
func (t Ticket) AssignedTo(agentID string) bool {
	return t.AgentID != nil && *t.AgentID == agentID
}
