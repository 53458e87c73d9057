package domain

import "time"

// HistoryField names the ticket attribute a history entry describes.
type HistoryField string

const (
	HistoryFieldStatus   HistoryField = "status"
	HistoryFieldAgent    HistoryField = "agent"
	HistoryFieldPriority HistoryField = "priority"
	HistoryFieldCategory HistoryField = "category"
	HistoryFieldTitle    HistoryField = "title"
	HistoryFieldContent  HistoryField = "content"
)

// ActorType tells user-made changes apart from automatic ones.
type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID        string
	TicketID  string
	ActorType ActorType
	ActorID   *string
	Field     HistoryField
	OldValue  *string
	NewValue  *string
	CreatedAt time.Time
}
