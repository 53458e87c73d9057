package domain

import "time"

// TicketComment is a message in a ticket thread. Internal comments are
// visible to staff only.
type TicketComment struct {
	ID         string
	TicketID   string
	AuthorID   string
	Content    string
	IsInternal bool
	CreatedAt  time.Time
}
