package domain

// statusTransitions lists the moves a status update may perform.
// Leaving closed is only possible through a reopen.
var statusTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusInProgress, TicketStatusClosed},
	TicketStatusInProgress: {TicketStatusResolved, TicketStatusOpen},
	TicketStatusResolved:   {TicketStatusClosed, TicketStatusOpen},
	TicketStatusClosed:     {},
}

// CanTransition reports whether a status update may move a ticket from one status to another.
func CanTransition(from, to TicketStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s through a status update.
func NextStatuses(s TicketStatus) []TicketStatus {
	next := statusTransitions[s]
	out := make([]TicketStatus, len(next))
	copy(out, next)
	return out
}
