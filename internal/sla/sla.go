// Package sla computes service-level deadlines and verdicts. All functions
// are pure; callers pass the current instant explicitly.
package sla

import (
	"math"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const (
	// ResponseWindow is the time allowed until the first staff reply.
	ResponseWindow = time.Hour
	// ResolveWindow is the time allowed until the ticket is resolved.
	ResolveWindow = 24 * time.Hour
	// WarningLead is how far ahead of a deadline a warning is raised.
	WarningLead = 30 * time.Minute
	// ReopenWindow bounds how long after closing a ticket may be reopened.
	ReopenWindow = 72 * time.Hour
)

// Kind selects which of the two ticket SLAs is meant.
type Kind string

const (
	KindResponse Kind = "response"
	KindResolve  Kind = "resolve"
)

// Deadlines holds both SLA deadlines of a ticket.
type Deadlines struct {
	Response time.Time
	Resolve  time.Time
}

// ComputeDeadlines derives both deadlines from the creation instant.
func ComputeDeadlines(createdAt time.Time) Deadlines {
	return Deadlines{
		Response: createdAt.Add(ResponseWindow),
		Resolve:  createdAt.Add(ResolveWindow),
	}
}

// IsMet reports whether an event happened on or before its deadline.
func IsMet(eventTime, deadline time.Time) bool {
	return !eventTime.After(deadline)
}

// Evaluate turns an event time into an SLA verdict.
func Evaluate(eventTime, deadline time.Time) domain.SLAOutcome {
	return domain.OutcomeOf(IsMet(eventTime, deadline))
}

// MinutesUntil returns the whole minutes left before deadline, rounded down.
// The result is negative once the deadline has passed.
func MinutesUntil(deadline, now time.Time) int {
	return floorMinutes(deadline.Sub(now))
}

// MinutesOverdue returns the whole minutes elapsed since deadline, rounded down.
func MinutesOverdue(deadline, now time.Time) int {
	return floorMinutes(now.Sub(deadline))
}

// InWarningWindow reports whether deadline has not passed yet but falls within WarningLead of now.
func InWarningWindow(deadline, now time.Time) bool {
	return !deadline.Before(now) && !deadline.After(now.Add(WarningLead))
}

// Violated reports whether deadline has already passed at now.
func Violated(deadline, now time.Time) bool {
	return deadline.Before(now)
}

// CanReopen reports whether a ticket closed at closedAt may still be reopened.
func CanReopen(closedAt *time.Time, now time.Time) bool {
	if closedAt == nil {
		return false
	}
	return now.Sub(*closedAt) <= ReopenWindow
}

func floorMinutes(d time.Duration) int {
	return int(math.Floor(float64(d) / float64(time.Minute)))
}
