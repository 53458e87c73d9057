package sla

import (
	"testing"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

var base = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

func TestComputeDeadlines(t *testing.T) {
	t.Parallel()

	d := ComputeDeadlines(base)
	if want := base.Add(time.Hour); !d.Response.Equal(want) {
		t.Fatalf("response = %v, want %v", d.Response, want)
	}
	if want := base.Add(24 * time.Hour); !d.Resolve.Equal(want) {
		t.Fatalf("resolve = %v, want %v", d.Resolve, want)
	}
}

func TestIsMet(t *testing.T) {
	t.Parallel()

	deadline := base.Add(time.Hour)
	tests := []struct {
		name  string
		event time.Time
		want  bool
	}{
		{"well before", base.Add(10 * time.Minute), true},
		{"exactly at deadline", deadline, true},
		{"one second late", deadline.Add(time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsMet(tt.event, deadline); got != tt.want {
				t.Fatalf("IsMet = %v, want %v", got, tt.want)
			}
		})
	}

	if got := Evaluate(base.Add(75*time.Minute), deadline); got != domain.SLAViolated {
		t.Fatalf("Evaluate late = %s", got)
	}
	if got := Evaluate(base.Add(30*time.Minute), deadline); got != domain.SLAMet {
		t.Fatalf("Evaluate on time = %s", got)
	}
}

func TestMinutes(t *testing.T) {
	t.Parallel()

	deadline := base.Add(time.Hour)
	tests := []struct {
		name        string
		now         time.Time
		wantUntil   int
		wantOverdue int
	}{
		{"29m30s left", deadline.Add(-(29*time.Minute + 30*time.Second)), 29, -30},
		{"at deadline", deadline, 0, 0},
		{"20s late", deadline.Add(20 * time.Second), -1, 0},
		{"5m late", deadline.Add(5 * time.Minute), -5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MinutesUntil(deadline, tt.now); got != tt.wantUntil {
				t.Errorf("MinutesUntil = %d, want %d", got, tt.wantUntil)
			}
			if got := MinutesOverdue(deadline, tt.now); got != tt.wantOverdue {
				t.Errorf("MinutesOverdue = %d, want %d", got, tt.wantOverdue)
			}
		})
	}
}

func TestWarningAndViolationAreDisjoint(t *testing.T) {
	t.Parallel()

	deadline := base.Add(time.Hour)
	for offset := -45 * time.Minute; offset <= 45*time.Minute; offset += 15 * time.Second {
		now := deadline.Add(offset)
		if InWarningWindow(deadline, now) && Violated(deadline, now) {
			t.Fatalf("deadline both warned and violated at offset %v", offset)
		}
	}
	if !InWarningWindow(deadline, deadline.Add(-30*time.Minute)) {
		t.Fatal("deadline exactly 30 minutes away should warn")
	}
	if InWarningWindow(deadline, deadline.Add(-31*time.Minute)) {
		t.Fatal("deadline 31 minutes away should not warn")
	}
	if !Violated(deadline, deadline.Add(time.Second)) {
		t.Fatal("passed deadline should be violated")
	}
}

func TestCanReopen(t *testing.T) {
	t.Parallel()

	closedAt := base
	tests := []struct {
		name     string
		closedAt *time.Time
		now      time.Time
		want     bool
	}{
		{"never closed", nil, base, false},
		{"two days later", &closedAt, base.Add(48 * time.Hour), true},
		{"exactly three days", &closedAt, base.Add(72 * time.Hour), true},
		{"three days and a second", &closedAt, base.Add(72*time.Hour + time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanReopen(tt.closedAt, tt.now); got != tt.want {
				t.Fatalf("CanReopen = %v, want %v", got, tt.want)
			}
		})
	}
}
