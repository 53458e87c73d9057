package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

type countingSweeper struct {
	runs atomic.Int32
	ran  chan struct{}
}

func (s *countingSweeper) RunSweep(ctx context.Context) service.SweepResult {
	s.runs.Add(1)
	s.ran <- struct{}{}
	return service.SweepResult{Errors: []string{"ticket t-1 response violation: boom"}}
}

func TestSLASweepWorker(t *testing.T) {
	fake := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	sweeper := &countingSweeper{ran: make(chan struct{}, 1)}
	ctx, cancel := context.WithCancel(context.Background())

	done := StartSLASweepWorker(ctx, sweeper, fake, SLASweepConfig{Interval: 15 * time.Minute, Timeout: time.Minute}, zap.NewNop())

	for i := 0; i < 2; i++ {
		fake.Advance(15 * time.Minute)
		select {
		case <-sweeper.ran:
		case <-time.After(2 * time.Second):
			t.Fatalf("sweep %d did not run", i+1)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	if got := sweeper.runs.Load(); got != 2 {
		t.Errorf("runs = %d, want 2", got)
	}
}

func TestSLASweepWorkerDisabled(t *testing.T) {
	done := StartSLASweepWorker(context.Background(), &countingSweeper{}, nil, SLASweepConfig{}, zap.NewNop())
	select {
	case <-done:
	default:
		t.Fatal("disabled worker should report done immediately")
	}
}

type stubRegistrar struct {
	calls      int
	subscribed []events.EventType
}

func (r *stubRegistrar) RegisterHandlers() []events.EventType {
	r.calls++
	return r.subscribed
}

func TestStartNotificationWorker(t *testing.T) {
	tests := []struct {
		name       string
		subscribed []events.EventType
		wantLevel  zapcore.Level
		wantMsg    string
	}{
		{
			name:       "subscribed",
			subscribed: []events.EventType{events.EventTicketCreated, events.EventTicketAssigned},
			wantLevel:  zapcore.InfoLevel,
			wantMsg:    "notification worker subscribed",
		},
		{
			name:      "no dispatcher",
			wantLevel: zapcore.WarnLevel,
			wantMsg:   "notification worker has no dispatcher; event notifications disabled",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			registrar := &stubRegistrar{subscribed: tc.subscribed}

			StartNotificationWorker(registrar, zap.New(core))

			if registrar.calls != 1 {
				t.Fatalf("RegisterHandlers called %d times, want 1", registrar.calls)
			}
			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("got %d log entries, want 1", len(entries))
			}
			if entries[0].Level != tc.wantLevel || entries[0].Message != tc.wantMsg {
				t.Fatalf("log = %v %q", entries[0].Level, entries[0].Message)
			}
		})
	}
}
