// Package notify delivers alert messages to people through pluggable sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Kind labels what a message is about.
type Kind string

const (
	KindSLAWarning     Kind = "sla_warning"
	KindSLAViolation   Kind = "sla_violation"
	KindTicketCreated  Kind = "ticket_created"
	KindTicketAssigned Kind = "ticket_assigned"
	KindStatusChanged  Kind = "ticket_status_changed"
)

// Message is one notification addressed to one recipient.
type Message struct {
	Kind           Kind   `json:"kind"`
	TicketID       string `json:"ticket_id"`
	RecipientID    string `json:"recipient_id"`
	RecipientName  string `json:"recipient_name,omitempty"`
	RecipientEmail string `json:"recipient_email,omitempty"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	Link           string `json:"link,omitempty"`
}

// Sink delivers messages to one channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}

// LogSink writes messages to the structured log. It always succeeds.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, msg Message) error {
	s.logger.Info("notification",
		zap.String("kind", string(msg.Kind)),
		zap.String("ticket_id", msg.TicketID),
		zap.String("recipient_id", msg.RecipientID),
		zap.String("recipient_email", msg.RecipientEmail),
		zap.String("subject", msg.Subject))
	return nil
}

// Fanout delivers every message to all sinks. Delivery counts as done when
// at least one sink accepted the message.
type Fanout struct {
	sinks  []Sink
	logger *zap.Logger
}

func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, logger: logger}
}

func (f *Fanout) Name() string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name()
	}
	return "fanout(" + strings.Join(names, ",") + ")"
}

func (f *Fanout) Deliver(ctx context.Context, msg Message) error {
	if len(f.sinks) == 0 {
		return errors.New("no notification sinks configured")
	}
	var (
		errs      []error
		delivered int
	)
	for _, sink := range f.sinks {
		if err := sink.Deliver(ctx, msg); err != nil {
			f.logger.Warn("notification sink failed",
				zap.String("sink", sink.Name()),
				zap.String("ticket_id", msg.TicketID),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return errors.Join(errs...)
	}
	return nil
}
