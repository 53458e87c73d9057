package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// ticketRecorder writes history entries and publishes events for ticket changes.
type ticketRecorder struct {
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

func (r ticketRecorder) recordChange(ctx context.Context, ticketID string, actor events.Actor, field domain.HistoryField, oldValue, newValue *string) error {
	if r.history == nil {
		return nil
	}
	entry := &domain.TicketHistory{
		TicketID:  ticketID,
		ActorType: actor.Type,
		ActorID:   actor.UserID,
		Field:     field,
		OldValue:  oldValue,
		NewValue:  newValue,
		CreatedAt: r.clock.Now(),
	}
	if err := r.history.Create(ctx, entry); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func (r ticketRecorder) publishEvent(ctx context.Context, event events.Event) {
	if r.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = r.clock.Now()
	}
	_ = r.dispatcher.Publish(ctx, event)
}

func loadTicket(ctx context.Context, tickets repository.TicketRepository, ticketID string) (*domain.Ticket, error) {
	ticket, err := tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func loadUser(ctx context.Context, users repository.UserRepository, resource, userID string) (*domain.User, error) {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound(resource, map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

func strPtr[T ~string](v T) *string {
	s := string(v)
	return &s
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	runes := []rune(body)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
