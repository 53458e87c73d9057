package repository

import (
	"context"
	"fmt"

	"github.com/guregu/null/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketHistoryRepository is append-only: entries are never updated or deleted.
type TicketHistoryRepository interface {
	Create(ctx context.Context, entry *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

const insertHistorySQL = `
INSERT INTO ticket_history (ticket_id, actor_type, actor_id, field, old_value, new_value, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`

func (r *ticketHistoryRepository) Create(ctx context.Context, entry *domain.TicketHistory) error {
	err := r.pool.QueryRow(ctx, insertHistorySQL,
		entry.TicketID,
		string(entry.ActorType),
		null.StringFromPtr(entry.ActorID),
		string(entry.Field),
		null.StringFromPtr(entry.OldValue),
		null.StringFromPtr(entry.NewValue),
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("insert %s history for ticket %s: %w", entry.Field, entry.TicketID, err)
	}
	return nil
}

const listHistorySQL = `
SELECT id, ticket_id, actor_type, actor_id, field, old_value, new_value, created_at
FROM ticket_history
WHERE ticket_id = $1
ORDER BY created_at, id`

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	rows, err := r.pool.Query(ctx, listHistorySQL, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanHistory)
}

func scanHistory(row pgx.CollectableRow) (domain.TicketHistory, error) {
	var (
		entry                      domain.TicketHistory
		actorType, field           string
		actorID, oldValue, newValue null.String
	)
	err := row.Scan(&entry.ID, &entry.TicketID, &actorType, &actorID, &field, &oldValue, &newValue, &entry.CreatedAt)
	if err != nil {
		return entry, err
	}
	entry.ActorType = domain.ActorType(actorType)
	entry.Field = domain.HistoryField(field)
	entry.ActorID = actorID.Ptr()
	entry.OldValue = oldValue.Ptr()
	entry.NewValue = newValue.Ptr()
	return entry, nil
}
