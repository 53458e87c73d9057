package repository

import (
	"context"
	"errors"
	"time"

	"github.com/guregu/null/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update writes the mutable attributes of a ticket in one statement and
	// reloads ticket from the stored row. agent_id changes only through
	// CompareAndSetAgent. SLAResolveMet is written only while the column is
	// still NULL, so the status change and the resolve verdict land together.
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
	CountActiveByAgent(ctx context.Context, agentID string) (int, error)
	ListActiveByAgent(ctx context.Context, agentID string) ([]domain.Ticket, error)
	// CompareAndSetAgent assigns agentID only while the ticket is still held by expected.
	CompareAndSetAgent(ctx context.Context, ticketID string, expected *string, agentID string, at time.Time) (bool, error)
	// MarkFirstResponse records the first response once; later calls report false.
	MarkFirstResponse(ctx context.Context, ticketID string, at time.Time, outcome domain.SLAOutcome) (bool, error)
	ListSLAAtRisk(ctx context.Context, window SLAWindow) ([]domain.Ticket, error)
	SearchSimilar(ctx context.Context, q SimilarQuery) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, content, status, priority, category_id, customer_id, agent_id, sentiment,
                             sla_response_deadline, sla_resolve_deadline, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Content,
		ticket.Status,
		ticket.Priority,
		ticket.CategoryID,
		ticket.CustomerID,
		ticket.AgentID,
		sentimentParam(ticket.Sentiment),
		ticket.SLAResponseDeadline,
		ticket.SLAResolveDeadline,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	).Scan(&ticket.ID)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	query := `
        UPDATE tickets SET title=$1, content=$2, status=$3, priority=$4, category_id=$5,
            sentiment=$6, resolved_at=$7, closed_at=$8, updated_at=$9,
            sla_resolve_met=COALESCE(sla_resolve_met, $10)
        WHERE id=$11
        RETURNING ` + ticketColumns
	stored, err := scanTicket(r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Content,
		ticket.Status,
		ticket.Priority,
		ticket.CategoryID,
		sentimentParam(ticket.Sentiment),
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.UpdatedAt,
		outcomeParam(ticket.SLAResolveMet),
		ticket.ID,
	))
	if err != nil {
		return err
	}
	*ticket = *stored
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	listQuery, countQuery, args := buildListQuery(filter)

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func (r *ticketRepository) CountActiveByAgent(ctx context.Context, agentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM tickets WHERE agent_id=$1 AND status IN ('open','in_progress')`
	var count int
	if err := r.pool.QueryRow(ctx, query, agentID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ticketRepository) ListActiveByAgent(ctx context.Context, agentID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE agent_id=$1 AND status IN ('open','in_progress') ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CompareAndSetAgent(ctx context.Context, ticketID string, expected *string, agentID string, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET agent_id=$1, updated_at=$2
        WHERE id=$3 AND agent_id IS NOT DISTINCT FROM $4::uuid`
	cmd, err := r.pool.Exec(ctx, query, agentID, at, ticketID, expected)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ticketRepository) MarkFirstResponse(ctx context.Context, ticketID string, at time.Time, outcome domain.SLAOutcome) (bool, error) {
	const query = `
        UPDATE tickets SET first_response_at=$1, sla_response_met=$2, updated_at=$1
        WHERE id=$3 AND first_response_at IS NULL AND sla_response_met IS NULL`
	cmd, err := r.pool.Exec(ctx, query, at, outcomeParam(outcome), ticketID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ticketRepository) ListSLAAtRisk(ctx context.Context, window SLAWindow) ([]domain.Ticket, error) {
	query, args, err := buildSLAQuery(window)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) SearchSimilar(ctx context.Context, q SimilarQuery) ([]domain.Ticket, error) {
	if len(q.Keywords) == 0 {
		return nil, errors.New("similar ticket search needs at least one keyword")
	}
	query, args := buildSimilarQuery(q)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket      domain.Ticket
		sentiment   null.String
		responseMet null.Bool
		resolveMet  null.Bool
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Content,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CategoryID,
		&ticket.CustomerID,
		&ticket.AgentID,
		&sentiment,
		&ticket.SLAResponseDeadline,
		&ticket.SLAResolveDeadline,
		&responseMet,
		&resolveMet,
		&ticket.FirstResponseAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ticket.Sentiment = sentimentFromColumn(sentiment)
	ticket.SLAResponseMet = outcomeFromColumn(responseMet)
	ticket.SLAResolveMet = outcomeFromColumn(resolveMet)
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
