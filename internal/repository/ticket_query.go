package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const ticketColumns = `id, title, content, status, priority, category_id, customer_id, agent_id, sentiment,
               sla_response_deadline, sla_resolve_deadline, sla_response_met, sla_resolve_met,
               first_response_at, resolved_at, closed_at, created_at, updated_at`

// TicketFilter captures list parameters. Nil fields are not filtered on.
type TicketFilter struct {
	CustomerID  *string
	AgentID     *string
	CategoryID  *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// SLACheck selects one of the four sweep queries.
type SLACheck string

const (
	SLAApproachingResponse SLACheck = "approaching_response"
	SLAApproachingResolve  SLACheck = "approaching_resolve"
	SLAViolatedResponse    SLACheck = "violated_response"
	SLAViolatedResolve     SLACheck = "violated_resolve"
)

// SLAWindow parameterises a sweep query. Approaching checks match deadlines
// in [Now, Until]; violated checks match deadlines before Now.
type SLAWindow struct {
	Check SLACheck
	Now   time.Time
	Until time.Time
}

// SimilarQuery finds tickets sharing title keywords with a source ticket.
type SimilarQuery struct {
	ExcludeID string
	Keywords  []string
	Limit     int
}

func buildTicketFilter(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.AgentID != nil {
		args = append(args, *filter.AgentID)
		clauses = append(clauses, fmt.Sprintf("agent_id=$%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("category_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		args = append(args, containsPattern(*filter.SearchTerm))
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(title ILIKE %s OR content ILIKE %s)", placeholder, placeholder))
	}

	return strings.Join(clauses, " AND "), args
}

func buildListQuery(filter TicketFilter) (string, string, []any) {
	where, args := buildTicketFilter(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	list := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, id LIMIT %d OFFSET %d`,
		ticketColumns, where, limit, offset)
	count := fmt.Sprintf(`SELECT COUNT(*) FROM tickets WHERE %s`, where)
	return list, count, args
}

func buildSLAQuery(window SLAWindow) (string, []any, error) {
	var deadline, pending string
	switch window.Check {
	case SLAApproachingResponse, SLAViolatedResponse:
		deadline = "sla_response_deadline"
		pending = "first_response_at IS NULL AND sla_response_met IS NULL"
	case SLAApproachingResolve, SLAViolatedResolve:
		deadline = "sla_resolve_deadline"
		pending = "resolved_at IS NULL AND sla_resolve_met IS NULL"
	default:
		return "", nil, fmt.Errorf("unknown sla check %q", window.Check)
	}

	var (
		bound string
		args  []any
	)
	switch window.Check {
	case SLAApproachingResponse, SLAApproachingResolve:
		bound = fmt.Sprintf("%s >= $1 AND %s <= $2", deadline, deadline)
		args = []any{window.Now, window.Until}
	default:
		bound = fmt.Sprintf("%s < $1", deadline)
		args = []any{window.Now}
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets
        WHERE status IN ('open','in_progress') AND %s AND %s
        ORDER BY %s ASC`, ticketColumns, pending, bound, deadline)
	return query, args, nil
}

func buildSimilarQuery(q SimilarQuery) (string, []any) {
	args := []any{q.ExcludeID}
	matches := make([]string, 0, len(q.Keywords))
	for _, kw := range q.Keywords {
		args = append(args, containsPattern(kw))
		placeholder := fmt.Sprintf("$%d", len(args))
		matches = append(matches, fmt.Sprintf("title ILIKE %s OR content ILIKE %s", placeholder, placeholder))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets
        WHERE id <> $1 AND (%s)
        ORDER BY resolved_at DESC NULLS LAST, created_at DESC
        LIMIT %d`, ticketColumns, strings.Join(matches, " OR "), limit)
	return query, args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(term)) + "%"
}
