package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketWorkflow is the ticket lifecycle as seen by the HTTP layer.
type TicketWorkflow interface {
	CreateTicket(ctx context.Context, actor domain.Actor, input service.CreateTicketInput) (*domain.Ticket, error)
	ListTickets(ctx context.Context, actor domain.Actor, input service.ListTicketsInput) (*service.TicketPage, error)
	GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error)
	UpdateTicket(ctx context.Context, actor domain.Actor, ticketID string, patch service.TicketPatch) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, ticketID string, status domain.TicketStatus) (*domain.Ticket, error)
	Reopen(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error)
	AssignAgent(ctx context.Context, actor domain.Actor, ticketID, agentID string) (*domain.Ticket, error)
	AddComment(ctx context.Context, actor domain.Actor, ticketID string, input service.AddCommentInput) (*domain.TicketComment, error)
	ListComments(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketComment, error)
	ListHistory(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketHistory, error)
}

// TicketsHandler manages ticket endpoints for every role.
type TicketsHandler struct {
	service TicketWorkflow
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService TicketWorkflow) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), actor, service.CreateTicketInput{
		Title:            req.Title,
		Content:          req.Content,
		Priority:         req.Priority,
		CategoryID:       req.CategoryID,
		CustomerID:       req.CustomerID,
		AnalyzeSentiment: req.AnalyzeSentiment,
		AutoClassify:     req.AutoClassify,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListTickets(c.UserContext(), actor, parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, ticketResponse(&page.Items[i]))
	}
	return c.JSON(fiber.Map{"data": items, "meta": pageMeta(page)})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// UpdateTicket PATCH /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.UpdateTicket(c.UserContext(), actor, c.Params("id"), service.TicketPatch{
		Title:         req.Title,
		Content:       req.Content,
		Priority:      req.Priority,
		CategoryID:    req.CategoryID,
		ClearCategory: req.ClearCategory,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// UpdateStatus PATCH /api/tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	ticket, err := h.service.UpdateStatus(c.UserContext(), actor, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Reopen POST /api/tickets/:id/reopen.
func (h *TicketsHandler) Reopen(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Reopen(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// AssignAgent PATCH /api/tickets/:id/assign.
func (h *TicketsHandler) AssignAgent(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.AgentID) == "" {
		return apperrors.NewValidationError("agent_id required", nil)
	}
	ticket, err := h.service.AssignAgent(c.UserContext(), actor, c.Params("id"), req.AgentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// AddComment POST /api/tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.service.AddComment(c.UserContext(), actor, c.Params("id"), service.AddCommentInput{
		Content:    req.Content,
		IsInternal: req.IsInternal,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// ListComments GET /api/tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	comments, err := h.service.ListComments(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	resp := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		resp = append(resp, commentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// ListHistory GET /api/tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	history, err := h.service.ListHistory(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(history)})
}

// actorFrom returns the authenticated caller placed by auth.AuthMiddleware.
func actorFrom(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return domain.Actor{}, apperrors.NewUnauthorized("user required")
	}
	return principal.Actor(), nil
}

func parseTicketQuery(c *fiber.Ctx) service.ListTicketsInput {
	input := service.ListTicketsInput{
		CategoryID: optionalQuery(c, "category_id"),
		AgentID:    optionalQuery(c, "agent_id"),
		CustomerID: optionalQuery(c, "customer_id"),
		SearchTerm: optionalQuery(c, "search"),
		Page:       parseInt(c.Query("page"), 0),
		PageSize:   parseInt(c.Query("page_size"), 0),
	}
	for _, part := range splitList(c.Query("status")) {
		input.Statuses = append(input.Statuses, domain.TicketStatus(part))
	}
	for _, part := range splitList(c.Query("priority")) {
		input.Priorities = append(input.Priorities, domain.TicketPriority(part))
	}
	return input
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil
	}
	return &val
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func pageMeta(page *service.TicketPage) dto.PageMeta {
	meta := dto.PageMeta{Page: page.Page, PageSize: page.PageSize, Total: page.Total}
	if page.PageSize > 0 {
		meta.TotalPages = (page.Total + page.PageSize - 1) / page.PageSize
	}
	return meta
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:                  ticket.ID,
		Title:               ticket.Title,
		Content:             ticket.Content,
		Status:              ticket.Status,
		Priority:            ticket.Priority,
		CategoryID:          ticket.CategoryID,
		CustomerID:          ticket.CustomerID,
		AgentID:             ticket.AgentID,
		Sentiment:           ticket.Sentiment,
		SLAResponseDeadline: ticket.SLAResponseDeadline,
		SLAResolveDeadline:  ticket.SLAResolveDeadline,
		SLAResponseMet:      ticket.SLAResponseMet,
		SLAResolveMet:       ticket.SLAResolveMet,
		FirstResponseAt:     ticket.FirstResponseAt,
		ResolvedAt:          ticket.ResolvedAt,
		ClosedAt:            ticket.ClosedAt,
		CreatedAt:           ticket.CreatedAt,
		UpdatedAt:           ticket.UpdatedAt,
	}
}

func commentResponse(comment *domain.TicketComment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:         comment.ID,
		TicketID:   comment.TicketID,
		AuthorID:   comment.AuthorID,
		Content:    comment.Content,
		IsInternal: comment.IsInternal,
		CreatedAt:  comment.CreatedAt,
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:        entry.ID,
			Field:     entry.Field,
			ActorType: entry.ActorType,
			ActorID:   entry.ActorID,
			OldValue:  entry.OldValue,
			NewValue:  entry.NewValue,
			CreatedAt: entry.CreatedAt,
		})
	}
	return resp
}
