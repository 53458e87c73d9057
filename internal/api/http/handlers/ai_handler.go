package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/access"
	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// Triage is the AI assistance offered to ticket authors and agents.
type Triage interface {
	ClassifyCategory(ctx context.Context, title, content string) service.CategoryClassification
	AnalyzeSentiment(ctx context.Context, content string) service.SentimentAnalysis
	GenerateResponse(ctx context.Context, actor domain.Actor, ticketID string, opts service.GenerateOptions) (*service.AnswerDraft, error)
	FindSimilarTickets(ctx context.Context, actor domain.Actor, ticketID string, limit int) ([]service.SimilarTicket, error)
}

// AIHandler exposes triage endpoints.
type AIHandler struct {
	triage Triage
}

func NewAIHandler(triage Triage) *AIHandler {
	return &AIHandler{triage: triage}
}

// Classify POST /api/ai/classify.
func (h *AIHandler) Classify(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := access.Check(actor.Role, access.UseTriage).Err(); err != nil {
		return err
	}
	var req dto.ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		return apperrors.NewValidationError("title and content required", nil)
	}

	result := h.triage.ClassifyCategory(c.UserContext(), req.Title, req.Content)
	return c.JSON(fiber.Map{"data": dto.ClassificationResponse{
		CategoryID:   result.CategoryID,
		CategoryName: result.CategoryName,
		Confidence:   result.Confidence,
		Reason:       result.Reason,
	}})
}

// Sentiment POST /api/ai/sentiment.
func (h *AIHandler) Sentiment(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := access.Check(actor.Role, access.UseTriage).Err(); err != nil {
		return err
	}
	var req dto.SentimentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Content) == "" {
		return apperrors.NewValidationError("content required", nil)
	}

	result := h.triage.AnalyzeSentiment(c.UserContext(), req.Content)
	return c.JSON(fiber.Map{"data": dto.SentimentResponse{
		Sentiment:  result.Sentiment,
		Confidence: result.Confidence,
		Reason:     result.Reason,
	}})
}

// Suggest POST /api/ai/suggest drafts an answer for a ticket.
func (h *AIHandler) Suggest(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.SuggestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.TicketID) == "" {
		return apperrors.NewValidationError("ticket_id required", nil)
	}
	if req.MaxTokens < 0 {
		return apperrors.NewValidationError("max_tokens must be positive", nil)
	}
	useCustom := true
	if req.UseCustomPrompt != nil {
		useCustom = *req.UseCustomPrompt
	}

	draft, err := h.triage.GenerateResponse(c.UserContext(), actor, req.TicketID, service.GenerateOptions{
		UseCustomPrompt: useCustom,
		Temperature:     req.Temperature,
		MaxTokens:       req.MaxTokens,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SuggestionResponse{
		Response:          draft.Response,
		UsedKnowledgeBase: draft.UsedKnowledgeBase,
		KBEntriesUsed:     draft.KBEntriesUsed,
	}})
}

// Similar GET /api/ai/similar?ticketId=&limit=.
func (h *AIHandler) Similar(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticketID := c.Query("ticketId")
	if ticketID == "" {
		ticketID = c.Query("ticket_id")
	}
	if strings.TrimSpace(ticketID) == "" {
		return apperrors.NewValidationError("ticketId required", nil)
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return apperrors.NewValidationError("limit must be a number between 1 and 20", map[string]any{"limit": raw})
		}
		limit = parsed
		if limit == 0 {
			return apperrors.NewValidationError("limit must be a number between 1 and 20", map[string]any{"limit": raw})
		}
	}

	similar, err := h.triage.FindSimilarTickets(c.UserContext(), actor, ticketID, limit)
	if err != nil {
		return err
	}
	items := make([]dto.SimilarTicketResponse, 0, len(similar))
	for _, s := range similar {
		items = append(items, dto.SimilarTicketResponse{
			ID:         s.ID,
			Title:      s.Title,
			Status:     s.Status,
			CreatedAt:  s.CreatedAt,
			ResolvedAt: s.ResolvedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items, "count": len(items)})
}
