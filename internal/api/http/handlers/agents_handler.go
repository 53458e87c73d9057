package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// PresenceUpdater changes agent availability.
type PresenceUpdater interface {
	UpdatePresence(ctx context.Context, actor domain.Actor, agentID string, update service.PresenceUpdate) (*service.PresenceResult, error)
}

// AgentsHandler manages staff availability.
type AgentsHandler struct {
	assignment PresenceUpdater
}

func NewAgentsHandler(assignment PresenceUpdater) *AgentsHandler {
	return &AgentsHandler{assignment: assignment}
}

// UpdatePresence PATCH /api/agents/:id/presence. "me" addresses the caller.
func (h *AgentsHandler) UpdatePresence(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.PresenceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	agentID := c.Params("id")
	if agentID == "me" {
		agentID = actor.ID
	}

	result, err := h.assignment.UpdatePresence(c.UserContext(), actor, agentID, service.PresenceUpdate{
		IsOnline: req.IsOnline,
		IsAway:   req.IsAway,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.PresenceResponse{
		Agent:             agentResponse(result.Agent),
		ReassignedTickets: result.Reassigned,
	}})
}

func agentResponse(user *domain.User) dto.AgentResponse {
	return dto.AgentResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		IsOnline:  user.IsOnline,
		IsAway:    user.IsAway,
		UpdatedAt: user.UpdatedAt,
	}
}
