package handlers

import (
	"context"
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// Sweeper runs one SLA pass.
type Sweeper interface {
	RunSweep(ctx context.Context) service.SweepResult
}

// SLAHandler triggers sweeps for an external scheduler.
type SLAHandler struct {
	sweeper    Sweeper
	cronSecret string
}

// NewSLAHandler returns a handler. An empty secret leaves the endpoint open.
func NewSLAHandler(sweeper Sweeper, cronSecret string) *SLAHandler {
	return &SLAHandler{sweeper: sweeper, cronSecret: cronSecret}
}

// Sweep POST /internal/sla/sweep.
func (h *SLAHandler) Sweep(c *fiber.Ctx) error {
	if h.cronSecret != "" {
		token, err := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return err
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.cronSecret)) != 1 {
			return apperrors.NewUnauthorized("invalid cron secret")
		}
	}
	result := h.sweeper.RunSweep(c.UserContext())
	return c.JSON(fiber.Map{"success": true, "data": result})
}
