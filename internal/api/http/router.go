package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Agents         *handlers.AgentsHandler
	AI             *handlers.AIHandler
	SLA            *handlers.SLAHandler
	Metrics        *observability.Metrics
	AuthMiddleware fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))

	app.Post("/internal/sla/sweep", cfg.SLA.Sweep)

	api := app.Group("/api", cfg.AuthMiddleware)

	tickets := api.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Post("/:id/reopen", cfg.Tickets.Reopen)
	tickets.Patch("/:id/assign", auth.RequireStaff(), cfg.Tickets.AssignAgent)
	tickets.Get("/:id/comments", cfg.Tickets.ListComments)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)

	api.Patch("/agents/:id/presence", auth.RequireStaff(), cfg.Agents.UpdatePresence)

	aiGroup := api.Group("/ai")
	aiGroup.Post("/classify", cfg.AI.Classify)
	aiGroup.Post("/sentiment", cfg.AI.Sentiment)
	aiGroup.Post("/suggest", auth.RequireStaff(), cfg.AI.Suggest)
	aiGroup.Get("/similar", auth.RequireStaff(), cfg.AI.Similar)
}
