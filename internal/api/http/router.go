package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/lead-intake-service/internal/api/http/handlers"
	"github.com/spec-kit/lead-intake-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Buyers         *handlers.BuyersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.AuthMiddleware.Handle, cfg.Auth.Logout)

	buyers := app.Group("/buyers", cfg.AuthMiddleware.Handle)
	buyers.Post("", cfg.Buyers.CreateBuyer)
	buyers.Get("", cfg.Buyers.ListBuyers)
	buyers.Get("/:id", cfg.Buyers.GetBuyer)
	buyers.Put("/:id", cfg.Buyers.UpdateBuyer)
	buyers.Delete("/:id", cfg.Buyers.DeleteBuyer)
	buyers.Get("/:id/history", cfg.Buyers.ListHistory)
}
