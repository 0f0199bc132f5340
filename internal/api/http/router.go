package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/employee-portal/internal/api/http/handlers"
	"github.com/spec-kit/employee-portal/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Employees *handlers.EmployeeHandler
	// Firewall guards every route registered after the probes.
	Firewall fiber.Handler
	Metrics  *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	app.Use(cfg.Firewall)

	h := cfg.Employees
	app.Get("/", func(c *fiber.Ctx) error { return c.Redirect("/bienvenue") })
	app.Get("/bienvenue", h.Welcome)
	app.Get("/connexion", h.LoginForm)
	app.Get("/deconnexion", h.Logout)
	app.Get("/2fa", h.TwoFactor)
	app.Get("/2fa/qrcode", h.QRCode)
	app.Get("/inscription", h.Register)
	app.Post("/inscription", h.Register)

	employees := app.Group("/employes")
	employees.Get("/", h.List)
	employees.Get("/:id", h.View)
	employees.Get("/:id/supprimer", h.Delete)
	employees.Get("/:id/editer", h.Edit)
	employees.Post("/:id/editer", h.Edit)
}
