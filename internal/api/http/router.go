package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/marketplace-auth/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-auth/internal/auth"
	"github.com/spec-kit/marketplace-auth/internal/domain"
	"github.com/spec-kit/marketplace-auth/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
	RateLimiter    *IPRateLimiter
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	limited := cfg.RateLimiter.Handler()
	authGroup := app.Group("/auth")
	authGroup.Post("/register", limited, cfg.Auth.Register)
	authGroup.Post("/login", limited, cfg.Auth.Login)
	authGroup.Post("/refresh-token", cfg.Auth.Refresh)

	authenticate := cfg.AuthMiddleware.Handle
	authGroup.Get("/profile", authenticate, cfg.Auth.Profile)
	authGroup.Put("/profile", authenticate, cfg.Auth.UpdateProfile)
	authGroup.Delete("/users/:id", authenticate, auth.RequireRole(domain.RoleSuperadmin), cfg.Admin.DeleteAccount)

	admin := app.Group("/admin", authenticate)
	admin.Get("/users", auth.RequirePermission(domain.PermManageUsers), cfg.Admin.ListAccounts)
	admin.Put("/users/:id", auth.RequirePermission(domain.PermManageUsers), cfg.Admin.UpdateAccount)
	admin.Put("/users/:id/permissions", auth.RequirePermission(domain.PermManagePermissions), cfg.Admin.OverridePermissions)
	admin.Put("/promote/:id", auth.RequirePermission(domain.PermManageUsers), cfg.Admin.Promote)
	admin.Get("/audit-logs", auth.RequirePermission(domain.PermViewAnalytics), cfg.Admin.ListAuditLogs)
}
