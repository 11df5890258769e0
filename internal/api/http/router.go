package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/registration-service/internal/api/http/handlers"
	"github.com/spec-kit/registration-service/internal/auth"
	"github.com/spec-kit/registration-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Users   *handlers.UsersHandler
	Session *auth.SessionMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/logout", cfg.Users.Logout)
	authGroup.Post("/password/reset/request", cfg.Users.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Users.ConfirmPasswordReset)

	authGroup.Post("/refresh",
		cfg.Session.RequireToken(domain.TokenTypeRefresh),
		cfg.Users.Refresh,
	)

	protected := authGroup.Group("",
		cfg.Session.RequireToken(domain.TokenTypeAccess),
		auth.RequireActive(),
	)
	protected.Get("/users/me", cfg.Users.Me)
	protected.Patch("/change_password", cfg.Users.ChangePassword)
	protected.Delete("/deactivate_user_account", cfg.Users.Deactivate)
}
