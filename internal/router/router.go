package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/doctoronline/teleclinic-api/internal/config"
	"github.com/doctoronline/teleclinic-api/internal/handler"
	"github.com/doctoronline/teleclinic-api/internal/middleware"
	"github.com/doctoronline/teleclinic-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler   *handler.AuthHandler
	UserHandler   *handler.UserHandler
	DoctorHandler *handler.DoctorHandler
	ChatHandler   *handler.ChatHandler
	SeedHandler   *handler.SeedHandler
	JWTMiddleware fiber.Handler
	UploadDir     string
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	if deps.UploadDir != "" {
		app.Static("/uploads", deps.UploadDir)
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(api.Group("/auth", middleware.RateLimit("auth", 20, time.Minute)))
	}

	if deps.UserHandler != nil {
		deps.UserHandler.Register(api.Group("/users", jwtMiddleware))
	}

	if deps.DoctorHandler != nil {
		deps.DoctorHandler.Register(api.Group("/doctors"), jwtMiddleware)
	}

	if deps.ChatHandler != nil {
		deps.ChatHandler.Register(api.Group("/chat", jwtMiddleware))
	}

	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(api.Group("/seed", middleware.RateLimit("seed", 5, time.Minute)))
	}
}
