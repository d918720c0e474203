package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/doctoronline/teleclinic-api/internal/service"
	"github.com/doctoronline/teleclinic-api/internal/utils"
)

// SeedHandler exposes the token-guarded account seeding endpoint.
type SeedHandler struct {
	service service.SeedService
	logger  zerolog.Logger
}

// NewSeedHandler constructs a seed handler.
func NewSeedHandler(service service.SeedService, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		service: service,
		logger:  logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register wires seed routes.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/users", h.seedUsers)
}

func (h *SeedHandler) seedUsers(c *fiber.Ctx) error {
	var payload struct {
		Users []service.SeedUser `json:"users"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	token := c.Get("X-Seed-Token")
	created, err := h.service.SeedUsers(requestContext(c), token, payload.Users)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSeedDisabled):
			return utils.SendError(c, fiber.StatusNotFound, "not found")
		case errors.Is(err, service.ErrSeedUnauthorized):
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid seed token")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to seed users")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to seed users")
		}
	}

	return utils.SendSuccess(c, "users seeded", fiber.Map{"created": created})
}
