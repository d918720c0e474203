package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/doctoronline/teleclinic-api/internal/dto"
	"github.com/doctoronline/teleclinic-api/internal/middleware"
	"github.com/doctoronline/teleclinic-api/internal/models"
	"github.com/doctoronline/teleclinic-api/internal/service"
	"github.com/doctoronline/teleclinic-api/internal/utils"
)

// DoctorHandler manages the doctor directory and profile endpoints.
type DoctorHandler struct {
	service service.DoctorService
	logger  zerolog.Logger
}

// NewDoctorHandler constructs a doctor handler.
func NewDoctorHandler(service service.DoctorService, logger zerolog.Logger) *DoctorHandler {
	return &DoctorHandler{
		service: service,
		logger:  logger.With().Str("component", "doctor_handler").Logger(),
	}
}

// Register wires the directory routes. Static paths bind before the :id
// wildcard; profile and admin routes additionally require a valid token.
func (h *DoctorHandler) Register(router fiber.Router, jwt fiber.Handler) {
	router.Get("", h.list)
	router.Get("/meta/specializations", h.specializations)
	router.Get("/meta/departments", h.departments)
	router.Get("/profile/me", jwt, middleware.RequireRole(models.RoleDoctor), h.myProfile)
	router.Post("/profile", jwt, middleware.RequireRole(models.RoleDoctor), h.createProfile)
	router.Put("/profile", jwt, middleware.RequireRole(models.RoleDoctor), h.updateProfile)
	router.Get("/admin/pending", jwt, middleware.RequireRole(models.RoleAdmin), h.listPending)
	router.Put("/admin/:id/verify", jwt, middleware.RequireRole(models.RoleAdmin), h.verify)
	router.Get("/:id", h.get)
	router.Post("/:id/rate", jwt, h.rate)
}

func (h *DoctorHandler) list(c *fiber.Ctx) error {
	var query dto.DoctorListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	page, err := h.service.List(requestContext(c), query)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list doctors")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list doctors")
	}

	return utils.SendSuccess(c, "doctors", page)
}

func (h *DoctorHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid doctor id")
	}

	doctor, err := h.service.Get(requestContext(c), id, true)
	if err != nil {
		if errors.Is(err, service.ErrDoctorNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "doctor not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to fetch doctor")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch doctor")
	}

	return utils.SendSuccess(c, "doctor", doctor)
}

func (h *DoctorHandler) myProfile(c *fiber.Ctx) error {
	profile, err := h.service.GetProfile(requestContext(c), userIDFromContext(c))
	if err != nil {
		if errors.Is(err, service.ErrDoctorNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "doctor profile not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to fetch doctor profile")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch profile")
	}

	return utils.SendSuccess(c, "doctor profile", profile)
}

func (h *DoctorHandler) createProfile(c *fiber.Ctx) error {
	var payload dto.DoctorCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	profile, err := h.service.CreateProfile(requestContext(c), userIDFromContext(c), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDoctorConflict):
			return utils.SendError(c, fiber.StatusConflict, "a profile with this email or license already exists")
		case errors.Is(err, service.ErrNotDoctorAccount):
			return utils.SendError(c, fiber.StatusForbidden, "account is not a doctor account")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to create doctor profile")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to create profile")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "doctor profile created", profile)
}

func (h *DoctorHandler) updateProfile(c *fiber.Ctx) error {
	var payload dto.DoctorUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	profile, err := h.service.UpdateProfile(requestContext(c), userIDFromContext(c), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDoctorNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "doctor profile not found")
		case errors.Is(err, service.ErrDoctorConflict):
			return utils.SendError(c, fiber.StatusConflict, "a profile with this email already exists")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to update doctor profile")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to update profile")
		}
	}

	return utils.SendSuccess(c, "doctor profile updated", profile)
}

func (h *DoctorHandler) rate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid doctor id")
	}

	var payload dto.DoctorRateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	rating, err := h.service.Rate(requestContext(c), id, payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDoctorNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "doctor not found")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, "rating must be between 1 and 5")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to rate doctor")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to rate doctor")
		}
	}

	return utils.SendSuccess(c, "rating recorded", rating)
}

func (h *DoctorHandler) listPending(c *fiber.Ctx) error {
	doctors, err := h.service.ListPending(requestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list pending doctors")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list pending doctors")
	}
	return utils.SendSuccess(c, "pending doctors", doctors)
}

func (h *DoctorHandler) verify(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid doctor id")
	}

	var payload dto.DoctorVerifyRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	doctor, err := h.service.Verify(requestContext(c), id, payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDoctorNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "doctor not found")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, "status must be VERIFIED or REJECTED")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to verify doctor")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to verify doctor")
		}
	}

	return utils.SendSuccess(c, "doctor verification updated", doctor)
}

func (h *DoctorHandler) specializations(c *fiber.Ctx) error {
	values, err := h.service.Specializations(requestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list specializations")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list specializations")
	}
	return utils.SendSuccess(c, "specializations", values)
}

func (h *DoctorHandler) departments(c *fiber.Ctx) error {
	values, err := h.service.Departments(requestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list departments")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list departments")
	}
	return utils.SendSuccess(c, "departments", values)
}
