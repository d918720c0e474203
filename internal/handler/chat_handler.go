package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/doctoronline/teleclinic-api/internal/dto"
	"github.com/doctoronline/teleclinic-api/internal/middleware"
	"github.com/doctoronline/teleclinic-api/internal/service"
	"github.com/doctoronline/teleclinic-api/internal/utils"
)

// ChatHandler wires the chat REST endpoints and the websocket upgrade.
type ChatHandler struct {
	rooms   service.RoomService
	chat    service.ChatService
	uploads service.UploadService
	logger  zerolog.Logger
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(rooms service.RoomService, chat service.ChatService, uploads service.UploadService, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		rooms:   rooms,
		chat:    chat,
		uploads: uploads,
		logger:  logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds chat routes under the provided router group.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(h.handleConnection))

	router.Post("/chat-room/create", h.createRoom)
	router.Get("/chat-room/doctor/:doctorId", h.listDoctorRooms)
	router.Get("/chat-room/user/:patientId", h.listPatientRooms)
	router.Get("/messages/:roomId", h.history)
	router.Post("/messages", h.send)
	router.Put("/messages/read/:roomId/:senderId", h.markRead)
	router.Post("/upload", h.upload)
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	userID := uint(0)
	if id, ok := conn.Locals("user_id").(uint); ok {
		userID = id
	}
	role := fmt.Sprint(conn.Locals("user_role"))
	correlation := fmt.Sprint(conn.Locals("correlation_id"))
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.ChatConnectionOptions{
		UserID:        userID,
		Role:          role,
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Uint("user_id", userID).Msg("chat websocket connected")
	h.chat.ServeConnection(conn, opts)
	h.logger.Info().Uint("user_id", userID).Msg("chat websocket disconnected")
}

func (h *ChatHandler) createRoom(c *fiber.Ctx) error {
	var payload dto.CreateRoomRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	room, created, err := h.rooms.FindOrCreate(requestContext(c), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoomParticipantMissing):
			return utils.SendError(c, fiber.StatusNotFound, "participant not found")
		case errors.Is(err, service.ErrDoctorNotChatable):
			return utils.SendError(c, fiber.StatusBadRequest, "doctor is not available for chat")
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, "user_id and doctor_id are required")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to resolve chat room")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to create chat room")
		}
	}

	if created {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "chat room created", room)
	}
	return utils.SendSuccess(c, "chat room exists", room)
}

func (h *ChatHandler) listDoctorRooms(c *fiber.Ctx) error {
	doctorID, err := parseUintParam(c, "doctorId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid doctor id")
	}

	rooms, err := h.rooms.ListForDoctor(requestContext(c), doctorID)
	if err != nil {
		if errors.Is(err, service.ErrRoomParticipantMissing) {
			return utils.SendError(c, fiber.StatusNotFound, "doctor not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list doctor rooms")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list chat rooms")
	}

	return utils.SendSuccess(c, "chat rooms", rooms)
}

func (h *ChatHandler) listPatientRooms(c *fiber.Ctx) error {
	patientID, err := parseUintParam(c, "patientId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	rooms, err := h.rooms.ListForPatient(requestContext(c), patientID)
	if err != nil {
		if errors.Is(err, service.ErrRoomParticipantMissing) {
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list patient rooms")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list chat rooms")
	}

	return utils.SendSuccess(c, "chat rooms", rooms)
}

func (h *ChatHandler) history(c *fiber.Ctx) error {
	roomID := c.Params("roomId")
	if roomID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "room id required")
	}

	messages, err := h.chat.History(requestContext(c), roomID)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "chat room not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to fetch chat history")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch messages")
	}

	return utils.SendSuccess(c, "messages", messages)
}

func (h *ChatHandler) send(c *fiber.Ctx) error {
	var payload dto.ChatSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	// The REST path trusts the token, not the body, for the sender identity.
	payload.SenderID = userIDFromContext(c)
	payload.SenderRole = userRoleFromContext(c)

	message, err := h.chat.Send(requestContext(c), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRoomNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "chat room not found")
		case errors.Is(err, service.ErrMessageBodyRequired),
			errors.Is(err, service.ErrAttachmentRequired),
			errors.Is(err, service.ErrSenderRequired),
			isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to send chat message")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to send message")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *ChatHandler) markRead(c *fiber.Ctx) error {
	roomID := c.Params("roomId")
	if roomID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "room id required")
	}
	senderID, err := parseUintParam(c, "senderId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid sender id")
	}

	receiverID := userIDFromContext(c)
	result, err := h.chat.MarkRead(requestContext(c), roomID, senderID, receiverID)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to mark messages read")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to mark messages as read")
	}

	return utils.SendSuccess(c, "messages marked as read", result)
}

func (h *ChatHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	var owner *uint
	if id := userIDFromContext(c); id > 0 {
		owner = &id
	}

	response, err := h.uploads.Upload(requestContext(c), file, owner)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUploadTooLarge):
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "file exceeds the 10MB limit")
		case errors.Is(err, service.ErrUploadTypeNotAllowed):
			return utils.SendError(c, fiber.StatusBadRequest, "file type not allowed")
		case errors.Is(err, service.ErrUploadScanFailed):
			return utils.SendError(c, fiber.StatusBadRequest, "file failed validation")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to store upload")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to upload file")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "file uploaded", response)
}
