package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/doctoronline/teleclinic-api/internal/config"
	"github.com/doctoronline/teleclinic-api/internal/dto"
	"github.com/doctoronline/teleclinic-api/internal/handler"
	"github.com/doctoronline/teleclinic-api/internal/middleware"
	"github.com/doctoronline/teleclinic-api/internal/models"
	"github.com/doctoronline/teleclinic-api/internal/repository"
	"github.com/doctoronline/teleclinic-api/internal/router"
	"github.com/doctoronline/teleclinic-api/internal/service"
)

type integrationStorage struct{}

func (integrationStorage) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	return "https://files.test/" + name, nil
}

// identity is mutated between requests to impersonate different accounts.
type identity struct {
	UserID uint
	Role   string
}

func setupChatApp(t *testing.T) (*fiber.App, *gorm.DB, *identity) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Doctor{},
		&models.ChatRoom{},
		&models.ChatRoomParticipant{},
		&models.Message{},
		&models.UploadRecord{},
	))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	userRepo := repository.NewUserRepository(db)
	doctorRepo := repository.NewDoctorRepository(db)
	roomRepo := repository.NewChatRoomRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	uploadRepo := repository.NewUploadRepository(db)

	userService := service.NewUserService(userRepo, doctorRepo, validate, logger)
	doctorService := service.NewDoctorService(doctorRepo, userRepo, validate, logger)
	roomService := service.NewRoomService(roomRepo, userRepo, doctorRepo, validate, logger)
	chatService := service.NewChatService(roomRepo, messageRepo, nil, "teleclinic-test", nil, validate, logger)
	uploadService := service.NewUploadService(integrationStorage{}, uploadRepo, 5, logger)

	who := &identity{}

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})

	router.Register(app, config.Config{AppName: "Teleclinic Test", JWTSecret: "secret"}, router.Dependencies{
		UserHandler:   handler.NewUserHandler(userService, logger),
		DoctorHandler: handler.NewDoctorHandler(doctorService, logger),
		ChatHandler:   handler.NewChatHandler(roomService, chatService, uploadService, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", who.UserID)
			c.Locals("user_role", who.Role)
			return c.Next()
		},
	})

	return app, db, who
}

func decode[T any](t *testing.T, resp *http.Response, target *T) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target))
}

func jsonReq(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestDoctorPatientChatEndToEnd(t *testing.T) {
	app, db, who := setupChatApp(t)

	admin := models.User{Username: "admin", Name: "Admin", Role: models.RoleAdmin}
	patient := models.User{Username: "budi", Name: "Budi", Role: models.RoleUser}
	doctorUser := models.User{Username: "dr.gita", Name: "Gita", Role: models.RoleDoctor}
	require.NoError(t, db.Create(&admin).Error)
	require.NoError(t, db.Create(&patient).Error)
	require.NoError(t, db.Create(&doctorUser).Error)

	// Step 1: doctor submits a profile
	who.UserID, who.Role = doctorUser.ID, models.RoleDoctor
	resp, err := app.Test(jsonReq(t, http.MethodPost, "/api/doctors/profile", dto.DoctorCreateRequest{
		FullName:             "Dr. Gita Puspita",
		Email:                "gita@example.com",
		Phone:                "0811111",
		MedicalLicenseNumber: "LIC-123",
		Specializations:      []string{"cardiology"},
		Department:           "cardiology",
		HospitalName:         "RS Medika",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var profileResp struct {
		Success bool               `json:"success"`
		Data    dto.DoctorResponse `json:"data"`
	}
	decode(t, resp, &profileResp)
	require.True(t, profileResp.Success)
	require.Equal(t, models.VerificationPending, profileResp.Data.VerificationStatus)

	// Unverified doctors are not chatable yet
	who.UserID, who.Role = patient.ID, models.RoleUser
	resp, err = app.Test(jsonReq(t, http.MethodPost, "/api/chat/chat-room/create", dto.CreateRoomRequest{
		UserID:   patient.ID,
		DoctorID: doctorUser.ID,
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// Step 2: admin approves the profile
	who.UserID, who.Role = admin.ID, models.RoleAdmin
	resp, err = app.Test(jsonReq(t, http.MethodPut, "/api/doctors/admin/"+strconv.Itoa(int(profileResp.Data.ID))+"/verify", dto.DoctorVerifyRequest{Status: "VERIFIED"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Step 3: patient discovers the doctor in the chatable directory
	who.UserID, who.Role = patient.ID, models.RoleUser
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/users/chatable", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var chatableResp struct {
		Data []dto.ChatableDoctorResponse `json:"data"`
	}
	decode(t, resp, &chatableResp)
	require.Len(t, chatableResp.Data, 1)
	require.Equal(t, doctorUser.ID, chatableResp.Data[0].UserID)

	// Step 4: patient opens a room; repeating the call returns the same room
	resp, err = app.Test(jsonReq(t, http.MethodPost, "/api/chat/chat-room/create", dto.CreateRoomRequest{
		UserID:   patient.ID,
		DoctorID: doctorUser.ID,
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var roomResp struct {
		Data dto.CreateRoomResponse `json:"data"`
	}
	decode(t, resp, &roomResp)
	roomID := roomResp.Data.RoomID
	require.NotEmpty(t, roomID)

	resp, err = app.Test(jsonReq(t, http.MethodPost, "/api/chat/chat-room/create", dto.CreateRoomRequest{
		UserID:   patient.ID,
		DoctorID: doctorUser.ID,
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var sameRoomResp struct {
		Data dto.CreateRoomResponse `json:"data"`
	}
	decode(t, resp, &sameRoomResp)
	require.Equal(t, roomID, sameRoomResp.Data.RoomID)

	// Step 5: patient sends a message
	resp, err = app.Test(jsonReq(t, http.MethodPost, "/api/chat/messages", dto.ChatSendRequest{
		RoomID:  roomID,
		Message: "Good morning doctor",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var sendResp struct {
		Data dto.MessageResponse `json:"data"`
	}
	decode(t, resp, &sendResp)
	require.Equal(t, patient.ID, sendResp.Data.SenderID)
	require.NotNil(t, sendResp.Data.ReceiverID)
	require.Equal(t, doctorUser.ID, *sendResp.Data.ReceiverID)

	// Step 6: patient uploads an attachment and sends it
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	file, err := writer.CreateFormFile("file", "scan.pdf")
	require.NoError(t, err)
	_, err = file.Write([]byte("%PDF-1.4 test"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	uploadReq := httptest.NewRequest(http.MethodPost, "/api/chat/upload", buf)
	uploadReq.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err = app.Test(uploadReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var uploadResp struct {
		Data dto.UploadResponse `json:"data"`
	}
	decode(t, resp, &uploadResp)
	require.Equal(t, "scan.pdf", uploadResp.Data.FileName)
	require.Equal(t, "file", uploadResp.Data.MessageType)

	resp, err = app.Test(jsonReq(t, http.MethodPost, "/api/chat/messages", dto.ChatSendRequest{
		RoomID:      roomID,
		MessageType: uploadResp.Data.MessageType,
		FileURL:     uploadResp.Data.FileURL,
		FileName:    uploadResp.Data.FileName,
		FileSize:    uploadResp.Data.FileSize,
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// Step 7: doctor reads the history and marks the thread read
	who.UserID, who.Role = doctorUser.ID, models.RoleDoctor
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/chat/messages/"+roomID, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var historyResp struct {
		Data []dto.MessageResponse `json:"data"`
	}
	decode(t, resp, &historyResp)
	require.Len(t, historyResp.Data, 2)
	require.Equal(t, "Good morning doctor", historyResp.Data[0].Message)

	resp, err = app.Test(httptest.NewRequest(http.MethodPut, "/api/chat/messages/read/"+roomID+"/"+strconv.Itoa(int(patient.ID)), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var markResp struct {
		Data dto.MarkReadResponse `json:"data"`
	}
	decode(t, resp, &markResp)
	require.Equal(t, int64(2), markResp.Data.ModifiedCount)

	// Step 8: the doctor's room list carries the attachment preview
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/chat/chat-room/doctor/"+strconv.Itoa(int(doctorUser.ID)), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var roomsResp struct {
		Data []dto.ChatRoomResponse `json:"data"`
	}
	decode(t, resp, &roomsResp)
	require.Len(t, roomsResp.Data, 1)
	require.Equal(t, "📎 scan.pdf", roomsResp.Data[0].LastMessage)
}
