package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/doctoronline/teleclinic-api/internal/dto"
	"github.com/doctoronline/teleclinic-api/internal/handler"
	"github.com/doctoronline/teleclinic-api/internal/service"
)

type mockAuthService struct {
	lastRequest dto.LoginRequest
	response    dto.LoginResponse
	err         error
}

func (m *mockAuthService) Login(_ context.Context, req dto.LoginRequest) (dto.LoginResponse, error) {
	m.lastRequest = req
	if m.err != nil {
		return dto.LoginResponse{}, m.err
	}
	return m.response, nil
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, target))
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAuthHandler_LoginSuccess(t *testing.T) {
	svc := &mockAuthService{response: dto.LoginResponse{
		Token: "signed-token",
		User:  dto.UserResponse{ID: 7, Username: "drhouse", Role: "DOCTOR"},
	}}
	app := fiber.New()
	handler.NewAuthHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/auth"))

	req := jsonRequest(t, http.MethodPost, "/api/auth/login", dto.LoginRequest{Username: "drhouse", Password: "vicodin"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Success bool              `json:"success"`
		Data    dto.LoginResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, "signed-token", response.Data.Token)
	require.Equal(t, "drhouse", svc.lastRequest.Username)
}

func TestAuthHandler_LoginBadCredentials(t *testing.T) {
	svc := &mockAuthService{err: service.ErrInvalidCredentials}
	app := fiber.New()
	handler.NewAuthHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/auth"))

	req := jsonRequest(t, http.MethodPost, "/api/auth/login", dto.LoginRequest{Username: "ghost", Password: "nope"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAuthHandler_LogoutIsStateless(t *testing.T) {
	app := fiber.New()
	handler.NewAuthHandler(&mockAuthService{}, zerolog.New(io.Discard)).Register(app.Group("/api/auth"))

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
