package handler_test

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/doctoronline/teleclinic-api/internal/handler"
	"github.com/doctoronline/teleclinic-api/internal/service"
)

type mockSeedService struct {
	created   int64
	err       error
	lastToken string
	lastUsers []service.SeedUser
}

func (m *mockSeedService) SeedUsers(_ context.Context, token string, users []service.SeedUser) (int64, error) {
	m.lastToken = token
	m.lastUsers = users
	if m.err != nil {
		return 0, m.err
	}
	return m.created, nil
}

func newSeedApp(svc service.SeedService) *fiber.App {
	app := fiber.New()
	handler.NewSeedHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/seed"))
	return app
}

func TestSeedHandler_CreatesAccounts(t *testing.T) {
	svc := &mockSeedService{created: 2}
	app := newSeedApp(svc)

	req := jsonRequest(t, http.MethodPost, "/api/seed/users", fiber.Map{
		"users": []service.SeedUser{
			{Username: "budi", Password: "secret123", Name: "Budi"},
			{Username: "dr.gita", Password: "secret123", Name: "Gita", Role: "DOCTOR"},
		},
	})
	req.Header.Set("X-Seed-Token", "seed-secret")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "seed-secret", svc.lastToken)
	require.Len(t, svc.lastUsers, 2)

	var response struct {
		Data struct {
			Created int `json:"created"`
		} `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, 2, response.Data.Created)
}

func TestSeedHandler_DisabledLooksLikeMissingRoute(t *testing.T) {
	app := newSeedApp(&mockSeedService{err: service.ErrSeedDisabled})

	req := jsonRequest(t, http.MethodPost, "/api/seed/users", fiber.Map{"users": []service.SeedUser{}})
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSeedHandler_BadToken(t *testing.T) {
	app := newSeedApp(&mockSeedService{err: service.ErrSeedUnauthorized})

	req := jsonRequest(t, http.MethodPost, "/api/seed/users", fiber.Map{"users": []service.SeedUser{}})
	req.Header.Set("X-Seed-Token", "wrong")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
