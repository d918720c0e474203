package performance_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/doctoronline/teleclinic-api/internal/handler"
	"github.com/doctoronline/teleclinic-api/internal/middleware"
	"github.com/doctoronline/teleclinic-api/internal/models"
	"github.com/doctoronline/teleclinic-api/internal/repository"
	"github.com/doctoronline/teleclinic-api/internal/service"
)

type socketFrame struct {
	Event string          `json:"event"`
	AckID string          `json:"ack_id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func TestChatWebsocketRoundTripP95Under250ms(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.ChatRoom{}, &models.ChatRoomParticipant{}, &models.Message{}))

	room := models.ChatRoom{
		RoomID:  "room-perf",
		PairKey: "42:77",
		Participants: []models.ChatRoomParticipant{
			{UserID: 42, Role: models.RoleUser},
			{UserID: 77, Role: models.RoleDoctor},
		},
	}
	require.NoError(t, db.Create(&room).Error)

	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())
	roomRepo := repository.NewChatRoomRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	chatService := service.NewChatService(roomRepo, messageRepo, nil, "teleclinic-perf", nil, validate, logger)
	chatService.Start(context.Background())

	app := fiber.New()
	app.Use(middleware.CorrelationID())

	chatGroup := app.Group("/api/chat", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(42))
		c.Locals("user_role", models.RoleUser)
		return c.Next()
	})
	handler.NewChatHandler(nil, chatService, nil, logger).Register(chatGroup)

	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/chat/ws"
	clients := 100
	durations := make([]time.Duration, 0, clients)

	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}

	for i := 0; i < clients; i++ {
		conn, resp, err := dialer.Dial(url, http.Header{"X-Correlation-ID": {"perf-" + strconv.Itoa(i)}})
		require.NoError(t, err)
		if resp != nil {
			_ = resp.Body.Close()
		}

		start := time.Now()

		join, _ := json.Marshal(map[string]string{"room_id": "room-perf"})
		require.NoError(t, conn.WriteJSON(socketFrame{Event: "join_room", AckID: "join-" + strconv.Itoa(i), Data: join}))
		waitForEvent(t, conn, "ack")

		send, _ := json.Marshal(map[string]interface{}{
			"room_id":     "room-perf",
			"sender_id":   42,
			"sender_role": models.RoleUser,
			"message":     "ping " + strconv.Itoa(i),
		})
		require.NoError(t, conn.WriteJSON(socketFrame{Event: "send_message", Data: send}))
		waitForEvent(t, conn, "receive_message")

		durations = append(durations, time.Since(start))
		_ = conn.Close()
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	p95 := percentile(durations, 0.95)

	if p95 > 250*time.Millisecond {
		t.Fatalf("expected websocket P95 <= 250ms, got %s", p95)
	}
}

func waitForEvent(t *testing.T, conn *websocket.Conn, event string) socketFrame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))

	for {
		var frame socketFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("waiting for %s event: %v", event, err)
		}
		if frame.Event == event {
			return frame
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s event", event)
		}
	}
}

func percentile(values []time.Duration, pct float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	index := int(math.Ceil(pct*float64(len(values)))) - 1
	if index < 0 {
		index = 0
	}
	if index >= len(values) {
		index = len(values) - 1
	}
	return values[index]
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return "http://" + listener.Addr().String(), shutdown
}
