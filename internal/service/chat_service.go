package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/doctoronline/teleclinic-api/internal/dto"
	"github.com/doctoronline/teleclinic-api/internal/models"
	"github.com/doctoronline/teleclinic-api/internal/observability"
	"github.com/doctoronline/teleclinic-api/internal/repository"
)

const (
	chatRedisTTL       = 30 * time.Minute
	chatSendBufferSize = 32
)

// Socket event names. Inbound events arrive wrapped in a socketEnvelope;
// outbound deliveries reuse the same wrapper.
const (
	EventJoinRoom       = "join_room"
	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"
	EventAck            = "ack"
)

var (
	// ErrSenderRequired indicates the socket payload omitted the sender identity.
	ErrSenderRequired = errors.New("sender_id and sender_role are required")
	// ErrMessageBodyRequired indicates a text message with no body.
	ErrMessageBodyRequired = errors.New("message body is required for text messages")
	// ErrAttachmentRequired indicates an image or file message without file fields.
	ErrAttachmentRequired = errors.New("file_url and file_name are required for attachment messages")
)

// ChatConnectionOptions wraps metadata extracted during the HTTP upgrade.
type ChatConnectionOptions struct {
	UserID        uint
	Role          string
	CorrelationID string
	Context       context.Context
}

// ChatService validates, persists, and fans out chat messages. The REST
// endpoint and the websocket gateway share one delivery path; only socket
// deliveries are broadcast to subscribers.
type ChatService interface {
	Send(ctx context.Context, req dto.ChatSendRequest) (dto.MessageResponse, error)
	History(ctx context.Context, roomID string) ([]dto.MessageResponse, error)
	MarkRead(ctx context.Context, roomID string, senderID, receiverID uint) (dto.MarkReadResponse, error)
	ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions)
	Start(ctx context.Context)
}

type chatService struct {
	rooms       repository.ChatRoomRepository
	messages    repository.MessageRepository
	redis       *redis.Client
	redisStream string
	redisCache  string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	hub         *chatHub
	nodeID      string
}

// chatHub tracks active websocket clients per room. A client may join any
// number of rooms over the lifetime of its connection.
type chatHub struct {
	mu    sync.RWMutex
	rooms map[string]map[*chatClient]struct{}
	log   zerolog.Logger
}

type chatClient struct {
	conn    *websocket.Conn
	send    chan socketEnvelope
	options ChatConnectionOptions
	service *chatService
	closed  chan struct{}
	once    sync.Once
	baseCtx context.Context

	mu     sync.Mutex
	joined map[string]struct{}
}

// socketEnvelope is the wire framing for the websocket protocol. AckID is
// echoed back verbatim when present; a payload without one is fire-and-forget.
type socketEnvelope struct {
	Event string          `json:"event"`
	AckID string          `json:"ack_id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type joinRoomPayload struct {
	RoomID string `json:"room_id"`
}

type ackPayload struct {
	Success bool                 `json:"success"`
	Error   string               `json:"error,omitempty"`
	Message *dto.MessageResponse `json:"message,omitempty"`
}

type chatEvent struct {
	Source  string              `json:"source"`
	Message dto.MessageResponse `json:"message"`
	SentAt  time.Time           `json:"sent_at"`
}

// NewChatService creates the chat delivery service.
func NewChatService(rooms repository.ChatRoomRepository, messages repository.MessageRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) ChatService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	hub := &chatHub{
		rooms: make(map[string]map[*chatClient]struct{}),
		log:   logger.With().Str("component", "chat_hub").Logger(),
	}

	streamChannel := ""
	cachePrefix := ""
	natsSubject := ""
	if channelBase != "" {
		streamChannel = channelBase + ":chat"
		cachePrefix = channelBase + ":chat:last"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".chat"
	}

	return &chatService{
		rooms:       rooms,
		messages:    messages,
		redis:       redisClient,
		redisStream: streamChannel,
		redisCache:  cachePrefix,
		nats:        natsConn,
		natsSubject: natsSubject,
		validator:   validate,
		logger:      logger.With().Str("component", "chat_service").Logger(),
		tracer:      otel.Tracer("github.com/doctoronline/teleclinic-api/internal/service/chat"),
		sanitizer:   sanitizer,
		hub:         hub,
		nodeID:      uuid.NewString(),
	}
}

func (s *chatService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// Send persists a message without realtime fan-out. REST clients post
// through here; socket subscribers only see the message once a realtime
// sender delivers into the same room.
func (s *chatService) Send(ctx context.Context, req dto.ChatSendRequest) (dto.MessageResponse, error) {
	return s.deliver(ctx, req, false)
}

// deliver is the shared validation/persistence path. Broadcast to local
// subscribers and cross-node publish happen only for realtime deliveries.
func (s *chatService) deliver(ctx context.Context, req dto.ChatSendRequest, realtime bool) (dto.MessageResponse, error) {
	req.RoomID = strings.TrimSpace(req.RoomID)
	if err := s.validator.Struct(req); err != nil {
		return dto.MessageResponse{}, err
	}
	if req.SenderID == 0 || req.SenderRole == "" {
		return dto.MessageResponse{}, ErrSenderRequired
	}

	messageType := req.MessageType
	if messageType == "" {
		messageType = models.MessageTypeText
	}

	body := strings.TrimSpace(s.sanitizer.Sanitize(req.Message))
	switch messageType {
	case models.MessageTypeText:
		if body == "" {
			return dto.MessageResponse{}, ErrMessageBodyRequired
		}
	default:
		if strings.TrimSpace(req.FileURL) == "" || strings.TrimSpace(req.FileName) == "" {
			return dto.MessageResponse{}, ErrAttachmentRequired
		}
	}

	room, err := s.rooms.GetByRoomID(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MessageResponse{}, ErrRoomNotFound
		}
		return dto.MessageResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "chat.send", trace.WithAttributes(
		attribute.String("chat.room_id", req.RoomID),
		attribute.Int("chat.sender_id", int(req.SenderID)),
		attribute.String("chat.type", messageType),
	))
	defer span.End()

	message := models.Message{
		RoomID:      room.RoomID,
		SenderID:    req.SenderID,
		SenderRole:  strings.ToUpper(req.SenderRole),
		ReceiverID:  resolveReceiver(room, req.SenderID),
		MessageType: messageType,
		Body:        body,
		FileURL:     req.FileURL,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
		Timestamp:   time.Now().UTC(),
	}

	if err := s.messages.Append(spanCtx, &message); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	if err := s.rooms.SetLastMessage(spanCtx, room.RoomID, message.Preview()); err != nil {
		s.logger.Warn().Err(err).Str("room_id", room.RoomID).Msg("failed to update last message preview")
	}

	response := dto.NewMessageResponse(message)
	s.cacheLastMessage(spanCtx, response)
	if realtime {
		s.broadcast(response)
		if err := s.publish(spanCtx, response); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish chat event")
		}
	}

	observability.ChatMessagesSent().WithLabelValues(messageType).Inc()

	return response, nil
}

// resolveReceiver picks the first participant that is not the sender. In a
// two-party room that is always the other side of the conversation.
func resolveReceiver(room models.ChatRoom, senderID uint) *uint {
	for _, participant := range room.Participants {
		if participant.UserID != senderID {
			id := participant.UserID
			return &id
		}
	}
	return nil
}

func (s *chatService) History(ctx context.Context, roomID string) ([]dto.MessageResponse, error) {
	if _, err := s.rooms.GetByRoomID(ctx, roomID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	messages, err := s.messages.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return dto.NewMessageResponseSlice(messages), nil
}

func (s *chatService) MarkRead(ctx context.Context, roomID string, senderID, receiverID uint) (dto.MarkReadResponse, error) {
	affected, err := s.messages.MarkRead(ctx, roomID, senderID, receiverID)
	if err != nil {
		return dto.MarkReadResponse{}, err
	}
	return dto.MarkReadResponse{
		Message:       "messages marked as read",
		ModifiedCount: affected,
	}, nil
}

func (s *chatService) ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	client := &chatClient{
		conn:    conn,
		send:    make(chan socketEnvelope, chatSendBufferSize),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
		baseCtx: baseCtx,
		joined:  make(map[string]struct{}),
	}

	observability.ChatConnectionsTotal().Inc()

	go client.writer()
	client.reader()
}

func (s *chatService) cacheLastMessage(ctx context.Context, message dto.MessageResponse) {
	if s.redis == nil || s.redisCache == "" {
		return
	}

	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal chat message for cache")
		return
	}

	key := fmt.Sprintf("%s:%s", s.redisCache, message.RoomID)
	if err := s.redis.Set(ctx, key, payload, chatRedisTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache chat message")
	}
}

func (s *chatService) fetchLastMessage(ctx context.Context, roomID string) *dto.MessageResponse {
	if s.redis == nil || s.redisCache == "" {
		return nil
	}

	key := fmt.Sprintf("%s:%s", s.redisCache, roomID)
	result, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return nil
	}

	var message dto.MessageResponse
	if err := json.Unmarshal([]byte(result), &message); err != nil {
		s.logger.Warn().Err(err).Msg("failed to unmarshal cached chat message")
		return nil
	}

	return &message
}

func (s *chatService) broadcast(message dto.MessageResponse) {
	data, err := json.Marshal(message)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal chat broadcast")
		return
	}
	s.hub.broadcast(message.RoomID, socketEnvelope{Event: EventReceiveMessage, Data: data})
	observability.ChatBroadcasts().Inc()
}

func (s *chatService) publish(ctx context.Context, message dto.MessageResponse) error {
	event := chatEvent{
		Source:  s.nodeID,
		Message: message,
		SentAt:  time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *chatService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("chat redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *chatService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "teleclinic-chat", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats chat subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain chat nats subscription")
		}
	}()
}

func (s *chatService) handleEvent(data []byte) {
	var event chatEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid chat event")
		return
	}

	// Events published by this node were already broadcast locally.
	if event.Source == s.nodeID {
		return
	}

	s.broadcast(event.Message)
}

func (h *chatHub) join(roomID string, client *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rooms[roomID]; !exists {
		h.rooms[roomID] = make(map[*chatClient]struct{})
	}
	h.rooms[roomID][client] = struct{}{}
	h.log.Debug().Str("room_id", roomID).Uint("user_id", client.options.UserID).Msg("chat client joined room")
}

func (h *chatHub) unregister(client *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID, clients := range h.rooms {
		if _, ok := clients[client]; !ok {
			continue
		}
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.log.Debug().Uint("user_id", client.options.UserID).Msg("chat client disconnected")
}

func (h *chatHub) broadcast(roomID string, envelope socketEnvelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.rooms[roomID]
	for client := range clients {
		select {
		case client.send <- envelope:
		default:
			h.log.Warn().Str("room_id", roomID).Uint("user_id", client.options.UserID).Msg("dropping chat message for slow client")
		}
	}
}

func (c *chatClient) reader() {
	defer c.close()

	connCtx := c.baseCtx

	for {
		var envelope socketEnvelope
		if err := c.conn.ReadJSON(&envelope); err != nil {
			c.service.logger.Debug().Err(err).Msg("chat read loop ended")
			return
		}

		switch envelope.Event {
		case EventJoinRoom:
			c.handleJoin(connCtx, envelope)
		case EventSendMessage:
			c.handleSend(connCtx, envelope)
		default:
			c.ack(envelope.AckID, ackPayload{Success: false, Error: fmt.Sprintf("unknown event %q", envelope.Event)})
		}
	}
}

func (c *chatClient) handleJoin(ctx context.Context, envelope socketEnvelope) {
	var payload joinRoomPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil || strings.TrimSpace(payload.RoomID) == "" {
		c.ack(envelope.AckID, ackPayload{Success: false, Error: "room_id is required"})
		return
	}

	roomID := strings.TrimSpace(payload.RoomID)

	c.mu.Lock()
	_, already := c.joined[roomID]
	c.joined[roomID] = struct{}{}
	c.mu.Unlock()

	if !already {
		c.service.hub.join(roomID, c)
	}

	if last := c.service.fetchLastMessage(ctx, roomID); last != nil {
		if data, err := json.Marshal(last); err == nil {
			c.enqueue(socketEnvelope{Event: EventReceiveMessage, Data: data})
		}
	}

	c.ack(envelope.AckID, ackPayload{Success: true})
}

func (c *chatClient) handleSend(ctx context.Context, envelope socketEnvelope) {
	var payload dto.ChatSendRequest
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.ack(envelope.AckID, ackPayload{Success: false, Error: "invalid send_message payload"})
		return
	}

	response, err := c.service.deliver(ctx, payload, true)
	if err != nil {
		c.service.logger.Warn().Err(err).Str("room_id", payload.RoomID).Msg("failed to process chat message")
		c.ack(envelope.AckID, ackPayload{Success: false, Error: err.Error()})
		return
	}

	c.ack(envelope.AckID, ackPayload{Success: true, Message: &response})
}

// ack sends an acknowledgement when the inbound envelope carried an ack_id.
// Fire-and-forget payloads get no reply, success or failure.
func (c *chatClient) ack(ackID string, payload ackPayload) {
	if ackID == "" {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	c.enqueue(socketEnvelope{Event: EventAck, AckID: ackID, Data: data})
}

func (c *chatClient) enqueue(envelope socketEnvelope) {
	select {
	case <-c.closed:
	case c.send <- envelope:
	default:
		c.service.logger.Warn().Msg("sender queue full, dropping envelope")
	}
}

func (c *chatClient) writer() {
	defer c.close()

	for {
		select {
		case envelope, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(envelope); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *chatClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.unregister(c)
		_ = c.conn.Close()
	})
}
