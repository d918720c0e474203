package dto

import (
	"encoding/json"
	"time"

	"github.com/doctoronline/teleclinic-api/internal/models"
)

// CreateRoomRequest asks for the room binding a patient to a doctor.
type CreateRoomRequest struct {
	UserID   uint `json:"user_id" validate:"required"`
	DoctorID uint `json:"doctor_id" validate:"required"`
}

// CreateRoomResponse returns the opaque room identifier.
type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
}

// RoomParticipantResponse is a (user, role) pair with the public profile populated.
type RoomParticipantResponse struct {
	UserID uint          `json:"user_id"`
	Role   string        `json:"role"`
	User   *UserResponse `json:"user,omitempty"`
}

// ChatRoomResponse serializes a room with its participants and preview.
type ChatRoomResponse struct {
	RoomID       string                    `json:"room_id"`
	Participants []RoomParticipantResponse `json:"participants"`
	VisibleTo    []uint                    `json:"visible_to"`
	LastMessage  string                    `json:"last_message,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
}

// NewChatRoomResponse converts a room model into a DTO.
func NewChatRoomResponse(room models.ChatRoom) ChatRoomResponse {
	participants := make([]RoomParticipantResponse, 0, len(room.Participants))
	for _, participant := range room.Participants {
		entry := RoomParticipantResponse{
			UserID: participant.UserID,
			Role:   participant.Role,
		}
		if participant.User != nil {
			user := NewUserResponse(*participant.User)
			entry.User = &user
		}
		participants = append(participants, entry)
	}

	var visible []uint
	if len(room.VisibleTo) > 0 {
		_ = json.Unmarshal(room.VisibleTo, &visible)
	}

	return ChatRoomResponse{
		RoomID:       room.RoomID,
		Participants: participants,
		VisibleTo:    visible,
		LastMessage:  room.LastMessage,
		CreatedAt:    room.CreatedAt,
	}
}

// NewChatRoomResponseSlice converts room models into DTOs.
func NewChatRoomResponseSlice(rooms []models.ChatRoom) []ChatRoomResponse {
	out := make([]ChatRoomResponse, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, NewChatRoomResponse(room))
	}
	return out
}

// ChatSendRequest is the payload accepted by both the REST message endpoint
// and the websocket send_message event. Sender fields are required on the
// socket path; the REST path fills them from the authenticated identity.
type ChatSendRequest struct {
	RoomID      string `json:"room_id" validate:"required,max=64"`
	SenderID    uint   `json:"sender_id" validate:"omitempty"`
	SenderRole  string `json:"sender_role" validate:"omitempty,oneof=USER DOCTOR ADMIN"`
	MessageType string `json:"message_type" validate:"omitempty,oneof=text image file"`
	Message     string `json:"message" validate:"omitempty,max=4000"`
	FileURL     string `json:"file_url" validate:"omitempty,max=512"`
	FileName    string `json:"file_name" validate:"omitempty,max=255"`
	FileSize    int64  `json:"file_size" validate:"omitempty,min=0"`
}

// MessageResponse is the serialized representation of a persisted message.
type MessageResponse struct {
	ID           uint      `json:"id"`
	RoomID       string    `json:"room_id"`
	SenderID     uint      `json:"sender_id"`
	SenderRole   string    `json:"sender_role"`
	ReceiverID   *uint     `json:"receiver_id,omitempty"`
	MessageType  string    `json:"message_type"`
	Message      string    `json:"message,omitempty"`
	FileURL      string    `json:"file_url,omitempty"`
	FileName     string    `json:"file_name,omitempty"`
	FileSize     int64     `json:"file_size,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Read         bool      `json:"read"`
}

// NewMessageResponse converts a model into a DTO.
func NewMessageResponse(message models.Message) MessageResponse {
	return MessageResponse{
		ID:           message.ID,
		RoomID:       message.RoomID,
		SenderID:     message.SenderID,
		SenderRole:   message.SenderRole,
		ReceiverID:   message.ReceiverID,
		MessageType:  message.MessageType,
		Message:      message.Body,
		FileURL:      message.FileURL,
		FileName:     message.FileName,
		FileSize:     message.FileSize,
		ThumbnailURL: message.ThumbnailURL,
		Timestamp:    message.Timestamp,
		Read:         message.Read,
	}
}

// NewMessageResponseSlice converts message models into DTOs.
func NewMessageResponseSlice(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewMessageResponse(message))
	}
	return out
}

// MarkReadResponse reports the outcome of a read-receipt call.
type MarkReadResponse struct {
	Message       string `json:"message"`
	ModifiedCount int64  `json:"modifiedCount"`
}
