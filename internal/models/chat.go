package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Message payload kinds.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// ChatRoom is a persistent two-party conversation channel. RoomID is the
// opaque identifier exposed to clients; the numeric primary key never leaves
// the store. PairKey enforces at most one room per (patient, doctor) pair.
type ChatRoom struct {
	ID           uint                  `gorm:"primaryKey" json:"-"`
	RoomID       string                `gorm:"size:64;uniqueIndex;not null" json:"room_id"`
	PairKey      string                `gorm:"size:64;uniqueIndex;not null" json:"-"`
	Participants []ChatRoomParticipant `gorm:"foreignKey:RoomRef;references:ID" json:"participants"`
	VisibleTo    datatypes.JSON        `gorm:"type:json" json:"visible_to"`
	LastMessage  string                `gorm:"size:512" json:"last_message,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

// ChatRoomParticipant attaches a (user, role) pair to a room.
type ChatRoomParticipant struct {
	ID      uint   `gorm:"primaryKey" json:"-"`
	RoomRef uint   `gorm:"index;not null" json:"-"`
	UserID  uint   `gorm:"index;not null" json:"user_id"`
	Role    string `gorm:"size:16;not null" json:"role"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// PairKey derives the unique key for a patient/doctor room.
func PairKey(patientID, doctorID uint) string {
	return fmt.Sprintf("%d:%d", patientID, doctorID)
}

// Message is an immutable chat record; only the Read flag may change, and only
// from false to true. RoomID references ChatRoom.RoomID, not the store key.
type Message struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RoomID       string    `gorm:"size:64;index:idx_messages_room_ts;not null" json:"room_id"`
	SenderID     uint      `gorm:"index;not null" json:"sender_id"`
	SenderRole   string    `gorm:"size:16;not null" json:"sender_role"`
	ReceiverID   *uint     `gorm:"index" json:"receiver_id,omitempty"`
	MessageType  string    `gorm:"size:16;not null;default:text" json:"message_type"`
	Body         string    `gorm:"type:text" json:"message,omitempty"`
	FileURL      string    `gorm:"size:512" json:"file_url,omitempty"`
	FileName     string    `gorm:"size:255" json:"file_name,omitempty"`
	FileSize     int64     `json:"file_size,omitempty"`
	ThumbnailURL string    `gorm:"size:512" json:"thumbnail_url,omitempty"`
	Timestamp    time.Time `gorm:"index:idx_messages_room_ts" json:"timestamp"`
	Read         bool      `gorm:"not null;default:false" json:"read"`
}

// Preview returns the denormalized last-message string stored on the room.
func (m Message) Preview() string {
	if m.MessageType == MessageTypeText {
		return m.Body
	}
	return fmt.Sprintf("📎 %s", m.FileName)
}
