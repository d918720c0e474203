package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/doctoronline/teleclinic-api/internal/models"
)

// MessageRepository is the append-only message ledger. Records never change
// after creation except the read flag, which only moves false to true.
type MessageRepository interface {
	Append(ctx context.Context, message *models.Message) error
	ListByRoom(ctx context.Context, roomID string) ([]models.Message, error)
	MarkRead(ctx context.Context, roomID string, senderID, receiverID uint) (int64, error)
	LatestByRoom(ctx context.Context, roomID string) (models.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Append(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) ListByRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("timestamp ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, roomID string, senderID, receiverID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("room_id = ? AND sender_id = ? AND receiver_id = ? AND read = ?", roomID, senderID, receiverID, false).
		Update("read", true)
	return result.RowsAffected, result.Error
}

func (r *messageRepository) LatestByRoom(ctx context.Context, roomID string) (models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("timestamp DESC, id DESC").
		First(&message).Error
	if err != nil {
		return models.Message{}, err
	}
	return message, nil
}
