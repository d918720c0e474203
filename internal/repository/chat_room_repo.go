package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/doctoronline/teleclinic-api/internal/models"
)

// ChatRoomRepository resolves and persists chat rooms. The unique index on
// PairKey is what makes findOrCreate safe under concurrent creation.
type ChatRoomRepository interface {
	GetByRoomID(ctx context.Context, roomID string) (models.ChatRoom, error)
	GetByPairKey(ctx context.Context, pairKey string) (models.ChatRoom, error)
	Create(ctx context.Context, room *models.ChatRoom) error
	ListForParticipant(ctx context.Context, userID uint, role, complementRole string) ([]models.ChatRoom, error)
	SetLastMessage(ctx context.Context, roomID, preview string) error
}

type chatRoomRepository struct {
	db *gorm.DB
}

// NewChatRoomRepository constructs a chat room repository backed by GORM.
func NewChatRoomRepository(db *gorm.DB) ChatRoomRepository {
	return &chatRoomRepository{db: db}
}

func (r *chatRoomRepository) GetByRoomID(ctx context.Context, roomID string) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("room_id = ?", roomID).
		First(&room).Error
	if err != nil {
		return models.ChatRoom{}, err
	}
	return room, nil
}

func (r *chatRoomRepository) GetByPairKey(ctx context.Context, pairKey string) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("pair_key = ?", pairKey).
		First(&room).Error
	if err != nil {
		return models.ChatRoom{}, err
	}
	return room, nil
}

func (r *chatRoomRepository) Create(ctx context.Context, room *models.ChatRoom) error {
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *chatRoomRepository) ListForParticipant(ctx context.Context, userID uint, role, complementRole string) ([]models.ChatRoom, error) {
	anchored := r.db.Model(&models.ChatRoomParticipant{}).
		Select("room_ref").
		Where("user_id = ? AND role = ?", userID, role)
	complemented := r.db.Model(&models.ChatRoomParticipant{}).
		Select("room_ref").
		Where("role = ?", complementRole)

	var rooms []models.ChatRoom
	err := r.db.WithContext(ctx).
		Preload("Participants.User").
		Where("id IN (?)", anchored).
		Where("id IN (?)", complemented).
		Order("created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *chatRoomRepository) SetLastMessage(ctx context.Context, roomID, preview string) error {
	return r.db.WithContext(ctx).
		Model(&models.ChatRoom{}).
		Where("room_id = ?", roomID).
		Update("last_message", preview).Error
}
