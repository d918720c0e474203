package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/doctoronline/teleclinic-api/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Doctor{},
		&models.ChatRoom{},
		&models.ChatRoomParticipant{},
		&models.Message{},
		&models.UploadRecord{},
	))
	return db
}

func newRoom(t *testing.T, patientID, doctorID uint) models.ChatRoom {
	t.Helper()
	visible, err := json.Marshal([]uint{patientID, doctorID})
	require.NoError(t, err)
	return models.ChatRoom{
		RoomID:  fmt.Sprintf("room-%d-%d", patientID, doctorID),
		PairKey: models.PairKey(patientID, doctorID),
		Participants: []models.ChatRoomParticipant{
			{UserID: patientID, Role: models.RoleUser},
			{UserID: doctorID, Role: models.RoleDoctor},
		},
		VisibleTo: visible,
	}
}

func TestChatRoomRepositoryPairKeyIsUnique(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatRoomRepository(db)
	ctx := context.Background()

	first := newRoom(t, 1, 2)
	require.NoError(t, repo.Create(ctx, &first))

	duplicate := newRoom(t, 1, 2)
	duplicate.RoomID = "room-other"
	err := repo.Create(ctx, &duplicate)
	require.Error(t, err)
	require.True(t, errors.Is(err, gorm.ErrDuplicatedKey))

	// The loser of the race re-fetches the winner by pair key.
	winner, err := repo.GetByPairKey(ctx, models.PairKey(1, 2))
	require.NoError(t, err)
	require.Equal(t, first.RoomID, winner.RoomID)
	require.Len(t, winner.Participants, 2)
}

func TestChatRoomRepositoryListForParticipant(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatRoomRepository(db)
	ctx := context.Background()

	patient := models.User{Username: "pat", Name: "Pat", Role: models.RoleUser}
	doctor := models.User{Username: "doc", Name: "Doc", Role: models.RoleDoctor}
	require.NoError(t, db.Create(&patient).Error)
	require.NoError(t, db.Create(&doctor).Error)

	room := newRoom(t, patient.ID, doctor.ID)
	require.NoError(t, repo.Create(ctx, &room))

	// A room with no doctor participant must not be listed for the patient.
	solo := models.ChatRoom{
		RoomID:  "room-solo",
		PairKey: models.PairKey(patient.ID, 999),
		Participants: []models.ChatRoomParticipant{
			{UserID: patient.ID, Role: models.RoleUser},
		},
	}
	require.NoError(t, repo.Create(ctx, &solo))

	rooms, err := repo.ListForParticipant(ctx, patient.ID, models.RoleUser, models.RoleDoctor)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.Equal(t, room.RoomID, rooms[0].RoomID)

	var doctorEntry *models.ChatRoomParticipant
	for i := range rooms[0].Participants {
		if rooms[0].Participants[i].Role == models.RoleDoctor {
			doctorEntry = &rooms[0].Participants[i]
		}
	}
	require.NotNil(t, doctorEntry)
	require.NotNil(t, doctorEntry.User)
	require.Equal(t, "doc", doctorEntry.User.Username)

	rooms, err = repo.ListForParticipant(ctx, doctor.ID, models.RoleDoctor, models.RoleUser)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
}

func TestChatRoomRepositorySetLastMessage(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatRoomRepository(db)
	ctx := context.Background()

	room := newRoom(t, 5, 6)
	require.NoError(t, repo.Create(ctx, &room))

	require.NoError(t, repo.SetLastMessage(ctx, room.RoomID, "📎 scan.pdf"))

	stored, err := repo.GetByRoomID(ctx, room.RoomID)
	require.NoError(t, err)
	require.Equal(t, "📎 scan.pdf", stored.LastMessage)
}
