package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/doctoronline/teleclinic-api/internal/models"
)

func uintPtr(v uint) *uint { return &v }

func TestMessageRepositoryListByRoomIsChronological(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	newer := models.Message{RoomID: "r1", SenderID: 1, SenderRole: models.RoleUser, ReceiverID: uintPtr(2), MessageType: models.MessageTypeText, Body: "second", Timestamp: base.Add(time.Minute)}
	older := models.Message{RoomID: "r1", SenderID: 2, SenderRole: models.RoleDoctor, ReceiverID: uintPtr(1), MessageType: models.MessageTypeText, Body: "first", Timestamp: base}
	other := models.Message{RoomID: "r2", SenderID: 1, SenderRole: models.RoleUser, MessageType: models.MessageTypeText, Body: "elsewhere", Timestamp: base}

	require.NoError(t, repo.Append(ctx, &newer))
	require.NoError(t, repo.Append(ctx, &older))
	require.NoError(t, repo.Append(ctx, &other))

	messages, err := repo.ListByRoom(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "first", messages[0].Body)
	require.Equal(t, "second", messages[1].Body)

	latest, err := repo.LatestByRoom(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, "second", latest.Body)
}

func TestMessageRepositoryMarkReadIsDirectionalAndMonotonic(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	now := time.Now()
	fromPatient := models.Message{RoomID: "r1", SenderID: 1, SenderRole: models.RoleUser, ReceiverID: uintPtr(2), MessageType: models.MessageTypeText, Body: "hi", Timestamp: now}
	alsoFromPatient := models.Message{RoomID: "r1", SenderID: 1, SenderRole: models.RoleUser, ReceiverID: uintPtr(2), MessageType: models.MessageTypeText, Body: "there", Timestamp: now}
	fromDoctor := models.Message{RoomID: "r1", SenderID: 2, SenderRole: models.RoleDoctor, ReceiverID: uintPtr(1), MessageType: models.MessageTypeText, Body: "hello", Timestamp: now}

	require.NoError(t, repo.Append(ctx, &fromPatient))
	require.NoError(t, repo.Append(ctx, &alsoFromPatient))
	require.NoError(t, repo.Append(ctx, &fromDoctor))

	affected, err := repo.MarkRead(ctx, "r1", 1, 2)
	require.NoError(t, err)
	require.Equal(t, int64(2), affected)

	messages, err := repo.ListByRoom(ctx, "r1")
	require.NoError(t, err)
	for _, message := range messages {
		if message.SenderID == 1 {
			require.True(t, message.Read)
		} else {
			require.False(t, message.Read, "opposite direction must stay unread")
		}
	}

	// Second identical call matches nothing.
	affected, err = repo.MarkRead(ctx, "r1", 1, 2)
	require.NoError(t, err)
	require.Zero(t, affected)
}
