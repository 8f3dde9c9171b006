package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homehive/chat-service/internal/apperr"
	"github.com/homehive/chat-service/internal/models"
)

func TestMemoryRoomGetOrCreate(t *testing.T) {
	repo := NewMemoryRoomRepository()
	ctx := context.Background()

	room := &models.Room{PropertyID: "prop-1", TenantID: "tenant-1", LandlordID: "landlord-1"}
	first, created, err := repo.GetOrCreate(ctx, room)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, first.ID)

	second, created, err := repo.GetOrCreate(ctx, room)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	other := &models.Room{PropertyID: "prop-1", TenantID: "tenant-2", LandlordID: "landlord-1"}
	third, created, err := repo.GetOrCreate(ctx, other)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestMemoryRoomListByUserOrder(t *testing.T) {
	repo := NewMemoryRoomRepository()
	ctx := context.Background()

	a, _, err := repo.GetOrCreate(ctx, &models.Room{PropertyID: "prop-1", TenantID: "tenant-1", LandlordID: "landlord-1"})
	require.NoError(t, err)
	b, _, err := repo.GetOrCreate(ctx, &models.Room{PropertyID: "prop-2", TenantID: "tenant-1", LandlordID: "landlord-1"})
	require.NoError(t, err)

	// touching a makes it the most recently active room
	time.Sleep(time.Millisecond)
	require.NoError(t, repo.Touch(ctx, a.ID, &models.Message{RoomID: a.ID, Seq: 1, Content: "hi"}))

	rooms, err := repo.ListByUser(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, a.ID, rooms[0].ID)
	assert.Equal(t, b.ID, rooms[1].ID)

	none, err := repo.ListByUser(ctx, "stranger")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryMessageSeqPerRoom(t *testing.T) {
	repo := NewMemoryMessageRepository()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m, err := repo.Append(ctx, &models.Message{RoomID: "room-1", SenderID: "u1", Content: "x"})
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), m.Seq)
	}
	m, err := repo.Append(ctx, &models.Message{RoomID: "room-2", SenderID: "u1", Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.Seq)

	// deletion leaves a gap rather than reusing the id
	require.NoError(t, repo.Delete(ctx, "room-1", 3))
	m, err = repo.Append(ctx, &models.Message{RoomID: "room-1", SenderID: "u1", Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), m.Seq)
}

func TestMemoryMessagePagination(t *testing.T) {
	repo := NewMemoryMessageRepository()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := repo.Append(ctx, &models.Message{RoomID: "room-1", SenderID: "u1", Content: "x"})
		require.NoError(t, err)
	}

	page, err := repo.List(ctx, "room-1", 4, 0)
	require.NoError(t, err)
	require.Len(t, page, 4)
	assert.Equal(t, int64(7), page[0].Seq)
	assert.Equal(t, int64(10), page[3].Seq)

	page, err = repo.List(ctx, "room-1", 4, 7)
	require.NoError(t, err)
	require.Len(t, page, 4)
	assert.Equal(t, int64(3), page[0].Seq)
	assert.Equal(t, int64(6), page[3].Seq)
}

func TestMemoryMessageReadState(t *testing.T) {
	repo := NewMemoryMessageRepository()
	ctx := context.Background()

	_, err := repo.Append(ctx, &models.Message{RoomID: "room-1", SenderID: "tenant-1", Content: "a"})
	require.NoError(t, err)
	_, err = repo.Append(ctx, &models.Message{RoomID: "room-1", SenderID: "tenant-1", Content: "b"})
	require.NoError(t, err)
	_, err = repo.Append(ctx, &models.Message{RoomID: "room-1", SenderID: "landlord-1", Content: "c"})
	require.NoError(t, err)

	n, err := repo.CountUnread(ctx, "room-1", "landlord-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	marked, err := repo.MarkRead(ctx, "room-1", "landlord-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	// the landlord's own message stays unread for the tenant
	n, err = repo.CountUnread(ctx, "room-1", "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// idempotent
	marked, err = repo.MarkRead(ctx, "room-1", "landlord-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), marked)
}

func TestMemoryMessageUpdateAndGet(t *testing.T) {
	repo := NewMemoryMessageRepository()
	ctx := context.Background()

	m, err := repo.Append(ctx, &models.Message{RoomID: "room-1", SenderID: "u1", Content: "typo"})
	require.NoError(t, err)

	at := time.Now().UTC()
	require.NoError(t, repo.UpdateContent(ctx, "room-1", m.Seq, "fixed", at))

	got, err := repo.Get(ctx, "room-1", m.Seq)
	require.NoError(t, err)
	assert.Equal(t, "fixed", got.Content)
	require.NotNil(t, got.EditedAt)

	_, err = repo.Get(ctx, "room-1", 99)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	last, err := repo.Last(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, m.Seq, last.Seq)

	empty, err := repo.Last(ctx, "room-9")
	require.NoError(t, err)
	assert.Nil(t, empty)
}
