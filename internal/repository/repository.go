package repository

import (
	"context"
	"time"

	"github.com/homehive/chat-service/internal/models"
)

// RoomRepository owns chat-room records.
type RoomRepository interface {
	// GetOrCreate inserts the room unless one already exists for its
	// (property_id, tenant_id) pair, in which case the existing room is
	// returned. The bool reports whether a new room was created. Safe under
	// concurrent calls: the uniqueness constraint is enforced by the store
	// and a constraint violation is retried as a lookup.
	GetOrCreate(ctx context.Context, room *models.Room) (*models.Room, bool, error)
	Get(ctx context.Context, id string) (*models.Room, error)
	// ListByUser returns every room the user participates in, most recently
	// active first.
	ListByUser(ctx context.Context, userID string) ([]*models.Room, error)
	// Touch updates updated_at and the last_message snapshot.
	Touch(ctx context.Context, roomID string, last *models.Message) error
}

// MessageRepository owns ordered message records per room.
type MessageRepository interface {
	// Append persists m with the next sequence number for its room and the
	// current time. Sequence allocation is atomic, so append order is
	// delivery order.
	Append(ctx context.Context, m *models.Message) (*models.Message, error)
	Get(ctx context.Context, roomID string, seq int64) (*models.Message, error)
	// List returns up to limit messages oldest-first. A beforeSeq > 0
	// restricts the page to messages with seq < beforeSeq.
	List(ctx context.Context, roomID string, limit int64, beforeSeq int64) ([]*models.Message, error)
	UpdateContent(ctx context.Context, roomID string, seq int64, content string, editedAt time.Time) error
	Delete(ctx context.Context, roomID string, seq int64) error
	// MarkRead flags every message in the room not sent by readerID as read
	// and reports how many were flipped.
	MarkRead(ctx context.Context, roomID, readerID string) (int64, error)
	// CountUnread counts messages in the room with sender != userID that are
	// still unread.
	CountUnread(ctx context.Context, roomID, userID string) (int64, error)
	// Last returns the newest message of the room, or nil when empty.
	Last(ctx context.Context, roomID string) (*models.Message, error)
}
