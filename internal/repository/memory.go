package repository

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/homehive/chat-service/internal/apperr"
	"github.com/homehive/chat-service/internal/models"
)

// MemoryRoomRepository is an in-memory RoomRepository used by tests and local
// runs without a database. The single mutex stands in for the unique index.
type MemoryRoomRepository struct {
	mu     sync.Mutex
	nextID int
	rooms  map[string]*models.Room
	byPair map[[2]string]string // (property_id, tenant_id) -> room id
}

func NewMemoryRoomRepository() *MemoryRoomRepository {
	return &MemoryRoomRepository{
		rooms:  make(map[string]*models.Room),
		byPair: make(map[[2]string]string),
	}
}

func (r *MemoryRoomRepository) GetOrCreate(_ context.Context, room *models.Room) (*models.Room, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pair := [2]string{room.PropertyID, room.TenantID}
	if id, ok := r.byPair[pair]; ok {
		return copyRoom(r.rooms[id]), false, nil
	}

	r.nextID++
	stored := copyRoom(room)
	stored.ID = "room-" + strconv.Itoa(r.nextID)
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.rooms[stored.ID] = stored
	r.byPair[pair] = stored.ID
	return copyRoom(stored), true, nil
}

func (r *MemoryRoomRepository) Get(_ context.Context, id string) (*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return copyRoom(room), nil
}

func (r *MemoryRoomRepository) ListByUser(_ context.Context, userID string) ([]*models.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Room
	for _, room := range r.rooms {
		if room.HasParticipant(userID) {
			out = append(out, copyRoom(room))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *MemoryRoomRepository) Touch(_ context.Context, roomID string, last *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return apperr.ErrNotFound
	}
	room.UpdatedAt = time.Now().UTC()
	if last != nil {
		cp := *last
		room.LastMessage = &cp
	} else {
		room.LastMessage = nil
	}
	return nil
}

func copyRoom(r *models.Room) *models.Room {
	cp := *r
	if r.LastMessage != nil {
		m := *r.LastMessage
		cp.LastMessage = &m
	}
	return &cp
}

// MemoryMessageRepository is the in-memory MessageRepository counterpart.
type MemoryMessageRepository struct {
	mu     sync.Mutex
	seqs   map[string]int64
	byRoom map[string][]*models.Message // kept in seq order
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{
		seqs:   make(map[string]int64),
		byRoom: make(map[string][]*models.Message),
	}
}

func (r *MemoryMessageRepository) Append(_ context.Context, m *models.Message) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seqs[m.RoomID]++
	stored := *m
	stored.Seq = r.seqs[m.RoomID]
	stored.CreatedAt = time.Now().UTC()
	stored.IsRead = false
	r.byRoom[m.RoomID] = append(r.byRoom[m.RoomID], &stored)
	cp := stored
	return &cp, nil
}

func (r *MemoryMessageRepository) Get(_ context.Context, roomID string, seq int64) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.byRoom[roomID] {
		if m.Seq == seq {
			cp := *m
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (r *MemoryMessageRepository) List(_ context.Context, roomID string, limit int64, beforeSeq int64) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var page []*models.Message
	for _, m := range r.byRoom[roomID] {
		if beforeSeq > 0 && m.Seq >= beforeSeq {
			continue
		}
		cp := *m
		page = append(page, &cp)
	}
	if limit > 0 && int64(len(page)) > limit {
		page = page[int64(len(page))-limit:]
	}
	return page, nil
}

func (r *MemoryMessageRepository) UpdateContent(_ context.Context, roomID string, seq int64, content string, editedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.byRoom[roomID] {
		if m.Seq == seq {
			m.Content = content
			at := editedAt
			m.EditedAt = &at
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (r *MemoryMessageRepository) Delete(_ context.Context, roomID string, seq int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.byRoom[roomID]
	for i, m := range msgs {
		if m.Seq == seq {
			r.byRoom[roomID] = append(msgs[:i], msgs[i+1:]...)
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (r *MemoryMessageRepository) MarkRead(_ context.Context, roomID, readerID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.byRoom[roomID] {
		if m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (r *MemoryMessageRepository) CountUnread(_ context.Context, roomID, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.byRoom[roomID] {
		if m.SenderID != userID && !m.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *MemoryMessageRepository) Last(_ context.Context, roomID string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.byRoom[roomID]
	if len(msgs) == 0 {
		return nil, nil
	}
	cp := *msgs[len(msgs)-1]
	return &cp, nil
}
