// Package ws is the live channel gateway: it upgrades authenticated room
// members to a websocket, keeps the per-room fan-out sets, and pushes
// persisted changes to every subscribed connection.
package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/homehive/chat-service/internal/models"
)

// Frame is the outbound wire envelope. Inbound frames are parsed separately
// in the client read loop.
type Frame struct {
	Type      string          `json:"type"`
	Message   *models.Message `json:"message,omitempty"`
	RoomID    string          `json:"room_id,omitempty"`
	MessageID int64           `json:"message_id,omitempty"`
	Error     string          `json:"error,omitempty"`
}

const (
	FrameMessage        = "message"
	FrameMessageEdited  = "message_edited"
	FrameMessageDeleted = "message_deleted"
	FrameError          = "error"
)

// Hub owns the room-keyed fan-out sets. It is the only shared mutable state
// of the gateway; nothing outside this package touches it directly.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	log   *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
		log:   log,
	}
}

func (h *Hub) Register(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.rooms[roomID]
	if !ok {
		set = make(map[*Client]struct{})
		h.rooms[roomID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) Unregister(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.rooms[roomID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Subscribers reports how many connections are currently in the room's
// fan-out set.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Broadcast sends the frame to every connection subscribed to the room,
// including the one that caused it. A subscriber with a full send queue is
// skipped; it repairs itself on its next history fetch.
func (h *Hub) Broadcast(roomID string, frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Errorw("marshal frame", "type", frame.Type, "err", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomID] {
		c.enqueue(data)
	}
}

// The hub is the Broadcaster the chat service fans out through.

func (h *Hub) MessageCreated(roomID string, m *models.Message) {
	h.Broadcast(roomID, Frame{Type: FrameMessage, Message: m})
}

func (h *Hub) MessageEdited(roomID string, m *models.Message) {
	h.Broadcast(roomID, Frame{Type: FrameMessageEdited, Message: m})
}

func (h *Hub) MessageDeleted(roomID string, seq int64) {
	h.Broadcast(roomID, Frame{Type: FrameMessageDeleted, RoomID: roomID, MessageID: seq})
}
