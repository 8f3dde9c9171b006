package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/homehive/chat-service/internal/models"
)

func testHub() *Hub {
	return NewHub(zap.NewNop().Sugar())
}

func drainFrame(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case data := <-c.send:
		var f Frame
		require.NoError(t, json.Unmarshal(data, &f))
		return f
	default:
		t.Fatal("no frame queued")
		return Frame{}
	}
}

func TestHubBroadcastReachesAllSubscribers(t *testing.T) {
	h := testHub()
	a := newClient("a", "tenant-1", "room-1", nil)
	b := newClient("b", "landlord-1", "room-1", nil)
	other := newClient("c", "tenant-2", "room-2", nil)
	h.Register("room-1", a)
	h.Register("room-1", b)
	h.Register("room-2", other)

	h.MessageCreated("room-1", &models.Message{Seq: 7, RoomID: "room-1", Content: "hi"})

	for _, c := range []*Client{a, b} {
		f := drainFrame(t, c)
		assert.Equal(t, FrameMessage, f.Type)
		require.NotNil(t, f.Message)
		assert.Equal(t, int64(7), f.Message.Seq)
	}
	assert.Empty(t, other.send)
}

func TestHubSenderReceivesOwnEcho(t *testing.T) {
	h := testHub()
	sender := newClient("a", "tenant-1", "room-1", nil)
	h.Register("room-1", sender)

	h.MessageCreated("room-1", &models.Message{Seq: 1, RoomID: "room-1"})
	f := drainFrame(t, sender)
	assert.Equal(t, FrameMessage, f.Type)
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	h := testHub()
	c := newClient("a", "tenant-1", "room-1", nil)
	h.Register("room-1", c)
	assert.Equal(t, 1, h.Subscribers("room-1"))

	h.Unregister("room-1", c)
	assert.Zero(t, h.Subscribers("room-1"))

	h.MessageCreated("room-1", &models.Message{Seq: 1, RoomID: "room-1"})
	assert.Empty(t, c.send)
}

func TestHubEditAndDeleteFrames(t *testing.T) {
	h := testHub()
	c := newClient("a", "tenant-1", "room-1", nil)
	h.Register("room-1", c)

	edited := &models.Message{Seq: 3, RoomID: "room-1", Content: "fixed"}
	h.MessageEdited("room-1", edited)
	f := drainFrame(t, c)
	assert.Equal(t, FrameMessageEdited, f.Type)
	assert.Equal(t, "fixed", f.Message.Content)

	h.MessageDeleted("room-1", 3)
	f = drainFrame(t, c)
	assert.Equal(t, FrameMessageDeleted, f.Type)
	assert.Equal(t, int64(3), f.MessageID)
	assert.Equal(t, "room-1", f.RoomID)
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	h := testHub()
	c := newClient("a", "tenant-1", "room-1", nil)
	h.Register("room-1", c)

	// overflow the send queue; broadcasts drop rather than block
	for i := 0; i < cap(c.send)+10; i++ {
		h.MessageCreated("room-1", &models.Message{Seq: int64(i), RoomID: "room-1"})
	}
	assert.Equal(t, cap(c.send), len(c.send))
}
