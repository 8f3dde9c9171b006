package homehive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// newSessionMux serves the REST endpoints a session touches: history,
// mark-read, and the facade send fallback.
func newSessionMux(history []Message, onPost func(sendRequest) Message) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat/rooms/room-1/messages", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string][]Message{"messages": history})
		case http.MethodPost:
			var in sendRequest
			json.NewDecoder(r.Body).Decode(&in)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(onPost(in))
		}
	})
	mux.HandleFunc("/api/chat/rooms/room-1/read", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"message": "messages marked as read"})
	})
	return mux
}

func TestSessionSendPrefersLiveChannel(t *testing.T) {
	received := make(chan liveSend, 1)
	echo := make(chan Message, 1)

	mux := newSessionMux([]Message{{ID: 1, RoomID: "room-1", Content: "earlier"}}, nil)
	mux.HandleFunc("/ws/chat/room-1", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var in liveSend
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		received <- in
		// echo only when the test says so; the client renders nothing on
		// its own
		m := <-echo
		conn.WriteJSON(Frame{Type: FrameMessage, Message: &m})
		<-echo // hold the connection open until the test finishes
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer close(echo)

	c := NewClient(srv.URL, StaticTokenSource("tok"))
	s, err := c.OpenSession(context.Background(), "room-1")
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, 1, s.rec.Len())

	require.NoError(t, s.Send(context.Background(), "hello", nil))

	select {
	case in := <-received:
		assert.Equal(t, "hello", in.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("live channel never received the send")
	}

	// no local echo: the message appears only once its fan-out copy arrives
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, s.rec.Len())

	echo <- Message{ID: 2, RoomID: "room-1", SenderID: "tenant-1", Content: "hello"}
	require.Eventually(t, func() bool { return s.rec.Len() == 2 }, 2*time.Second, 10*time.Millisecond)
	msgs := s.Messages()
	assert.Equal(t, int64(2), msgs[1].ID)
	assert.Equal(t, "hello", msgs[1].Content)
}

func TestSessionFallsBackToFacade(t *testing.T) {
	var posted atomic.Int32
	mux := newSessionMux([]Message{{ID: 1, RoomID: "room-1", Content: "earlier"}}, func(in sendRequest) Message {
		posted.Add(1)
		return Message{ID: 2, RoomID: "room-1", Content: in.Content}
	})
	// no ws route: the dial fails and the session runs on the facade
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, StaticTokenSource("tok"))
	s, err := c.OpenSession(context.Background(), "room-1")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Send(context.Background(), "hello", nil))

	// the synchronous response is applied directly; no fan-out copy is coming
	assert.Equal(t, int32(1), posted.Load())
	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(2), msgs[1].ID)
	assert.Equal(t, "hello", msgs[1].Content)
}

func TestSessionReconnectsAfterDrop(t *testing.T) {
	var dials atomic.Int32
	done := make(chan struct{})

	mux := newSessionMux([]Message{{ID: 1, RoomID: "room-1", Content: "earlier"}}, nil)
	mux.HandleFunc("/ws/chat/room-1", func(w http.ResponseWriter, r *http.Request) {
		n := dials.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if n == 1 {
			// drop the first connection straight away
			conn.Close()
			return
		}
		defer conn.Close()
		conn.WriteJSON(Frame{Type: FrameMessage, Message: &Message{ID: 5, RoomID: "room-1", Content: "after reconnect"}})
		<-done
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	defer close(done)

	c := NewClient(srv.URL, StaticTokenSource("tok"))
	s, err := c.OpenSession(context.Background(), "room-1")
	require.NoError(t, err)

	// the single reconnect attempt restores the channel and the pushed frame
	// lands in the view
	require.Eventually(t, func() bool {
		for _, m := range s.Messages() {
			if m.ID == 5 {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(2), dials.Load())

	// a deliberate close ends the session without another dial
	s.Close()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(2), dials.Load())
}
