package ws

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
)

// inbound is the only frame clients send: a new message for the room the
// connection is bound to.
type inbound struct {
	Message string `json:"message"`
	ReplyTo *int64 `json:"reply_to,omitempty"`
}

// Client is one live connection, bound to a single room and user for its
// whole lifetime. A room switch is a new connection.
type Client struct {
	ID     string
	UserID string
	RoomID string

	conn *websocket.Conn
	send chan []byte
}

func newClient(id, userID, roomID string, conn *websocket.Conn) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		RoomID: roomID,
		conn:   conn,
		send:   make(chan []byte, 256),
	}
}

// enqueue hands a marshaled frame to the write pump without blocking the
// broadcaster. Frames dropped here are recovered by the client's next fetch.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendFrame(f Frame) {
	if data, err := json.Marshal(f); err == nil {
		c.enqueue(data)
	}
}

// readPump consumes inbound frames until the transport closes. onMessage is
// the gateway's bridge into the chat service.
func (c *Client) readPump(maxMsgSize int64, readDeadline time.Duration, onMessage func(*Client, inbound)) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.sendFrame(Frame{Type: FrameError, Error: "malformed frame"})
			continue
		}
		onMessage(c, in)
	}
}

func (c *Client) writePump(pingInterval, writeDeadline time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
