package homehive

import (
	"context"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// LiveChannel is one open websocket bound to a room. It never migrates to a
// different room; switching rooms means closing this and dialing a new one.
type LiveChannel struct {
	conn *websocket.Conn
}

type liveSend struct {
	Message string `json:"message"`
	ReplyTo *int64 `json:"reply_to,omitempty"`
}

// DialRoom opens the live channel for a room, carrying the bearer credential
// as a query parameter.
func (c *Client) DialRoom(ctx context.Context, roomID string) (*LiveChannel, error) {
	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := wsBaseURL(c.BaseURL) + "/ws/chat/" + roomID + "?token=" + url.QueryEscape(token)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	if resp != nil {
		resp.Body.Close()
	}
	return &LiveChannel{conn: conn}, nil
}

func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}

// Send transmits a message over the channel. The caller renders nothing
// locally; the authoritative copy arrives through the fan-out like everyone
// else's.
func (l *LiveChannel) Send(content string, replyTo *int64) error {
	return l.conn.WriteJSON(liveSend{Message: content, ReplyTo: replyTo})
}

// ReadFrame blocks for the next outbound frame.
func (l *LiveChannel) ReadFrame() (Frame, error) {
	var f Frame
	err := l.conn.ReadJSON(&f)
	return f, err
}

func (l *LiveChannel) Close() error {
	return l.conn.Close()
}
