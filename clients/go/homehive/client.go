// Package homehive provides a Go client for the HomeHive chat service: the
// request/response facade, the live channel, and the reconciler that merges
// both into one ordered message view.
package homehive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// TokenSource supplies the opaque bearer credential. Refresh is called at
// most once per request when the server answers 401; sources that cannot
// refresh return ErrNoRefresh.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

var ErrNoRefresh = errors.New("token source cannot refresh")

// StaticTokenSource wraps a fixed token.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error)   { return string(s), nil }
func (s StaticTokenSource) Refresh(context.Context) (string, error) { return "", ErrNoRefresh }

// APIError is a non-2xx response from the chat service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat service: %d %s", e.Status, e.Message)
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
}

func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Tokens:     tokens,
	}
}

// do performs one request. A 401 triggers exactly one silent refresh-and-
// retry before the error is surfaced.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return err
	}
	resp, err := c.request(ctx, method, path, body, token)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		fresh, rerr := c.Tokens.Refresh(ctx)
		if rerr != nil {
			return &APIError{Status: http.StatusUnauthorized, Message: "unauthenticated"}
		}
		resp, err = c.request(ctx, method, path, body, fresh)
		if err != nil {
			return err
		}
	}
	defer drain(resp)

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) request(ctx context.Context, method, path string, body any, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.HTTPClient.Do(req)
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// ListRooms returns the caller's rooms, most recently active first.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var out struct {
		Rooms []Room `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chat/rooms", nil, &out); err != nil {
		return nil, err
	}
	return out.Rooms, nil
}

// OpenRoom gets or creates the room for a property. The bool reports whether
// the room was newly created.
func (c *Client) OpenRoom(ctx context.Context, propertyID string) (*Room, bool, error) {
	body := map[string]string{"property_id": propertyID}
	var out struct {
		Room    Room `json:"room"`
		Created bool `json:"created"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/chat/rooms", body, &out); err != nil {
		return nil, false, err
	}
	return &out.Room, out.Created, nil
}

// History fetches up to limit messages oldest-first; before > 0 pages
// backwards from that message id.
func (c *Client) History(ctx context.Context, roomID string, limit int, before int64) ([]Message, error) {
	path := "/api/chat/rooms/" + roomID + "/messages?limit=" + strconv.Itoa(limit)
	if before > 0 {
		path += "&before=" + strconv.FormatInt(before, 10)
	}
	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

type sendRequest struct {
	Content string `json:"content"`
	ReplyTo *int64 `json:"reply_to,omitempty"`
}

// Send posts a message over the facade. Used for bootstrap and as the
// fallback when no live channel is open.
func (c *Client) Send(ctx context.Context, roomID, content string, replyTo *int64) (*Message, error) {
	var msg Message
	err := c.do(ctx, http.MethodPost, "/api/chat/rooms/"+roomID+"/messages", sendRequest{Content: content, ReplyTo: replyTo}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Edit replaces the content of the caller's own message.
func (c *Client) Edit(ctx context.Context, roomID string, messageID int64, content string) (*Message, error) {
	path := "/api/chat/rooms/" + roomID + "/messages/" + strconv.FormatInt(messageID, 10)
	var msg Message
	err := c.do(ctx, http.MethodPatch, path, map[string]string{"content": content}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Delete removes the caller's own message.
func (c *Client) Delete(ctx context.Context, roomID string, messageID int64) error {
	path := "/api/chat/rooms/" + roomID + "/messages/" + strconv.FormatInt(messageID, 10)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// MarkRead flags every message in the room as read for the caller.
func (c *Client) MarkRead(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPatch, "/api/chat/rooms/"+roomID+"/read", nil, nil)
}

// UnreadCount returns the total unread count across all rooms, for the
// navigation badge. Poll it at a coarse interval.
func (c *Client) UnreadCount(ctx context.Context) (int64, error) {
	var out struct {
		UnreadCount int64 `json:"unread_count"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chat/unread-count", nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}
