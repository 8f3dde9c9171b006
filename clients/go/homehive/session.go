package homehive

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const defaultReconnectWait = 3 * time.Second

// RoomSession is one open room in a client: a reconciler fed by the live
// channel, bootstrapped and repaired by history fetches, with the facade as
// the send fallback when the channel is down.
type RoomSession struct {
	client        *Client
	roomID        string
	rec           *Reconciler
	reconnectWait time.Duration

	mu   sync.Mutex
	live *LiveChannel

	closed    chan struct{}
	closeOnce sync.Once
}

// OpenSession fetches history, opens the live channel when possible, and
// marks the room read. A failed dial is not an error: the session simply runs
// on the facade until the next open.
func (c *Client) OpenSession(ctx context.Context, roomID string) (*RoomSession, error) {
	history, err := c.History(ctx, roomID, 200, 0)
	if err != nil {
		return nil, err
	}
	s := &RoomSession{
		client:        c,
		roomID:        roomID,
		rec:           NewReconciler(),
		reconnectWait: defaultReconnectWait,
		closed:        make(chan struct{}),
	}
	s.rec.Bootstrap(history)

	if live, err := c.DialRoom(ctx, roomID); err == nil {
		s.mu.Lock()
		s.live = live
		s.mu.Unlock()
		go s.readLoop(live)
	}

	_ = c.MarkRead(ctx, roomID)
	return s, nil
}

// Send prefers the live channel: the message renders only when its
// authoritative fan-out copy comes back, the same path every recipient uses.
// Without a channel the facade's synchronous response is applied directly,
// since no fan-out copy will arrive.
func (s *RoomSession) Send(ctx context.Context, content string, replyTo *int64) error {
	s.mu.Lock()
	live := s.live
	s.mu.Unlock()

	if live != nil {
		if err := live.Send(content, replyTo); err == nil {
			return nil
		}
		// channel went bad mid-send; fall through to the facade so the
		// message is not lost
	}
	msg, err := s.client.Send(ctx, s.roomID, content, replyTo)
	if err != nil {
		return err
	}
	s.rec.Upsert(*msg)
	return nil
}

// Messages returns the session's current ordered view.
func (s *RoomSession) Messages() []Message {
	return s.rec.Messages()
}

// Refresh re-fetches history and replaces the view; always a correct repair.
func (s *RoomSession) Refresh(ctx context.Context) error {
	history, err := s.client.History(ctx, s.roomID, 200, 0)
	if err != nil {
		return err
	}
	s.rec.Bootstrap(history)
	return nil
}

// Close ends the session deliberately; no reconnect is attempted.
func (s *RoomSession) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
	s.mu.Lock()
	live := s.live
	s.live = nil
	s.mu.Unlock()
	if live != nil {
		live.Close()
	}
}

func (s *RoomSession) readLoop(l *LiveChannel) {
	for {
		f, err := l.ReadFrame()
		if err != nil {
			break
		}
		s.rec.Apply(f)
	}
	l.Close()

	s.mu.Lock()
	if s.live == l {
		s.live = nil
	}
	s.mu.Unlock()

	select {
	case <-s.closed:
		return
	default:
	}
	s.reconnect()
}

// reconnect makes a single retry after a fixed wait. Anything missed during
// the gap is repaired by the history re-fetch on success, or by the next
// room open.
func (s *RoomSession) reconnect() {
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(s.reconnectWait), 1)
	_ = backoff.Retry(func() error {
		select {
		case <-s.closed:
			return backoff.Permanent(context.Canceled)
		default:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		live, err := s.client.DialRoom(ctx, s.roomID)
		if err != nil {
			return err
		}
		if history, herr := s.client.History(ctx, s.roomID, 200, 0); herr == nil {
			s.rec.Bootstrap(history)
		}
		s.mu.Lock()
		s.live = live
		s.mu.Unlock()
		go s.readLoop(live)
		return nil
	}, policy)
}
