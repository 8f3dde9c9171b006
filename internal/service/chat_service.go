// Package service implements the chat core: room lifecycle, message
// lifecycle, and the derived read state. Both the HTTP facade and the live
// channel call into this package, so persistence, authorization, and fan-out
// triggering live here exactly once.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/homehive/chat-service/internal/apperr"
	"github.com/homehive/chat-service/internal/auth"
	"github.com/homehive/chat-service/internal/events"
	"github.com/homehive/chat-service/internal/models"
	"github.com/homehive/chat-service/internal/property"
	"github.com/homehive/chat-service/internal/repository"
)

// Broadcaster delivers already-persisted changes to live-connected room
// subscribers. The service calls it strictly after a successful store write,
// never before, so every subscriber observes messages in append order.
type Broadcaster interface {
	MessageCreated(roomID string, m *models.Message)
	MessageEdited(roomID string, m *models.Message)
	MessageDeleted(roomID string, seq int64)
}

// NopBroadcaster satisfies Broadcaster when no live gateway is wired.
type NopBroadcaster struct{}

func (NopBroadcaster) MessageCreated(string, *models.Message) {}
func (NopBroadcaster) MessageEdited(string, *models.Message)  {}
func (NopBroadcaster) MessageDeleted(string, int64)           {}

// RoomView is a room as the listing endpoint renders it for one user.
type RoomView struct {
	*models.Room
	OtherParticipant models.UserSummary `json:"other_participant"`
	UnreadCount      int64              `json:"unread_count"`
}

type Service struct {
	rooms  repository.RoomRepository
	msgs   repository.MessageRepository
	props  property.Directory
	bcast  Broadcaster
	events *events.Publisher
	log    *zap.SugaredLogger
}

func New(rooms repository.RoomRepository, msgs repository.MessageRepository, props property.Directory, bcast Broadcaster, pub *events.Publisher, log *zap.SugaredLogger) *Service {
	if bcast == nil {
		bcast = NopBroadcaster{}
	}
	return &Service{rooms: rooms, msgs: msgs, props: props, bcast: bcast, events: pub, log: log}
}

// GetOrCreateRoom opens (or returns) the room between the calling tenant and
// the landlord of the given property. Only tenants initiate contact.
func (s *Service) GetOrCreateRoom(ctx context.Context, claims *auth.Claims, propertyID string) (*RoomView, bool, error) {
	if !claims.IsTenant() {
		return nil, false, fmt.Errorf("%w: only tenants can contact landlords", apperr.ErrForbidden)
	}
	listing, err := s.props.Lookup(ctx, propertyID)
	if err != nil {
		return nil, false, err
	}

	room := &models.Room{
		PropertyID: listing.ID,
		TenantID:   claims.UserID,
		LandlordID: listing.LandlordID,
		Tenant: models.UserSummary{
			ID:     claims.UserID,
			Name:   claims.Name,
			Avatar: claims.Avatar,
		},
		Landlord: models.UserSummary{
			ID:     listing.LandlordID,
			Name:   listing.LandlordName,
			Avatar: listing.LandlordAvatar,
		},
		Property: models.PropertySummary{
			ID:         listing.ID,
			Title:      listing.Title,
			CoverImage: listing.CoverImage,
		},
	}
	stored, created, err := s.rooms.GetOrCreate(ctx, room)
	if err != nil {
		return nil, false, err
	}
	view, err := s.viewForUser(ctx, stored, claims.UserID)
	if err != nil {
		return nil, false, err
	}
	return view, created, nil
}

// ListRooms returns every room the user participates in, most recently active
// first, with per-room unread counts.
func (s *Service) ListRooms(ctx context.Context, userID string) ([]*RoomView, error) {
	rooms, err := s.rooms.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*RoomView, 0, len(rooms))
	for _, room := range rooms {
		view, err := s.viewForUser(ctx, room, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *Service) viewForUser(ctx context.Context, room *models.Room, userID string) (*RoomView, error) {
	unread, err := s.msgs.CountUnread(ctx, room.ID, userID)
	if err != nil {
		return nil, err
	}
	return &RoomView{
		Room:             room,
		OtherParticipant: room.OtherParticipant(userID),
		UnreadCount:      unread,
	}, nil
}

// Authorize resolves the room and checks that userID participates in it. The
// live channel handshake and every room-scoped operation go through it.
func (s *Service) Authorize(ctx context.Context, userID, roomID string) (*models.Room, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(userID) {
		return nil, apperr.ErrForbidden
	}
	return room, nil
}

// History returns up to limit messages oldest-first, with reply targets
// resolved at read time.
func (s *Service) History(ctx context.Context, userID, roomID string, limit, beforeSeq int64) ([]*models.Message, error) {
	if _, err := s.Authorize(ctx, userID, roomID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	msgs, err := s.msgs.List(ctx, roomID, limit, beforeSeq)
	if err != nil {
		return nil, err
	}
	s.resolveReplies(ctx, roomID, msgs)
	return msgs, nil
}

// resolveReplies fills ReplyToInfo from the current state of each target. A
// target that was deleted resolves to nothing; the reference itself stays.
func (s *Service) resolveReplies(ctx context.Context, roomID string, msgs []*models.Message) {
	cache := make(map[int64]*models.Message)
	for _, m := range msgs {
		cache[m.Seq] = m
	}
	for _, m := range msgs {
		if m.ReplyTo == nil {
			continue
		}
		target, ok := cache[*m.ReplyTo]
		if !ok {
			fetched, err := s.msgs.Get(ctx, roomID, *m.ReplyTo)
			if err != nil {
				cache[*m.ReplyTo] = nil
				continue
			}
			cache[*m.ReplyTo] = fetched
			target = fetched
		}
		if target == nil {
			continue
		}
		m.ReplyToInfo = &models.ReplyInfo{
			SenderName: target.SenderName,
			Content:    target.Content,
		}
	}
}

// Send appends a message to the room and fans it out. This is the single
// persistence path shared by the facade and the live channel.
func (s *Service) Send(ctx context.Context, claims *auth.Claims, roomID, content string, replyTo *int64) (*models.Message, error) {
	room, err := s.Authorize(ctx, claims.UserID, roomID)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content must not be empty", apperr.ErrValidation)
	}
	if replyTo != nil {
		if _, err := s.msgs.Get(ctx, roomID, *replyTo); err != nil {
			return nil, fmt.Errorf("%w: reply target not in this room", apperr.ErrValidation)
		}
	}

	msg, err := s.msgs.Append(ctx, &models.Message{
		RoomID:     roomID,
		SenderID:   claims.UserID,
		SenderName: claims.Name,
		Content:    content,
		ReplyTo:    replyTo,
	})
	if err != nil {
		return nil, err
	}
	if err := s.rooms.Touch(ctx, roomID, msg); err != nil {
		s.log.Errorw("touch after append", "room", roomID, "seq", msg.Seq, "err", err)
	}

	s.resolveReplies(ctx, roomID, []*models.Message{msg})
	s.bcast.MessageCreated(roomID, msg)
	s.events.Publish(ctx, events.Event{
		Type:        events.TypeMessageSent,
		RoomID:      roomID,
		MessageID:   msg.Seq,
		SenderID:    claims.UserID,
		RecipientID: room.OtherParticipant(claims.UserID).ID,
	})
	return msg, nil
}

// Edit replaces the content of the caller's own message.
func (s *Service) Edit(ctx context.Context, claims *auth.Claims, roomID string, seq int64, content string) (*models.Message, error) {
	room, err := s.Authorize(ctx, claims.UserID, roomID)
	if err != nil {
		return nil, err
	}
	msg, err := s.msgs.Get(ctx, roomID, seq)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != claims.UserID {
		return nil, fmt.Errorf("%w: only the sender can edit a message", apperr.ErrForbidden)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content must not be empty", apperr.ErrValidation)
	}

	editedAt := time.Now().UTC()
	if err := s.msgs.UpdateContent(ctx, roomID, seq, content, editedAt); err != nil {
		return nil, err
	}
	msg.Content = content
	msg.EditedAt = &editedAt

	// keep the list-view snapshot truthful when the newest message changes
	if room.LastMessage != nil && room.LastMessage.Seq == seq {
		if err := s.rooms.Touch(ctx, roomID, msg); err != nil {
			s.log.Errorw("touch after edit", "room", roomID, "seq", seq, "err", err)
		}
	}

	s.resolveReplies(ctx, roomID, []*models.Message{msg})
	s.bcast.MessageEdited(roomID, msg)
	s.events.Publish(ctx, events.Event{
		Type:        events.TypeMessageEdited,
		RoomID:      roomID,
		MessageID:   seq,
		SenderID:    claims.UserID,
		RecipientID: room.OtherParticipant(claims.UserID).ID,
	})
	return msg, nil
}

// Delete hard-removes the caller's own message. Replies that pointed at it
// keep their reference and render without a snapshot from then on.
func (s *Service) Delete(ctx context.Context, claims *auth.Claims, roomID string, seq int64) error {
	room, err := s.Authorize(ctx, claims.UserID, roomID)
	if err != nil {
		return err
	}
	msg, err := s.msgs.Get(ctx, roomID, seq)
	if err != nil {
		return err
	}
	if msg.SenderID != claims.UserID {
		return fmt.Errorf("%w: only the sender can delete a message", apperr.ErrForbidden)
	}
	if err := s.msgs.Delete(ctx, roomID, seq); err != nil {
		return err
	}

	if room.LastMessage != nil && room.LastMessage.Seq == seq {
		last, err := s.msgs.Last(ctx, roomID)
		if err != nil {
			s.log.Errorw("reload last message", "room", roomID, "err", err)
		} else if err := s.rooms.Touch(ctx, roomID, last); err != nil {
			s.log.Errorw("touch after delete", "room", roomID, "err", err)
		}
	}

	s.bcast.MessageDeleted(roomID, seq)
	s.events.Publish(ctx, events.Event{
		Type:        events.TypeMessageDeleted,
		RoomID:      roomID,
		MessageID:   seq,
		SenderID:    claims.UserID,
		RecipientID: room.OtherParticipant(claims.UserID).ID,
	})
	return nil
}

// MarkRead flags every message in the room not sent by the caller as read.
func (s *Service) MarkRead(ctx context.Context, userID, roomID string) error {
	if _, err := s.Authorize(ctx, userID, roomID); err != nil {
		return err
	}
	n, err := s.msgs.MarkRead(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if n > 0 {
		s.events.Publish(ctx, events.Event{
			Type:        events.TypeRoomRead,
			RoomID:      roomID,
			RecipientID: userID,
		})
	}
	return nil
}

// UnreadForRoom is the per-room unread count for one participant.
func (s *Service) UnreadForRoom(ctx context.Context, userID, roomID string) (int64, error) {
	if _, err := s.Authorize(ctx, userID, roomID); err != nil {
		return 0, err
	}
	return s.msgs.CountUnread(ctx, roomID, userID)
}

// UnreadTotal sums unread counts across every room the user participates in.
// It is derived on demand from message records, never stored, so it cannot
// drift; callers poll it at a coarse interval for the navigation badge.
func (s *Service) UnreadTotal(ctx context.Context, userID string) (int64, error) {
	rooms, err := s.rooms.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, room := range rooms {
		n, err := s.msgs.CountUnread(ctx, room.ID, userID)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
