package ws

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/homehive/chat-service/internal/apperr"
	"github.com/homehive/chat-service/internal/auth"
	"github.com/homehive/chat-service/internal/service"
)

type Config struct {
	PingInterval  time.Duration
	WriteDeadline time.Duration
	ReadDeadline  time.Duration
	MaxMsgSize    int64
}

type Server struct {
	hub       *Hub
	svc       *service.Service
	validator *auth.Validator
	cfg       Config
	log       *zap.SugaredLogger
}

func NewServer(hub *Hub, svc *service.Service, validator *auth.Validator, cfg Config, log *zap.SugaredLogger) *Server {
	return &Server{hub: hub, svc: svc, validator: validator, cfg: cfg, log: log}
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler runs the connection state machine: validate the bearer token and
// the room membership, register in the fan-out set, then pump frames until
// the transport closes. A failed handshake closes the socket without leaving
// any state behind.
func (s *Server) Handler() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		token := conn.Query("token")
		roomID := conn.Params("roomID")
		if token == "" || roomID == "" {
			_ = conn.Close()
			return
		}
		claims, err := s.validator.Validate(token)
		if err != nil {
			_ = conn.Close()
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err = s.svc.Authorize(ctx, claims.UserID, roomID)
		cancel()
		if err != nil {
			_ = conn.Close()
			return
		}

		client := newClient(uuid.NewString(), claims.UserID, roomID, conn)
		s.hub.Register(roomID, client)
		s.log.Infow("live channel open", "room", roomID, "user", claims.UserID, "conn", client.ID)

		go client.writePump(s.cfg.PingInterval, s.cfg.WriteDeadline)
		client.readPump(s.cfg.MaxMsgSize, s.cfg.ReadDeadline, func(c *Client, in inbound) {
			s.handleInbound(claims, c, in)
		})

		s.hub.Unregister(roomID, client)
		close(client.send)
		s.log.Infow("live channel closed", "room", roomID, "user", claims.UserID, "conn", client.ID)
	}
}

// handleInbound persists an incoming send through the same service path the
// facade uses; the fan-out (including the echo back to this connection) is
// triggered by the service after the store write succeeds. Failures go back
// to the sending connection only and never close it.
func (s *Server) handleInbound(claims *auth.Claims, c *Client, in inbound) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.svc.Send(ctx, claims, c.RoomID, in.Message, in.ReplyTo)
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, apperr.ErrValidation):
		c.sendFrame(Frame{Type: FrameError, Error: err.Error()})
	case errors.Is(err, apperr.ErrForbidden), errors.Is(err, apperr.ErrNotFound):
		c.sendFrame(Frame{Type: FrameError, Error: "cannot send to this room"})
	default:
		s.log.Errorw("ws send", "room", c.RoomID, "user", c.UserID, "err", err)
		c.sendFrame(Frame{Type: FrameError, Error: "send failed"})
	}
}
