// Package handlers is the request/response facade over the chat core. It is
// the bootstrap and fallback path when no live channel is open; every
// operation maps onto the same service calls the gateway uses.
package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/homehive/chat-service/internal/apperr"
	"github.com/homehive/chat-service/internal/middleware"
	"github.com/homehive/chat-service/internal/service"
)

type ChatHandler struct {
	svc *service.Service
	log *zap.SugaredLogger
}

func NewChatHandler(svc *service.Service, log *zap.SugaredLogger) *ChatHandler {
	return &ChatHandler{svc: svc, log: log}
}

func (h *ChatHandler) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, apperr.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "access denied"})
	case errors.Is(err, apperr.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	default:
		h.log.Errorw("chat handler", "path", c.OriginalURL(), "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

// GET /api/chat/rooms
func (h *ChatHandler) ListRooms(c *fiber.Ctx) error {
	claims := middleware.Claims(c)
	rooms, err := h.svc.ListRooms(c.Context(), claims.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"rooms": rooms})
}

type createRoomInput struct {
	PropertyID string `json:"property_id"`
}

// POST /api/chat/rooms
func (h *ChatHandler) CreateRoom(c *fiber.Ctx) error {
	claims := middleware.Claims(c)
	var in createRoomInput
	if err := c.BodyParser(&in); err != nil || in.PropertyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "property_id required"})
	}
	room, created, err := h.svc.GetOrCreateRoom(c.Context(), claims, in.PropertyID)
	if err != nil {
		return h.fail(c, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"room": room, "created": created})
}

// GET /api/chat/rooms/:roomID/messages?limit=50&before=<seq>
func (h *ChatHandler) History(c *fiber.Ctx) error {
	claims := middleware.Claims(c)
	roomID := c.Params("roomID")
	limit, _ := strconv.ParseInt(c.Query("limit", "50"), 10, 64)
	before, _ := strconv.ParseInt(c.Query("before", "0"), 10, 64)

	msgs, err := h.svc.History(c.Context(), claims.UserID, roomID, limit, before)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

type sendMessageInput struct {
	Content string `json:"content"`
	ReplyTo *int64 `json:"reply_to,omitempty"`
}

// POST /api/chat/rooms/:roomID/messages
func (h *ChatHandler) PostMessage(c *fiber.Ctx) error {
	claims := middleware.Claims(c)
	roomID := c.Params("roomID")
	var in sendMessageInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	msg, err := h.svc.Send(c.Context(), claims, roomID, in.Content, in.ReplyTo)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

type editMessageInput struct {
	Content string `json:"content"`
}

// PATCH /api/chat/rooms/:roomID/messages/:seq
func (h *ChatHandler) EditMessage(c *fiber.Ctx) error {
	claims := middleware.Claims(c)
	roomID := c.Params("roomID")
	seq, err := strconv.ParseInt(c.Params("seq"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid message id"})
	}
	var in editMessageInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	msg, err := h.svc.Edit(c.Context(), claims, roomID, seq, in.Content)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(msg)
}

// DELETE /api/chat/rooms/:roomID/messages/:seq
func (h *ChatHandler) DeleteMessage(c *fiber.Ctx) error {
	claims := middleware.Claims(c)
	roomID := c.Params("roomID")
	seq, err := strconv.ParseInt(c.Params("seq"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid message id"})
	}
	if err := h.svc.Delete(c.Context(), claims, roomID, seq); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PATCH /api/chat/rooms/:roomID/read
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	claims := middleware.Claims(c)
	if err := h.svc.MarkRead(c.Context(), claims.UserID, c.Params("roomID")); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "messages marked as read"})
}

// GET /api/chat/unread-count
func (h *ChatHandler) UnreadCount(c *fiber.Ctx) error {
	claims := middleware.Claims(c)
	total, err := h.svc.UnreadTotal(c.Context(), claims.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"unread_count": total})
}
