package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/homehive/chat-service/internal/auth"
	"github.com/homehive/chat-service/internal/middleware"
	"github.com/homehive/chat-service/internal/ws"
)

// NewApp assembles the fiber application: middleware, the chat facade, and
// the live channel endpoint.
func NewApp(h *ChatHandler, wsSrv *ws.Server, validator *auth.Validator, limiter *middleware.RateLimiter, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(middleware.Recovery(log))
	app.Use(middleware.Logger(log))
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/chat", middleware.JWTAuth(validator))

	writeGuard := func(c *fiber.Ctx) error { return c.Next() }
	if limiter != nil {
		writeGuard = limiter.MiddlewareByKey(func(c *fiber.Ctx) string {
			return middleware.Claims(c).UserID
		})
	}

	api.Get("/rooms", h.ListRooms)
	api.Post("/rooms", h.CreateRoom)
	api.Get("/rooms/:roomID/messages", h.History)
	api.Post("/rooms/:roomID/messages", writeGuard, h.PostMessage)
	api.Patch("/rooms/:roomID/messages/:seq", writeGuard, h.EditMessage)
	api.Delete("/rooms/:roomID/messages/:seq", h.DeleteMessage)
	api.Patch("/rooms/:roomID/read", h.MarkRead)
	api.Get("/unread-count", h.UnreadCount)

	// live channel: token travels as a query parameter because browsers
	// cannot set headers on a websocket handshake
	app.Use("/ws/chat/:roomID", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat/:roomID", websocket.New(wsSrv.Handler()))

	return app
}
