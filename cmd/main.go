package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/homehive/chat-service/internal/auth"
	"github.com/homehive/chat-service/internal/cache"
	"github.com/homehive/chat-service/internal/config"
	"github.com/homehive/chat-service/internal/events"
	"github.com/homehive/chat-service/internal/handlers"
	"github.com/homehive/chat-service/internal/logger"
	"github.com/homehive/chat-service/internal/middleware"
	"github.com/homehive/chat-service/internal/property"
	"github.com/homehive/chat-service/internal/repository"
	"github.com/homehive/chat-service/internal/service"
	"github.com/homehive/chat-service/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	zl, err := logger.New(logger.Config{Development: cfg.IsDevelopment()})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer zl.Sync()

	ctx := context.Background()

	mongoClient, err := repository.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		zl.Fatalw("mongo connect", "err", err)
	}
	defer mongoClient.Disconnect(context.Background())

	db := mongoClient.Database(cfg.Mongo.Database)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		zl.Fatalw("ensure indexes", "err", err)
	}
	roomRepo := repository.NewMongoRoomRepository(db)
	msgRepo := repository.NewMongoMessageRepository(db)

	var limiter *middleware.RateLimiter
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			zl.Fatalw("redis connect", "err", err)
		}
		defer rdb.Close()
		limiter = middleware.NewRateLimiter(rdb, "chat:rl", cfg.RateLimit.Limit, cfg.RateLimitWindow)
		zl.Infow("rate limiting enabled", "limit", cfg.RateLimit.Limit, "window", cfg.RateLimitWindow)
	}

	pub := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zl)
	defer pub.Close()

	props := property.NewClient(cfg.Property.BaseURL, cfg.PropertyTimeout)
	validator := auth.NewValidator(cfg.App.JWTSecret)

	hub := ws.NewHub(zl)
	svc := service.New(roomRepo, msgRepo, props, hub, pub, zl)
	wsSrv := ws.NewServer(hub, svc, validator, ws.Config{
		PingInterval:  cfg.PingInterval,
		WriteDeadline: cfg.WriteDeadline,
		ReadDeadline:  cfg.ReadDeadline,
		MaxMsgSize:    cfg.WS.MaxMessageSizeBytes,
	}, zl)

	h := handlers.NewChatHandler(svc, zl)
	app := handlers.NewApp(h, wsSrv, validator, limiter, zl)

	errs := make(chan error, 1)
	go func() {
		addr := ":" + strconv.Itoa(cfg.App.Port)
		zl.Infow("starting chat service", "addr", addr, "env", cfg.App.Env)
		errs <- app.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errs:
		zl.Fatalw("server error", "err", err)
	case s := <-sig:
		zl.Infow("signal received", "signal", s.String())
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zl.Errorw("shutdown", "err", err)
	}
	zl.Info("server stopped")
}
