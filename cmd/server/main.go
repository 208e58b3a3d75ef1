package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/volunteer-shift-scheduler/internal/config"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/database"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/handler"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/logging"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/middleware"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/queue"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/repository"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/router"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/scheduler"
	"github.com/iliyamo/volunteer-shift-scheduler/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()

	shifts := repository.NewShiftRepo(db)
	commitments := repository.NewCommitmentRepo(db)
	users := repository.NewUserRepo(db)

	notifier := service.NewQueueNotifier(logger)
	engine := scheduler.New(shifts, commitments, users,
		scheduler.DefaultPermissions(), notifier, nil, logger)

	// Redis is optional: with no client both middlewares pass through.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, rate limiting and caching disabled")
	}
	signupLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	listCache := middleware.NewListCache(config.LoadCacheConfig(), rdb)

	// The consumer drains the notification queue into the delivery log.
	// It reconnects on its own, so a dead broker only costs notifications.
	go func() {
		if err := queue.StartNotificationConsumer(logger); err != nil {
			logger.Warn("notification consumer stopped", zap.Error(err))
		}
	}()

	e := echo.New()
	e.HideBanner = true

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users), cfg.JWTSecret)
	router.RegisterShifts(e, handler.NewShiftHandler(engine, shifts), cfg.JWTSecret, listCache)
	router.RegisterCommitments(e, handler.NewCommitmentHandler(engine, commitments), cfg.JWTSecret, signupLimit)

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
