// Package main runs the meeting HTTP server with WebSocket signaling and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/minimeet/backend/config"
	"github.com/minimeet/backend/internal/attendance"
	"github.com/minimeet/backend/internal/auth"
	"github.com/minimeet/backend/internal/chat"
	"github.com/minimeet/backend/internal/meetings"
	"github.com/minimeet/backend/internal/middleware"
	"github.com/minimeet/backend/internal/models"
	"github.com/minimeet/backend/internal/polls"
	"github.com/minimeet/backend/internal/questions"
	"github.com/minimeet/backend/internal/realtime"
	"github.com/minimeet/backend/internal/transcripts"
	"github.com/minimeet/backend/pkg/database"
	"github.com/minimeet/backend/pkg/queue"
	"github.com/minimeet/backend/pkg/redis"
	"github.com/minimeet/backend/pkg/response"
	"github.com/minimeet/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			TranscriptsBucket:    cfg.AWS.TranscriptsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		}
	}

	iceServers, err := realtime.ICEServers(cfg.WebRTC.ICEUrls, cfg.WebRTC.TURNUsername, cfg.WebRTC.TURNCredential)
	if err != nil {
		logger.Fatal("webrtc ice servers", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	meetingRepo := meetings.NewRepository(pool)
	chatRepo := chat.NewRepository(pool)
	attendanceRepo := attendance.NewRepository(pool)

	// Realtime hub. Redis fan-out is only needed when several instances serve the same meeting.
	hubCfg := realtime.Config{
		SendBuffer: cfg.Realtime.SendBuffer,
		ReadLimit:  cfg.Realtime.ReadLimit,
		MaxStrokes: cfg.Realtime.MaxStrokes,
	}
	var hub *realtime.Hub
	if cfg.Redis.PubSub {
		pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, hubCfg, meetingRepo, chatRepo, pubsub, pubsub)
	} else {
		hub = realtime.NewHub(logger, hubCfg, meetingRepo, chatRepo, nil, nil)
	}
	tracker := attendance.NewTracker(meetingRepo, attendanceRepo, logger)
	hub.SetPresenceHooks(tracker.OnJoin, tracker.OnLeave)

	jobQueue := queue.NewQueue(rdb.Client, cfg.Worker.MaxRetries, logger)

	meetingHandler := meetings.NewHandler(meetingRepo, hub, attendanceRepo, jobQueue, logger)
	pollHandler := polls.NewHandler(polls.NewRepository(pool), meetingRepo, hub, logger)
	questionHandler := questions.NewHandler(questions.NewRepository(pool), meetingRepo, hub, logger)
	chatHandler := chat.NewHandler(chatRepo, meetingRepo, logger)
	attendanceHandler := attendance.NewHandler(attendanceRepo, meetingRepo)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if err := rdb.Healthy(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)
		api.GET("/users", middleware.RequireRole(models.RoleAdmin), authHandler.List)

		api.GET("/webrtc/ice-servers", realtime.ICEHandler(iceServers))

		// Meetings
		api.POST("/meetings", meetingHandler.Create)
		api.GET("/meetings", meetingHandler.List)
		api.POST("/meetings/join", meetingHandler.JoinByCode)
		api.GET("/meetings/link/:link", meetingHandler.ByLink)
		api.GET("/meetings/:id", meetingHandler.GetByID)
		api.POST("/meetings/:id/lock", meetingHandler.ToggleLock)
		api.POST("/meetings/:id/approve", meetingHandler.Approve)
		api.POST("/meetings/:id/deny", meetingHandler.Deny)
		api.GET("/meetings/:id/pending", meetingHandler.Pending)
		api.POST("/meetings/:id/end", meetingHandler.End)
		api.GET("/meetings/:id/participants", meetingHandler.Participants)
		api.GET("/meetings/:id/whiteboard", meetingHandler.Whiteboard)
		api.GET("/meetings/:id/chat", chatHandler.List)
		api.GET("/meetings/:id/attendance", attendanceHandler.List)

		// Breakout rooms
		api.POST("/meetings/:id/breakout", meetingHandler.CreateBreakout)
		api.POST("/meetings/:id/breakout/leave", meetingHandler.LeaveBreakout)
		api.POST("/meetings/:id/breakout/:roomId/join", meetingHandler.JoinBreakout)

		// Polls
		api.POST("/meetings/:id/polls", pollHandler.Create)
		api.GET("/meetings/:id/polls", pollHandler.List)
		api.POST("/polls/:id/vote", pollHandler.Vote)
		api.POST("/polls/:id/end", pollHandler.End)

		// Q&A
		api.POST("/meetings/:id/questions", questionHandler.Ask)
		api.GET("/meetings/:id/questions", questionHandler.List)
		api.POST("/questions/:id/answer", questionHandler.Answer)
		api.POST("/questions/:id/upvote", questionHandler.Upvote)

		if s3Client != nil {
			transcriptHandler := transcripts.NewHandler(s3Client, meetingRepo, logger)
			api.GET("/meetings/:id/transcript", transcriptHandler.Get)
		}
	}

	// WebSocket (token in query; the meeting is chosen by join-meeting)
	router.GET("/ws", realtime.ServeWs(hub, logger, auth.Identify(jwtService, authRepo)))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.Bool("redis_pubsub", cfg.Redis.PubSub))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if os.Getenv("LOG_LEVEL") == "debug" {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, _ := config.Build()
	return logger
}
