// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"syncbridge-service/internal/config"
	"syncbridge-service/internal/db"
	dataHandler "syncbridge-service/internal/handlers/data"
	webhookHandler "syncbridge-service/internal/handlers/webhook"
	wsHandler "syncbridge-service/internal/handlers/websocket"
	"syncbridge-service/internal/middleware"
	"syncbridge-service/internal/platform/livechat"
	"syncbridge-service/internal/platform/ringcentral"
	"syncbridge-service/internal/repository/postgres"
	contactService "syncbridge-service/internal/service/contact"
	conversationService "syncbridge-service/internal/service/conversation"
	dedupService "syncbridge-service/internal/service/dedup"
	presenceService "syncbridge-service/internal/service/presence"
	reportingService "syncbridge-service/internal/service/reporting"
	syncService "syncbridge-service/internal/service/sync"
	"syncbridge-service/internal/worker"
	"syncbridge-service/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger

	pool       *worker.Pool
	poolCancel context.CancelFunc
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.Default()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	// ----- Logger -----
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pgPool, err := db.ConnectDB(s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	// Redis is the dedup fast path only; startup survives without it.
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       0,
		PoolSize: 10,
	})
	if err != nil {
		logger.Warn("redis unavailable, dedup runs on the database alone", zap.Error(err))
		redisClient = nil
	}

	// ----- Repositories -----
	agentRepo := postgres.NewAgentRepository(pgPool)
	presenceRepo := postgres.NewPresenceRepository(pgPool)
	customerRepo := postgres.NewCustomerRepository(pgPool)
	conversationRepo := postgres.NewConversationRepository(pgPool)
	callRecordRepo := postgres.NewCallRecordRepository(pgPool)
	messageRepo := postgres.NewMessageRepository(pgPool)
	webhookEventRepo := postgres.NewWebhookEventRepository(pgPool)
	syncLogRepo := postgres.NewSyncLogRepository(pgPool)

	// ----- Platform clients -----
	lcClient := livechat.NewClient(
		s.cfg.LiveChat.APIURL, s.cfg.LiveChat.AccessToken,
		s.cfg.RemoteTimeout, s.cfg.MaxRetries, logger,
	)
	rcClient := ringcentral.NewClient(
		s.cfg.RingCentral.APIURL, s.cfg.RingCentral.AccessToken,
		s.cfg.RemoteTimeout, s.cfg.MaxRetries, logger,
	)

	// ----- WebSocket hub -----
	hub := ws.NewHub(logger)

	// ----- Services -----
	deduper := dedupService.NewService(webhookEventRepo, redisClient, s.cfg.LedgerTTL, logger)
	matcher := contactService.NewMatcher(customerRepo, logger)
	conversations := conversationService.NewService(conversationRepo, callRecordRepo, messageRepo, matcher, agentRepo, logger)
	presence := presenceService.NewService(presenceRepo, syncLogRepo, conversations, lcClient, rcClient, hub, logger)
	processor := syncService.NewProcessor(agentRepo, conversations, presence, deduper, customerRepo, rcClient, lcClient, syncLogRepo, logger)
	reporting := reportingService.NewService(agentRepo, presenceRepo, conversationRepo, messageRepo, callRecordRepo, customerRepo, syncLogRepo, logger)

	// ----- Worker pool -----
	s.pool = worker.NewPool(s.cfg.WorkerCount, s.cfg.WorkerQueueSize, s.cfg.JobTimeout, logger)
	poolCtx, cancel := context.WithCancel(context.Background())
	s.poolCancel = cancel
	s.pool.Start(poolCtx)
	go s.pool.RunJanitor(poolCtx, time.Hour, func(ctx context.Context) error {
		return deduper.PurgeExpired(ctx)
	})

	// ----- Handlers -----
	lcWebhook := webhookHandler.NewLiveChatHandler(s.cfg.LiveChat.WebhookSecret, deduper, processor, s.pool, logger)
	rcWebhook := webhookHandler.NewRingCentralHandler(s.cfg.RingCentral.WebhookSecret, deduper, processor, s.pool, logger)
	dataHandlerInst := dataHandler.NewDataHandler(reporting)
	wsHandlerInst := wsHandler.NewWSHandler(hub, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(s.cfg.ReportingJWTSecret)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		LiveChatHandler:    lcWebhook,
		RingCentralHandler: rcWebhook,
		DataHandler:        dataHandlerInst,
		WSHandler:          wsHandlerInst,
		AuthMiddleware:     authMiddleware,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	log.Printf("server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}

// Shutdown drains the worker pool so in-flight webhook jobs finish.
func (s *Server) Shutdown() {
	if s.poolCancel != nil {
		s.poolCancel()
	}
	if s.pool != nil {
		s.pool.Stop()
	}
}
