package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"seniorcare-notify/internal/acktracker"
	"seniorcare-notify/internal/config"
	"seniorcare-notify/internal/database"
	"seniorcare-notify/internal/escalation"
	httpapi "seniorcare-notify/internal/http"
	rediscommon "seniorcare-notify/internal/redis"
	"seniorcare-notify/internal/repository"
	"seniorcare-notify/internal/scanner"
	"seniorcare-notify/internal/sender"

	"go.uber.org/zap"
)

// NotifyService 通知服务（整合各层）
type NotifyService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *rediscommon.Client
	logger      *zap.Logger

	// 各层组件
	medsRepo     *repository.MedicationLogsRepository
	guardianRepo *repository.GuardiansRepository
	deliveryRepo *repository.DeliveryLogRepository
	pushSender   *sender.PushSender
	smsSender    *sender.SMSSender
	rateLimiter  *sender.RateLimiter
	ackTracker   *acktracker.Tracker
	orchestrator *escalation.Orchestrator
	scanner      *scanner.Scanner
	server       *http.Server
}

// NewNotifyService 创建通知服务
func NewNotifyService(cfg *config.Config, logger *zap.Logger) (*NotifyService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 创建 Repository 层
	medsRepo := repository.NewMedicationLogsRepository(db, logger)
	guardianRepo := repository.NewGuardiansRepository(db, logger)
	deliveryRepo := repository.NewDeliveryLogRepository(db, logger)

	// 4. 创建通道层
	pushSender := sender.NewPushSender(cfg, deliveryRepo, logger)
	smsSender := sender.NewSMSSender(cfg, deliveryRepo, logger)
	rateLimiter := sender.NewRateLimiter(
		time.Duration(cfg.Notify.SMSCooldown)*time.Second,
		deliveryRepo,
		deliveryRepo,
		logger,
	)

	// 5. 创建确认跟踪与结果发布
	ackTracker := acktracker.NewTracker(cfg, redisClient, logger)
	publisher := escalation.NewStreamPublisher(redisClient, cfg.Notify.EventStream, logger)

	// 6. 创建编排器与扫描任务
	orchestrator := escalation.NewOrchestrator(
		cfg,
		pushSender,
		smsSender,
		rateLimiter,
		ackTracker,
		publisher,
		logger,
	)
	scan := scanner.NewScanner(cfg, medsRepo, guardianRepo, orchestrator, logger)

	// 7. 创建 HTTP 路由（poll 模式下紧急与确认端点仍然可用）
	handler := httpapi.NewNotifyHandler(scan, orchestrator, guardianRepo, ackTracker, logger)
	router := httpapi.NewRouter(logger)
	router.RegisterNotifyRoutes(handler)

	// 扫描与紧急端点同步执行升级，响应时间随未确认的保护人数增长，
	// 不能设置 WriteTimeout（否则批次完成后连接已过期，报告丢失）
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &NotifyService{
		config:       cfg,
		db:           db,
		redisClient:  redisClient,
		logger:       logger,
		medsRepo:     medsRepo,
		guardianRepo: guardianRepo,
		deliveryRepo: deliveryRepo,
		pushSender:   pushSender,
		smsSender:    smsSender,
		rateLimiter:  rateLimiter,
		ackTracker:   ackTracker,
		orchestrator: orchestrator,
		scanner:      scan,
		server:       server,
	}, nil
}

// Start 启动服务（阻塞直到 HTTP 服务退出）
func (s *NotifyService) Start(ctx context.Context) error {
	s.logger.Info("Starting notify service",
		zap.String("addr", s.config.HTTP.Addr),
		zap.String("trigger_mode", s.config.Notify.TriggerMode),
	)

	// poll 模式：内部轮询扫描；http 模式下扫描只由外部 cron 触发
	if s.config.Notify.TriggerMode == "poll" {
		go func() {
			if err := s.scanner.Start(ctx); err != nil {
				s.logger.Error("Overdue scanner stopped",
					zap.Error(err),
				)
			}
		}()
	}

	// 上下文取消时优雅关闭 HTTP 服务
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown failed",
				zap.Error(err),
			)
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Stop 停止服务
func (s *NotifyService) Stop() error {
	s.logger.Info("Stopping notify service")

	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if err := rediscommon.Close(s.redisClient); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}
