package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"seniorcare-notify/internal/config"
	"seniorcare-notify/internal/logger"
	"seniorcare-notify/internal/service"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载 .env 文件（存在时）
	_ = godotenv.Load()

	// 2. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 3. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "seniorcare-notify")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 4. 创建服务
	notifyService, err := service.NewNotifyService(cfg, log)
	if err != nil {
		log.Fatal("Failed to create notify service",
			zap.Error(err),
		)
	}
	defer notifyService.Stop()

	// 5. 创建上下文（支持优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 6. 启动服务（在 goroutine 中）
	serviceErrChan := make(chan error, 1)
	go func() {
		if err := notifyService.Start(ctx); err != nil {
			serviceErrChan <- err
		}
	}()

	// 7. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down",
			zap.String("signal", sig.String()),
		)
		cancel()
	case err := <-serviceErrChan:
		log.Fatal("Service error",
			zap.Error(err),
		)
	}

	log.Info("Notify service stopped")
}
