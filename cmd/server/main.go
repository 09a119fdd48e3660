package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mesa/internal/app"
	"mesa/internal/database"
	"mesa/internal/handlers"
	"mesa/internal/router"
	"mesa/internal/services"
	"mesa/pkg/config"
	"mesa/pkg/jwt"
	"mesa/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger := logger.GetLogger()
	appLogger.Info("Starting mesa server...")

	container, err := app.Build(cfg)
	if err != nil {
		appLogger.Fatalf("Failed to initialize services: %v", err)
	}
	defer app.Close()

	if err := app.Seed(context.Background(), container); err != nil {
		appLogger.Fatalf("Failed to initialize seed data: %v", err)
	}

	gin.SetMode(cfg.Server.Mode)

	// 订阅批处理调度器，多实例部署时只在一个实例上开启
	var scheduler *services.BillingScheduler
	if cfg.Billing.Enabled {
		scheduler = services.NewBillingScheduler(container.Batch, cfg.Billing.Cron)
		if err := scheduler.Start(); err != nil {
			appLogger.Errorf("Failed to start billing scheduler: %v", err)
			scheduler = nil
		} else {
			defer scheduler.Stop()
		}
	}

	r := router.SetupRouter(router.Dependencies{
		Services:   container,
		JWTManager: jwt.GetJWTManager(),
		CORS:       cfg.CORS,
		HealthChecks: map[string]handlers.HealthCheck{
			"database": func(ctx context.Context) error {
				sqlDB, err := database.GetDB().DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"redis": func(ctx context.Context) error {
				return database.GetRedisClient().Ping(ctx).Err()
			},
		},
		Scheduler: scheduler,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}
	appLogger.Info("Server exited")
}
