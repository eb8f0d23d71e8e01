package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-artwork/internal/api"
	"media-artwork/internal/core/artwork"
	"media-artwork/internal/core/display"
	"media-artwork/internal/core/image"
	"media-artwork/internal/core/media"
	"media-artwork/internal/infrastructure/config"
	"media-artwork/internal/infrastructure/events"
	"media-artwork/internal/pkg/common"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 載入 .env
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found")
	}

	// 載入設定
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel, cfg.LogDir); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.Int("display_width", cfg.Display.Width),
		zap.Int("display_height", cfg.Display.Height),
		zap.String("output_format", cfg.Image.OutputFormat),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
	)

	// 螢幕尺寸
	provider, err := display.FromConfig(cfg)
	if err != nil {
		common.LogFatal("Failed to initialize display provider", zap.Error(err))
	}

	// 藝術圖處理器與工作階段
	allocator := artwork.NewHeapAllocator(cfg.Image.MaxDimension, cfg.Image.MaxPixels)
	processor := artwork.NewProcessor(
		artwork.WithAllocator(allocator),
		artwork.WithLogger(common.L()),
	)
	session := media.NewSession(processor, cfg.Session.QueueSize, common.L())
	defer session.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 訂閱換曲事件
	if cfg.Redis.Enabled {
		subscriber, err := events.NewSubscriber(ctx, cfg.Redis, func(ctx context.Context, event events.TrackChanged) error {
			return session.Invalidate(ctx, event.TrackKey)
		})
		if err != nil {
			common.LogFatal("Failed to initialize redis subscriber", zap.Error(err))
		}
		defer subscriber.Close()

		go func() {
			if err := subscriber.Run(ctx); err != nil {
				common.LogError("Redis subscriber stopped", zap.Error(err))
			}
		}()
	}

	// 設置路由
	router, err := api.SetupRouter(cfg, api.Dependencies{
		Session: session,
		Images:  image.NewService(cfg.Image),
		Display: provider,
	})
	if err != nil {
		common.LogError("Failed to setup router", zap.Error(err))
		os.Exit(1)
	}

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogError("Failed to start server",
				zap.Error(err),
			)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")
	stop()

	// 設置關閉超時
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		common.LogError("Server forced to shutdown",
			zap.Error(err),
		)
		os.Exit(1)
	}

	common.LogInfo("Server exited")
}
