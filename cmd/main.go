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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"road-inspector/config"
	"road-inspector/internal/api/httpapi"
	"road-inspector/internal/api/telegram"
	"road-inspector/internal/container"
	"road-inspector/internal/infrastructure/tracing"
	"road-inspector/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Трассировка не обязательна: без неё сервис работает как обычно
	if cfg.JaegerEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
		if err != nil {
			zl.Warn("tracing disabled", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()
		}
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		zl.Fatal("failed to create work dir", zap.String("path", cfg.WorkDir), zap.Error(err))
	}

	appContainer, err := container.Build(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to build application", zap.Error(err))
	}
	defer appContainer.Close()

	// Бот нужен только для рассылки операторам, без токена работает один HTTP
	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer.OperatorService,
			appContainer.SurveyService, appContainer.ArtifactService, zl)
		if err != nil {
			zl.Fatal("failed to create bot", zap.Error(err))
		}
		appContainer.Notifier.Add(bot)

		go func() {
			if err := bot.Run(ctx); err != nil {
				zl.Error("bot stopped", zap.Error(err))
			}
		}()
		zl.Info("bot is running")
	}

	gin.SetMode(gin.ReleaseMode)
	server := httpapi.NewServer(httpapi.Deps{
		Survey:         appContainer.SurveyService,
		Artifacts:      appContainer.ArtifactService,
		Logger:         zl,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Health:         appContainer.Health,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("http server shutdown", zap.Error(err))
	}
}
