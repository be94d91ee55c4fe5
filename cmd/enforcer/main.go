// Package main запускает сервис контроля уровней продавцов и просрочек отгрузки.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/seller-tier-enforcement/internal/config"
	"github.com/mmeshcher/seller-tier-enforcement/internal/enforcement"
	"github.com/mmeshcher/seller-tier-enforcement/internal/handler"
	"github.com/mmeshcher/seller-tier-enforcement/internal/lock"
	"github.com/mmeshcher/seller-tier-enforcement/internal/metrics"
	"github.com/mmeshcher/seller-tier-enforcement/internal/middleware"
	"github.com/mmeshcher/seller-tier-enforcement/internal/notify"
	"github.com/mmeshcher/seller-tier-enforcement/internal/repository"
	"github.com/mmeshcher/seller-tier-enforcement/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	metrics.Register()

	// Без Redis блокировки продавцов действуют только внутри процесса
	var locker enforcement.Locker
	if cfg.RedisURL != "" {
		client, err := lock.Connect(ctx, cfg.RedisURL)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer client.Close()
		locker = lock.NewRedisLocker(client, 0)
	}

	var publishers []service.TierPublisher
	if cfg.TierWebhookURL != "" {
		publishers = append(publishers, notify.NewWebhookClient(cfg.TierWebhookURL))
	}
	if cfg.AMQPURL != "" {
		rabbit, err := notify.NewRabbitPublisher(cfg.AMQPURL)
		if err != nil {
			sugar.Fatalw("rabbitmq initialization error", "error", err.Error())
		}
		defer rabbit.Close()
		publishers = append(publishers, rabbit)
	}

	svc := service.NewService(repo, service.Options{
		Locker:      locker,
		ScanWorkers: cfg.ScanWorkers,
		Publishers:  publishers,
		Logger:      logger,
	})
	defer svc.Close()

	triggerAuth := middleware.NewTriggerAuth(cfg.TriggerSecret)
	if cfg.TriggerSecret == "" {
		sugar.Warn("trigger secret is not set, internal endpoints accept no tokens")
	}
	h := handler.NewHandler(svc, logger, triggerAuth)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Плановый прогон сканера просрочек
	g.Go(func() error {
		svc.StartScanSchedule(ctx, cfg.ScanInterval, cfg.ScanTimeout)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting enforcement server",
			"addr", cfg.RunAddress,
			"scanInterval", cfg.ScanInterval,
			"publishers", len(publishers),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
