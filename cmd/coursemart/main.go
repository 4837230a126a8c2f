// Package main запускает HTTP-сервер маркетплейса курсов coursemart.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/coursemart/internal/config"
	"github.com/mmeshcher/coursemart/internal/dedup"
	"github.com/mmeshcher/coursemart/internal/events"
	"github.com/mmeshcher/coursemart/internal/gateway"
	"github.com/mmeshcher/coursemart/internal/handler"
	"github.com/mmeshcher/coursemart/internal/middleware"
	"github.com/mmeshcher/coursemart/internal/repository"
	"github.com/mmeshcher/coursemart/internal/service"
)

const producerName = "coursemart"

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	// .env нужен только при локальном запуске
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		sugar.Warnw("load .env file", "error", err.Error())
	}

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	gw := gateway.NewClient(cfg.GatewayAddress, cfg.GatewayKeyID, cfg.GatewayKeySecret, cfg.GatewayTimeout)

	if cfg.WebhookSecret == "" {
		sugar.Warn("webhook secret is not set, gateway webhooks will be rejected")
	}

	var opts []service.Option

	if cfg.RedisAddr != "" {
		deduper := dedup.New(cfg.RedisAddr, "gateway_webhook", dedup.DefaultTTL)
		defer deduper.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := deduper.Ping(pingCtx); err != nil {
			sugar.Warnw("redis is unavailable, webhook deliveries will not be deduplicated", "error", err.Error())
		} else {
			opts = append(opts, service.WithDeduper(deduper))
		}
		cancel()
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.EnrollmentTopic, producerName, logger)
		defer publisher.Close()

		opts = append(opts, service.WithPublisher(publisher))
	}

	svc := service.NewService(repo, gw, service.PaymentConfig{
		Currency:      cfg.Currency,
		KeySecret:     cfg.GatewayKeySecret,
		WebhookSecret: cfg.WebhookSecret,
	}, logger, opts...)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret, cfg.TokenTTL)
	if cfg.JWTSecret == "" {
		sugar.Warn("jwt secret is not set, tokens will not survive restart")
	}

	h := handler.NewHandler(svc, logger, authMiddleware, cfg.GatewayKeyID)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Фоновая сверка записей на курсы с завершёнными покупками
	g.Go(func() error {
		return svc.RunReconciliation(ctx, cfg.ReconcileInterval)
	})

	g.Go(func() error {
		sugar.Infow("starting coursemart server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		sugar.Errorw("application terminated with error", "error", err)
	}
}
