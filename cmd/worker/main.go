package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/config"
	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/domain"
	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/messaging"
	"github.com/technorecep1-spec/sus-tavuk-satis-sub000/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load("")

	if len(cfg.KafkaBrokers) == 0 {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}
	if cfg.EmailServiceURL == "" {
		logger.Error("EMAIL_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout: 10 * time.Second,
	}

	notificationHandler := worker.NewNotificationHandler(cfg.EmailServiceURL, httpClient, logger)

	createdConsumer := messaging.NewConsumer(cfg.KafkaBrokers, domain.TopicOrderCreated, "notification-worker", logger)
	defer func() { _ = createdConsumer.Close() }()

	statusConsumer := messaging.NewConsumer(cfg.KafkaBrokers, domain.TopicOrderStatusChanged, "notification-worker", logger)
	defer func() { _ = statusConsumer.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting notification worker", "brokers", cfg.KafkaBrokers)

	errs := make(chan error, 2)
	go func() {
		errs <- createdConsumer.Consume(ctx, notificationHandler.HandleOrderCreated)
	}()
	go func() {
		errs <- statusConsumer.Consume(ctx, notificationHandler.HandleStatusChanged)
	}()

	if err := <-errs; err != nil {
		if ctx.Err() == context.Canceled {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
