package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/justinz12xd/practicaweb-resilencia/internal/application/factories/infrastructure"
	"github.com/justinz12xd/practicaweb-resilencia/internal/config"
	"github.com/justinz12xd/practicaweb-resilencia/internal/domain/event"
	"github.com/justinz12xd/practicaweb-resilencia/internal/idempotency"
	"github.com/justinz12xd/practicaweb-resilencia/internal/infrastructure/kafka"
	redisinfra "github.com/justinz12xd/practicaweb-resilencia/internal/infrastructure/redis"
	"github.com/justinz12xd/practicaweb-resilencia/internal/messaging"
	"github.com/justinz12xd/practicaweb-resilencia/internal/ops"
	"github.com/justinz12xd/practicaweb-resilencia/internal/webhook"
)

func main() {
	// Initialize structured JSON logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go ops.Serve(ctx, cfg.Ops.Port)

	infraFactory := infrastructure.NewFactory(cfg)
	defer infraFactory.Close()

	redisClient, err := infraFactory.Redis(ctx)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	store := redisinfra.NewIdempotencyStore(redisClient, "webhook:processed")
	deadLetters := redisinfra.NewDeadLetterQueue(redisClient, cfg.Webhook.DeadLetterKey)

	engine := webhook.NewEngine(webhook.Config{
		URL:         cfg.Webhook.URL,
		Secret:      cfg.Webhook.Secret,
		MaxRetries:  cfg.Webhook.MaxRetries,
		HTTPTimeout: cfg.Webhook.HTTPTimeout,
		BackoffBase: cfg.Webhook.BackoffBase,
		BackoffCap:  cfg.Webhook.BackoffCap,
	}, deadLetters)

	consumer := webhook.NewConsumer(idempotency.NewGuard(store), engine)

	dispatcher := messaging.NewDispatcher()
	dispatcher.Register(event.TypeWebhookPublish, consumer.HandleWebhookPublish)

	pool := kafka.NewConsumerPool(cfg.Kafka.Brokers, cfg.Kafka.WebhookPublishTopic,
		cfg.Kafka.WebhookGroupID, cfg.Consumer.Workers, dispatcher)

	logger.Info("Webhook Delivery Engine Started",
		"topic", cfg.Kafka.WebhookPublishTopic,
		"group_id", cfg.Kafka.WebhookGroupID,
		"receiver", cfg.Webhook.URL,
		"max_retries", cfg.Webhook.MaxRetries)

	pool.Run(ctx)
}
