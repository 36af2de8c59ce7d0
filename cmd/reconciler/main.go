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
	"github.com/justinz12xd/practicaweb-resilencia/internal/infrastructure/kafka"
	"github.com/justinz12xd/practicaweb-resilencia/internal/infrastructure/postgres"
	"github.com/justinz12xd/practicaweb-resilencia/internal/ops"
	"github.com/justinz12xd/practicaweb-resilencia/internal/orchestrator"
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

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	adoptionRepo := postgres.NewAdoptionRepository(pgPool)

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:  cfg.Kafka.Brokers,
		Producer: "adoption-reconciler",
		Topics: map[string]string{
			event.TypeAdoptionCreated: cfg.Kafka.AdoptionCreatedTopic,
			event.TypeWebhookPublish:  cfg.Kafka.WebhookPublishTopic,
		},
	})
	defer producer.Close()

	reconciler := orchestrator.NewReconciler(adoptionRepo, producer, cfg.Reconciler.PendingAge)

	if err := reconciler.Run(ctx, cfg.Reconciler.Interval); err != nil {
		logger.Error("reconciler stopped", "error", err)
		os.Exit(1)
	}
}
