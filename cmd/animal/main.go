package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/justinz12xd/practicaweb-resilencia/internal/application/factories/infrastructure"
	"github.com/justinz12xd/practicaweb-resilencia/internal/availability"
	"github.com/justinz12xd/practicaweb-resilencia/internal/config"
	"github.com/justinz12xd/practicaweb-resilencia/internal/domain/event"
	"github.com/justinz12xd/practicaweb-resilencia/internal/infrastructure/kafka"
	"github.com/justinz12xd/practicaweb-resilencia/internal/infrastructure/postgres"
	"github.com/justinz12xd/practicaweb-resilencia/internal/messaging"
	"github.com/justinz12xd/practicaweb-resilencia/internal/ops"
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

	animalRepo := postgres.NewAnimalRepository(pgPool)
	consumer := availability.NewConsumer(animalRepo)

	dispatcher := messaging.NewDispatcher()
	dispatcher.Register(event.TypeAdoptionCreated, consumer.HandleAdoptionCreated)

	pool := kafka.NewConsumerPool(cfg.Kafka.Brokers, cfg.Kafka.AdoptionCreatedTopic,
		cfg.Kafka.AnimalGroupID, cfg.Consumer.Workers, dispatcher)

	logger.Info("Animal Availability Consumer Started",
		"topic", cfg.Kafka.AdoptionCreatedTopic,
		"group_id", cfg.Kafka.AnimalGroupID,
		"workers", cfg.Consumer.Workers)

	pool.Run(ctx)
}
