package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"decentra/internal/analysis"
	"decentra/internal/cache"
	"decentra/internal/config"
	"decentra/internal/database"
	"decentra/internal/log"
	"decentra/internal/queue"
	"decentra/internal/repository"
	"decentra/internal/service"
	"decentra/internal/storage"
	"decentra/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}

	producer := queue.NewProducer(client, cfg.Worker.Stream)
	photos := service.NewPhotoService(
		repository.NewPhotoRepository(dbPool),
		repository.NewUserRepository(dbPool),
		objectStore,
		analysis.NewClient(cfg.Analyzer),
		producer,
		logger,
	)

	processor := tasks.NewProcessor(photos, tasks.Options{
		MaxAttempts: cfg.Worker.MaxAttempts,
		SweepMinAge: cfg.Worker.SweepMinAge,
	}, logger)

	consumer := queue.NewConsumer(client, queue.ConsumerConfig{
		Stream:        cfg.Worker.Stream,
		Group:         cfg.Worker.Group,
		Consumer:      cfg.Worker.Consumer,
		ClaimInterval: cfg.Worker.ClaimInterval,
		MaxDeliveries: int64(cfg.Worker.MaxAttempts) * 2,
	}, logger, processor)

	logger.Info().Str("stream", cfg.Worker.Stream).Str("group", cfg.Worker.Group).Msg("worker started")
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped unexpectedly")
	}
	logger.Info().Msg("worker exited")
}
