package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"decentra/internal/analysis"
	"decentra/internal/cache"
	"decentra/internal/config"
	"decentra/internal/database"
	"decentra/internal/handlers"
	"decentra/internal/jobs"
	"decentra/internal/log"
	"decentra/internal/middleware"
	"decentra/internal/obs"
	"decentra/internal/queue"
	"decentra/internal/repository"
	"decentra/internal/security"
	"decentra/internal/server"
	"decentra/internal/service"
	"decentra/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	tokens, err := security.NewTokenManager(security.TokenConfig{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TTL:      cfg.Auth.TokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init token manager")
	}

	var (
		revoker     service.TokenRevoker
		revocations middleware.RevocationChecker
	)
	if cfg.Auth.RevokeOnLogout {
		denylist := security.NewDenylist(redisClient)
		revoker, revocations = denylist, denylist
	}

	users := repository.NewUserRepository(dbPool)
	photos := repository.NewPhotoRepository(dbPool)
	appeals := repository.NewAppealRepository(dbPool)
	producer := queue.NewProducer(redisClient, cfg.Worker.Stream)

	authService := service.NewAuthService(
		users,
		security.NewHasher(security.DefaultArgon2Params),
		tokens,
		revoker,
		service.AuthOptions{AllowAdminSignup: cfg.Auth.AllowAdminSignup},
		logger,
	)
	photoService := service.NewPhotoService(photos, users, objectStore, analysis.NewClient(cfg.Analyzer), producer, logger)
	appealService := service.NewAppealService(appeals, users, photoService, logger)

	metrics := obs.NewMetrics()
	handlerSet := handlers.NewHandlerSet(handlers.Deps{
		Log:         logger,
		Environment: cfg.Environment,
		Auth:        authService,
		Photos:      photoService,
		Appeals:     appealService,
		Tokens:      tokens,
		Revocations: revocations,
		Metrics:     metrics,
		Cookie: handlers.CookiePolicy{
			Name:   cfg.Auth.CookieName,
			Secure: cfg.Auth.CookieSecure,
			TTL:    cfg.Auth.TokenTTL,
		},
		LoginRate:  cfg.Auth.LoginRate,
		LoginBurst: cfg.Auth.LoginBurst,
		Checks: map[string]handlers.Pinger{
			"postgres": dbPool,
			"redis":    cache.Checker{Client: redisClient},
			"storage":  objectStore,
		},
	})
	httpServer := server.NewHTTPServer(cfg, logger, metrics, handlerSet)

	scheduler := jobs.NewScheduler(producer, cfg.Worker.SweepSchedule, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server failed")
			os.Exit(1)
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop()

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
