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

	"safewatch-backend/internal/api/middleware"
	"safewatch-backend/internal/api/routes"
	"safewatch-backend/internal/config"
	"safewatch-backend/internal/repository"
	"safewatch-backend/internal/services"
	"safewatch-backend/pkg/cleanup"
	"safewatch-backend/pkg/database"
	"safewatch-backend/pkg/jwt"
	"safewatch-backend/pkg/logger"
	"safewatch-backend/pkg/media"
	"safewatch-backend/pkg/metrics"
	"safewatch-backend/pkg/ratelimit"
	"safewatch-backend/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

// alertBackend is what the server needs from an alert repository.
type alertBackend interface {
	services.AlertStore
	cleanup.ReferencedMedia
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(contextOrBackground(ctx), os.Interrupt, syscall.SIGTERM)
	defer stop()

	alerts, db, err := openAlertStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer database.Disconnect(db.Client())
	}

	store, err := openMediaStore(ctx, cfg.Media)
	if err != nil {
		return err
	}

	var remover services.MediaRemover
	if cfg.Media.Cleanup {
		remover = store
	}
	alertService := services.NewAlertService(alerts, remover)
	alertService.SetLogger(log)
	if cfg.StrictCoordinates {
		alertService.SetCoordinatePolicy(services.CoordinatesStrict)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisClient.Close()
	}

	rateLimitConfig := ratelimit.DefaultConfig()
	rateLimitConfig.Enabled = cfg.RateLimitEnabled
	var limiter ratelimit.RateLimiter
	if cfg.RateLimitEnabled {
		if redisClient != nil {
			limiter = ratelimit.NewRedisRateLimiter(redisClient.GetClient(), rateLimitConfig)
		} else {
			memoryLimiter := ratelimit.NewMemoryRateLimiter(rateLimitConfig)
			defer memoryLimiter.Close()
			limiter = memoryLimiter
		}
	}

	if cfg.Media.SweepEnabled() {
		sweeper := cleanup.NewMediaSweeper(store, alerts, cfg.Media.SweepInterval, cfg.Media.SweepGrace, log)
		go sweeper.Start()
		defer sweeper.Stop()
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(metrics.Middleware())
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	routes.SetupRoutes(router, routes.Dependencies{
		AlertService:    alertService,
		MediaStore:      store,
		MaxUploadBytes:  cfg.Media.MaxUploadBytes,
		JWT:             jwt.NewJWTUtil(cfg.JWTSecret, cfg.JWTExpiry),
		RateLimiter:     limiter,
		RateLimitConfig: rateLimitConfig,
		RequestTimeout:  cfg.RequestTimeout,
		DB:              db,
		Redis:           redisClient,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Str("media", cfg.Media.Backend).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openAlertStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (alertBackend, *mongo.Database, error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn().Msg("using in-memory alert store; data is lost on restart")
		return repository.NewMemoryAlertRepository(), nil, nil
	}

	db, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, err
	}

	repo := repository.NewAlertRepository(db)
	if err := repo.CreateIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to create alert indexes")
	}
	return repo, db, nil
}

func openMediaStore(ctx context.Context, cfg config.MediaConfig) (media.Store, error) {
	if cfg.Backend == config.MediaS3 {
		client, err := media.NewS3Client(ctx, media.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return media.NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix), nil
	}

	return media.NewLocalStore(cfg.UploadDir)
}

func corsConfig(origins []string) cors.Config {
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}

	// Wildcard origin for development
	if len(origins) == 1 && origins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	return corsConfig
}
