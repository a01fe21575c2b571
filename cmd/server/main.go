package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/digkill/magicpixa/internal/api"
	"github.com/digkill/magicpixa/internal/config"
	"github.com/digkill/magicpixa/internal/database"
	"github.com/digkill/magicpixa/internal/gemini"
	"github.com/digkill/magicpixa/internal/intake"
	"github.com/digkill/magicpixa/internal/ledger"
	"github.com/digkill/magicpixa/internal/perplexity"
	"github.com/digkill/magicpixa/internal/repository"
	"github.com/digkill/magicpixa/internal/service"
	"github.com/digkill/magicpixa/internal/storage"
	"github.com/digkill/magicpixa/internal/token"
	"github.com/digkill/magicpixa/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	anonymous, closeAnonymous, err := anonymousStore(ctx, cfg)
	if err != nil {
		log.Fatalf("anonymous credit store: %v", err)
	}
	defer closeAnonymous()

	userRepo := repository.NewUserRepository(db)
	generationRepo := repository.NewGenerationRepository(db)
	promoRepo := repository.NewPromoRepository(db)

	planService := service.NewPlanService(cfg.Plans, cfg.Credits)
	credits := ledger.New(
		ledger.NewDocumentStore(userRepo, cfg.Plans.DefaultPlan),
		anonymous,
		planService.StartingCredits,
		cfg.Credits.CacheTTL,
		ledger.NewEmitter(),
		logr,
	)

	geminiClient, err := gemini.NewClient(ctx, cfg.Gemini, logr)
	if err != nil {
		log.Fatalf("gemini client: %v", err)
	}
	perplexityClient := perplexity.NewClient(cfg.Perplexity, cfg.Timeouts.Generate, logr)

	archive, err := creationArchive(ctx, cfg)
	if err != nil {
		log.Fatalf("creation archive: %v", err)
	}

	studio := service.NewStudio(geminiClient, perplexityClient, cfg.Timeouts, logr)
	userService := service.NewUserService(userRepo, generationRepo, planService, credits, logr)
	generationService := service.NewGenerationService(studio, planService, generationRepo, archive, logr)
	promoService := service.NewPromoService(promoRepo, credits)

	normalizer := intake.NewNormalizer(cfg.Intake.MaxBytes, cfg.Intake.MaxDimension, cfg.Intake.JPEGQuality)
	normalizer.MaxPixels = cfg.Intake.MaxPixels

	server := api.NewServer(api.Options{
		Addr:          cfg.ListenAddr,
		AdminUsername: cfg.Auth.AdminUsername,
		AdminPassword: cfg.Auth.AdminPassword,
		RateLimit:     cfg.RateLimit,
		WriteTimeout:  2*cfg.Timeouts.Analyze + cfg.Timeouts.Generate + 30*time.Second,
	}, logr, api.Services{
		Studio:      studio,
		Generations: generationService,
		Users:       userService,
		Plans:       planService,
		Promos:      promoService,
		Ledger:      credits,
		Normalizer:  normalizer,
		Tokens:      token.NewJWT(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
	})

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("http server stopped", "err", err)
	}
}

// anonymousStore picks Redis when configured, otherwise process memory.
func anonymousStore(ctx context.Context, cfg config.Config) (ledger.Store, func(), error) {
	if cfg.Redis.Addr == "" {
		return ledger.NewMemoryStore(cfg.Credits.AnonymousTTL), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return ledger.NewRedisStore(client, cfg.Credits.AnonymousTTL), func() { _ = client.Close() }, nil
}

func creationArchive(ctx context.Context, cfg config.Config) (storage.Archiver, error) {
	switch cfg.Archive.Driver {
	case "s3":
		return storage.NewUploader(storage.Config{
			Endpoint:      cfg.S3.Endpoint,
			Region:        cfg.S3.Region,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			Bucket:        cfg.S3.Bucket,
			PublicBaseURL: cfg.S3.PublicBaseURL,
			UsePathStyle:  cfg.S3.UsePathStyle,
			Prefix:        cfg.S3.Prefix,
		})
	case "minio":
		return storage.NewMinIOArchiver(ctx, storage.MinIOConfig{
			Endpoint:      cfg.MinIO.Endpoint,
			AccessKey:     cfg.MinIO.AccessKey,
			SecretKey:     cfg.MinIO.SecretKey,
			Bucket:        cfg.MinIO.Bucket,
			PublicBaseURL: cfg.MinIO.PublicBaseURL,
			UseSSL:        cfg.MinIO.UseSSL,
			Prefix:        cfg.MinIO.Prefix,
		})
	default:
		return nil, nil
	}
}
