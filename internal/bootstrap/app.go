package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"defectmaster-backend/internal/aiqueue"
	"defectmaster-backend/internal/analyses"
	"defectmaster-backend/internal/ledger"
	"defectmaster-backend/internal/shared/config"
	"defectmaster-backend/internal/shared/server"
	"defectmaster-backend/internal/shared/storage/db"
	"defectmaster-backend/internal/shared/storage/photos"
	localstore "defectmaster-backend/internal/shared/storage/photos/local"
	miniostore "defectmaster-backend/internal/shared/storage/photos/minio"
	s3store "defectmaster-backend/internal/shared/storage/photos/s3"
	"defectmaster-backend/internal/vision"
	"defectmaster-backend/internal/vision/gemini"
	visionopenai "defectmaster-backend/internal/vision/openai"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB

	Photos   photos.Store
	Queue    *aiqueue.Queue
	Resolver vision.Resolver
	Vision   vision.Client

	LedgerRepo   ledger.Repo
	AnalysesRepo analyses.Repo

	LedgerService   *ledger.Service
	AnalysesService *analyses.Service

	LedgerHandler   *ledger.Handler
	AnalysesHandler *analyses.Handler
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	photoStore, err := buildPhotoStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	visionClient, resolver, err := buildVision(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Photos:   photoStore,
		Queue:    aiqueue.New(cfg.QueueMaxConcurrent, cfg.QueueMinInterval),
		Resolver: resolver,
		Vision:   visionClient,
	}

	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		LedgerHandler:   app.LedgerHandler,
		AnalysesHandler: app.AnalysesHandler,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return sqlDB, nil
}

func buildPhotoStore(ctx context.Context, cfg config.Config) (photos.Store, error) {
	switch cfg.PhotoStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.PhotoBaseURL)
	case "minio":
		return miniostore.New(ctx, cfg.MinioEndpoint, cfg.MinioRegion, cfg.MinioBucket, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.PhotoBaseURL)
	default:
		return localstore.New(cfg.LocalStoreDir, cfg.PhotoBaseURL), nil
	}
}

func buildVision(cfg config.Config) (vision.Client, vision.Resolver, error) {
	defaults := vision.ModelConfig{
		RelevanceModel: cfg.RelevanceModel,
		AnalysisModel:  cfg.AnalysisModel,
	}

	var resolver vision.Resolver = vision.StaticResolver{Config: defaults}
	if strings.TrimSpace(cfg.SettingsDocURL) != "" {
		resolver = vision.NewCachedResolver(
			vision.NewDocResolver(cfg.SettingsDocURL, defaults, nil),
			cfg.SettingsCacheTTL,
			nil,
		)
	}

	switch cfg.VisionProvider {
	case "openai":
		client, err := visionopenai.NewClient(cfg.OpenAIAPIKey, resolver, cfg.RelevanceTimeout, cfg.AnalysisTimeout)
		if err != nil {
			return nil, nil, err
		}
		return client, resolver, nil
	default:
		client, err := gemini.NewClient(cfg.GeminiAPIKey, resolver, cfg.RelevanceTimeout, cfg.AnalysisTimeout)
		if err != nil {
			return nil, nil, err
		}
		return client, resolver, nil
	}
}

func buildServices(app *App) {
	if app.DB != nil {
		app.LedgerRepo = &ledger.PGRepo{DB: app.DB}
		app.AnalysesRepo = &analyses.PGRepo{DB: app.DB}
	} else {
		app.LedgerRepo = ledger.NewMemoryRepo()
		app.AnalysesRepo = analyses.NewMemoryRepo()
	}

	cfg := app.Config
	app.LedgerService = ledger.NewService(app.LedgerRepo, cfg.FreeCredits, cfg.ReferralBonusInviter, cfg.ReferralBonusInvited)
	app.AnalysesService = analyses.NewService(app.AnalysesRepo, app.LedgerService, app.Vision, app.Queue, app.Photos, nil)

	app.LedgerHandler = ledger.NewHandler(app.LedgerService)
	// Account deletion cascades to analysis history.
	app.LedgerHandler.Purger = app.AnalysesService
	app.AnalysesHandler = analyses.NewHandler(app.AnalysesService)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
