package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"permit-backend/internal/analysis"
	openaianalyzer "permit-backend/internal/analysis/openai"
	googleauth "permit-backend/internal/auth"
	"permit-backend/internal/dashboard"
	"permit-backend/internal/queue"
	"permit-backend/internal/reviews"
	"permit-backend/internal/services/health"
	"permit-backend/internal/shared/auth"
	"permit-backend/internal/shared/clock"
	"permit-backend/internal/shared/config"
	"permit-backend/internal/shared/server"
	"permit-backend/internal/shared/storage/db"
	"permit-backend/internal/shared/storage/object"
	localstore "permit-backend/internal/shared/storage/object/local"
	miniostore "permit-backend/internal/shared/storage/object/minio"
	s3store "permit-backend/internal/shared/storage/object/s3"
	"permit-backend/internal/shared/telemetry"
	"permit-backend/internal/users"
	"permit-backend/internal/webhooks"
)

const notifyTimeout = 10 * time.Second

// App holds the wired services shared by the API, worker and lambda binaries.
type App struct {
	Config  config.Config
	Router  *gin.Engine
	DB      *sql.DB
	Objects object.ObjectStore
	Tokens  *auth.Issuer

	ReviewStore reviews.Store
	Reviews     *reviews.Service
	Worker      *reviews.Worker
	// InProcess is set when reviews run as goroutines in this process.
	InProcess *reviews.GoroutineScheduler

	Users      *users.Service
	Dashboard  *dashboard.Service
	Automation *webhooks.Automation
}

// Build connects storage and wires every service and the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	objects, err := buildObjects(ctx, cfg)
	if err != nil {
		return nil, err
	}
	analyzer, err := buildAnalyzer(cfg)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, DB: sqlDB, Objects: objects, Tokens: tokens}
	app.wireReviews(analyzer)
	if err := app.wireScheduler(ctx); err != nil {
		return nil, err
	}
	app.wireAccounts()
	app.wireWebhooks()

	reviewHandler := reviews.NewHandler(app.Reviews, reviews.NewPollThrottle(cfg.PollMinInterval))
	app.Router = server.NewRouter(server.RouterDeps{
		Config:    cfg,
		Tokens:    tokens,
		Health:    health.NewService(pinger(sqlDB), cfg.Analyzer),
		Reviews:   reviewHandler,
		Users:     users.NewHandler(app.Users),
		Dashboard: dashboard.NewHandler(app.Dashboard),
		Webhooks:  webhooks.NewHandler(app.Automation),
		Google: googleauth.NewGoogleService(googleauth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			UIRedirect:   cfg.UIRedirectURL,
		}, app.Users),
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          cfg.Env,
		"database":     sqlDB != nil,
		"object_store": cfg.ObjectStoreType,
		"analyzer":     cfg.Analyzer,
		"scheduler":    cfg.ReviewScheduler,
	})
	return app, nil
}

// Shutdown drains in-process analyses, bounded by ctx.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.InProcess != nil {
		err = a.InProcess.Shutdown(ctx)
	}
	return err
}

func (a *App) wireReviews(analyzer analysis.Analyzer) {
	if a.DB != nil {
		a.ReviewStore = &reviews.PGStore{DB: a.DB}
	} else {
		a.ReviewStore = reviews.NewMemoryStore()
	}
	a.Worker = &reviews.Worker{
		Store:    a.ReviewStore,
		Objects:  a.Objects,
		Analyzer: analyzer,
		Timeout:  a.Config.AnalysisTimeout,
		Clock:    clock.System{},
	}
	a.Reviews = &reviews.Service{
		Store:   a.ReviewStore,
		Objects: a.Objects,
		Clock:   clock.System{},
	}
}

func (a *App) wireScheduler(ctx context.Context) error {
	if a.Config.ReviewScheduler == "sqs" {
		client, err := queue.NewSQSClient(ctx, a.Config.AWSRegion, a.Config.ReviewQueueURL)
		if err != nil {
			return fmt.Errorf("review queue: %w", err)
		}
		a.Reviews.Scheduler = &reviews.QueueScheduler{Queue: client}
		return nil
	}
	a.InProcess = reviews.NewGoroutineScheduler(a.Worker)
	a.Reviews.Scheduler = a.InProcess
	return nil
}

func (a *App) wireAccounts() {
	var (
		userRepo users.Repo
		dashRepo dashboard.Repo
	)
	if a.DB != nil {
		userRepo = &users.PGRepo{DB: a.DB}
		dashRepo = &dashboard.PGRepo{DB: a.DB}
	} else {
		userRepo = users.NewMemoryRepo()
		dashRepo = dashboard.NewMemoryRepo()
	}
	a.Users = users.NewService(userRepo, a.Tokens)
	a.Dashboard = dashboard.NewService(dashRepo, a.Reviews)
	a.Reviews.Recorder = a.Dashboard
}

func (a *App) wireWebhooks() {
	var store webhooks.TriggerStore
	if a.DB != nil {
		store = &webhooks.PGTriggerStore{DB: a.DB}
	} else {
		store = webhooks.NewMemoryTriggerStore()
	}
	var notifier webhooks.Notifier = webhooks.NopNotifier{}
	if len(a.Config.NotifyURLs) > 0 {
		n, err := webhooks.NewShoutrrrNotifier(a.Config.NotifyURLs, notifyTimeout)
		if err != nil {
			telemetry.Warn("bootstrap.notifier.disabled", map[string]any{"error": err.Error()})
		} else {
			notifier = n
		}
	}
	a.Automation = webhooks.NewAutomation(store, notifier)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.database.memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultLambdaOptions()))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.database.memory", map[string]any{"reason": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			return nil, err
		}
	}
	return sqlDB, nil
}

func buildObjects(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "minio":
		return miniostore.New(ctx, miniostore.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.AWSRegion,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildAnalyzer(cfg config.Config) (analysis.Analyzer, error) {
	if cfg.Analyzer == "openai" {
		return openaianalyzer.New(openaianalyzer.Options{APIKey: cfg.OpenAIAPIKey, Model: cfg.LLMModel})
	}
	return analysis.Mock{Delay: cfg.MockAnalysisDelay}, nil
}

// pinger avoids wrapping a nil *sql.DB in a non-nil interface.
func pinger(sqlDB *sql.DB) health.Pinger {
	if sqlDB == nil {
		return nil
	}
	return sqlDB
}
