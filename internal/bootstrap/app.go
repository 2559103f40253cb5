package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"configmarket-backend/internal/configs"
	"configmarket-backend/internal/shared/config"
	"configmarket-backend/internal/shared/server"
	"configmarket-backend/internal/shared/storage/db"
	"configmarket-backend/internal/shared/storage/object"
	localstore "configmarket-backend/internal/shared/storage/object/local"
	s3store "configmarket-backend/internal/shared/storage/object/s3"
	"configmarket-backend/internal/uploads"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore

	UploadsRepo    uploads.Repo
	ConfigsRepo    configs.Repo
	UploadsService *uploads.Service
	ConfigsService *configs.Service
	UploadsHandler *uploads.Handler
	ConfigsHandler *configs.Handler
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
	}

	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:  app.Config,
		Uploads: app.UploadsHandler,
		Configs: app.ConfigsHandler,
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
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildScanner(cfg config.Config) uploads.Scanner {
	if strings.TrimSpace(cfg.ClamdAddr) == "" {
		log.Printf("bootstrap: CLAMD_ADDR empty; uploads will not be scanned")
		return nil
	}
	scanner := uploads.NewClamdScanner(cfg.ClamdAddr)
	if err := scanner.Ping(); err != nil {
		log.Printf("bootstrap: clamd ping failed (policy %q applies): %v", cfg.OnScannerError, err)
	}
	return scanner
}

func buildServices(app *App) {
	var uploadsRepo uploads.Repo
	var configsRepo configs.Repo

	if app.DB != nil {
		uploadsRepo = &uploads.PGRepo{DB: app.DB}
		configsRepo = &configs.PGRepo{DB: app.DB}
	} else {
		uploadsRepo = uploads.NewMemoryRepo()
		configsRepo = configs.NewMemoryRepo()
	}

	uploadsSvc := &uploads.Service{
		Repo:           uploadsRepo,
		Store:          app.Store,
		Quota:          uploads.NewMemoryQuota(app.Config.UploadWindow, app.Config.UploadMaxPerWindow),
		Scanner:        buildScanner(app.Config),
		MaxBytes:       app.Config.MaxUploadBytes,
		Prefix:         app.Config.UploadsPrefix,
		OnScannerError: app.Config.OnScannerError,
	}

	configsSvc := &configs.Service{
		Repo:  configsRepo,
		Files: uploadsSvc,
	}

	app.UploadsRepo = uploadsRepo
	app.ConfigsRepo = configsRepo
	app.UploadsService = uploadsSvc
	app.ConfigsService = configsSvc
	app.UploadsHandler = uploads.NewHandler(uploadsSvc)
	app.ConfigsHandler = configs.NewHandler(configsSvc)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
