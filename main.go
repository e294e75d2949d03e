package main

import (
	"context"
	golog "log"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mediahub/config"
	"mediahub/database"
	"mediahub/ffmpeg"
	"mediahub/handlers"
	"mediahub/media"
	"mediahub/providers"
	"mediahub/retrieval"
	"mediahub/uploads"
)

func main() {
	log := newLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ffmpeg.Init(log)

	gormLogger := logger.New(
		golog.New(os.Stdout, "\r\n", golog.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)

	path := dbPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		log.Fatalf("failed to create data dir %s: %v", filepath.Dir(path), err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		log.Fatalf("failed to connect to database %s: %v", path, err)
	}

	// a single connection so we don't actually have concurrent writes
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalln("failed to retrieve database")
	}
	sqlDB.SetMaxOpenConns(1)

	repo := database.New(db, log)
	if err := repo.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	adapters := map[media.Provider]providers.Adapter{}
	if cfg.CDNEnabled() {
		adapters[media.ProviderManagedCDN] = providers.NewCDN(cfg, log)
		log.Infof("managed-cdn adapter enabled (%s)", cfg.CDNBaseURL)
	}
	if cfg.ObjectStoreEnabled() {
		store, err := providers.NewObjectStore(ctx, cfg, log)
		if err != nil {
			log.Fatalf("object store: %v", err)
		}
		adapters[media.ProviderObjectStore] = store
		log.Infof("object-store adapter enabled (bucket %s)", cfg.S3Bucket)
	}
	if len(adapters) == 0 {
		log.Fatalln("no provider adapters configured")
	}

	uploadSvc := uploads.NewService(cfg, repo, adapters, log)
	retrievalSvc := retrieval.NewService(repo, log)

	go uploads.NewSweeper(repo, adapters, cfg.SweepInterval, log).Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	handlers.New(uploadSvc, retrievalSvc, log).Register(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	log.Infof("listening on %s", cfg.ListenAddr)
	e.Logger.Fatal(e.Start(cfg.ListenAddr))
}

func dbPath() string {
	if value, exists := os.LookupEnv("MEDIAHUB_DB_PATH"); exists {
		return value
	}
	return filepath.Join("data", "mediahub.db")
}
