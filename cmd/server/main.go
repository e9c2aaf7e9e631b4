package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/capturecabinet/cabinet/internal/activity"
	"github.com/capturecabinet/cabinet/internal/api"
	"github.com/capturecabinet/cabinet/internal/app"
	"github.com/capturecabinet/cabinet/internal/app/maintenance"
	iauth "github.com/capturecabinet/cabinet/internal/auth"
	"github.com/capturecabinet/cabinet/internal/database"
	"github.com/capturecabinet/cabinet/internal/photos"
	"github.com/capturecabinet/cabinet/internal/realtime"
	"github.com/capturecabinet/cabinet/internal/services"
	"github.com/capturecabinet/cabinet/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cabinet-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	if strings.TrimSpace(cfg.Auth.Secret) == "" {
		return errors.New("auth.secret must be configured")
	}

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	source, directory, err := buildSource(cfg)
	if err != nil {
		return err
	}
	if directory != nil {
		if err := directory.Start(); err != nil {
			return fmt.Errorf("start screenshot watcher: %w", err)
		}
		defer func() { _ = directory.Close() }()
	}

	hub := realtime.NewHub()

	catalog, err := services.NewCatalogService(db)
	if err != nil {
		return fmt.Errorf("initialise catalog service: %w", err)
	}

	engine, err := services.NewAssignmentService(catalog, source, hub)
	if err != nil {
		return fmt.Errorf("initialise assignment service: %w", err)
	}

	bridge, err := activity.NewBridge(engine, activity.NewHubHost(hub),
		activity.WithSelectionTimeout(cfg.Activity.SelectionTimeout),
		activity.WithDismissDelay(cfg.Activity.DismissDelay))
	if err != nil {
		return fmt.Errorf("initialise activity bridge: %w", err)
	}
	defer bridge.Close()

	if directory != nil {
		go pumpCaptureEvents(ctx, directory, bridge, log)
	}

	tokens, err := iauth.NewTokenService(iauth.TokenConfig{
		Secret: cfg.Auth.Secret,
		Issuer: cfg.Auth.Issuer,
		TTL:    cfg.Auth.TokenTTL,
	})
	if err != nil {
		return fmt.Errorf("initialise token service: %w", err)
	}

	pairing, err := iauth.NewPairingService(tokens, cfg.Auth.PairingTTL)
	if err != nil {
		return fmt.Errorf("initialise pairing service: %w", err)
	}

	cleaner := maintenance.NewCleaner(engine,
		maintenance.WithPruneSchedule(cfg.Maintenance.Schedule),
		maintenance.WithRecentWindow(cfg.Library.RecentWindow))
	if cfg.Maintenance.Enabled {
		if err := cleaner.Start(); err != nil {
			return fmt.Errorf("start maintenance jobs: %w", err)
		}
		defer cleaner.Stop()
	}

	router, err := api.NewRouter(api.Deps{
		Catalog: catalog,
		Engine:  engine,
		Bridge:  bridge,
		Hub:     hub,
		Tokens:  tokens,
		Pairing: pairing,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

// pumpCaptureEvents opens an activity session for each screenshot the watcher
// reports. A refused presentation is logged and the capture stays available in
// the unassigned view.
func pumpCaptureEvents(ctx context.Context, directory *photos.DirectorySource, bridge *activity.Bridge, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case asset, ok := <-directory.Events():
			if !ok {
				return
			}
			if _, err := bridge.StartSession(ctx, asset); err != nil {
				log.Warn("could not present capture session",
					zap.String("ref", asset.Ref),
					zap.Error(err))
			}
		}
	}
}

func buildSource(cfg *app.Config) (photos.Source, *photos.DirectorySource, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Library.Source)) {
	case "", "directory":
		var opts []photos.DirectoryOption
		if len(cfg.Library.Extensions) > 0 {
			opts = append(opts, photos.WithExtensions(cfg.Library.Extensions))
		}
		dir, err := photos.NewDirectorySource(cfg.Library.WatchDir, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("initialise screenshot source: %w", err)
		}
		return dir, dir, nil
	case "memory":
		return photos.NewMemorySource(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported library source %q", cfg.Library.Source)
	}
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAll(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
