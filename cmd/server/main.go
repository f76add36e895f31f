package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"dokan/internal/auth"
	"dokan/internal/cache"
	"dokan/internal/config"
	"dokan/internal/httpapi"
	"dokan/internal/logs"
	"dokan/internal/service"
	"dokan/internal/store"
	"dokan/internal/store/filedb"
	"dokan/internal/store/memory"
	pgstore "dokan/internal/store/postgres"
	"dokan/internal/syncgw"
)

// localStore is the repository every request reads from and every save
// lands in first.
type localStore interface {
	store.Repository
	syncgw.StateSaver
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logs.New(cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	if err := validateSecurityConfig(cfg); err != nil {
		fatal(logger, "invalid security configuration", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		fatal(logger, "invalid timezone", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 3)

	var repo localStore
	if cfg.DataDir != "" {
		db, err := filedb.Open(filepath.Join(cfg.DataDir, "dokan.json"))
		if err != nil {
			fatal(logger, "open local store", err)
		}
		if recovered := db.Recovered(); recovered != nil {
			logger.Warn("local store was unreadable and has been reset", "path", db.Path(), "error", recovered)
		}
		repo = db
		closers = append(closers, db.Close)
		logger.Info("repository: file", "path", db.Path())
	} else {
		repo = memory.NewSeeded(logger)
		logger.Info("repository: in-memory")
	}

	mirrors := make([]cache.Mirror, 0, 2)
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			fatal(logger, "postgres unavailable and DATABASE_URL is set; refusing to start without the remote mirror", err)
		}
		mirrors = append(mirrors, pg)
		closers = append(closers, pg.Close)
	}
	if cfg.RedisAddr != "" {
		redisMirror := cache.NewRedisMirror(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisMirror.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, skipping redis mirror", "error", err)
		} else {
			mirrors = append(mirrors, redisMirror)
			closers = append(closers, redisMirror.Close)
		}
	}
	mirror := cache.Combine(mirrors...)
	logger.Info("remote mirror", "name", mirror.Name())

	gateway, err := syncgw.New(repo, mirror, syncgw.Options{
		MaxAttempts: cfg.SyncMaxAttempts,
		ResyncSpec:  cfg.SyncResyncSpec,
		Logger:      logger,
	})
	if err != nil {
		fatal(logger, "start sync gateway", err)
	}

	authManager := auth.NewManager(cfg.AuthSecret, cfg.AccessTokenTTL(), cfg.DefaultCurrency, repo, logger)
	svc := service.New(repo, authManager, gateway, service.Options{
		Location:          loc,
		LowStockThreshold: cfg.LowStockThreshold,
		Logger:            logger,
	})
	api := httpapi.New(svc, authManager, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("dokan backend listening", "addr", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(logger, "server error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if err := gateway.Close(shutdownCtx); err != nil {
		logger.Warn("sync gateway did not drain", "error", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", "error", err)
		}
	}

	logger.Info("server stopped")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AccessTokenTTLMinutes < 1 {
		return fmt.Errorf("ACCESS_TOKEN_TTL_MINUTES must be positive")
	}
	return nil
}
