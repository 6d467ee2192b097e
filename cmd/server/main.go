package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/aliskhannn/ielts-mock-engine/internal/catalog"
	"github.com/aliskhannn/ielts-mock-engine/internal/config"
	"github.com/aliskhannn/ielts-mock-engine/internal/delivery/rest"
	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
	"github.com/aliskhannn/ielts-mock-engine/internal/infra/memory"
	"github.com/aliskhannn/ielts-mock-engine/internal/infra/postgres"
	pgrepo "github.com/aliskhannn/ielts-mock-engine/internal/infra/postgres/repository"
	"github.com/aliskhannn/ielts-mock-engine/internal/logger"
	"github.com/aliskhannn/ielts-mock-engine/internal/repository"
	"github.com/aliskhannn/ielts-mock-engine/internal/service"
)

// storage is what the server needs from a persistence driver.
type storage interface {
	repository.Transactor
	catalog.Writer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	lg, err := logger.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store storage
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		lg.Warn("using in-memory storage, data is lost on restart")
		store = memory.NewStore()

	default:
		dsn, err := cfg.DB.DSN()
		if err != nil {
			lg.Fatal("database url", zap.Error(err))
		}

		pool, err := postgres.NewPool(ctx, dsn, postgres.PoolConfig{
			AppName:         "ielts-mock-engine",
			MaxConns:        int32(cfg.DB.MaxConnections),
			MinConns:        int32(cfg.DB.MinConnections),
			MaxConnLifetime: cfg.DB.MaxConnLifetime,
			MaxConnIdleTime: cfg.DB.MaxConnIdleTime,
		})
		if err != nil {
			lg.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if cfg.DB.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				lg.Fatal("failed to migrate database", zap.Error(err))
			}
		}

		store = pgrepo.NewStore(pool)
	}

	if cfg.Catalog.Path != "" {
		f, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			lg.Fatal("failed to load catalog", zap.Error(err))
		}
		if err := catalog.Seed(ctx, store, f); err != nil {
			lg.Fatal("failed to seed catalog", zap.Error(err))
		}
		lg.Info("catalog loaded",
			zap.String("path", cfg.Catalog.Path),
			zap.Int("tests", len(f.Tests)),
			zap.Int("users", len(f.Users)),
		)
	}

	sessions := service.NewSessions(store, service.QuotaConfig{
		FreeLimits: map[entities.Module]int{
			entities.ModuleListening: cfg.Quota.FreeLimits.Listening,
			entities.ModuleReading:   cfg.Quota.FreeLimits.Reading,
			entities.ModuleWriting:   cfg.Quota.FreeLimits.Writing,
		},
		Cooldown:           cfg.Quota.Cooldown,
		EnterpriseCooldown: cfg.Quota.EnterpriseCooldown,
	}, lg)

	modules := make(map[entities.Module]rest.SessionService, len(entities.Modules))
	for _, m := range entities.Modules {
		mgr, _ := sessions.Module(m)
		modules[m] = mgr
	}

	handler := rest.NewHandler(modules, sessions, cfg.HTTP.CORSOrigins, lg)
	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: handler.Routes(),
	}

	sweeper := service.NewExpirySweeper(store, sessions.Registry(), cfg.Sweeper.Schedule, cfg.Sweeper.BatchSize, lg)
	go func() {
		if err := sweeper.Start(ctx); err != nil {
			lg.Error("expiry sweeper stopped", zap.Error(err))
		}
	}()

	go func() {
		lg.Info("http server started", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("http server shutdown", zap.Error(err))
	}
}
