package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"spectraconsole/internal/api"
	"spectraconsole/internal/armory"
	"spectraconsole/internal/audit"
	"spectraconsole/internal/config"
	"spectraconsole/internal/legal"
	"spectraconsole/internal/logging"
	"spectraconsole/internal/orchestrator"
	"spectraconsole/internal/rate"
	"spectraconsole/internal/service"
	"spectraconsole/internal/session"
	"spectraconsole/internal/store"
	"spectraconsole/internal/version"
)

func main() {
	// Local overrides first; a missing file is fine.
	_ = godotenv.Load(".env.local", ".env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	sqlSink, err := audit.OpenSQLSink(cfg)
	if err != nil {
		return err
	}
	sinks := audit.Multi{audit.LogSink{Logger: logger}}
	var auditStore api.Pinger
	if sqlSink != nil {
		defer sqlSink.Close()
		sinks = append(sinks, sqlSink)
		auditStore = sqlSink
	}

	versions, err := legal.LoadVersions(cfg.LegalVersionsPath)
	if err != nil {
		return err
	}
	gate := legal.NewGate(cfg, versions, sinks, logger)

	users, err := store.NewUsers(
		store.Account{
			Username: cfg.BootstrapUsername,
			Password: cfg.BootstrapPassword,
			FullName: cfg.BootstrapFullName,
			Email:    cfg.BootstrapEmail,
		},
		store.Account{
			Username: cfg.DemoUsername,
			Password: cfg.DemoPassword,
			FullName: cfg.DemoFullName,
			Email:    cfg.DemoEmail,
		},
	)
	if err != nil {
		return fmt.Errorf("user store: %w", err)
	}

	svc := service.New(cfg, users, session.NewManager(), gate, logger)
	r := api.NewRouter(cfg, api.Deps{
		Service:      svc,
		Limiter:      rate.NewLimiter(),
		Orchestrator: orchestrator.NewClient(cfg, logger),
		Armory:       armory.NewRegistry(),
		AuditStore:   auditStore,
		Logger:       logger,
	})

	hsrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadTimeout:       time.Duration(cfg.HTTPReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTPReadHeaderTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTPWriteTimeoutSec) * time.Second,
		IdleTimeout:       time.Duration(cfg.HTTPIdleTimeoutSec) * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := gate.Hooks().ForCLI(ctx)
	info := version.Current()
	logger.Info("starting",
		"addr", cfg.ListenAddr,
		"version", info.Version,
		"environment", d.Environment,
		"legal_compliant", d.IsCompliant,
		"audit_driver", cfg.AuditDBDriver,
		"orchestrator_configured", cfg.OrchestratorBaseURL != "",
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := hsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		logger.Info("shutting down")
		return hsrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
