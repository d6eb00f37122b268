package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qubitplay/quantum-crash-go/internal/api"
	"github.com/qubitplay/quantum-crash-go/internal/config"
	"github.com/qubitplay/quantum-crash-go/internal/entropy"
	"github.com/qubitplay/quantum-crash-go/internal/lib/logger/sl"
	"github.com/qubitplay/quantum-crash-go/internal/session"
	"github.com/qubitplay/quantum-crash-go/internal/store"
	"github.com/qubitplay/quantum-crash-go/internal/ws"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting quantum crash server", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	db, err := store.NewSQLiteDB(cfg.StorePath)
	if err != nil {
		log.Error("failed to open round store", sl.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	if err = db.Migrate(); err != nil {
		log.Error("failed to migrate round store", sl.Err(err))
		os.Exit(1)
	}

	hub := ws.NewHub(log)
	go hub.Run()

	source := entropy.New(cfg.Entropy, log)
	if cfg.Entropy.Endpoint == "" {
		log.Warn("no quantum endpoint configured, all draws will use the local generator")
	}

	sessions := session.NewManager(cfg.Game, source, db, hub, log)
	server := api.NewServer(sessions, db, hub, log)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      server.Routes(),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Address))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", sl.Err(err))
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvLocal:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvDev:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}
