package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/aidesk/clients/go/aidesk"
	"github.com/eldtechnologies/aidesk/internal/api"
	"github.com/eldtechnologies/aidesk/internal/chatsync"
	"github.com/eldtechnologies/aidesk/internal/config"
	"github.com/eldtechnologies/aidesk/internal/handlers"
	"github.com/eldtechnologies/aidesk/internal/notify"
	"github.com/eldtechnologies/aidesk/internal/realtime"
	"github.com/eldtechnologies/aidesk/internal/token"
	"github.com/eldtechnologies/aidesk/internal/transport"
)

func main() {
	cfg := config.Load()

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := token.Open(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.TokenStore).Msg("token store unavailable")
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}
	logger.Info().Str("backend", cfg.TokenStore).Msg("token store ready")

	// A token handed over in the start address wins over one from a previous session.
	if cfg.StartURL != "" {
		cleaned, tok, found, err := token.ExtractAndPersist(ctx, store, cfg.StartURL)
		switch {
		case err != nil:
			logger.Error().Err(err).Msg("failed to persist token from start address")
		case found:
			ev := logger.Info().Str("address", cleaned)
			if exp, ok := token.ExpiresAt(tok); ok {
				ev = ev.Time("expires_at", exp)
			}
			ev.Msg("token extracted from start address")
		}
	}

	notices := notify.NewQueue(100)
	notifier := notify.Multi{notices, notify.Log{Logger: logger}}

	tr := transport.New(cfg.APIURL, store, notifier, logger.With().Str("component", "transport").Logger())
	client := aidesk.NewClient(tr, notifier, logger.With().Str("component", "client").Logger())
	channel := realtime.New(cfg.WSURL, store, logger.With().Str("component", "realtime").Logger())
	core := chatsync.New(client, channel, logger)

	go func() {
		if err := channel.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("realtime channel stopped")
		}
	}()
	go func() {
		if err := core.Run(ctx, channel); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("event loop stopped")
		}
	}()

	core.RefreshChats(ctx)
	core.FetchStats(ctx)

	h := handlers.NewHandler(core, notices, store, channel, logger)
	router := api.NewRouter(logger, cfg, h)

	srv := &http.Server{
		Addr:         cfg.BridgeAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second, // selection waits on the dashboard API
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.BridgeAddr).
			Str("api", cfg.APIURL).
			Str("ws", cfg.WSURL).
			Str("env", cfg.Env).
			Msg("starting aidesk bridge")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("bridge failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down bridge...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("bridge forced to shutdown")
	}

	logger.Info().Msg("bridge stopped")
}
