package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scythe504/tunebingo-backend/internal/config"
	"github.com/scythe504/tunebingo-backend/internal/game"
	"github.com/scythe504/tunebingo-backend/internal/playback"
	"github.com/scythe504/tunebingo-backend/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := newLogger(cfg)

	devices := playback.NewDeviceStore(cfg.DeviceFile)
	if err := devices.Load(); err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DeviceFile).Msg("failed to load device store")
	}

	controller := playback.NewSpotifyClient(
		cfg.SpotifyAPIURL,
		cfg.SpotifyTokenURL,
		cfg.SpotifyClientID,
		cfg.SpotifyClientSecret,
		devices,
		logger,
	)

	store := game.NewStore(logger)
	gateway := game.NewWSGateway(logger)
	svc := game.NewService(store, gateway, controller, devices, cfg.SnippetSeconds, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler:      server.New(cfg, svc, logger).Handler(),
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  time.Minute,
		WriteTimeout: 0, // websocket connections are long-lived
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("env", cfg.Environment).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	if strings.EqualFold(cfg.Environment, "development") {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
