package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/blackswan-cache/filecache/internal/cachefs"
	"github.com/blackswan-cache/filecache/internal/config"
	"github.com/blackswan-cache/filecache/internal/httpapi"
	"github.com/blackswan-cache/filecache/internal/metrics"
)

// tRefresh is the maintenance pass interval.
const tRefresh = 1 * time.Hour

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse flags")
	}

	if cfg.Debug {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.DebugLevel)
	}
	log.Logger = logger

	logger.Info().
		Int("port", cfg.Port).
		Bool("debug", cfg.Debug).
		Str("cache_root", config.CacheDir).
		Msg("starting file cache service")

	metricsCollector := metrics.New()

	cache, err := cachefs.New(config.CacheDir, logger, cachefs.WithRecorder(metricsCollector))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize cache")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Self-rescheduling maintenance pass: the next pass is scheduled
	// tRefresh after the previous one returns, never on a fixed-rate tick,
	// so overlapping passes are impossible.
	maintenanceDone := make(chan struct{})
	go func() {
		defer close(maintenanceDone)
		timer := time.NewTimer(tRefresh)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				if err := cache.Maintenance(); err != nil {
					logger.Warn().Err(err).Msg("maintenance pass failed")
				}
				timer.Reset(tRefresh)
			}
		}
	}()

	api := httpapi.New(cache, logger)

	// --debug selects the net/http transport engine (mirrors a development
	// server); its absence selects the fiber/fasthttp engine (mirrors a
	// production WSGI-style server). Only the transport changes — both
	// share the same API core and therefore the same cache semantics.
	var netServer *http.Server
	var fiberApp interface {
		Listen(addr string) error
		ShutdownWithContext(ctx context.Context) error
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	serverErr := make(chan error, 1)

	if cfg.Debug {
		netServer = &http.Server{
			Addr:         addr,
			Handler:      httpapi.NewNetHTTPHandler(api),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
		go func() {
			logger.Info().Str("engine", "net/http").Int("port", cfg.Port).Msg("HTTP server starting")
			if err := netServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serverErr <- err
			}
		}()
	} else {
		app := httpapi.NewFiberApp(api)
		fiberApp = app
		go func() {
			logger.Info().Str("engine", "fiber/fasthttp").Int("port", cfg.Port).Msg("HTTP server starting")
			if err := app.Listen(addr); err != nil {
				serverErr <- err
			}
		}()
	}

	metricsServer := &http.Server{Addr: ":9090", Handler: metricsCollector.Handler()}
	go func() {
		logger.Info().Str("addr", metricsServer.Addr).Msg("metrics server starting")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Msg("metrics server error")
		}
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("HTTP server error, shutting down")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if netServer != nil {
		if err := netServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}
	if fiberApp != nil {
		if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("metrics server shutdown error")
	}

	<-maintenanceDone
	logger.Info().Msg("file cache service stopped")
}
