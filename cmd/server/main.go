package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/Youpit44/camillamix/internal/broadcast"
	"github.com/Youpit44/camillamix/internal/domain"
	"github.com/Youpit44/camillamix/internal/dsp"
	"github.com/Youpit44/camillamix/internal/dsp/camilla"
	"github.com/Youpit44/camillamix/internal/dsp/osc"
	"github.com/Youpit44/camillamix/internal/httpserver"
	"github.com/Youpit44/camillamix/internal/importer"
	"github.com/Youpit44/camillamix/internal/platform/config"
	"github.com/Youpit44/camillamix/internal/platform/logging"
	"github.com/Youpit44/camillamix/internal/platform/version"
	"github.com/Youpit44/camillamix/internal/preset"
)

const shutdownTimeout = 10 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupAdapter returns the DSP backend, wrapped in the query breaker, and
// the raw adapter so shutdown can close it.
func setupAdapter(cfg *config.Config) (domain.Adapter, domain.Adapter) {
	var raw domain.Adapter
	switch cfg.DSPBackend {
	case config.BackendCamilla:
		client := camilla.New(camilla.DefaultConfig(cfg.CamillaWSURL))
		client.Start()
		raw = client
	case config.BackendOSC:
		raw = osc.New(cfg.OSCHost, cfg.OSCPort, cfg.OSCPrefix)
	default:
		raw = dsp.NewStub()
	}
	slog.Info("DSP adapter ready", "backend", cfg.DSPBackend, "endpoint", raw.Status().Endpoint)
	return dsp.Guard(raw, dsp.DefaultGuardSettings), raw
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	store, err := preset.NewStore(cfg.PresetsDir)
	if err != nil {
		slog.Error("Failed to open preset store", "dir", cfg.PresetsDir, "error", err)
		os.Exit(1)
	}

	adapter, raw := setupAdapter(cfg)

	broadcaster := broadcast.New(adapter, store, clock, broadcast.Options{
		Channels:         cfg.Channels,
		LevelTick:        cfg.LevelTick,
		StatusEveryTicks: cfg.StatusEveryTicks,
		SpectrumTick:     cfg.SpectrumTick,
		Autosave: broadcast.AutosaveSettings{
			Enabled:     cfg.AutosaveEnabled,
			IntervalSec: cfg.AutosaveIntervalSec,
		},
	})

	mapper := importer.NewMapper(cfg.Channels, cfg.MaxImportBytes)
	checks := []httpserver.HealthCheck{{Name: "broadcaster", Check: broadcaster.Ping}}

	srv, err := httpserver.NewServer(cfg, broadcaster, store, mapper, adapter, checks)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		broadcaster.Stop()

		if err := raw.Close(); err != nil {
			slog.Error("Failed to close DSP adapter", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}
