// Package httpserver exposes the mixer over HTTP: the session websocket,
// the preset and import REST API, health probes and metrics.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Youpit44/camillamix/internal/broadcast"
	"github.com/Youpit44/camillamix/internal/domain"
	"github.com/Youpit44/camillamix/internal/importer"
	"github.com/Youpit44/camillamix/internal/platform/config"
)

type mixerService interface {
	Register(conn *websocket.Conn) (uuid.UUID, error)
	Unregister(id uuid.UUID)
	Dispatch(id uuid.UUID, data []byte)
	Snapshot(ctx context.Context) (domain.MixerSnapshot, error)
	ApplyImport(ctx context.Context, req broadcast.ImportRequest) (broadcast.ImportResult, error)
	SavePreset(ctx context.Context, name string, state *domain.MixerSnapshot) (broadcast.PresetSavedPayload, error)
	AutosaveSettings(ctx context.Context) (broadcast.AutosaveSettings, error)
	UpdateAutosave(ctx context.Context, update broadcast.AutosaveUpdate) (broadcast.AutosaveSettings, error)
}

type presetCatalog interface {
	List() []string
	Load(name string) (domain.MixerSnapshot, bool, error)
	Delete(name string) error
}

type configImporter interface {
	Import(raw []byte) (domain.MixerSnapshot, importer.Provenance, error)
	MaxBytes() int
}

type statusReporter interface {
	Status() domain.DSPStatus
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	mixer    mixerService
	presets  presetCatalog
	importer configImporter
	dsp      statusReporter

	upgrader     websocket.Upgrader
	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, mixer mixerService, presets presetCatalog, imp configImporter, dsp statusReporter, healthChecks []HealthCheck) (*Server, error) {
	if cfg.StaticDir != "" {
		info, err := os.Stat(cfg.StaticDir)
		if err != nil {
			return nil, fmt.Errorf("static dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("static dir %s is not a directory", cfg.StaticDir)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:     e,
		config:   cfg,
		mixer:    mixer,
		presets:  presets,
		importer: imp,
		dsp:      dsp,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     NewCheckOrigin(cfg.AppURL, cfg.IsDevelopment()),
		},
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}

	srv.registerRoutes()

	return srv, nil
}

// Start blocks serving HTTP until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP makes the server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
