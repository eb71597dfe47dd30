package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	BackendStub    = "stub"
	BackendCamilla = "camilla"
	BackendOSC     = "osc"

	maxChannels = 64
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	AppURL    string `env:"APP_URL"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
	StaticDir string `env:"STATIC_DIR"`

	Channels   int    `env:"MIXER_CHANNELS" default:"8"`
	PresetsDir string `env:"PRESETS_DIR" default:"presets"`

	AutosaveEnabled     bool    `env:"AUTOSAVE_ENABLED" default:"false"`
	AutosaveIntervalSec float64 `env:"AUTOSAVE_INTERVAL_SEC" default:"30"`

	LevelTick        time.Duration `env:"LEVEL_TICK" default:"200ms"`
	StatusEveryTicks int           `env:"STATUS_EVERY_TICKS" default:"10"`
	SpectrumTick     time.Duration `env:"SPECTRUM_TICK" default:"33ms"`

	MaxImportBytes int `env:"MAX_IMPORT_BYTES" default:"5242880"` // 5 MiB

	// Per-client limit on imports and preset saves. A zero rate disables it.
	WriteRatePerSec float64 `env:"WRITE_RATE_PER_SEC" default:"1"`
	WriteBurst      int     `env:"WRITE_BURST" default:"5"`

	DSPBackend   string `env:"DSP_BACKEND" default:"stub"`
	CamillaWSURL string `env:"CAMILLA_WS_URL" default:"ws://127.0.0.1:1234"`
	OSCHost      string `env:"OSC_HOST" default:"127.0.0.1"`
	OSCPort      int    `env:"OSC_PORT" default:"9000"`
	OSCPrefix    string `env:"OSC_PREFIX" default:"/mixer"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// AutosaveInterval returns the configured autosave period.
func (c *Config) AutosaveInterval() time.Duration {
	return time.Duration(c.AutosaveIntervalSec * float64(time.Second))
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func validate(cfg *Config) error {
	if cfg.Channels < 1 || cfg.Channels > maxChannels {
		return fmt.Errorf("MIXER_CHANNELS must be between 1 and %d, got %d", maxChannels, cfg.Channels)
	}
	if cfg.PresetsDir == "" {
		return errors.New("PRESETS_DIR is required")
	}
	if cfg.AutosaveIntervalSec <= 0 {
		return errors.New("AUTOSAVE_INTERVAL_SEC must be positive")
	}
	if cfg.LevelTick <= 0 || cfg.SpectrumTick <= 0 {
		return errors.New("LEVEL_TICK and SPECTRUM_TICK must be positive")
	}
	if cfg.StatusEveryTicks < 1 {
		return errors.New("STATUS_EVERY_TICKS must be at least 1")
	}
	if cfg.MaxImportBytes < 1 {
		return errors.New("MAX_IMPORT_BYTES must be positive")
	}
	if cfg.WriteRatePerSec < 0 {
		return errors.New("WRITE_RATE_PER_SEC must not be negative")
	}
	if cfg.WriteRatePerSec > 0 && cfg.WriteBurst < 1 {
		return errors.New("WRITE_BURST must be at least 1 when rate limiting is enabled")
	}

	switch cfg.DSPBackend {
	case BackendStub:
	case BackendCamilla:
		if cfg.CamillaWSURL == "" {
			return errors.New("CAMILLA_WS_URL is required when DSP_BACKEND=camilla")
		}
	case BackendOSC:
		if cfg.OSCHost == "" || cfg.OSCPort <= 0 || cfg.OSCPort > 65535 {
			return errors.New("OSC_HOST and a valid OSC_PORT are required when DSP_BACKEND=osc")
		}
	default:
		return fmt.Errorf("DSP_BACKEND must be one of stub, camilla, osc, got %q", cfg.DSPBackend)
	}

	return nil
}
