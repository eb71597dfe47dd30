package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 8, cfg.Channels)
	assert.Equal(t, "presets", cfg.PresetsDir)
	assert.False(t, cfg.AutosaveEnabled)
	assert.Equal(t, 30*time.Second, cfg.AutosaveInterval())
	assert.Equal(t, 200*time.Millisecond, cfg.LevelTick)
	assert.Equal(t, 10, cfg.StatusEveryTicks)
	assert.Equal(t, 33*time.Millisecond, cfg.SpectrumTick)
	assert.Equal(t, 5*1024*1024, cfg.MaxImportBytes)
	assert.Equal(t, BackendStub, cfg.DSPBackend)
	assert.Equal(t, 1.0, cfg.WriteRatePerSec)
	assert.Equal(t, 5, cfg.WriteBurst)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("MIXER_CHANNELS", "16")
	t.Setenv("AUTOSAVE_ENABLED", "true")
	t.Setenv("AUTOSAVE_INTERVAL_SEC", "2.5")
	t.Setenv("LEVEL_TICK", "100ms")
	t.Setenv("DSP_BACKEND", "camilla")
	t.Setenv("CAMILLA_WS_URL", "ws://dsp.local:1234")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 16, cfg.Channels)
	assert.True(t, cfg.AutosaveEnabled)
	assert.Equal(t, 2500*time.Millisecond, cfg.AutosaveInterval())
	assert.Equal(t, 100*time.Millisecond, cfg.LevelTick)
	assert.Equal(t, "ws://dsp.local:1234", cfg.CamillaWSURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"zero channels", "MIXER_CHANNELS", "0", "MIXER_CHANNELS must be between 1 and 64, got 0"},
		{"too many channels", "MIXER_CHANNELS", "65", "MIXER_CHANNELS must be between 1 and 64, got 65"},
		{"negative autosave", "AUTOSAVE_INTERVAL_SEC", "-1", "AUTOSAVE_INTERVAL_SEC must be positive"},
		{"zero status cadence", "STATUS_EVERY_TICKS", "0", "STATUS_EVERY_TICKS must be at least 1"},
		{"zero level tick", "LEVEL_TICK", "0s", "LEVEL_TICK and SPECTRUM_TICK must be positive"},
		{"negative write rate", "WRITE_RATE_PER_SEC", "-1", "WRITE_RATE_PER_SEC must not be negative"},
		{"zero write burst", "WRITE_BURST", "0", "WRITE_BURST must be at least 1 when rate limiting is enabled"},
		{"unknown backend", "DSP_BACKEND", "jack", `DSP_BACKEND must be one of stub, camilla, osc, got "jack"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_OSCRequiresPort(t *testing.T) {
	t.Setenv("DSP_BACKEND", "osc")
	t.Setenv("OSC_PORT", "70000")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OSC_PORT")
}

func TestLoad_MalformedDuration(t *testing.T) {
	t.Setenv("SPECTRUM_TICK", "fast")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load environment variables")
}
