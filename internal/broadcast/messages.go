package broadcast

import (
	"encoding/json"

	"github.com/Youpit44/camillamix/internal/domain"
	"github.com/Youpit44/camillamix/internal/mixer"
	apperrors "github.com/Youpit44/camillamix/internal/platform/errors"
)

// Outbound message types.
const (
	MsgState              = "state"
	MsgLevels             = "levels"
	MsgDSPStatus          = "dsp_status"
	MsgAutosaveSettings   = "autosave_settings"
	MsgPresetSaved        = "preset_saved"
	MsgPresetLoaded       = "preset_loaded"
	MsgSubscribedLevels   = "subscribed_levels"
	MsgSubscribedSpectrum = "subscribed_spectrum"
	MsgError              = "error"
	MsgSpectrum           = "spectrum"
)

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func encode(msgType string, payload any) ([]byte, error) {
	return json.Marshal(Envelope{Type: msgType, Payload: payload})
}

type LevelEntry struct {
	Channel domain.Target `json:"channel"`
	LevelDB float64       `json:"level_db"`
	PeakDB  float64       `json:"peak_db"`
}

type LevelsPayload struct {
	Channels  []LevelEntry `json:"channels"`
	Simulated bool         `json:"simulated"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

type PresetSavedPayload struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type PresetLoadedPayload struct {
	Name string `json:"name"`
}

type SubscribedLevelsPayload struct {
	IntervalMS int64 `json:"interval_ms"`
}

type SubscribedSpectrumPayload struct {
	Enabled bool `json:"enabled"`
}

type SpectrumPayload struct {
	Samples []float64 `json:"samples"`
}

func errorPayload(err error) ErrorPayload {
	appErr := apperrors.AsStructuredError(err)
	return ErrorPayload{Message: appErr.Describe(), Kind: string(appErr.Kind)}
}

// simulatedLevels derives meter values from fader positions, master first.
func simulatedLevels(snap domain.MixerSnapshot) LevelsPayload {
	entries := make([]LevelEntry, 0, len(snap.Channels)+1)
	add := func(ch domain.Channel) {
		level := mixer.ClampDB(ch.LevelDB)
		entries = append(entries, LevelEntry{Channel: ch.Index, LevelDB: level, PeakDB: level + 0.5})
	}
	add(snap.Master)
	for _, ch := range snap.Channels {
		add(ch)
	}
	return LevelsPayload{Channels: entries, Simulated: true}
}

// measuredLevels reads meter index 0 as master and index i+1 as channel i.
// Targets the DSP did not report read as silence.
func measuredLevels(snap domain.MixerSnapshot, pl *domain.PlaybackLevels) LevelsPayload {
	entries := make([]LevelEntry, 0, len(snap.Channels)+1)
	add := func(t domain.Target) {
		idx := t.DSPIndex()
		rms := meterAt(pl.RMS, idx)
		peak := rms
		if idx < len(pl.Peak) {
			peak = meterAt(pl.Peak, idx)
		}
		entries = append(entries, LevelEntry{Channel: t, LevelDB: rms, PeakDB: peak})
	}
	add(domain.Master)
	for _, ch := range snap.Channels {
		add(ch.Index)
	}
	return LevelsPayload{Channels: entries}
}

func meterAt(values []float64, idx int) float64 {
	if idx < 0 || idx >= len(values) {
		return domain.MinDB
	}
	return mixer.ClampDB(values[idx])
}
