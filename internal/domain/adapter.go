package domain

import "context"

// MuteCommand is one entry of a resolved mute batch, addressed by DSP index.
type MuteCommand struct {
	Target int  `json:"target"`
	Mute   bool `json:"mute"`
}

// DSPChannelState is what the DSP reports for one fader. EQ is nil when
// the backend cannot report filter gains.
type DSPChannelState struct {
	LevelDB float64 `json:"level_db"`
	Mute    bool    `json:"mute"`
	EQ      *EQ     `json:"eq,omitempty"`
}

// DSPState is the DSP-side view keyed by mixer channel index.
type DSPState struct {
	Master   *DSPChannelState        `json:"master,omitempty"`
	Channels map[int]DSPChannelState `json:"channels"`
}

// PlaybackLevels holds per-DSP-index signal levels in dB. Index 0 is master.
type PlaybackLevels struct {
	RMS  []float64 `json:"rms"`
	Peak []float64 `json:"peak"`
}

type DSPStatus struct {
	Backend   string `json:"backend"`
	Connected bool   `json:"connected"`
	Endpoint  string `json:"endpoint,omitempty"`
	State     string `json:"state,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// Adapter forwards mixer changes to a DSP backend.
//
// Command methods are fire-and-forget and must not block on the network.
// Query methods may block and honour ctx. A nil result with a nil error
// means the backend cannot answer that query.
type Adapter interface {
	SetLevel(target int, db float64) error
	SetMute(target int, mute bool) error
	SetFilterGain(filter string, db float64) error
	CurrentState(ctx context.Context) (*DSPState, error)
	PlaybackLevels(ctx context.Context) (*PlaybackLevels, error)
	Status() DSPStatus
	Close() error
}

// BatchMuter is implemented by adapters that can apply several mutes at once.
type BatchMuter interface {
	SetMutes(batch []MuteCommand) error
}

// SpectrumSource is implemented by adapters that can sample a spectrum.
type SpectrumSource interface {
	Spectrum(ctx context.Context) ([]float64, error)
}
