// Package dsp holds the DSP adapter implementations and the query guard
// shared by all of them.
package dsp

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/Youpit44/camillamix/internal/domain"
)

const spectrumBins = 64

// Stub logs commands and answers no queries, so the mixer simulates
// levels from fader positions. It synthesises a spectrum for UIs.
type Stub struct {
	mu     sync.Mutex
	phase  float64
	closed bool
}

func NewStub() *Stub {
	return &Stub{}
}

func (s *Stub) SetLevel(target int, db float64) error {
	slog.Debug("stub dsp: set level", "target", target, "db", db)
	return nil
}

func (s *Stub) SetMute(target int, mute bool) error {
	slog.Debug("stub dsp: set mute", "target", target, "mute", mute)
	return nil
}

func (s *Stub) SetMutes(batch []domain.MuteCommand) error {
	slog.Debug("stub dsp: set mutes", "count", len(batch))
	return nil
}

func (s *Stub) SetFilterGain(filter string, db float64) error {
	slog.Debug("stub dsp: set filter gain", "filter", filter, "db", db)
	return nil
}

func (s *Stub) CurrentState(context.Context) (*domain.DSPState, error) {
	return nil, nil
}

func (s *Stub) PlaybackLevels(context.Context) (*domain.PlaybackLevels, error) {
	return nil, nil
}

// Spectrum returns a pink-tilted curve with a slow sweep and jitter.
func (s *Stub) Spectrum(context.Context) ([]float64, error) {
	s.mu.Lock()
	s.phase += 0.05
	phase := s.phase
	s.mu.Unlock()

	samples := make([]float64, spectrumBins)
	for i := range samples {
		pos := float64(i) / spectrumBins
		tilt := -6 - 30*pos
		sweep := 6 * math.Sin(phase+pos*math.Pi*2)
		samples[i] = math.Max(domain.MinDB, tilt+sweep+rand.Float64()*3)
	}
	return samples, nil
}

func (s *Stub) Status() domain.DSPStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.DSPStatus{Backend: "stub", Connected: !s.closed}
}

func (s *Stub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
