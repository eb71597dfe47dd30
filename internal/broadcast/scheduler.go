package broadcast

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/Youpit44/camillamix/internal/domain"
	"github.com/Youpit44/camillamix/internal/metrics"
)

const (
	DefaultAutosaveIntervalSec = 30.0
	// measured levels older than this many ticks fall back to simulated ones
	levelsFreshTicks = 2
)

// scheduler holds the loop counters. Owned by the actor.
type scheduler struct {
	tick             uint64
	dirty            bool
	levelsInFlight   bool
	levels           *domain.PlaybackLevels
	levelsTick       uint64
	spectrumInFlight bool
	spectrum         []float64
	lastReconciled   uint64
}

// AutosaveSettings controls the periodic save to the "autosave" preset.
type AutosaveSettings struct {
	Enabled     bool    `json:"enabled"`
	IntervalSec float64 `json:"interval_sec"`
}

// AutosaveUpdate changes only the fields that are set.
type AutosaveUpdate struct {
	Enabled     *bool
	IntervalSec *float64
}

func (a AutosaveSettings) Interval() time.Duration {
	return time.Duration(a.IntervalSec * float64(time.Second))
}

func (a AutosaveSettings) normalized() AutosaveSettings {
	if !validInterval(a.IntervalSec) {
		a.IntervalSec = DefaultAutosaveIntervalSec
	}
	return a
}

// apply ignores a non-positive or non-finite interval.
func (a AutosaveSettings) apply(u AutosaveUpdate) AutosaveSettings {
	if u.Enabled != nil {
		a.Enabled = *u.Enabled
	}
	if u.IntervalSec != nil && validInterval(*u.IntervalSec) {
		a.IntervalSec = *u.IntervalSec
	}
	return a
}

func validInterval(sec float64) bool {
	return sec > 0 && !math.IsNaN(sec) && !math.IsInf(sec, 0) && time.Duration(sec*float64(time.Second)) > 0
}

func (b *Broadcaster) markDirty() {
	b.sched.dirty = true
}

// handleLevelTick broadcasts levels, then at most one state message if
// anything changed since the previous tick, then dsp_status every Kth tick.
func (b *Broadcaster) handleLevelTick() {
	start := b.clock.Now()
	defer func() {
		metrics.TickDuration.Observe(b.clock.Since(start).Seconds())
	}()

	b.sched.tick++
	snap := b.state.Snapshot()

	if len(b.sessions) > 0 {
		b.broadcast(MsgLevels, b.currentLevels(snap), nil)
	}
	if b.sched.dirty {
		b.broadcast(MsgState, snap, nil)
		b.sched.dirty = false
	}
	if b.sched.tick%uint64(b.opts.StatusEveryTicks) == 0 {
		b.broadcast(MsgDSPStatus, b.adapter.Status(), nil)
	}

	if len(b.sessions) > 0 && !b.sched.levelsInFlight {
		b.startLevelsQuery()
	}
}

func (b *Broadcaster) currentLevels(snap domain.MixerSnapshot) LevelsPayload {
	if b.sched.levels != nil && b.sched.tick-b.sched.levelsTick <= levelsFreshTicks {
		return measuredLevels(snap, b.sched.levels)
	}
	return simulatedLevels(snap)
}

func (b *Broadcaster) startLevelsQuery() {
	b.sched.levelsInFlight = true
	b.goHelper(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()
		levels, err := b.adapter.PlaybackLevels(ctx)
		b.post(levelsResultCmd{levels: levels, err: err})
	})
}

func (b *Broadcaster) handleLevelsResult(c levelsResultCmd) {
	b.sched.levelsInFlight = false
	if c.err != nil {
		slog.Debug("Playback levels unavailable", "error", c.err)
		return
	}
	if c.levels == nil {
		return
	}
	b.sched.levels = c.levels
	b.sched.levelsTick = b.sched.tick
}

func (b *Broadcaster) handleAutosaveTick() {
	if !b.autosave.Enabled {
		return
	}
	if _, err := b.savePreset(autosavePreset, b.state.Snapshot()); err != nil {
		slog.Error("Autosave failed", "error", err)
		return
	}
	slog.Debug("Autosaved mixer state")
}

func (b *Broadcaster) applyAutosave(u AutosaveUpdate) {
	prev := b.autosave
	b.autosave = b.autosave.apply(u)
	if b.autosaveTicker != nil && b.autosave.IntervalSec != prev.IntervalSec {
		b.autosaveTicker.Reset(b.autosave.Interval())
	}
	slog.Info("Autosave settings updated", "enabled", b.autosave.Enabled, "interval_sec", b.autosave.IntervalSec)
}

func (b *Broadcaster) spectrumSubscribers() int {
	n := 0
	for _, s := range b.sessions {
		if s.spectrum {
			n++
		}
	}
	return n
}

// updateSpectrumTicker runs the spectrum loop only while someone listens.
func (b *Broadcaster) updateSpectrumTicker() {
	active := b.spectrumSubscribers() > 0
	switch {
	case active && b.spectrumTicker == nil:
		b.spectrumTicker = b.clock.NewTicker(b.opts.SpectrumTick)
	case !active && b.spectrumTicker != nil:
		b.spectrumTicker.Stop()
		b.spectrumTicker = nil
		b.sched.spectrum = nil
	}
}

// handleSpectrumTick sends the latest samples to subscribers once, then
// requests the next frame.
func (b *Broadcaster) handleSpectrumTick() {
	if b.spectrumSubscribers() == 0 {
		b.updateSpectrumTicker()
		return
	}
	source, ok := b.adapter.(domain.SpectrumSource)
	if !ok {
		return
	}

	if b.sched.spectrum != nil {
		b.broadcast(MsgSpectrum, SpectrumPayload{Samples: b.sched.spectrum}, func(s *session) bool { return s.spectrum })
		b.sched.spectrum = nil
	}
	if b.sched.spectrumInFlight {
		return
	}

	b.sched.spectrumInFlight = true
	b.goHelper(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()
		samples, err := source.Spectrum(ctx)
		b.post(spectrumResultCmd{samples: samples, err: err})
	})
}

func (b *Broadcaster) handleSpectrumResult(c spectrumResultCmd) {
	b.sched.spectrumInFlight = false
	if c.err != nil {
		slog.Debug("Spectrum unavailable", "error", c.err)
		return
	}
	if len(c.samples) == 0 || b.spectrumTicker == nil {
		return
	}
	b.sched.spectrum = c.samples
}
