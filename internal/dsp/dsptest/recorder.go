// Package dsptest provides a recording DSP adapter for tests.
package dsptest

import (
	"context"
	"slices"
	"sync"

	"github.com/Youpit44/camillamix/internal/domain"
)

type Call struct {
	Op     string
	Target int
	Value  float64
	Mute   bool
	Filter string
	Batch  []domain.MuteCommand
}

// Recorder is an in-memory domain.Adapter that records every command.
// It does not implement BatchMuter; wrap it in BatchRecorder for that.
type Recorder struct {
	mu        sync.Mutex
	calls     []Call
	err       error
	state     *domain.DSPState
	stateErr  error
	levels    *domain.PlaybackLevels
	levelsErr error
	status    domain.DSPStatus
	gate      chan struct{}
	queries   int
	closed    bool
}

func NewRecorder() *Recorder {
	return &Recorder{status: domain.DSPStatus{Backend: "test", Connected: true}}
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return r.err
}

func (r *Recorder) SetLevel(target int, db float64) error {
	return r.record(Call{Op: "set_level", Target: target, Value: db})
}

func (r *Recorder) SetMute(target int, mute bool) error {
	return r.record(Call{Op: "set_mute", Target: target, Mute: mute})
}

func (r *Recorder) SetFilterGain(filter string, db float64) error {
	return r.record(Call{Op: "set_filter_gain", Filter: filter, Value: db})
}

func (r *Recorder) CurrentState(ctx context.Context) (*domain.DSPState, error) {
	r.mu.Lock()
	r.queries++
	gate := r.gate
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.stateErr
}

func (r *Recorder) PlaybackLevels(context.Context) (*domain.PlaybackLevels, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.levels, r.levelsErr
}

func (r *Recorder) Status() domain.DSPStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// FailCommands makes every command return err.
func (r *Recorder) FailCommands(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) SetCurrentState(state *domain.DSPState, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state, r.stateErr = state, err
}

func (r *Recorder) SetPlaybackLevels(levels *domain.PlaybackLevels, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels, r.levelsErr = levels, err
}

// HoldCurrentState blocks CurrentState until the returned func is called.
func (r *Recorder) HoldCurrentState() (release func()) {
	gate := make(chan struct{})
	r.mu.Lock()
	r.gate = gate
	r.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (r *Recorder) StateQueries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queries
}

func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// CallsOf returns the recorded calls with the given op.
func (r *Recorder) CallsOf(op string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// BatchRecorder adds SetMutes to a Recorder.
type BatchRecorder struct {
	*Recorder
}

func NewBatchRecorder() *BatchRecorder {
	return &BatchRecorder{Recorder: NewRecorder()}
}

func (b *BatchRecorder) SetMutes(batch []domain.MuteCommand) error {
	return b.record(Call{Op: "set_mutes", Batch: slices.Clone(batch)})
}

// SpectrumRecorder adds a fixed Spectrum source to a Recorder.
type SpectrumRecorder struct {
	*Recorder
	Samples []float64
}

func (s *SpectrumRecorder) Spectrum(context.Context) ([]float64, error) {
	return slices.Clone(s.Samples), nil
}
