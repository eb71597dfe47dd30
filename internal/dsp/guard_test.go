package dsp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Youpit44/camillamix/internal/domain"
	"github.com/Youpit44/camillamix/internal/dsp/dsptest"
)

var testGuard = GuardSettings{FailureThreshold: 2, OpenTimeout: time.Hour}

func TestGuard_PreservesBatchCapability(t *testing.T) {
	_, ok := Guard(dsptest.NewRecorder(), testGuard).(domain.BatchMuter)
	assert.False(t, ok)

	batch := dsptest.NewBatchRecorder()
	guarded := Guard(batch, testGuard)
	bm, ok := guarded.(domain.BatchMuter)
	require.True(t, ok)
	require.NoError(t, bm.SetMutes([]domain.MuteCommand{{Target: 0, Mute: true}}))
	assert.Len(t, batch.CallsOf("set_mutes"), 1)
}

func TestGuard_CommandsPassThrough(t *testing.T) {
	rec := dsptest.NewRecorder()
	g := Guard(rec, testGuard)

	require.NoError(t, g.SetLevel(1, -3))
	require.NoError(t, g.SetFilterGain("ch0_eq_low", 2))

	assert.Equal(t, []dsptest.Call{
		{Op: "set_level", Target: 1, Value: -3},
		{Op: "set_filter_gain", Filter: "ch0_eq_low", Value: 2},
	}, rec.Calls())
	assert.Equal(t, "test", g.Status().Backend)
}

func TestGuard_OpensAfterConsecutiveFailures(t *testing.T) {
	rec := dsptest.NewRecorder()
	boom := errors.New("timeout")
	rec.SetPlaybackLevels(nil, boom)
	g := Guard(rec, testGuard)

	for range 2 {
		_, err := g.PlaybackLevels(context.Background())
		require.ErrorIs(t, err, boom)
	}

	rec.SetPlaybackLevels(&domain.PlaybackLevels{RMS: []float64{-20}}, nil)
	_, err := g.PlaybackLevels(context.Background())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestGuard_CancellationDoesNotTrip(t *testing.T) {
	rec := dsptest.NewRecorder()
	rec.SetCurrentState(nil, context.Canceled)
	g := Guard(rec, testGuard)

	for range 5 {
		_, _ = g.CurrentState(context.Background())
	}

	want := &domain.DSPState{Channels: map[int]domain.DSPChannelState{0: {LevelDB: -1}}}
	rec.SetCurrentState(want, nil)
	got, err := g.CurrentState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGuard_NilResults(t *testing.T) {
	g := Guard(dsptest.NewRecorder(), testGuard)

	levels, err := g.PlaybackLevels(context.Background())
	require.NoError(t, err)
	assert.Nil(t, levels)

	spectrum, err := g.(domain.SpectrumSource).Spectrum(context.Background())
	require.NoError(t, err)
	assert.Nil(t, spectrum)
}

func TestGuard_SpectrumFromSource(t *testing.T) {
	src := &dsptest.SpectrumRecorder{Recorder: dsptest.NewRecorder(), Samples: []float64{-10, -20}}
	g := Guard(src, testGuard)

	got, err := g.(domain.SpectrumSource).Spectrum(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{-10, -20}, got)
}

func TestStub(t *testing.T) {
	s := NewStub()
	require.NoError(t, s.SetLevel(0, -3))
	require.NoError(t, s.SetMutes(nil))

	levels, err := s.PlaybackLevels(context.Background())
	require.NoError(t, err)
	assert.Nil(t, levels)

	samples, err := s.Spectrum(context.Background())
	require.NoError(t, err)
	require.Len(t, samples, spectrumBins)
	for _, v := range samples {
		assert.GreaterOrEqual(t, v, domain.MinDB)
		assert.LessOrEqual(t, v, domain.MaxDB)
	}

	assert.True(t, s.Status().Connected)
	require.NoError(t, s.Close())
	assert.False(t, s.Status().Connected)
}
