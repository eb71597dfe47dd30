package mixer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Youpit44/camillamix/internal/domain"
	"github.com/Youpit44/camillamix/internal/dsp/dsptest"
)

func TestEffectiveMutes_NoSolo(t *testing.T) {
	snap := DefaultSnapshot(3)
	snap.Channels[1].Mute = true
	snap.Master.Mute = true

	got := EffectiveMutes(snap)

	assert.Equal(t, []domain.MuteCommand{
		{Target: 0, Mute: true},
		{Target: 1, Mute: false},
		{Target: 2, Mute: true},
		{Target: 3, Mute: false},
	}, got)
}

func TestEffectiveMutes_SoloMutesEverythingElse(t *testing.T) {
	snap := DefaultSnapshot(4)
	snap.Channels[2].Solo = true
	snap.Channels[2].Mute = true // solo wins over the channel's own mute

	got := EffectiveMutes(snap)

	assert.Equal(t, []domain.MuteCommand{
		{Target: 0, Mute: false},
		{Target: 1, Mute: true},
		{Target: 2, Mute: true},
		{Target: 3, Mute: false},
		{Target: 4, Mute: true},
	}, got)
}

func TestEffectiveMutes_SoloInvariant(t *testing.T) {
	// Every combination of solo/mute over three channels.
	for mask := 0; mask < 1<<6; mask++ {
		snap := DefaultSnapshot(3)
		anySolo := false
		for i := range snap.Channels {
			snap.Channels[i].Solo = mask&(1<<i) != 0
			snap.Channels[i].Mute = mask&(1<<(i+3)) != 0
			anySolo = anySolo || snap.Channels[i].Solo
		}

		got := EffectiveMutes(snap)
		require.Len(t, got, 4)
		for i, ch := range snap.Channels {
			want := ch.Mute
			if anySolo {
				want = !ch.Solo
			}
			assert.Equal(t, want, got[i+1].Mute, "mask %06b channel %d", mask, i)
		}
	}
}

func TestApplyMutes_Batch(t *testing.T) {
	rec := dsptest.NewBatchRecorder()
	snap := DefaultSnapshot(2)
	snap.Channels[0].Solo = true

	require.NoError(t, ApplyMutes(rec, snap))

	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "set_mutes", calls[0].Op)
	assert.Equal(t, []domain.MuteCommand{{Target: 0, Mute: false}, {Target: 1, Mute: false}, {Target: 2, Mute: true}}, calls[0].Batch)
}

func TestApplyMutes_SequentialInOrder(t *testing.T) {
	rec := dsptest.NewRecorder()
	snap := DefaultSnapshot(3)

	require.NoError(t, ApplyMutes(rec, snap))

	calls := rec.CallsOf("set_mute")
	require.Len(t, calls, 4)
	for i, c := range calls {
		assert.Equal(t, i, c.Target)
	}
}

func TestApplyMutes_ErrorsAreCollected(t *testing.T) {
	rec := dsptest.NewRecorder()
	boom := errors.New("dsp offline")
	rec.FailCommands(boom)

	err := ApplyMutes(rec, DefaultSnapshot(2))

	assert.ErrorIs(t, err, boom)
	assert.Len(t, rec.CallsOf("set_mute"), 3, "every target is still attempted")
}

func TestSync_PushesWholeState(t *testing.T) {
	rec := dsptest.NewRecorder()
	snap := DefaultSnapshot(2)
	snap.Channels[1].LevelDB = -9
	snap.Channels[1].EQ.Low = 2

	require.NoError(t, Sync(rec, snap))

	levels := rec.CallsOf("set_level")
	require.Len(t, levels, 3)
	assert.Equal(t, dsptest.Call{Op: "set_level", Target: 2, Value: -9}, levels[2])
	assert.Len(t, rec.CallsOf("set_mute"), 3)

	filters := rec.CallsOf("set_filter_gain")
	assert.Len(t, filters, 3*len(domain.Bands))
	assert.Contains(t, filters, dsptest.Call{Op: "set_filter_gain", Filter: "ch1_eq_low", Value: 2})
}
