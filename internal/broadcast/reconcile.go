package broadcast

import (
	"context"
	"log/slog"
	"math"

	"github.com/Youpit44/camillamix/internal/domain"
	"github.com/Youpit44/camillamix/internal/mixer"
)

const (
	currentStateKey = "current_state"
	driftTolerance  = 0.05
)

// startReconcile fetches the DSP's view off the actor. Simultaneous joins
// share one query through the singleflight group.
func (b *Broadcaster) startReconcile() {
	b.goHelper(func(ctx context.Context) {
		v, err, _ := b.queries.Do(currentStateKey, func() (any, error) {
			ctx, cancel := context.WithTimeout(ctx, queryTimeout)
			defer cancel()
			f := fetchedState{fetch: b.fetches.Add(1)}
			state, err := b.adapter.CurrentState(ctx)
			f.state = state
			return f, err
		})
		f, _ := v.(fetchedState)
		b.post(reconcileResultCmd{fetch: f.fetch, state: f.state, err: err})
	})
}

// handleReconcileResult re-pushes whatever the DSP disagrees on. A result
// shared by several joins is acted on once.
func (b *Broadcaster) handleReconcileResult(c reconcileResultCmd) {
	if c.err != nil {
		slog.Debug("DSP state unavailable for reconcile", "error", c.err)
		return
	}
	if c.state == nil || c.fetch <= b.sched.lastReconciled {
		return
	}
	b.sched.lastReconciled = c.fetch

	snap := b.state.Snapshot()
	d := diffState(snap, c.state)
	if d.empty() {
		return
	}
	slog.Info("DSP state diverged, re-pushing local state",
		"levels", len(d.levels), "mutes", d.mutes, "eq", len(d.eq))

	ctx := context.Background()
	for _, ch := range d.levels {
		b.forward(ctx, "set_level", b.adapter.SetLevel(ch.Index.DSPIndex(), ch.LevelDB))
	}
	if d.mutes {
		b.forward(ctx, "set_mute", mixer.ApplyMutes(b.adapter, snap))
	}
	for _, ch := range d.eq {
		for _, band := range domain.Bands {
			b.forward(ctx, "set_filter_gain", b.adapter.SetFilterGain(mixer.FilterName(ch.Index, band), ch.EQ.Get(band)))
		}
	}
}

// fetchedState tags a query result so a result shared by coalesced
// callers can be recognised.
type fetchedState struct {
	fetch uint64
	state *domain.DSPState
}

type drift struct {
	levels []domain.Channel
	mutes  bool
	eq     []domain.Channel
}

func (d drift) empty() bool {
	return len(d.levels) == 0 && !d.mutes && len(d.eq) == 0
}

// diffState compares local state against what the DSP reported. Mutes are
// compared after solo resolution; targets the DSP did not report are skipped.
func diffState(local domain.MixerSnapshot, remote *domain.DSPState) drift {
	var d drift
	effective := mixer.EffectiveMutes(local)

	check := func(ch domain.Channel, r domain.DSPChannelState) {
		if math.Abs(r.LevelDB-ch.LevelDB) > driftTolerance {
			d.levels = append(d.levels, ch)
		}
		if r.Mute != effective[ch.Index.DSPIndex()].Mute {
			d.mutes = true
		}
		if r.EQ != nil && !eqMatches(*r.EQ, ch.EQ) {
			d.eq = append(d.eq, ch)
		}
	}

	if remote.Master != nil {
		check(local.Master, *remote.Master)
	}
	for i, ch := range local.Channels {
		if r, ok := remote.Channels[i]; ok {
			check(ch, r)
		}
	}
	return d
}

func eqMatches(a, b domain.EQ) bool {
	for _, band := range domain.Bands {
		if math.Abs(a.Get(band)-b.Get(band)) > driftTolerance {
			return false
		}
	}
	return true
}
