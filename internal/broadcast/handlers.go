package broadcast

import (
	"context"
	"log/slog"

	"github.com/Youpit44/camillamix/internal/domain"
	"github.com/Youpit44/camillamix/internal/metrics"
	"github.com/Youpit44/camillamix/internal/mixer"
	apperrors "github.com/Youpit44/camillamix/internal/platform/errors"
)

func (b *Broadcaster) handleInbound(c inboundCmd) {
	s, ok := b.sessions[c.id]
	if !ok {
		return
	}

	if c.err != nil {
		metrics.CommandsTotal.WithLabelValues(c.kind, "rejected").Inc()
		slog.DebugContext(s.ctx, "Rejected command", "error", c.err)
		b.send(s, MsgError, errorPayload(c.err))
		return
	}

	if err := b.execute(s, c.command); err != nil {
		metrics.CommandsTotal.WithLabelValues(c.kind, "error").Inc()
		slog.WarnContext(s.ctx, "Command failed", "kind", c.kind, "error", err)
		b.send(s, MsgError, errorPayload(err))
		return
	}
	metrics.CommandsTotal.WithLabelValues(c.kind, "ok").Inc()
}

// execute applies one validated command. State changes are only marked
// dirty here; the next level tick broadcasts them.
func (b *Broadcaster) execute(s *session, cmd Command) error {
	switch c := cmd.(type) {
	case SetLevel:
		b.state.SetLevel(c.Target, c.LevelDB)
		b.forward(s.ctx, "set_level", b.adapter.SetLevel(c.Target.DSPIndex(), c.LevelDB))
		b.markDirty()

	case SetMute:
		b.state.SetMute(c.Target, c.Mute)
		b.forward(s.ctx, "set_mute", mixer.ApplyMutes(b.adapter, b.state.Snapshot()))
		b.markDirty()

	case SetSolo:
		b.state.SetSolo(c.Target, c.Solo)
		b.forward(s.ctx, "set_mute", mixer.ApplyMutes(b.adapter, b.state.Snapshot()))
		b.markDirty()

	case SetEQ:
		b.state.SetEQ(c.Target, c.Band, c.GainDB)
		b.forward(s.ctx, "set_filter_gain", b.adapter.SetFilterGain(mixer.FilterName(c.Target, c.Band), c.GainDB))
		b.markDirty()

	case SavePreset:
		saved, err := b.savePreset(c.Name, b.state.Snapshot())
		if err != nil {
			return err
		}
		b.send(s, MsgPresetSaved, saved)

	case LoadPreset:
		snap, ok, err := b.presets.Load(c.Name)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NotFound("preset not found: " + c.Name).WithContext("name", c.Name)
		}
		b.state.Replace(snap)
		b.forward(s.ctx, "sync", mixer.Sync(b.adapter, b.state.Snapshot()))
		b.markDirty()
		b.send(s, MsgPresetLoaded, PresetLoadedPayload{Name: c.Name})

	case SetAutosave:
		b.applyAutosave(c.Update)
		b.send(s, MsgAutosaveSettings, b.autosave)

	case SubscribeLevels:
		b.send(s, MsgSubscribedLevels, SubscribedLevelsPayload{IntervalMS: b.opts.LevelTick.Milliseconds()})

	case SubscribeSpectrum:
		s.spectrum = c.Enabled
		b.updateSpectrumTicker()
		b.send(s, MsgSubscribedSpectrum, SubscribedSpectrumPayload{Enabled: c.Enabled})

	default:
		return apperrors.Internal("unhandled command", nil).WithContext("kind", cmd.Kind())
	}
	return nil
}

// forward records a failed DSP command. Local state stays authoritative.
func (b *Broadcaster) forward(ctx context.Context, op string, err error) {
	if err == nil {
		return
	}
	metrics.AdapterFailuresTotal.WithLabelValues(op).Inc()
	slog.WarnContext(ctx, "DSP command failed", "op", op, "error", err)
}

func (b *Broadcaster) savePreset(name string, snap domain.MixerSnapshot) (PresetSavedPayload, error) {
	path, err := b.presets.Save(name, snap)
	if err != nil {
		metrics.PresetSavesTotal.WithLabelValues("error").Inc()
		return PresetSavedPayload{}, err
	}
	metrics.PresetSavesTotal.WithLabelValues("success").Inc()
	return PresetSavedPayload{Name: name, Path: path}, nil
}

func (b *Broadcaster) handleSavePreset(name string, state *domain.MixerSnapshot) result[PresetSavedPayload] {
	snap := b.state.Snapshot()
	if state != nil {
		scratch := mixer.NewState(b.opts.Channels)
		scratch.Replace(*state)
		snap = scratch.Snapshot()
	}
	saved, err := b.savePreset(name, snap)
	return result[PresetSavedPayload]{value: saved, err: err}
}

// handleImport keeps the live master and replaces every channel.
func (b *Broadcaster) handleImport(req ImportRequest) result[ImportResult] {
	b.state.ReplaceChannels(req.Snapshot.Channels)
	snap := b.state.Snapshot()
	b.forward(context.Background(), "sync", mixer.Sync(b.adapter, snap))
	b.markDirty()
	metrics.ImportsTotal.WithLabelValues(req.Provenance.Source).Inc()

	res := ImportResult{ImportedAs: req.Name, Mapping: req.Provenance, State: snap}
	saved, err := b.savePreset(req.Name, snap)
	if err != nil {
		return result[ImportResult]{value: res, err: err}
	}
	res.Path = saved.Path
	slog.Info("Config imported", "name", req.Name, "source", req.Provenance.Source, "mixer", req.Provenance.Mixer)
	return result[ImportResult]{value: res}
}
