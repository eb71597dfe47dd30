package mixer

import (
	"errors"
	"fmt"

	"github.com/Youpit44/camillamix/internal/domain"
)

// EffectiveMutes derives the mute batch submitted to the DSP. Master is
// first (target 0), then channel i as target i+1. When any channel is
// soloed every non-soloed channel is muted; master keeps its own mute.
func EffectiveMutes(snap domain.MixerSnapshot) []domain.MuteCommand {
	anySolo := false
	for _, ch := range snap.Channels {
		if ch.Solo {
			anySolo = true
			break
		}
	}

	batch := make([]domain.MuteCommand, 0, len(snap.Channels)+1)
	batch = append(batch, domain.MuteCommand{Target: domain.Master.DSPIndex(), Mute: snap.Master.Mute})
	for i, ch := range snap.Channels {
		mute := ch.Mute
		if anySolo {
			mute = !ch.Solo
		}
		batch = append(batch, domain.MuteCommand{Target: domain.Target(i).DSPIndex(), Mute: mute})
	}
	return batch
}

// ApplyMutes submits the effective mutes, as one batch when the adapter
// supports it and as ordered single commands otherwise. Errors are
// advisory; all sequential commands are attempted.
func ApplyMutes(adapter domain.Adapter, snap domain.MixerSnapshot) error {
	batch := EffectiveMutes(snap)

	if bm, ok := adapter.(domain.BatchMuter); ok {
		if err := bm.SetMutes(batch); err != nil {
			return fmt.Errorf("set mutes: %w", err)
		}
		return nil
	}

	var errs []error
	for _, cmd := range batch {
		if err := adapter.SetMute(cmd.Target, cmd.Mute); err != nil {
			errs = append(errs, fmt.Errorf("set mute target %d: %w", cmd.Target, err))
		}
	}
	return errors.Join(errs...)
}

// Sync pushes the complete local state to the DSP: levels, the mute
// batch, then every EQ filter gain.
func Sync(adapter domain.Adapter, snap domain.MixerSnapshot) error {
	var errs []error
	targets := make([]domain.Channel, 0, len(snap.Channels)+1)
	targets = append(targets, snap.Master)
	targets = append(targets, snap.Channels...)

	for _, ch := range targets {
		if err := adapter.SetLevel(ch.Index.DSPIndex(), ch.LevelDB); err != nil {
			errs = append(errs, fmt.Errorf("set level %s: %w", ch.Index, err))
		}
	}
	if err := ApplyMutes(adapter, snap); err != nil {
		errs = append(errs, err)
	}
	for _, ch := range targets {
		for _, band := range domain.Bands {
			if err := adapter.SetFilterGain(FilterName(ch.Index, band), ch.EQ.Get(band)); err != nil {
				errs = append(errs, fmt.Errorf("set filter %s: %w", FilterName(ch.Index, band), err))
			}
		}
	}
	return errors.Join(errs...)
}
