package mixer

import (
	"slices"

	"github.com/Youpit44/camillamix/internal/domain"
)

// State is the authoritative mixer document. It is owned by a single
// goroutine and does no locking; setters assume validated input.
type State struct {
	master   domain.Channel
	channels []domain.Channel
}

func NewState(count int) *State {
	return &State{
		master:   DefaultChannel(domain.Master),
		channels: defaultChannels(count),
	}
}

// DefaultChannel is a channel at 0 dB, unmuted, flat EQ.
func DefaultChannel(index domain.Target) domain.Channel {
	return domain.Channel{Index: index}
}

// DefaultSnapshot returns a flat mixer with count channels.
func DefaultSnapshot(count int) domain.MixerSnapshot {
	return domain.MixerSnapshot{
		Master:   DefaultChannel(domain.Master),
		Channels: defaultChannels(count),
	}
}

func defaultChannels(count int) []domain.Channel {
	channels := make([]domain.Channel, count)
	for i := range channels {
		channels[i] = DefaultChannel(domain.Target(i))
	}
	return channels
}

func (s *State) Count() int { return len(s.channels) }

// Snapshot returns a deep copy.
func (s *State) Snapshot() domain.MixerSnapshot {
	return domain.MixerSnapshot{
		Master:   s.master,
		Channels: slices.Clone(s.channels),
	}
}

func (s *State) channel(t domain.Target) *domain.Channel {
	if t.IsMaster() {
		return &s.master
	}
	return &s.channels[int(t)]
}

// Channel returns a copy of the target's channel.
func (s *State) Channel(t domain.Target) domain.Channel {
	return *s.channel(t)
}

func (s *State) SetLevel(t domain.Target, db float64) {
	s.channel(t).LevelDB = db
}

func (s *State) SetMute(t domain.Target, mute bool) {
	s.channel(t).Mute = mute
}

func (s *State) SetSolo(t domain.Target, solo bool) {
	s.channel(t).Solo = solo
}

func (s *State) SetEQ(t domain.Target, band domain.Band, db float64) {
	s.channel(t).EQ.Set(band, db)
}

// Replace overwrites the whole state with snap, padding or truncating to
// the fixed channel count and re-clamping every value.
func (s *State) Replace(snap domain.MixerSnapshot) {
	s.master = sanitize(snap.Master, domain.Master)
	s.ReplaceChannels(snap.Channels)
}

// ReplaceChannels overwrites the channels and keeps the master bus.
func (s *State) ReplaceChannels(channels []domain.Channel) {
	next := defaultChannels(len(s.channels))
	for i := range next {
		if i < len(channels) {
			next[i] = sanitize(channels[i], domain.Target(i))
		}
	}
	s.channels = next
}

func sanitize(ch domain.Channel, index domain.Target) domain.Channel {
	ch.Index = index
	ch.LevelDB = ClampDB(ch.LevelDB)
	for _, b := range domain.Bands {
		ch.EQ.Set(b, ClampDB(ch.EQ.Get(b)))
	}
	if index.IsMaster() {
		ch.Solo = false
	}
	return ch
}
