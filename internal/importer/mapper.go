package importer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Youpit44/camillamix/internal/domain"
	"github.com/Youpit44/camillamix/internal/mixer"
)

const (
	SourceState   = "state"
	SourceMixers  = "mixers"
	SourceGains   = "gains"
	SourceDefault = "default"

	PreferredMixer = "2x8"
)

// Provenance names the strategy that produced an import.
type Provenance struct {
	Source string `json:"source"`
	Mixer  string `json:"mixer,omitempty"`
}

type Mapper struct {
	channels int
	maxBytes int
}

func NewMapper(channels, maxBytes int) *Mapper {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Mapper{channels: channels, maxBytes: maxBytes}
}

func (m *Mapper) MaxBytes() int { return m.maxBytes }

func (m *Mapper) Parse(raw []byte) (Document, error) {
	return Parse(raw, m.maxBytes)
}

// Import parses raw and maps it.
func (m *Mapper) Import(raw []byte) (domain.MixerSnapshot, Provenance, error) {
	doc, err := m.Parse(raw)
	if err != nil {
		return domain.MixerSnapshot{}, Provenance{}, err
	}
	snap, prov := m.Map(doc)
	return snap, prov, nil
}

// Map tries each recognised layout in turn and always yields a complete
// snapshot with the configured channel count.
func (m *Mapper) Map(doc Document) (domain.MixerSnapshot, Provenance) {
	if snap, ok := m.fromState(doc.Root); ok {
		return snap, Provenance{Source: SourceState}
	}
	if snap, name, ok := m.fromMixers(doc); ok {
		return snap, Provenance{Source: SourceMixers, Mixer: name}
	}
	if snap, ok := m.fromGains(doc.Root); ok {
		return snap, Provenance{Source: SourceGains}
	}
	return mixer.DefaultSnapshot(m.channels), Provenance{Source: SourceDefault}
}

func (m *Mapper) fromState(root any) (domain.MixerSnapshot, bool) {
	state, ok := asMap(field(root, "state"))
	if !ok {
		return domain.MixerSnapshot{}, false
	}
	entries, ok := state["channels"].([]any)
	if !ok {
		return domain.MixerSnapshot{}, false
	}

	snap := mixer.DefaultSnapshot(m.channels)
	for i := 0; i < len(entries) && i < m.channels; i++ {
		entry, ok := asMap(entries[i])
		if !ok {
			continue
		}
		ch := &snap.Channels[i]
		if v, ok := toFloat(entry["level_db"]); ok {
			ch.LevelDB = mixer.ClampDB(v)
		}
		ch.Mute = truthy(entry["mute"])
		ch.Solo = truthy(entry["solo"])
		if eq, ok := asMap(entry["eq"]); ok {
			for _, b := range domain.Bands {
				if v, ok := toFloat(eq[string(b)]); ok {
					ch.EQ.Set(b, mixer.ClampDB(v))
				}
			}
		}
	}
	return snap, true
}

func (m *Mapper) fromMixers(doc Document) (domain.MixerSnapshot, string, bool) {
	mixers, ok := asMap(field(doc.Root, "mixers"))
	if !ok || len(mixers) == 0 {
		return domain.MixerSnapshot{}, "", false
	}

	name := ""
	if _, ok := mixers[PreferredMixer]; ok {
		name = PreferredMixer
	} else {
		for _, candidate := range doc.mixerOrder {
			if _, ok := mixers[candidate]; ok {
				name = candidate
				break
			}
		}
	}
	if name == "" {
		return domain.MixerSnapshot{}, "", false
	}

	selected, ok := asMap(mixers[name])
	if !ok {
		return domain.MixerSnapshot{}, "", false
	}

	snap := mixer.DefaultSnapshot(m.channels)
	mapping, _ := selected["mapping"].([]any)
	for _, raw := range mapping {
		entry, ok := asMap(raw)
		if !ok {
			continue
		}
		dest, ok := toInt(entry["dest"])
		if !ok || dest < 0 || dest >= m.channels {
			continue
		}

		gain := 0.0
		mute := truthy(entry["mute"])
		if sources, ok := entry["sources"].([]any); ok && len(sources) > 0 {
			if first, ok := asMap(sources[0]); ok {
				if v, ok := toFloat(first["gain"]); ok {
					gain = v
				}
				mute = mute || truthy(first["mute"])
			}
		}
		snap.Channels[dest].LevelDB = mixer.ClampDB(gain)
		snap.Channels[dest].Mute = mute
	}
	return snap, name, true
}

func (m *Mapper) fromGains(root any) (domain.MixerSnapshot, bool) {
	gains, ok := field(root, "gains").([]any)
	if !ok {
		return domain.MixerSnapshot{}, false
	}
	snap := mixer.DefaultSnapshot(m.channels)
	for i := 0; i < len(gains) && i < m.channels; i++ {
		if v, ok := toFloat(gains[i]); ok {
			snap.Channels[i].LevelDB = mixer.ClampDB(v)
		}
	}
	return snap, true
}

func field(v any, key string) any {
	obj, ok := asMap(v)
	if !ok {
		return nil
	}
	return obj[key]
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	}
	f, ok := toFloat(v)
	return ok && f != 0
}
