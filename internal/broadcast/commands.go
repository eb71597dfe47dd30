package broadcast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Youpit44/camillamix/internal/domain"
	"github.com/Youpit44/camillamix/internal/mixer"
	apperrors "github.com/Youpit44/camillamix/internal/platform/errors"
)

// Inbound message types.
const (
	KindSetLevel          = "set_channel_level"
	KindSetMute           = "set_channel_mute"
	KindSetSolo           = "set_channel_solo"
	KindSetEQ             = "set_channel_eq"
	KindSavePreset        = "save_preset"
	KindLoadPreset        = "load_preset"
	KindSetAutosave       = "set_autosave"
	KindSubscribeLevels   = "subscribe_levels"
	KindSubscribeSpectrum = "subscribe_spectrum"
)

var knownKinds = map[string]bool{
	KindSetLevel:          true,
	KindSetMute:           true,
	KindSetSolo:           true,
	KindSetEQ:             true,
	KindSavePreset:        true,
	KindLoadPreset:        true,
	KindSetAutosave:       true,
	KindSubscribeLevels:   true,
	KindSubscribeSpectrum: true,
}

// Command is a validated inbound session command.
type Command interface {
	Kind() string
}

type SetLevel struct {
	Target  domain.Target
	LevelDB float64
}

type SetMute struct {
	Target domain.Target
	Mute   bool
}

type SetSolo struct {
	Target domain.Target
	Solo   bool
}

type SetEQ struct {
	Target domain.Target
	Band   domain.Band
	GainDB float64
}

type SavePreset struct{ Name string }

type LoadPreset struct{ Name string }

type SetAutosave struct{ Update AutosaveUpdate }

// SubscribeLevels is acknowledged with the server's fixed level interval.
type SubscribeLevels struct{}

type SubscribeSpectrum struct{ Enabled bool }

func (SetLevel) Kind() string          { return KindSetLevel }
func (SetMute) Kind() string           { return KindSetMute }
func (SetSolo) Kind() string           { return KindSetSolo }
func (SetEQ) Kind() string             { return KindSetEQ }
func (SavePreset) Kind() string        { return KindSavePreset }
func (LoadPreset) Kind() string        { return KindLoadPreset }
func (SetAutosave) Kind() string       { return KindSetAutosave }
func (SubscribeLevels) Kind() string   { return KindSubscribeLevels }
func (SubscribeSpectrum) Kind() string { return KindSubscribeSpectrum }

type envelopeIn struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type payloadIn struct {
	Channel     any `json:"channel"`
	LevelDB     any `json:"level_db"`
	Mute        any `json:"mute"`
	Solo        any `json:"solo"`
	Band        any `json:"band"`
	GainDB      any `json:"gain_db"`
	Name        any `json:"name"`
	Enabled     any `json:"enabled"`
	IntervalSec any `json:"interval_sec"`
}

// DecodeCommand parses and validates one inbound message for a mixer with
// the given channel count. Every failure is an invalid_input error.
func DecodeCommand(data []byte, channels int) (Command, error) {
	var env envelopeIn
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperrors.InvalidInput("invalid json", err)
	}
	if env.Type == "" {
		return nil, apperrors.InvalidInput("missing message type", nil)
	}

	if !knownKinds[env.Type] {
		return nil, apperrors.InvalidInput("unknown message type: "+env.Type, nil)
	}

	var p payloadIn
	if raw := bytes.TrimSpace(env.Payload); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&p); err != nil {
			return nil, apperrors.InvalidInput("invalid "+env.Type+" payload", err)
		}
	}

	cmd, err := decodePayload(env.Type, p, channels)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid "+env.Type, err).WithContext("type", env.Type)
	}
	return cmd, nil
}

func decodePayload(kind string, p payloadIn, channels int) (Command, error) {
	switch kind {
	case KindSetLevel:
		target, err := mixer.ValidateChannel(p.Channel, channels)
		if err != nil {
			return nil, err
		}
		level, err := mixer.ParseLevel(p.LevelDB)
		if err != nil {
			return nil, err
		}
		return SetLevel{Target: target, LevelDB: level}, nil

	case KindSetMute:
		target, err := mixer.ValidateChannel(p.Channel, channels)
		if err != nil {
			return nil, err
		}
		mute, err := parseFlag("mute", p.Mute)
		if err != nil {
			return nil, err
		}
		return SetMute{Target: target, Mute: mute}, nil

	case KindSetSolo:
		target, err := mixer.ValidateChannel(p.Channel, channels)
		if err != nil {
			return nil, err
		}
		if target.IsMaster() {
			return nil, fmt.Errorf("%w: master cannot be soloed", domain.ErrInvalidChannel)
		}
		solo, err := parseFlag("solo", p.Solo)
		if err != nil {
			return nil, err
		}
		return SetSolo{Target: target, Solo: solo}, nil

	case KindSetEQ:
		target, err := mixer.ValidateChannel(p.Channel, channels)
		if err != nil {
			return nil, err
		}
		band, err := mixer.ParseBand(p.Band)
		if err != nil {
			return nil, err
		}
		gain, err := mixer.ParseLevel(p.GainDB)
		if err != nil {
			return nil, err
		}
		return SetEQ{Target: target, Band: band, GainDB: gain}, nil

	case KindSavePreset, KindLoadPreset:
		raw, ok := p.Name.(string)
		if !ok {
			return nil, fmt.Errorf("%w: name must be a string", domain.ErrInvalidName)
		}
		name, err := mixer.ValidatePresetName(raw)
		if err != nil {
			return nil, err
		}
		if kind == KindSavePreset {
			return SavePreset{Name: name}, nil
		}
		return LoadPreset{Name: name}, nil

	case KindSetAutosave:
		update, err := decodeAutosave(p)
		if err != nil {
			return nil, err
		}
		return SetAutosave{Update: update}, nil

	case KindSubscribeLevels:
		return SubscribeLevels{}, nil

	case KindSubscribeSpectrum:
		enabled := true
		if p.Enabled != nil {
			v, err := parseFlag("enabled", p.Enabled)
			if err != nil {
				return nil, err
			}
			enabled = v
		}
		return SubscribeSpectrum{Enabled: enabled}, nil
	}

	return nil, fmt.Errorf("unknown message type %q", kind)
}

// DecodeAutosaveUpdate parses an {enabled, interval_sec} object. An
// unusable interval is dropped rather than rejected.
func DecodeAutosaveUpdate(data []byte) (AutosaveUpdate, error) {
	var p payloadIn
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return AutosaveUpdate{}, apperrors.InvalidInput("invalid autosave settings", err)
	}
	update, err := decodeAutosave(p)
	if err != nil {
		return AutosaveUpdate{}, apperrors.InvalidInput("invalid autosave settings", err)
	}
	return update, nil
}

func decodeAutosave(p payloadIn) (AutosaveUpdate, error) {
	var update AutosaveUpdate
	if p.Enabled != nil {
		enabled, err := parseFlag("enabled", p.Enabled)
		if err != nil {
			return AutosaveUpdate{}, err
		}
		update.Enabled = &enabled
	}
	if interval, ok := parseInterval(p.IntervalSec); ok {
		update.IntervalSec = &interval
	}
	return update, nil
}

// parseFlag accepts only a JSON boolean. Missing or null is rejected.
func parseFlag(field string, raw any) (bool, error) {
	switch v := raw.(type) {
	case nil:
		return false, fmt.Errorf("%s is required", field)
	case bool:
		return v, nil
	}
	return false, fmt.Errorf("%s must be a boolean, got %v", field, raw)
}

// parseInterval reports ok only for a finite positive number of seconds.
// Anything else leaves the current interval in place.
func parseInterval(raw any) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
