package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Fader and EQ values are clamped to this range (dB).
const (
	MinDB = -60.0
	MaxDB = 12.0
)

const DefaultChannelCount = 8

// Target addresses either the master bus or a zero-based channel.
type Target int

// Master is the sentinel target for the master bus.
const Master Target = -1

func (t Target) IsMaster() bool { return t == Master }

// DSPIndex is the adapter-side index: 0 for master, channel i maps to i+1.
func (t Target) DSPIndex() int {
	if t.IsMaster() {
		return 0
	}
	return int(t) + 1
}

func (t Target) String() string {
	if t.IsMaster() {
		return "master"
	}
	return strconv.Itoa(int(t))
}

func (t Target) MarshalJSON() ([]byte, error) {
	if t.IsMaster() {
		return []byte(`"master"`), nil
	}
	return []byte(strconv.Itoa(int(t))), nil
}

func (t *Target) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "master" {
			*t = Master
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidChannel, s)
		}
		*t = Target(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidChannel, string(data))
	}
	*t = Target(n)
	return nil
}

// Band names one of the four EQ parameters of a channel.
type Band string

const (
	BandGain Band = "gain"
	BandLow  Band = "low"
	BandMid  Band = "mid"
	BandHigh Band = "high"
)

// Bands lists every EQ band in filter-sync order.
var Bands = []Band{BandGain, BandLow, BandMid, BandHigh}

type EQ struct {
	Gain float64 `json:"gain"`
	Low  float64 `json:"low"`
	Mid  float64 `json:"mid"`
	High float64 `json:"high"`
}

func (e EQ) Get(b Band) float64 {
	switch b {
	case BandGain:
		return e.Gain
	case BandLow:
		return e.Low
	case BandMid:
		return e.Mid
	case BandHigh:
		return e.High
	}
	return 0
}

func (e *EQ) Set(b Band, v float64) {
	switch b {
	case BandGain:
		e.Gain = v
	case BandLow:
		e.Low = v
	case BandMid:
		e.Mid = v
	case BandHigh:
		e.High = v
	}
}

type Channel struct {
	Index   Target  `json:"index"`
	LevelDB float64 `json:"level_db"`
	Mute    bool    `json:"mute"`
	Solo    bool    `json:"solo"`
	EQ      EQ      `json:"eq"`
}

// MixerSnapshot is the value form of the mixer state, safe to share.
type MixerSnapshot struct {
	Master   Channel   `json:"master"`
	Channels []Channel `json:"channels"`
}
