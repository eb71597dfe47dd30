package mixer

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Youpit44/camillamix/internal/domain"
)

const MaxPresetNameLength = 64

var presetNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateChannel resolves a decoded JSON value into a target. It accepts an
// integral number or numeric string in [0, count), or "master".
func ValidateChannel(raw any, count int) (domain.Target, error) {
	var n float64
	switch v := raw.(type) {
	case float64:
		n = v
	case int:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", domain.ErrInvalidChannel, v.String())
		}
		n = f
	case string:
		s := strings.TrimSpace(v)
		if strings.EqualFold(s, "master") {
			return domain.Master, nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", domain.ErrInvalidChannel, v)
		}
		n = float64(i)
	case nil:
		return 0, fmt.Errorf("%w: missing channel", domain.ErrInvalidChannel)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", domain.ErrInvalidChannel, raw)
	}

	if math.IsNaN(n) || n != math.Trunc(n) {
		return 0, fmt.Errorf("%w: %v is not an integer", domain.ErrInvalidChannel, n)
	}
	if n < 0 || n >= float64(count) {
		return 0, fmt.Errorf("%w: channel %v out of range [0, %d)", domain.ErrInvalidChannel, n, count)
	}
	return domain.Target(int(n)), nil
}

// ParseLevel converts a decoded JSON value into a dB value clamped into
// [MinDB, MaxDB]. Out-of-range numbers are clamped, not rejected.
func ParseLevel(raw any) (float64, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", domain.ErrInvalidLevel, v.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", domain.ErrInvalidLevel, v)
		}
		f = parsed
	case nil:
		return 0, fmt.Errorf("%w: missing value", domain.ErrInvalidLevel)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", domain.ErrInvalidLevel, raw)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidLevel, f)
	}
	return ClampDB(f), nil
}

// ClampDB clamps v into [MinDB, MaxDB]. NaN becomes 0.
func ClampDB(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(domain.MinDB, math.Min(domain.MaxDB, v))
}

// ValidatePresetName is the only guard between client-supplied names and
// the preset directory.
func ValidatePresetName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty", domain.ErrInvalidName)
	}
	if len(name) > MaxPresetNameLength {
		return "", fmt.Errorf("%w: longer than %d characters", domain.ErrInvalidName, MaxPresetNameLength)
	}
	if !presetNamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q may only contain letters, digits, '_' and '-'", domain.ErrInvalidName, name)
	}
	return name, nil
}

func ParseBand(raw any) (domain.Band, error) {
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidBand, raw)
	}
	band := domain.Band(strings.ToLower(strings.TrimSpace(s)))
	for _, b := range domain.Bands {
		if band == b {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrInvalidBand, s)
}

// FilterName is the DSP filter addressed by an EQ band of target.
func FilterName(t domain.Target, band domain.Band) string {
	if t.IsMaster() {
		return "master_eq_" + string(band)
	}
	return fmt.Sprintf("ch%d_eq_%s", int(t), band)
}
