// Package preset persists mixer snapshots as one JSON file per name.
package preset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Youpit44/camillamix/internal/domain"
	"github.com/Youpit44/camillamix/internal/mixer"
	apperrors "github.com/Youpit44/camillamix/internal/platform/errors"
)

const (
	FormatVersion = 1
	fileExt       = ".json"
)

type document struct {
	Version int                  `json:"version"`
	State   domain.MixerSnapshot `json:"state"`
}

type tempFile interface {
	io.Writer
	Sync() error
	Close() error
	Name() string
}

// Store keeps presets in a single directory. Writes go to a temp file in
// the same directory and are renamed into place, so a reader never sees a
// partially written preset.
type Store struct {
	dir        string
	createTemp func(dir, pattern string) (tempFile, error)
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create presets dir: %w", err)
	}
	return &Store{
		dir: dir,
		createTemp: func(dir, pattern string) (tempFile, error) {
			return os.CreateTemp(dir, pattern)
		},
	}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+fileExt)
}

// Save writes state under name and returns the final path.
func (s *Store) Save(name string, state domain.MixerSnapshot) (string, error) {
	name, err := mixer.ValidatePresetName(name)
	if err != nil {
		return "", apperrors.InvalidInput("invalid preset name", err)
	}

	data, err := json.MarshalIndent(document{Version: FormatVersion, State: state}, "", "  ")
	if err != nil {
		return "", apperrors.Persistence("failed to encode preset", err)
	}

	final := s.path(name)
	if err := s.writeAtomic(final, data); err != nil {
		slog.Error("Preset save failed", "name", name, "error", err)
		return "", apperrors.Persistence("failed to save preset", err).WithContext("name", name)
	}

	slog.Debug("Preset saved", "name", name, "path", final)
	return final, nil
}

func (s *Store) writeAtomic(final string, data []byte) (err error) {
	tmp, err := s.createTemp(s.dir, "."+filepath.Base(final)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			_ = tmp.Close()
		}
		_ = os.Remove(tmp.Name())
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	closed = true
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), final); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load reads a preset. A missing or unreadable preset reports ok=false with
// a nil error; only an invalid name is an error.
func (s *Store) Load(name string) (domain.MixerSnapshot, bool, error) {
	name, err := mixer.ValidatePresetName(name)
	if err != nil {
		return domain.MixerSnapshot{}, false, apperrors.InvalidInput("invalid preset name", err)
	}

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Preset read failed", "name", name, "error", err)
		}
		return domain.MixerSnapshot{}, false, nil
	}

	state, err := decode(data)
	if err != nil {
		slog.Warn("Ignoring malformed preset", "name", name, "error", err)
		return domain.MixerSnapshot{}, false, nil
	}
	return state, true, nil
}

func decode(data []byte) (domain.MixerSnapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return domain.MixerSnapshot{}, fmt.Errorf("%w: not an object", domain.ErrMalformedDoc)
	}
	raw, ok := fields["state"]
	if !ok {
		return domain.MixerSnapshot{}, fmt.Errorf("%w: missing state", domain.ErrMalformedDoc)
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
		return domain.MixerSnapshot{}, fmt.Errorf("%w: state is not an object", domain.ErrMalformedDoc)
	}

	var shape struct {
		Channels json.RawMessage `json:"channels"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return domain.MixerSnapshot{}, fmt.Errorf("%w: %v", domain.ErrMalformedDoc, err)
	}
	if trimmed := bytes.TrimSpace(shape.Channels); len(trimmed) == 0 || trimmed[0] != '[' {
		return domain.MixerSnapshot{}, fmt.Errorf("%w: state has no channel list", domain.ErrMalformedDoc)
	}

	var state domain.MixerSnapshot
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.MixerSnapshot{}, fmt.Errorf("%w: %v", domain.ErrMalformedDoc, err)
	}
	return state, nil
}

// List returns the valid preset names in sorted order. A listing failure
// yields an empty list.
func (s *Store) List() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		slog.Warn("Preset listing failed", "dir", s.dir, "error", err)
		return []string{}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), fileExt)
		if _, err := mixer.ValidatePresetName(name); err != nil {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Delete removes a preset. Deleting an absent preset is a not-found error.
func (s *Store) Delete(name string) error {
	name, err := mixer.ValidatePresetName(name)
	if err != nil {
		return apperrors.InvalidInput("invalid preset name", err)
	}
	if err := os.Remove(s.path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperrors.NotFound("preset not found").WithContext("name", name)
		}
		return apperrors.Persistence("failed to delete preset", err)
	}
	return nil
}
