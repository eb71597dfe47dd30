package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Youpit44/camillamix/internal/domain"
	"github.com/Youpit44/camillamix/internal/importer"
)

const gainsDocument = "gains: [-3, -6]\n"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeDocument(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camilla.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestImportAndShow(t *testing.T) {
	dir := t.TempDir()
	doc := writeDocument(t, gainsDocument)

	out, err := run(t, "import", doc, "--dir", dir, "--name", "studio", "--channels", "4")
	require.NoError(t, err)

	var res importOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "studio", res.ImportedAs)
	assert.Equal(t, importer.SourceGains, res.Mapping.Source)
	assert.FileExists(t, res.Path)

	out, err = run(t, "presets", "list", "--dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "studio\n", out)

	out, err = run(t, "presets", "show", "studio", "--dir", dir)
	require.NoError(t, err)
	var snap domain.MixerSnapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	require.Len(t, snap.Channels, 4)
	assert.Equal(t, -3.0, snap.Channels[0].LevelDB)
	assert.Equal(t, -6.0, snap.Channels[1].LevelDB)
}

func TestPresetsDelete(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "import", writeDocument(t, gainsDocument), "--dir", dir, "--name", "gone")
	require.NoError(t, err)

	out, err := run(t, "presets", "delete", "gone", "--dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "deleted gone\n", out)

	_, err = run(t, "presets", "show", "gone", "--dir", dir)
	assert.ErrorIs(t, err, domain.ErrPresetNotFound)

	_, err = run(t, "presets", "delete", "gone", "--dir", dir)
	assert.Error(t, err)
}

func TestImportRejects(t *testing.T) {
	dir := t.TempDir()
	doc := writeDocument(t, gainsDocument)

	tests := []struct {
		name string
		args []string
	}{
		{name: "bad preset name", args: []string{"import", doc, "--dir", dir, "--name", "../x"}},
		{name: "no channels", args: []string{"import", doc, "--dir", dir, "--channels", "0"}},
		{name: "missing file", args: []string{"import", filepath.Join(dir, "nope.yml"), "--dir", dir}},
		{name: "too large", args: []string{"import", doc, "--dir", dir, "--max-bytes", "4"}},
		{name: "no file argument", args: []string{"import", "--dir", dir}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}

	out, err := run(t, "presets", "list", "--dir", dir)
	require.NoError(t, err)
	assert.Empty(t, out)
}
