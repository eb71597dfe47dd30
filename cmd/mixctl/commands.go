package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Youpit44/camillamix/internal/domain"
	"github.com/Youpit44/camillamix/internal/importer"
	"github.com/Youpit44/camillamix/internal/mixer"
	"github.com/Youpit44/camillamix/internal/platform/version"
	"github.com/Youpit44/camillamix/internal/preset"
)

const defaultPresetsDir = "presets"

type importOutput struct {
	ImportedAs string              `json:"imported_as"`
	Path       string              `json:"path"`
	Mapping    importer.Provenance `json:"mapping"`
}

func newRootCmd() *cobra.Command {
	var dir string

	root := &cobra.Command{
		Use:           "mixctl",
		Short:         "Manage mixer presets offline.",
		Version:       version.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultDir := os.Getenv("PRESETS_DIR")
	if defaultDir == "" {
		defaultDir = defaultPresetsDir
	}
	root.PersistentFlags().StringVar(&dir, "dir", defaultDir, "preset directory")

	openStore := func() (*preset.Store, error) {
		store, err := preset.NewStore(dir)
		if err != nil {
			return nil, fmt.Errorf("open preset store: %w", err)
		}
		return store, nil
	}

	root.AddCommand(newImportCmd(openStore), newPresetsCmd(openStore))
	return root
}

func newImportCmd(openStore func() (*preset.Store, error)) *cobra.Command {
	var (
		name     string
		channels int
		maxBytes int
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Map a CamillaDSP config onto the mixer and save it as a preset.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := mixer.ValidatePresetName(name); err != nil {
				return err
			}
			if channels < 1 {
				return fmt.Errorf("channels must be positive, got %d", channels)
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read config: %w", err)
			}
			snap, prov, err := importer.NewMapper(channels, maxBytes).Import(raw)
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			path, err := store.Save(name, snap)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), importOutput{ImportedAs: name, Path: path, Mapping: prov})
		},
	}

	cmd.Flags().StringVar(&name, "name", "imported", "preset name to save under")
	cmd.Flags().IntVar(&channels, "channels", domain.DefaultChannelCount, "mixer channel count")
	cmd.Flags().IntVar(&maxBytes, "max-bytes", importer.DefaultMaxBytes, "largest accepted config document")
	return cmd
}

func newPresetsCmd(openStore func() (*preset.Store, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Inspect saved presets.",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List preset names.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := openStore()
				if err != nil {
					return err
				}
				for _, name := range store.List() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <name>",
			Short: "Print a preset as JSON.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openStore()
				if err != nil {
					return err
				}
				snap, ok, err := store.Load(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s", domain.ErrPresetNotFound, args[0])
				}
				return writeJSON(cmd.OutOrStdout(), snap)
			},
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Remove a preset.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openStore()
				if err != nil {
					return err
				}
				if err := store.Delete(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
