package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"glint/internal/convert"
	"glint/internal/diagfmt"
	"glint/internal/layout"
	"glint/internal/observ"
)

var layoutCmd = &cobra.Command{
	Use:          "layout [flags] <file.glm>",
	Short:        "Convert a model and apply an automatic layout",
	Long:         `Convert a model file and run a layout algorithm over every node without a pinned position`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runLayout,
}

func init() {
	layoutCmd.Flags().String("algorithm", "", "layout algorithm (grid|tree|layered|force); defaults to configuration")
	layoutCmd.Flags().String("format", "text", "output format (text|json)")
}

func runLayout(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	desc, err := loadDescriptor(settings)
	if err != nil {
		return err
	}
	algorithm, err := cmd.Flags().GetString("algorithm")
	if err != nil {
		return fmt.Errorf("failed to get algorithm flag: %w", err)
	}
	if algorithm == "" {
		algorithm = settings.Layout.Algorithm
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}

	timer := observ.NewTimer()
	done := timer.Phase("convert")
	snap, err := convert.File(args[0], nil, convert.BatchOptions{
		Descriptor: desc,
		Layout:     settings.LayoutOptions(),
	})
	done("")
	if err != nil {
		return err
	}

	engine := layout.NewEngine(settings.LayoutOptions())
	done = timer.Phase("layout")
	err = engine.Apply(algorithm, snap)
	done(algorithm)
	if err != nil {
		return err
	}

	switch format {
	case "text":
		diagfmt.Snapshot(cmd.OutOrStdout(), snap, useColor(cmd))
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if showTimings(cmd) && !quiet(cmd) {
		printTimings(os.Stderr, timer)
	}
	return nil
}
