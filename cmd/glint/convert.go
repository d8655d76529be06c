package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"glint/internal/convert"
	"glint/internal/diagfmt"
	"glint/internal/diagram"
	"glint/internal/observ"
	"glint/internal/prof"
)

var convertCmd = &cobra.Command{
	Use:          "convert [flags] <file.glm|directory>",
	Short:        "Derive diagram snapshots from model files",
	Long:         `Parse one model file, or every model file under a directory, and print the derived diagram snapshots`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runConvert,
}

func init() {
	convertCmd.Flags().String("format", "text", "output format (text|json|yaml)")
	convertCmd.Flags().Int("jobs", 0, "max parallel workers for directory processing (0=auto)")
	convertCmd.Flags().String("cpuprofile", "", "write a CPU profile to this path")
	convertCmd.Flags().String("memprofile", "", "write a heap profile to this path")
}

func runConvert(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	desc, err := loadDescriptor(settings)
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}

	cpuProfile, err := cmd.Flags().GetString("cpuprofile")
	if err != nil {
		return fmt.Errorf("failed to get cpuprofile flag: %w", err)
	}
	memProfile, err := cmd.Flags().GetString("memprofile")
	if err != nil {
		return fmt.Errorf("failed to get memprofile flag: %w", err)
	}
	if cpuProfile != "" {
		stop, err := prof.CPU(cpuProfile)
		if err != nil {
			return err
		}
		defer stop()
	}
	if memProfile != "" {
		defer func() {
			if err := prof.Heap(memProfile); err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			}
		}()
	}

	opts := convert.BatchOptions{
		Descriptor: desc,
		Layout:     settings.LayoutOptions(),
		Workers:    jobs,
	}

	timer := observ.NewTimer()
	snapshots := make(map[string]*diagram.Snapshot)

	info, err := os.Stat(args[0])
	if err != nil {
		return err
	}
	if info.IsDir() {
		done := timer.Phase("convert")
		snapshots, err = convert.Directory(cmd.Context(), args[0], opts)
		done(fmt.Sprintf("%d files", len(snapshots)))
		if err != nil {
			return err
		}
	} else {
		done := timer.Phase("convert")
		snap, err := convert.File(args[0], nil, opts)
		done("")
		if err != nil {
			return err
		}
		snapshots[args[0]] = snap
	}

	if err := writeSnapshots(cmd, format, snapshots); err != nil {
		return err
	}
	if showTimings(cmd) && !quiet(cmd) {
		printTimings(os.Stderr, timer)
	}
	return nil
}

func writeSnapshots(cmd *cobra.Command, format string, snapshots map[string]*diagram.Snapshot) error {
	paths := make([]string, 0, len(snapshots))
	for path := range snapshots {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	switch strings.ToLower(format) {
	case "text":
		for _, path := range paths {
			diagfmt.Snapshot(cmd.OutOrStdout(), snapshots[path], useColor(cmd))
		}
		return nil
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		for _, path := range paths {
			if err := enc.Encode(snapshots[path]); err != nil {
				return err
			}
		}
		return nil
	case "yaml":
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		defer enc.Close()
		for _, path := range paths {
			if err := enc.Encode(snapshots[path]); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}
