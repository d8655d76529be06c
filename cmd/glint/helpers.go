package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"glint/internal/config"
	"glint/internal/descriptor"
	"glint/internal/observ"
)

// globalFlags returns the root command's persistent flag set.
func globalFlags(cmd *cobra.Command) *pflag.FlagSet {
	return cmd.Root().PersistentFlags()
}

// loadSettings resolves configuration for a command: explicit --config
// path first, then the upward glint.yaml search, then environment.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	cfgFile, err := globalFlags(cmd).GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	return config.Load(cfgFile)
}

// loadDescriptor picks the language descriptor: the configured TOML
// asset when set, the bundled demo mapping otherwise.
func loadDescriptor(settings *config.Settings) (*descriptor.Descriptor, error) {
	if settings.Descriptor == "" {
		return descriptor.Demo(), nil
	}
	return descriptor.LoadFile(settings.Descriptor)
}

// useColor resolves the --color tri-state against whether stdout is a
// terminal.
func useColor(cmd *cobra.Command) bool {
	mode, err := globalFlags(cmd).GetString("color")
	if err != nil {
		return false
	}
	switch mode {
	case "on":
		return true
	case "off":
		return false
	default:
		return isTerminal(os.Stdout)
	}
}

func showTimings(cmd *cobra.Command) bool {
	v, err := globalFlags(cmd).GetBool("timings")
	if err != nil {
		return false
	}
	return v
}

func quiet(cmd *cobra.Command) bool {
	v, err := globalFlags(cmd).GetBool("quiet")
	if err != nil {
		return false
	}
	return v
}

func printTimings(w io.Writer, timer *observ.Timer) {
	fmt.Fprint(w, timer.Summary())
}
