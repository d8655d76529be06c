package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"glint/internal/ast"
	"glint/internal/convert"
	"glint/internal/diag"
	"glint/internal/diagfmt"
	"glint/internal/diagram"
	"glint/internal/identity"
	"glint/internal/layout"
	"glint/internal/observ"
	"glint/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:          "validate [flags] <file.glm>",
	Short:        "Check a model against the language's connection rules",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runValidate,
}

func init() {
	validateCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	validateCmd.Flags().Int("max-diagnostics", 100, "maximum number of diagnostics to report")
}

func runValidate(cmd *cobra.Command, args []string) error {
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
	maxDiags, err := cmd.Flags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	timer := observ.NewTimer()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	done := timer.Phase("parse")
	root, err := ast.ParseModel(string(data))
	done("")
	if err != nil {
		return err
	}

	registry := identity.NewRegistry()
	registry.Reconcile(root)
	meta := diagram.NewMetadata()

	done = timer.Phase("convert")
	snap, err := convert.Convert(&convert.Context{
		URI:        args[0],
		Root:       root,
		Descriptor: desc,
		Registry:   registry,
		Metadata:   meta,
		Engine:     layout.NewEngine(settings.LayoutOptions()),
	})
	done("")
	if err != nil {
		return err
	}

	bag := diag.NewBag(maxDiags)
	done = timer.Phase("validate")
	validate.Snapshot(bag, snap, desc, meta)
	done(fmt.Sprintf("%d findings", bag.Len()))

	switch strings.ToLower(format) {
	case "pretty":
		diagfmt.Pretty(cmd.OutOrStdout(), args[0], bag, diagfmt.PrettyOpts{
			Color: useColor(cmd),
			Max:   maxDiags,
		})
	case "json":
		if err := diagfmt.JSON(cmd.OutOrStdout(), args[0], bag, diagfmt.JSONOpts{Max: maxDiags, Indent: true}); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if showTimings(cmd) && !quiet(cmd) {
		printTimings(os.Stderr, timer)
	}
	if bag.HasErrors() {
		return fmt.Errorf("validation failed")
	}
	return nil
}
