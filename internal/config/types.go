// Package config loads glint settings from a project file, the
// environment and built-in defaults. It is decoupled from CLI concerns
// so both the server and the batch commands can share it.
package config

import (
	"fmt"
	"time"

	"glint/internal/layout"
)

// LayoutConfig selects and tunes the automatic layout.
type LayoutConfig struct {
	Algorithm       string  `koanf:"algorithm"`
	HSpacing        float64 `koanf:"hspacing"`
	VSpacing        float64 `koanf:"vspacing"`
	Margin          float64 `koanf:"margin"`
	ForceIterations int     `koanf:"force_iterations"`
}

// Settings is the complete runtime configuration.
type Settings struct {
	// Descriptor is the path to the language descriptor TOML file.
	Descriptor string `koanf:"descriptor"`

	// TextDebounceMS batches AST-to-diagram reconversion after text
	// edits; DiagramDebounceMS batches diagram-to-text write-back.
	TextDebounceMS    int `koanf:"text_debounce_ms"`
	DiagramDebounceMS int `koanf:"diagram_debounce_ms"`

	MaxDiagnostics int          `koanf:"max_diagnostics"`
	Layout         LayoutConfig `koanf:"layout"`

	// CacheDir overrides the per-user layout cache location.
	CacheDir string `koanf:"cache_dir"`
	Trace    bool   `koanf:"trace"`
}

func (s *Settings) TextDebounce() time.Duration {
	return time.Duration(s.TextDebounceMS) * time.Millisecond
}

func (s *Settings) DiagramDebounce() time.Duration {
	return time.Duration(s.DiagramDebounceMS) * time.Millisecond
}

// LayoutOptions converts the layout section into engine options.
func (s *Settings) LayoutOptions() layout.Options {
	return layout.Options{
		HSpacing:        s.Layout.HSpacing,
		VSpacing:        s.Layout.VSpacing,
		Margin:          s.Layout.Margin,
		ForceIterations: s.Layout.ForceIterations,
	}
}

// Validate rejects values the engine cannot work with.
func (s *Settings) Validate() error {
	if s.TextDebounceMS < 0 || s.DiagramDebounceMS < 0 {
		return fmt.Errorf("config: debounce must not be negative")
	}
	if s.MaxDiagnostics <= 0 {
		return fmt.Errorf("config: max_diagnostics must be positive")
	}
	switch s.Layout.Algorithm {
	case "grid", "tree", "layered", "force":
	default:
		return fmt.Errorf("config: unknown layout algorithm %q", s.Layout.Algorithm)
	}
	return nil
}
