package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFileName is the project config file name.
const ConfigFileName = "glint.yaml"

// ConfigFileNameAlt is the alternate config file name.
const ConfigFileNameAlt = "glint.yml"

// envPrefix namespaces glint environment variables. Nested keys use a
// double underscore: GLINT_LAYOUT__HSPACING sets layout.hspacing.
const envPrefix = "GLINT_"

const maxUpwardSearchLevels = 10

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		TextDebounceMS:    300,
		DiagramDebounceMS: 250,
		MaxDiagnostics:    100,
		Layout: LayoutConfig{
			Algorithm:       "grid",
			HSpacing:        40,
			VSpacing:        60,
			Margin:          20,
			ForceIterations: 80,
		},
	}
}

// Load reads settings with precedence env > file > defaults. cfgFile
// may be empty, in which case glint.yaml is searched upward from the
// working directory; a missing file is not an error.
func Load(cfgFile string) (*Settings, error) {
	k := koanf.New(".")

	def := Defaults()
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"text_debounce_ms":        def.TextDebounceMS,
		"diagram_debounce_ms":     def.DiagramDebounceMS,
		"max_diagnostics":         def.MaxDiagnostics,
		"layout.algorithm":        def.Layout.Algorithm,
		"layout.hspacing":         def.Layout.HSpacing,
		"layout.vspacing":         def.Layout.VSpacing,
		"layout.margin":           def.Layout.Margin,
		"layout.force_iterations": def.Layout.ForceIterations,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if cfgFile == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfgFile = findConfigFile(cwd)
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", cfgFile, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// findConfigFile walks upward from startDir looking for glint.yaml or
// glint.yml. It returns an empty string when neither exists.
func findConfigFile(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
