package descriptor

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"glint/internal/diagram"
)

type tomlDescriptor struct {
	Language string              `toml:"language"`
	Nodes    map[string]tomlNode `toml:"nodes"`
	Edges    map[string]tomlEdge `toml:"edges"`
	Rules    []tomlRule          `toml:"rules"`
}

type tomlNode struct {
	DiagramType string     `toml:"diagram_type"`
	Shape       string     `toml:"shape"`
	CSS         []string   `toml:"css"`
	Width       float64    `toml:"width"`
	Height      float64    `toml:"height"`
	NameBase    string     `toml:"name_base"`
	Ports       []tomlPort `toml:"ports"`
}

type tomlPort struct {
	ID     string  `toml:"id"`
	Side   string  `toml:"side"`
	Offset float64 `toml:"offset"`
	Style  string  `toml:"style"`
}

type tomlEdge struct {
	DiagramType     string `toml:"diagram_type"`
	AllowDuplicates bool   `toml:"allow_duplicates"`
}

type tomlRule struct {
	EdgeType   string `toml:"edge_type"`
	SourceType string `toml:"source_type"`
	SourcePort string `toml:"source_port"`
	TargetType string `toml:"target_type"`
	TargetPort string `toml:"target_port"`
	AllowSelf  bool   `toml:"allow_self"`
}

// LoadFile reads a descriptor from a TOML asset.
func LoadFile(path string) (*Descriptor, error) {
	var cfg tomlDescriptor
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	return fromTOML(path, &cfg)
}

// Load reads a descriptor from in-memory TOML, for embedded assets and
// tests.
func Load(data string) (*Descriptor, error) {
	var cfg tomlDescriptor
	if _, err := toml.Decode(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor TOML: %w", err)
	}
	return fromTOML("<inline>", &cfg)
}

func fromTOML(origin string, cfg *tomlDescriptor) (*Descriptor, error) {
	d := &Descriptor{
		Language: cfg.Language,
		Nodes:    make(map[string]NodeMapping, len(cfg.Nodes)),
		Edges:    make(map[string]EdgeMapping, len(cfg.Edges)),
	}
	for astType, n := range cfg.Nodes {
		if n.DiagramType == "" {
			if _, ok := HeuristicNodeMapping(astType); !ok {
				return nil, fmt.Errorf("%s: node mapping %q is missing diagram_type", origin, astType)
			}
		}
		mapping := NodeMapping{
			DiagramType: n.DiagramType,
			Shape:       n.Shape,
			CSSClasses:  n.CSS,
			Default:     diagram.Size{Width: n.Width, Height: n.Height},
			NameBase:    n.NameBase,
		}
		for _, p := range n.Ports {
			side, ok := diagram.ParseSide(p.Side)
			if !ok {
				return nil, fmt.Errorf("%s: node mapping %q: unknown port side %q", origin, astType, p.Side)
			}
			if p.Offset < 0 || p.Offset > 1 {
				return nil, fmt.Errorf("%s: node mapping %q: port %q offset %v out of [0,1]", origin, astType, p.ID, p.Offset)
			}
			mapping.Ports = append(mapping.Ports, PortSpec{
				ID:     p.ID,
				Side:   side,
				Offset: p.Offset,
				Style:  p.Style,
			})
		}
		d.Nodes[astType] = mapping
	}
	for field, e := range cfg.Edges {
		if e.DiagramType == "" {
			return nil, fmt.Errorf("%s: edge mapping %q is missing diagram_type", origin, field)
		}
		d.Edges[field] = EdgeMapping{
			DiagramType:     e.DiagramType,
			AllowDuplicates: e.AllowDuplicates,
		}
	}
	for _, r := range cfg.Rules {
		d.Rules = append(d.Rules, Rule{
			EdgeType:   r.EdgeType,
			SourceType: r.SourceType,
			SourcePort: r.SourcePort,
			TargetType: r.TargetType,
			TargetPort: r.TargetPort,
			AllowSelf:  r.AllowSelf,
		})
	}
	return d, nil
}
