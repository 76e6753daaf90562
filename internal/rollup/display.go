package rollup

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ItemKind is the closed set of display item shapes.
type ItemKind string

const (
	KindIndividual ItemKind = "individual"
	KindGroup      ItemKind = "group"
	KindSum        ItemKind = "sum"

	// KindDivider carries no computation. It is a pure layout signal and is
	// passed through to the rendered report unchanged.
	KindDivider ItemKind = "divider"
)

// DisplayItem is one row of the authored report layout. The layout is owned
// by the external configuration UI; the engine consumes it as validated,
// otherwise opaque input — Style in particular is never interpreted here.
type DisplayItem struct {
	Kind    ItemKind          `yaml:"kind"`
	Label   string            `yaml:"label"`
	Column  string            `yaml:"column"`
	Columns []string          `yaml:"columns"`
	Style   map[string]string `yaml:"style"`
}

// Layout is the ordered report layout.
type Layout struct {
	Items []DisplayItem `yaml:"items"`
}

// LoadLayout reads and validates the display layout from a YAML file.
// A missing file is valid (empty report) so the engine can run headless.
func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Layout{}, nil
	}
	if err != nil {
		return Layout{}, fmt.Errorf("reading display layout: %w", err)
	}

	var layout Layout
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return Layout{}, fmt.Errorf("parsing display layout %s: %w", path, err)
	}

	for i, item := range layout.Items {
		switch item.Kind {
		case KindIndividual, KindGroup:
			if item.Column == "" {
				return Layout{}, fmt.Errorf("display item %d (%s): column is required", i, item.Kind)
			}
		case KindSum:
			if len(item.Columns) == 0 {
				return Layout{}, fmt.Errorf("display item %d (sum): columns is required", i)
			}
		case KindDivider:
			// Nothing to validate; dividers are opaque.
		default:
			return Layout{}, fmt.Errorf("display item %d: unknown kind %q", i, item.Kind)
		}
	}
	return layout, nil
}
