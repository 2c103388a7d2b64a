// Package preset holds the selectable scene, style and overlay texts offered
// by every surface. A built-in catalog ships with the binary; PRESETS_FILE
// points at a replacement.
package preset

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var builtinCatalog []byte

// Preset is one named instruction text. Default marks the entry a surface
// should preselect.
type Preset struct {
	Name    string `yaml:"name"`
	Text    string `yaml:"text"`
	Default bool   `yaml:"default"`
}

// Catalog lists the presets per section, in display order.
type Catalog struct {
	Scenes   []Preset `yaml:"scenes"`
	Styles   []Preset `yaml:"styles"`
	Overlays []Preset `yaml:"overlays"`
}

var (
	ErrNoScenes   = errors.New("at least one scene preset is required")
	ErrNoStyles   = errors.New("at least one style preset is required")
	ErrNoOverlays = errors.New("at least one overlay preset is required")
	ErrUnnamed    = errors.New("preset without a name")
)

// Load parses the catalog at path, or the built-in one when path is empty.
// Preset texts are normalized so multi-line YAML blocks become single
// instruction paragraphs.
func Load(path string) (*Catalog, error) {
	data := builtinCatalog
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read presets file: %w", err)
		}
		data = fileData
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}

	catalog.normalize()
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// Validate checks that every section has entries and every entry a name.
func (c *Catalog) Validate() error {
	if len(c.Scenes) == 0 {
		return ErrNoScenes
	}
	if len(c.Styles) == 0 {
		return ErrNoStyles
	}
	if len(c.Overlays) == 0 {
		return ErrNoOverlays
	}
	for section, list := range map[string][]Preset{
		"scenes": c.Scenes, "styles": c.Styles, "overlays": c.Overlays,
	} {
		for i, p := range list {
			if strings.TrimSpace(p.Name) == "" {
				return fmt.Errorf("%w: %s[%d]", ErrUnnamed, section, i)
			}
		}
	}
	return nil
}

func (c *Catalog) normalize() {
	for _, list := range [][]Preset{c.Scenes, c.Styles, c.Overlays} {
		for i := range list {
			list[i].Text = normalizeText(list[i].Text)
		}
	}
}

// DefaultScene returns the scene a surface should preselect.
func (c *Catalog) DefaultScene() Preset { return defaultOf(c.Scenes) }

// DefaultStyle returns the style a surface should preselect.
func (c *Catalog) DefaultStyle() Preset { return defaultOf(c.Styles) }

// DefaultOverlay returns the overlay a surface should preselect.
func (c *Catalog) DefaultOverlay() Preset { return defaultOf(c.Overlays) }

func defaultOf(list []Preset) Preset {
	for _, p := range list {
		if p.Default {
			return p
		}
	}
	if len(list) > 0 {
		return list[0]
	}
	return Preset{}
}

// Find returns the named preset from list.
func Find(list []Preset, name string) (Preset, bool) {
	for _, p := range list {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// normalizeText joins the non-empty trimmed lines with single spaces, so
// wrapped YAML text reads as one continuous instruction.
func normalizeText(text string) string {
	if text == "" {
		return text
	}
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, " ")
}
