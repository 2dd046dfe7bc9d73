package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Preset bundles a symbol/interval/bar-count subscription under a name, so
// callers can start a stream or backfill without repeating the three
// arguments. It is purely a resolution convenience: every Preset resolves
// to an ordinary StreamCandles/FetchHistoricalCandles call (SPEC_FULL §3.2).
type Preset struct {
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Interval string `yaml:"interval"`
	BarCount int    `yaml:"bar_count"`
}

// PresetFile is the top-level shape of a presets YAML document.
type PresetFile struct {
	Presets []Preset `yaml:"presets"`
}

// LoadPresets reads a list of named subscription presets from path.
func LoadPresets(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read presets file: %w", err)
	}
	var pf PresetFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("config: failed to parse presets YAML: %w", err)
	}
	return pf.Presets, nil
}

// Find returns the preset with the given name, or false if none matches.
func Find(presets []Preset, name string) (Preset, bool) {
	for _, p := range presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}
