package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/mescon/timr/internal/format"
)

// Preset is a timer the server creates at startup.
type Preset struct {
	Name      string         `yaml:"name"`
	Start     any            `yaml:"start"`
	Autostart bool           `yaml:"autostart"`
	DelayMs   int            `yaml:"delay_ms"`
	Options   map[string]any `yaml:"options"`
}

type presetsFile struct {
	Timers []Preset `yaml:"timers"`
}

// Partial decodes the preset's options.
func (p Preset) Partial() (*format.Partial, error) {
	return format.Decode(p.Options)
}

// LoadPresets reads the presets file at path. A missing file yields no presets and no
// error. Every invalid preset is reported in the returned error.
func LoadPresets(path string) ([]Preset, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	return ParsePresets(data)
}

// ParsePresets decodes and validates presets YAML.
func ParsePresets(data []byte) ([]Preset, error) {
	var file presetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}

	var errs error
	seen := make(map[string]bool, len(file.Timers))
	for i, p := range file.Timers {
		label := fmt.Sprintf("preset %d (%q)", i, p.Name)
		if p.Name == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s: name is required", label))
		} else if seen[p.Name] {
			errs = multierr.Append(errs, fmt.Errorf("%s: duplicate name", label))
		}
		seen[p.Name] = true

		if p.Start == nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: start is required", label))
		}
		if p.DelayMs < 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s: delay_ms must not be negative", label))
		}
		if _, err := p.Partial(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", label, err))
		}
	}
	if errs != nil {
		return nil, errs
	}
	return file.Timers, nil
}
