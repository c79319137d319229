package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/mediaplan/mediaplan/internal/forecast"
)

// PlanFile is an offline plan description used by forecast preview.
type PlanFile struct {
	Plan  forecast.Plan   `toml:"plan" yaml:"plan"`
	Lines []forecast.Line `toml:"lines" yaml:"lines"`
}

// LoadPlanFile decodes a .toml, .yaml or .yml plan file.
func LoadPlanFile(path string) (PlanFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PlanFile{}, fmt.Errorf("read plan file: %w", err)
	}
	return DecodePlanFile(filepath.Ext(path), data)
}

// DecodePlanFile decodes data according to the file extension.
func DecodePlanFile(ext string, data []byte) (PlanFile, error) {
	var file PlanFile
	switch strings.ToLower(ext) {
	case ".toml":
		md, err := toml.Decode(string(data), &file)
		if err != nil {
			return PlanFile{}, fmt.Errorf("decode toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return PlanFile{}, fmt.Errorf("decode toml: unknown keys %v", undecoded)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil {
			return PlanFile{}, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return PlanFile{}, fmt.Errorf("unsupported plan file extension %q", ext)
	}
	if file.Plan.ID == "" {
		file.Plan.ID = "preview"
	}
	return file, nil
}
