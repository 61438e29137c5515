package mapping

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the mapping file: which values become columns, and where to find them.
//
//	fields:
//	  - name: temperature
//	    path: $.temp
//	    type: float
//	tags:
//	  - name: device
//	    path: $.subject
type Config struct {
	Fields []PathConfig `yaml:"fields"`
	Tags   []PathConfig `yaml:"tags"`
}

// PathConfig is a single configured selector. Type is optional; see
// models.ParseScalarKind for accepted names.
type PathConfig struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
	Type string `yaml:"type,omitempty"`
}

// LoadFile reads a mapping file. Unknown keys are rejected.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read mapping file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes mapping YAML.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse mapping: %w", err)
	}
	if len(cfg.Fields) == 0 {
		return Config{}, fmt.Errorf("parse mapping: at least one field is required")
	}
	return cfg, nil
}
