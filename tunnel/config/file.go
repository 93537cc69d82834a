package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads Values from a YAML file. Unknown keys are rejected so typos do
// not silently fall back to defaults.
func Load(path string) (Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Values{}, fmt.Errorf("Load: %w: %v", ErrConfigFile, err)
	}
	return Parse(data)
}

// Parse decodes Values from YAML. An empty document yields zero Values.
func Parse(data []byte) (Values, error) {
	var v Values
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&v); err != nil && !errors.Is(err, io.EOF) {
		return Values{}, fmt.Errorf("Parse: %w: %v", ErrConfigFile, err)
	}
	return v, nil
}
