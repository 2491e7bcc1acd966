package config

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"
)

// yamlDecoder reads YAML files.
type yamlDecoder struct{}

func (yamlDecoder) Decode(_ context.Context, _ string, data []byte) (*Export, error) {
	m := Map{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return Static(m), nil
}
