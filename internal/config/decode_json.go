package config

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"
)

// jsonDecoder reads JSON files, tolerating comments and trailing commas.
type jsonDecoder struct{}

func (jsonDecoder) Decode(_ context.Context, _ string, data []byte) (*Export, error) {
	m := Map{}
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return Static(m), nil
}
