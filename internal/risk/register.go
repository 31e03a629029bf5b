package risk

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Register is the on-disk shape of a risk register file.
type Register struct {
	Risks []Draft `json:"risks" yaml:"risks"`
}

// LoadFile reads a YAML or JSON register. Both a top-level list of risks and
// a {risks: [...]} document are accepted.
func LoadFile(path string) ([]Draft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read risk register: %w", err)
	}
	return Decode(data)
}

// Decode parses register bytes (YAML or JSON).
func Decode(data []byte) ([]Draft, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' || trimmed[0] == '-' {
		var drafts []Draft
		if err := yaml.Unmarshal(trimmed, &drafts); err != nil {
			return nil, fmt.Errorf("failed to decode risk list: %w", err)
		}
		return drafts, nil
	}

	var reg Register
	if err := yaml.Unmarshal(trimmed, &reg); err != nil {
		return nil, fmt.Errorf("failed to decode risk register: %w", err)
	}
	return reg.Risks, nil
}
