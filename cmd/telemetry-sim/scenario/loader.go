package scenario

import (
	"fmt"

	"github.com/arloliu/fuda"
)

// LoadFromFile reads a YAML or JSON scenario and validates it.
func LoadFromFile(path string) (*Scenario, error) {
	var s Scenario
	if err := fuda.LoadFile(path, &s); err != nil {
		return nil, fmt.Errorf("failed to load scenario file: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}
