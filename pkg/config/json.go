package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadJSON loads configuration from a JSON file. The document must be
// strict JSON; it is then decoded through the YAML decoder so that yaml
// tags and duration strings such as "30s" apply exactly as in YAML files.
func LoadJSON(path string, target interface{}) error {
	// #nosec G304 -- path is provided by the caller.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file %s: %w", path, err)
	}

	var probe interface{}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode JSON %s: %w", path, err)
	}

	return nil
}
