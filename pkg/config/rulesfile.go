package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/codeready-toolchain/medik/pkg/models"
)

type rulesFile struct {
	Rules []models.Rule `yaml:"rules"`
}

// LoadRulesFile reads operator-defined rules from a YAML file. The file
// holds a top-level "rules" list; validation happens when the rules are
// added to the engine.
func LoadRulesFile(path string) ([]models.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var parsed rulesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	return parsed.Rules, nil
}
