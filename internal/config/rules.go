package config

import (
	"fmt"
	"os"

	"github.com/runwayfin/runway/internal/common"
	"github.com/runwayfin/runway/internal/model"

	"gopkg.in/yaml.v3"
)

// LoadRules reads the name-mapping rules file. A missing file is not an
// error; sanitization simply has no rules to apply.
func LoadRules(path string) (*model.NameMappingConfig, error) {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return &model.NameMappingConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	var cfg model.NameMappingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	for i, rule := range cfg.Rules {
		if rule.Target == "" {
			return nil, &common.ConfigError{
				Field:  fmt.Sprintf("rules[%d]", i),
				Reason: "rule with empty target",
			}
		}
		if len(rule.Patterns) == 0 {
			return nil, &common.ConfigError{
				Field:  fmt.Sprintf("rules[%d]", i),
				Reason: fmt.Sprintf("rule %q has no patterns", rule.Target),
			}
		}
	}

	return &cfg, nil
}
