package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"focus-tasks/internal/model"
)

// LoadRewards reads point tables from a YAML file. Tiers missing from the
// file keep their built-in values.
//
//	completion:
//	  high: 30
//	  medium: 15
//	  low: 10
func LoadRewards(path string) (model.Rewards, error) {
	rewards := model.DefaultRewards()

	b, err := os.ReadFile(path)
	if err != nil {
		return rewards, fmt.Errorf("read rewards %q: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &rewards); err != nil {
		return rewards, fmt.Errorf("parse rewards %q: %w", path, err)
	}
	if err := validateTable("creation", rewards.Creation); err != nil {
		return rewards, err
	}
	if err := validateTable("completion", rewards.Completion); err != nil {
		return rewards, err
	}
	return rewards, nil
}

func validateTable(name string, pt model.PointTable) error {
	if pt.High < 0 || pt.Medium < 0 || pt.Low < 0 {
		return fmt.Errorf("rewards: %s points must not be negative", name)
	}
	return nil
}
