package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agencyhub/core"
)

// Templates are shared records seeded at startup. Owners are cleared on load
// so every record is visible to all users.
type Templates struct {
	Agencies []*core.AgencyConfig `yaml:"agencies"`
	Tools    []*core.ToolConfig   `yaml:"tools"`
	Skills   []*core.SkillConfig  `yaml:"skills"`
}

// LoadTemplates reads a template seed file.
func LoadTemplates(path string) (*Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates %s: %w", path, err)
	}

	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse templates %s: %w", path, err)
	}

	for i, a := range t.Agencies {
		if a == nil || a.AgencyID == "" {
			return nil, fmt.Errorf("templates: agency %d has no agency_id", i)
		}
		a.OwnerID = ""
	}
	for i, tc := range t.Tools {
		if tc == nil || tc.ToolID == "" {
			return nil, fmt.Errorf("templates: tool %d has no tool_id", i)
		}
		tc.OwnerID = ""
	}
	for i, s := range t.Skills {
		if s == nil || s.ID == "" {
			return nil, fmt.Errorf("templates: skill %d has no id", i)
		}
		s.UserID = ""
	}
	return &t, nil
}
