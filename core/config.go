package core

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// AgentConfig describes one role inside an agency.
type AgentConfig struct {
	ID           string   `json:"id,omitempty" yaml:"id,omitempty"` // Runtime id, written back after the first build
	Role         string   `json:"role" yaml:"role"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Instructions string   `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	FilesFolder  string   `json:"files_folder,omitempty" yaml:"files_folder,omitempty"`
	Tools        []string `json:"tools,omitempty" yaml:"tools,omitempty"`
	Model        string   `json:"model,omitempty" yaml:"model,omitempty"`
}

// AgencyConfig is the persisted description of an agency. An empty OwnerID
// marks a template shared with every user.
type AgencyConfig struct {
	AgencyID        string        `json:"agency_id" yaml:"agency_id"`
	OwnerID         string        `json:"owner_id,omitempty" yaml:"owner_id,omitempty"`
	Name            string        `json:"name" yaml:"name"`
	AgencyManifesto string        `json:"agency_manifesto,omitempty" yaml:"agency_manifesto,omitempty"`
	Agents          []AgentConfig `json:"agents" yaml:"agents"`
	AgencyChart     []ChartNode   `json:"agency_chart" yaml:"agency_chart"`
	UpdatedAt       time.Time     `json:"updated_at,omitempty" yaml:"-"`
}

// IsTemplate reports whether the configuration has no owner.
func (c *AgencyConfig) IsTemplate() bool { return c.OwnerID == "" }

// Agent returns the agent with the given role.
func (c *AgencyConfig) Agent(role string) (AgentConfig, bool) {
	for _, a := range c.Agents {
		if a.Role == role {
			return a, true
		}
	}
	return AgentConfig{}, false
}

// UpdateAgentIDs writes runtime ids (keyed by role) back into the agents.
func (c *AgencyConfig) UpdateAgentIDs(ids map[string]string) {
	for i := range c.Agents {
		if id, ok := ids[c.Agents[i].Role]; ok && id != "" {
			c.Agents[i].ID = id
		}
	}
}

// Clone returns a deep copy.
func (c *AgencyConfig) Clone() *AgencyConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.Agents = make([]AgentConfig, len(c.Agents))
	for i, a := range c.Agents {
		a.Tools = append([]string(nil), a.Tools...)
		out.Agents[i] = a
	}
	out.AgencyChart = make([]ChartNode, len(c.AgencyChart))
	for i, n := range c.AgencyChart {
		out.AgencyChart[i] = ChartNode{Roles: append([]string(nil), n.Roles...)}
	}
	return &out
}

// ChartNode is one element of an agency chart. A single role is a hub that
// talks to the user; two or more roles form a chain in which every role may
// address the role that follows it.
type ChartNode struct {
	Roles []string
}

// Hub returns a single-role chart node.
func Hub(role string) ChartNode { return ChartNode{Roles: []string{role}} }

// Chain returns a chart node granting consecutive roles a communication edge.
func Chain(roles ...string) ChartNode { return ChartNode{Roles: roles} }

// IsChain reports whether the node lists more than one role.
func (n ChartNode) IsChain() bool { return len(n.Roles) > 1 }

// MarshalJSON encodes hubs as a string and chains as an array.
func (n ChartNode) MarshalJSON() ([]byte, error) {
	if len(n.Roles) == 1 {
		return json.Marshal(n.Roles[0])
	}
	return json.Marshal(n.Roles)
}

// UnmarshalJSON accepts either a role string or a list of roles.
func (n *ChartNode) UnmarshalJSON(data []byte) error {
	var role string
	if err := json.Unmarshal(data, &role); err == nil {
		n.Roles = []string{role}
		return nil
	}
	var roles []string
	if err := json.Unmarshal(data, &roles); err != nil {
		return fmt.Errorf("chart node must be a role or a list of roles: %w", err)
	}
	n.Roles = roles
	return nil
}

// MarshalYAML mirrors MarshalJSON.
func (n ChartNode) MarshalYAML() (any, error) {
	if len(n.Roles) == 1 {
		return n.Roles[0], nil
	}
	return n.Roles, nil
}

// UnmarshalYAML mirrors UnmarshalJSON.
func (n *ChartNode) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		n.Roles = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		var roles []string
		if err := value.Decode(&roles); err != nil {
			return err
		}
		n.Roles = roles
		return nil
	default:
		return fmt.Errorf("chart node must be a role or a list of roles (line %d)", value.Line)
	}
}

// ToolConfig is a versioned, approval-gated tool definition.
type ToolConfig struct {
	ToolID      string    `json:"tool_id,omitempty" yaml:"tool_id,omitempty"`
	OwnerID     string    `json:"owner_id,omitempty" yaml:"owner_id,omitempty"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Code        string    `json:"code,omitempty" yaml:"code,omitempty"`
	Version     int       `json:"version" yaml:"version"`
	Approved    bool      `json:"approved" yaml:"approved"`
	Timestamp   time.Time `json:"timestamp,omitempty" yaml:"-"`
}

// IsTemplate reports whether the tool has no owner.
func (c *ToolConfig) IsTemplate() bool { return c.OwnerID == "" }

// SkillConfig is a versioned, approval-gated skill.
type SkillConfig struct {
	ID          string    `json:"id,omitempty" yaml:"id,omitempty"`
	UserID      string    `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Content     string    `json:"content,omitempty" yaml:"content,omitempty"`
	Version     int       `json:"version" yaml:"version"`
	Approved    bool      `json:"approved" yaml:"approved"`
	Timestamp   time.Time `json:"timestamp,omitempty" yaml:"-"`
}

// IsTemplate reports whether the skill has no owner.
func (c *SkillConfig) IsTemplate() bool { return c.UserID == "" }

// SessionConfig binds a conversation thread to an agency and its owner.
// SessionID equals the runtime thread id.
type SessionConfig struct {
	SessionID string    `json:"session_id"`
	OwnerID   string    `json:"owner_id"`
	AgencyID  string    `json:"agency_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is the authenticated caller.
type User struct {
	ID          string `json:"id" yaml:"id"`
	Disabled    bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	IsSuperuser bool   `json:"is_superuser,omitempty" yaml:"is_superuser,omitempty"`
}
