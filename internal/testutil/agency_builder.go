package testutil

import (
	"github.com/hupe1980/agencyhub/core"
)

// AgencyBuilder provides a fluent helper for constructing agency
// configurations in tests.
// Example:
//
//	cfg := NewAgencyBuilder("a1").Owner("alice").Agent("ceo", "shout").Agent("dev").Hub("ceo").Chain("ceo", "dev").Build()
//
// Without Hub or Chain calls the first agent becomes the entry point.
type AgencyBuilder struct {
	cfg core.AgencyConfig
}

// NewAgencyBuilder creates a builder for an agency with the given id.
func NewAgencyBuilder(id string) *AgencyBuilder {
	return &AgencyBuilder{cfg: core.AgencyConfig{AgencyID: id, Name: "Agency " + id}}
}

// Owner sets the owning user (chainable). An empty owner makes a template.
func (b *AgencyBuilder) Owner(userID string) *AgencyBuilder { b.cfg.OwnerID = userID; return b }

// Name overrides the default name (chainable).
func (b *AgencyBuilder) Name(name string) *AgencyBuilder { b.cfg.Name = name; return b }

// Manifesto sets the shared instructions (chainable).
func (b *AgencyBuilder) Manifesto(text string) *AgencyBuilder { b.cfg.AgencyManifesto = text; return b }

// Agent appends an agent with the given role and tool names (chainable).
func (b *AgencyBuilder) Agent(role string, tools ...string) *AgencyBuilder {
	b.cfg.Agents = append(b.cfg.Agents, core.AgentConfig{
		Role:         role,
		Instructions: "You are the " + role + ".",
		Tools:        tools,
	})
	return b
}

// Hub appends an entry point node (chainable).
func (b *AgencyBuilder) Hub(role string) *AgencyBuilder {
	b.cfg.AgencyChart = append(b.cfg.AgencyChart, core.Hub(role))
	return b
}

// Chain appends a communication chain (chainable).
func (b *AgencyBuilder) Chain(roles ...string) *AgencyBuilder {
	b.cfg.AgencyChart = append(b.cfg.AgencyChart, core.Chain(roles...))
	return b
}

// Build returns a fresh *core.AgencyConfig.
func (b *AgencyBuilder) Build() *core.AgencyConfig {
	cfg := b.cfg.Clone()
	if len(cfg.AgencyChart) == 0 && len(cfg.Agents) > 0 {
		cfg.AgencyChart = []core.ChartNode{core.Hub(cfg.Agents[0].Role)}
	}
	return cfg
}
