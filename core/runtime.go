package core

import "context"

// Capability is a callable tool an agent may invoke.
type Capability interface {
	Name() string
	Description() string
	// Parameters returns a JSON schema object describing the arguments.
	Parameters() map[string]any
	Call(ctx context.Context, args map[string]any) (any, error)
}

// CapabilityRegistry resolves tool names to capabilities. Unknown names
// resolve to (nil, false).
type CapabilityRegistry interface {
	Resolve(name string) (Capability, bool)
}

// AgentSpec is the runtime view of one agent.
type AgentSpec struct {
	ID           string // Existing runtime id, empty on first build
	Name         string
	Role         string
	Description  string
	Instructions string
	FilesFolder  string
	Model        string
	Capabilities []Capability
}

// GraphSpec is everything a Runtime needs to build an executable agency.
type GraphSpec struct {
	AgencyID           string
	Agents             []AgentSpec
	Chart              []ChartNode
	SharedInstructions string
}

// Graph is an executable agency instance. CurrentThreadID may change as a
// side effect of RunTurn or CreateThread; an empty value means no thread has
// been created yet.
type Graph interface {
	CurrentThreadID() string
	RunTurn(ctx context.Context, message string) (string, error)
	CreateThread(ctx context.Context) (string, error)
	// AgentIDs returns the runtime id of every agent keyed by role.
	AgentIDs() map[string]string
}

// Runtime builds graphs. Invalid specs yield a *GraphConstructionError.
type Runtime interface {
	BuildGraph(ctx context.Context, spec GraphSpec) (Graph, error)
}
