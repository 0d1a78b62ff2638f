package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agencyhub/core"
	"github.com/hupe1980/agencyhub/logging"
	"github.com/hupe1980/agencyhub/model"
)

// ErrMaxToolRounds is returned when an agent keeps requesting tools past the
// configured round limit.
var ErrMaxToolRounds = fmt.Errorf("max tool rounds exceeded")

// Options configure the runtime and every graph it builds.
type Options struct {
	// MaxToolRounds bounds model calls per agent invocation.
	MaxToolRounds int
	// MaxDepth bounds nested send_message delegation.
	MaxDepth int
	// ToolTimeout caps a single capability call. Zero disables the timeout.
	ToolTimeout time.Duration
	// MaxHistoryMessages limits the thread history sent to the model. Zero
	// sends the full history.
	MaxHistoryMessages int
	// MaxParallelTools bounds concurrent capability calls of one response.
	MaxParallelTools int
	// MaxModelCalls is the per-turn model call budget across all agents.
	// Zero means unlimited.
	MaxModelCalls int
	Logger        logging.Logger
}

// Runtime builds model backed agent graphs.
type Runtime struct {
	models *model.Catalog
	opts   Options
}

// New creates a Runtime resolving agent models from the catalog.
func New(models *model.Catalog, optFns ...func(o *Options)) *Runtime {
	opts := Options{
		MaxToolRounds:      8,
		MaxDepth:           3,
		ToolTimeout:        15 * time.Second,
		MaxHistoryMessages: 20,
		MaxParallelTools:   4,
		MaxModelCalls:      32,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Runtime{models: models, opts: opts}
}

// BuildGraph validates the spec and returns a ready graph. Threads are not
// created until the first turn.
func (r *Runtime) BuildGraph(ctx context.Context, spec core.GraphSpec) (core.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validate(spec); err != nil {
		return nil, err
	}

	g := &graph{
		agencyID: spec.AgencyID,
		opts:     r.opts,
		logger:   r.opts.Logger,
		agents:   make(map[string]*agentNode, len(spec.Agents)),
		pairs:    map[string]*thread{},
		executor: &capabilityExecutor{
			maxParallel: r.opts.MaxParallelTools,
			timeout:     r.opts.ToolTimeout,
			logger:      r.opts.Logger,
		},
	}

	for _, a := range spec.Agents {
		m, err := r.resolveModel(a)
		if err != nil {
			return nil, core.NewGraphConstructionError(spec.AgencyID, "model for "+a.Role, err)
		}
		id := a.ID
		if id == "" {
			id = "agent_" + uuid.NewString()
		}
		name := a.Name
		if name == "" {
			name = a.Role
		}
		node := &agentNode{
			id:           id,
			name:         name,
			role:         a.Role,
			instructions: joinInstructions(spec.SharedInstructions, a.Instructions),
			model:        m,
			caps:         make(map[string]core.Capability, len(a.Capabilities)),
		}
		for _, c := range a.Capabilities {
			if _, dup := node.caps[c.Name()]; dup {
				continue
			}
			node.caps[c.Name()] = c
			node.defs = append(node.defs, model.NewToolDefinition(c.Name(), c.Description(), c.Parameters()))
		}
		g.agents[a.Role] = node
	}

	for _, n := range spec.Chart {
		if !n.IsChain() {
			if g.entry == "" {
				g.entry = n.Roles[0]
			}
			continue
		}
		for i := 0; i+1 < len(n.Roles); i++ {
			g.agents[n.Roles[i]].addRecipient(n.Roles[i+1])
		}
	}

	return g, nil
}

func (r *Runtime) resolveModel(a core.AgentSpec) (model.Model, error) {
	if r.models == nil {
		return nil, fmt.Errorf("no model catalog configured")
	}
	m, err := r.models.Resolve(a.Model)
	if err == nil {
		return m, nil
	}
	if a.Model != "" && r.models.Default() != nil {
		r.opts.Logger.Warn("runtime.model.fallback", "role", a.Role, "model", a.Model, "error", err.Error())
		return r.models.Default(), nil
	}
	return nil, err
}

func validate(spec core.GraphSpec) error {
	fail := func(reason string) error {
		return core.NewGraphConstructionError(spec.AgencyID, reason, nil)
	}

	if len(spec.Agents) == 0 {
		return fail("no agents defined")
	}
	roles := make(map[string]struct{}, len(spec.Agents))
	for _, a := range spec.Agents {
		if a.Role == "" {
			return fail("agent without role")
		}
		if _, dup := roles[a.Role]; dup {
			return fail(fmt.Sprintf("duplicate role %q", a.Role))
		}
		roles[a.Role] = struct{}{}
	}

	hubs := 0
	for i, n := range spec.Chart {
		if len(n.Roles) == 0 {
			return fail(fmt.Sprintf("empty chart node at index %d", i))
		}
		for _, role := range n.Roles {
			if _, ok := roles[role]; !ok {
				return fail(fmt.Sprintf("undefined role %q in chart", role))
			}
		}
		if !n.IsChain() {
			hubs++
		}
	}
	if hubs == 0 {
		return fail("chart has no entry agent")
	}
	return nil
}

func joinInstructions(shared, own string) string {
	switch {
	case shared == "":
		return own
	case own == "":
		return shared
	default:
		return shared + "\n\n" + own
	}
}
