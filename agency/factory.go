package agency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agencyhub/core"
	"github.com/hupe1980/agencyhub/logging"
)

// FactoryOptions configure a Factory.
type FactoryOptions struct {
	Logger *logging.HubLogger
}

// Factory builds agency graphs from stored configurations.
type Factory struct {
	store    core.AgencyStore
	registry core.CapabilityRegistry
	runtime  core.Runtime
	logger   *logging.HubLogger
}

// NewFactory creates a Factory.
func NewFactory(store core.AgencyStore, registry core.CapabilityRegistry, rt core.Runtime, optFns ...func(o *FactoryOptions)) *Factory {
	opts := FactoryOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Factory{
		store:    store,
		registry: registry,
		runtime:  rt,
		logger:   logger.WithComponent("factory"),
	}
}

// Build loads the configuration of agencyID, builds its graph and stores the
// runtime agent ids back into the configuration. Tool names the registry
// does not know are skipped.
func (f *Factory) Build(ctx context.Context, agencyID string) (core.Graph, error) {
	start := time.Now()

	cfg, err := f.store.Load(ctx, agencyID)
	if err != nil {
		return nil, err
	}

	spec := f.graphSpec(cfg)
	g, err := f.runtime.BuildGraph(ctx, spec)
	if err != nil {
		var gce *core.GraphConstructionError
		if !errors.As(err, &gce) && ctx.Err() == nil {
			err = core.NewGraphConstructionError(agencyID, "runtime rejected configuration", err)
		}
		f.logger.LogAgencyBuild(agencyID, len(spec.Agents), time.Since(start), err)
		return nil, err
	}

	cfg.UpdateAgentIDs(g.AgentIDs())
	if err := f.store.Save(ctx, cfg); err != nil {
		err = fmt.Errorf("save agent ids: %w", err)
		f.logger.LogAgencyBuild(agencyID, len(spec.Agents), time.Since(start), err)
		return nil, err
	}

	f.logger.LogAgencyBuild(agencyID, len(spec.Agents), time.Since(start), nil)
	return g, nil
}

func (f *Factory) graphSpec(cfg *core.AgencyConfig) core.GraphSpec {
	spec := core.GraphSpec{
		AgencyID:           cfg.AgencyID,
		Chart:              cfg.AgencyChart,
		SharedInstructions: cfg.AgencyManifesto,
		Agents:             make([]core.AgentSpec, 0, len(cfg.Agents)),
	}

	for _, a := range cfg.Agents {
		spec.Agents = append(spec.Agents, core.AgentSpec{
			ID:           a.ID,
			Name:         a.Role + "_" + cfg.AgencyID,
			Role:         a.Role,
			Description:  a.Description,
			Instructions: a.Instructions,
			FilesFolder:  a.FilesFolder,
			Model:        a.Model,
			Capabilities: f.capabilities(cfg.AgencyID, a),
		})
	}
	return spec
}

func (f *Factory) capabilities(agencyID string, a core.AgentConfig) []core.Capability {
	caps := make([]core.Capability, 0, len(a.Tools))
	for _, name := range a.Tools {
		c, ok := f.registry.Resolve(name)
		if !ok {
			f.logger.Debug("factory.tool.unknown", "agency_id", agencyID, "role", a.Role, "tool", name)
			continue
		}
		caps = append(caps, c)
	}
	return caps
}
