package service

import (
	"context"
	"strings"
	"time"

	"github.com/hupe1980/agencyhub/core"
	"github.com/hupe1980/agencyhub/logging"
	"github.com/hupe1980/agencyhub/model"
)

const describeToolInstructions = "You are an assistant that writes short descriptions of Python tools. " +
	"Answer with one or two sentences describing what the tool does and nothing else."

// ToolService manages versioned tool configurations.
type ToolService struct {
	store   core.ToolStore
	model   model.Model
	invoker *promptInvoker
	logger  *logging.HubLogger
}

// NewToolService creates a ToolService. m generates descriptions and fills
// tool arguments on execution; it may be nil when neither is needed.
func NewToolService(store core.ToolStore, registry core.CapabilityRegistry, m model.Model, optFns ...func(o *Options)) *ToolService {
	opts := buildOptions("tool", optFns)
	return &ToolService{
		store:   store,
		model:   m,
		invoker: &promptInvoker{registry: registry, model: m, logger: opts.Logger},
		logger:  opts.Logger,
	}
}

// List returns the tools of user followed by the shared tools.
func (s *ToolService) List(ctx context.Context, user core.User) ([]*core.ToolConfig, error) {
	owned, err := s.store.ListByOwner(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	shared, err := s.store.ListByOwner(ctx, "")
	if err != nil {
		return nil, err
	}
	return append(owned, shared...), nil
}

// Get returns a tool owned by user or a shared tool.
func (s *ToolService) Get(ctx context.Context, user core.User, toolID string) (*core.ToolConfig, error) {
	cfg, err := s.store.Load(ctx, toolID)
	if err != nil {
		return nil, err
	}
	if !canRead(user, cfg.OwnerID) {
		s.logger.Warn("tool.get.denied", "tool_id", toolID, "user_id", user.ID)
		return nil, denied("tool", toolID, user)
	}
	return cfg, nil
}

// CreateVersion stores a new, unapproved version of a tool for user and
// returns its id and version. Shared tools are copied into a new tool.
func (s *ToolService) CreateVersion(ctx context.Context, user core.User, cfg *core.ToolConfig) (string, int, error) {
	var previous *core.ToolConfig
	if cfg.IsTemplate() {
		cfg.ToolID = ""
	} else if cfg.ToolID != "" {
		existing, err := s.store.Load(ctx, cfg.ToolID)
		if err != nil {
			return "", 0, err
		}
		if existing.OwnerID != user.ID {
			s.logger.Warn("tool.update.denied", "tool_id", cfg.ToolID, "user_id", user.ID)
			return "", 0, denied("tool", cfg.ToolID, user)
		}
		previous = existing
	}

	cfg.OwnerID = user.ID
	cfg.Version = 1
	if previous != nil {
		cfg.Version = previous.Version + 1
	}
	cfg.Approved = false
	cfg.Timestamp = time.Now().UTC()

	if cfg.Description == "" && cfg.Code != "" && s.model != nil {
		desc, err := model.Complete(ctx, s.model, describeToolInstructions, "Describe this tool:\n\n"+cfg.Code)
		if err != nil {
			return "", 0, err
		}
		cfg.Description = strings.TrimSpace(desc)
	}

	if err := s.store.Save(ctx, cfg); err != nil {
		return "", 0, err
	}
	return cfg.ToolID, cfg.Version, nil
}

// Approve marks a tool as approved. Only superusers may approve.
func (s *ToolService) Approve(ctx context.Context, user core.User, toolID string) error {
	if !user.IsSuperuser {
		return denied("tool", toolID, user)
	}
	cfg, err := s.store.Load(ctx, toolID)
	if err != nil {
		return err
	}
	cfg.Approved = true
	return s.store.Save(ctx, cfg)
}

// Execute runs an approved tool readable by user with arguments derived from
// prompt and returns its output.
func (s *ToolService) Execute(ctx context.Context, user core.User, toolID, prompt string) (string, error) {
	cfg, err := s.Get(ctx, user, toolID)
	if err != nil {
		return "", err
	}
	if !cfg.Approved {
		s.logger.Warn("tool.execute.not_approved", "tool_id", toolID, "user_id", user.ID)
		return "", notApproved("tool", toolID)
	}
	return s.invoker.invoke(ctx, cfg.Name, prompt)
}
