package service

import (
	"context"
	"time"

	"github.com/hupe1980/agencyhub/core"
	"github.com/hupe1980/agencyhub/logging"
	"github.com/hupe1980/agencyhub/model"
)

// SkillService manages versioned skill configurations.
type SkillService struct {
	store   core.SkillStore
	invoker *promptInvoker
	logger  *logging.HubLogger
}

// NewSkillService creates a SkillService. Skills execute the registered
// capability named after their title.
func NewSkillService(store core.SkillStore, registry core.CapabilityRegistry, m model.Model, optFns ...func(o *Options)) *SkillService {
	opts := buildOptions("skill", optFns)
	return &SkillService{
		store:   store,
		invoker: &promptInvoker{registry: registry, model: m, logger: opts.Logger},
		logger:  opts.Logger,
	}
}

// List returns the skills of user followed by the shared skills.
func (s *SkillService) List(ctx context.Context, user core.User) ([]*core.SkillConfig, error) {
	owned, err := s.store.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	shared, err := s.store.ListByUser(ctx, "")
	if err != nil {
		return nil, err
	}
	return append(owned, shared...), nil
}

// Get returns a skill owned by user or a shared skill.
func (s *SkillService) Get(ctx context.Context, user core.User, skillID string) (*core.SkillConfig, error) {
	cfg, err := s.store.Load(ctx, skillID)
	if err != nil {
		return nil, err
	}
	if !canRead(user, cfg.UserID) {
		s.logger.Warn("skill.get.denied", "skill_id", skillID, "user_id", user.ID)
		return nil, denied("skill", skillID, user)
	}
	return cfg, nil
}

// CreateVersion stores a new, unapproved version of a skill for user and
// returns its id and version.
func (s *SkillService) CreateVersion(ctx context.Context, user core.User, cfg *core.SkillConfig) (string, int, error) {
	var previous *core.SkillConfig
	if cfg.IsTemplate() {
		cfg.ID = ""
	}
	if cfg.ID != "" {
		existing, err := s.store.Load(ctx, cfg.ID)
		if err != nil {
			return "", 0, err
		}
		if existing.UserID != user.ID {
			s.logger.Warn("skill.update.denied", "skill_id", cfg.ID, "user_id", user.ID)
			return "", 0, denied("skill", cfg.ID, user)
		}
		previous = existing
	}

	cfg.UserID = user.ID
	cfg.Version = 1
	if previous != nil {
		cfg.Version = previous.Version + 1
	}
	cfg.Approved = false
	cfg.Timestamp = time.Now().UTC()

	if err := s.store.Save(ctx, cfg); err != nil {
		return "", 0, err
	}
	return cfg.ID, cfg.Version, nil
}

// Delete removes a skill owned by user.
func (s *SkillService) Delete(ctx context.Context, user core.User, skillID string) error {
	cfg, err := s.store.Load(ctx, skillID)
	if err != nil {
		return err
	}
	if cfg.UserID != user.ID {
		s.logger.Warn("skill.delete.denied", "skill_id", skillID, "user_id", user.ID)
		return denied("skill", skillID, user)
	}
	return s.store.Delete(ctx, skillID)
}

// Approve marks a skill as approved. Only superusers may approve.
func (s *SkillService) Approve(ctx context.Context, user core.User, skillID string) error {
	if !user.IsSuperuser {
		return denied("skill", skillID, user)
	}
	cfg, err := s.store.Load(ctx, skillID)
	if err != nil {
		return err
	}
	cfg.Approved = true
	return s.store.Save(ctx, cfg)
}

// Execute runs an approved skill readable by user and returns its output.
func (s *SkillService) Execute(ctx context.Context, user core.User, skillID, prompt string) (string, error) {
	cfg, err := s.Get(ctx, user, skillID)
	if err != nil {
		return "", err
	}
	if !cfg.Approved {
		s.logger.Warn("skill.execute.not_approved", "skill_id", skillID, "user_id", user.ID)
		return "", notApproved("skill", skillID)
	}
	return s.invoker.invoke(ctx, cfg.Title, prompt)
}
