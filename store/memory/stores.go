package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agencyhub/core"
	"github.com/hupe1980/agencyhub/store"
)

// AgencyStore is an in-memory core.AgencyStore.
type AgencyStore struct {
	items *collection[core.AgencyConfig]
}

// NewAgencyStore creates an empty AgencyStore.
func NewAgencyStore() *AgencyStore {
	return &AgencyStore{items: newCollection((*core.AgencyConfig).Clone)}
}

// Load returns a copy of the configuration.
func (s *AgencyStore) Load(_ context.Context, agencyID string) (*core.AgencyConfig, error) {
	cfg, ok := s.items.get(agencyID)
	if !ok {
		return nil, fmt.Errorf("agency %s: %w", agencyID, core.ErrConfigurationNotFound)
	}
	return cfg, nil
}

// Save upserts the configuration, assigning an id when empty and stamping UpdatedAt.
func (s *AgencyStore) Save(_ context.Context, cfg *core.AgencyConfig) error {
	if cfg.AgencyID == "" {
		cfg.AgencyID = store.NewID()
	}
	cfg.UpdatedAt = time.Now().UTC()
	s.items.put(cfg.AgencyID, cfg)
	return nil
}

// ListByOwner returns the configurations of ownerID; an empty owner lists templates.
func (s *AgencyStore) ListByOwner(_ context.Context, ownerID string) ([]*core.AgencyConfig, error) {
	return s.items.filter(func(c *core.AgencyConfig) bool { return c.OwnerID == ownerID }), nil
}

// Delete removes the configuration.
func (s *AgencyStore) Delete(_ context.Context, agencyID string) error {
	if !s.items.delete(agencyID) {
		return fmt.Errorf("agency %s: %w", agencyID, core.ErrConfigurationNotFound)
	}
	return nil
}

// ToolStore is an in-memory core.ToolStore.
type ToolStore struct {
	items *collection[core.ToolConfig]
}

// NewToolStore creates an empty ToolStore.
func NewToolStore() *ToolStore {
	return &ToolStore{items: newCollection[core.ToolConfig](nil)}
}

// Load returns a copy of the tool version.
func (s *ToolStore) Load(_ context.Context, toolID string) (*core.ToolConfig, error) {
	cfg, ok := s.items.get(toolID)
	if !ok {
		return nil, fmt.Errorf("tool %s: %w", toolID, core.ErrConfigurationNotFound)
	}
	return cfg, nil
}

// Save upserts the tool version, assigning an id when empty.
func (s *ToolStore) Save(_ context.Context, cfg *core.ToolConfig) error {
	if cfg.ToolID == "" {
		cfg.ToolID = store.NewID()
	}
	s.items.put(cfg.ToolID, cfg)
	return nil
}

// ListByOwner returns the tools of ownerID; an empty owner lists templates.
func (s *ToolStore) ListByOwner(_ context.Context, ownerID string) ([]*core.ToolConfig, error) {
	return s.items.filter(func(c *core.ToolConfig) bool { return c.OwnerID == ownerID }), nil
}

// SkillStore is an in-memory core.SkillStore.
type SkillStore struct {
	items *collection[core.SkillConfig]
}

// NewSkillStore creates an empty SkillStore.
func NewSkillStore() *SkillStore {
	return &SkillStore{items: newCollection[core.SkillConfig](nil)}
}

// Load returns a copy of the skill version.
func (s *SkillStore) Load(_ context.Context, skillID string) (*core.SkillConfig, error) {
	cfg, ok := s.items.get(skillID)
	if !ok {
		return nil, fmt.Errorf("skill %s: %w", skillID, core.ErrConfigurationNotFound)
	}
	return cfg, nil
}

// Save upserts the skill version, assigning an id when empty.
func (s *SkillStore) Save(_ context.Context, cfg *core.SkillConfig) error {
	if cfg.ID == "" {
		cfg.ID = store.NewID()
	}
	s.items.put(cfg.ID, cfg)
	return nil
}

// LoadByTitle returns a copy of the first skill named title.
func (s *SkillStore) LoadByTitle(_ context.Context, title string) (*core.SkillConfig, error) {
	matches := s.items.filter(func(c *core.SkillConfig) bool { return c.Title == title })
	if len(matches) == 0 {
		return nil, fmt.Errorf("skill titled %q: %w", title, core.ErrConfigurationNotFound)
	}
	return matches[0], nil
}

// ListByUser returns the skills of userID; an empty user lists templates.
func (s *SkillStore) ListByUser(_ context.Context, userID string) ([]*core.SkillConfig, error) {
	return s.items.filter(func(c *core.SkillConfig) bool { return c.UserID == userID }), nil
}

// Delete removes the skill version.
func (s *SkillStore) Delete(_ context.Context, skillID string) error {
	if !s.items.delete(skillID) {
		return fmt.Errorf("skill %s: %w", skillID, core.ErrConfigurationNotFound)
	}
	return nil
}

// SessionStore is an in-memory core.SessionStore.
type SessionStore struct {
	items *collection[core.SessionConfig]
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{items: newCollection[core.SessionConfig](nil)}
}

// Load returns a copy of the session record.
func (s *SessionStore) Load(_ context.Context, sessionID string) (*core.SessionConfig, error) {
	cfg, ok := s.items.get(sessionID)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, core.ErrConfigurationNotFound)
	}
	return cfg, nil
}

// Save upserts the session record.
func (s *SessionStore) Save(_ context.Context, cfg *core.SessionConfig) error {
	if cfg.SessionID == "" {
		return fmt.Errorf("session id is required: %w", core.ErrInvalidInput)
	}
	s.items.put(cfg.SessionID, cfg)
	return nil
}

// ListByOwner returns the sessions of ownerID.
func (s *SessionStore) ListByOwner(_ context.Context, ownerID string) ([]*core.SessionConfig, error) {
	return s.items.filter(func(c *core.SessionConfig) bool { return c.OwnerID == ownerID }), nil
}
