package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agencyhub/core"
	"github.com/hupe1980/agencyhub/store"
)

// AgencyStore is a SQLite backed core.AgencyStore.
type AgencyStore struct {
	docs documents[core.AgencyConfig]
}

// Load implements core.AgencyStore.
func (s *AgencyStore) Load(ctx context.Context, agencyID string) (*core.AgencyConfig, error) {
	return s.docs.load(ctx, agencyID)
}

// Save implements core.AgencyStore.
func (s *AgencyStore) Save(ctx context.Context, cfg *core.AgencyConfig) error {
	if cfg.AgencyID == "" {
		cfg.AgencyID = store.NewID()
	}
	cfg.UpdatedAt = time.Now().UTC()
	return s.docs.save(ctx, cfg.AgencyID, meta{owner: cfg.OwnerID}, cfg)
}

// ListByOwner implements core.AgencyStore.
func (s *AgencyStore) ListByOwner(ctx context.Context, ownerID string) ([]*core.AgencyConfig, error) {
	return s.docs.listByOwner(ctx, ownerID)
}

// Delete implements core.AgencyStore.
func (s *AgencyStore) Delete(ctx context.Context, agencyID string) error {
	return s.docs.delete(ctx, agencyID)
}

// ToolStore is a SQLite backed core.ToolStore.
type ToolStore struct {
	docs documents[core.ToolConfig]
}

// Load implements core.ToolStore.
func (s *ToolStore) Load(ctx context.Context, toolID string) (*core.ToolConfig, error) {
	return s.docs.load(ctx, toolID)
}

// Save implements core.ToolStore.
func (s *ToolStore) Save(ctx context.Context, cfg *core.ToolConfig) error {
	if cfg.ToolID == "" {
		cfg.ToolID = store.NewID()
	}
	return s.docs.save(ctx, cfg.ToolID, meta{owner: cfg.OwnerID, title: cfg.Name}, cfg)
}

// ListByOwner implements core.ToolStore.
func (s *ToolStore) ListByOwner(ctx context.Context, ownerID string) ([]*core.ToolConfig, error) {
	return s.docs.listByOwner(ctx, ownerID)
}

// SkillStore is a SQLite backed core.SkillStore.
type SkillStore struct {
	docs documents[core.SkillConfig]
}

// Load implements core.SkillStore.
func (s *SkillStore) Load(ctx context.Context, skillID string) (*core.SkillConfig, error) {
	return s.docs.load(ctx, skillID)
}

// Save implements core.SkillStore.
func (s *SkillStore) Save(ctx context.Context, cfg *core.SkillConfig) error {
	if cfg.ID == "" {
		cfg.ID = store.NewID()
	}
	return s.docs.save(ctx, cfg.ID, meta{owner: cfg.UserID, title: cfg.Title}, cfg)
}

// LoadByTitle implements core.SkillStore.
func (s *SkillStore) LoadByTitle(ctx context.Context, title string) (*core.SkillConfig, error) {
	return s.docs.loadByTitle(ctx, title)
}

// ListByUser implements core.SkillStore.
func (s *SkillStore) ListByUser(ctx context.Context, userID string) ([]*core.SkillConfig, error) {
	return s.docs.listByOwner(ctx, userID)
}

// Delete implements core.SkillStore.
func (s *SkillStore) Delete(ctx context.Context, skillID string) error {
	return s.docs.delete(ctx, skillID)
}

// SessionStore is a SQLite backed core.SessionStore.
type SessionStore struct {
	docs documents[core.SessionConfig]
}

// Load implements core.SessionStore.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*core.SessionConfig, error) {
	return s.docs.load(ctx, sessionID)
}

// Save implements core.SessionStore.
func (s *SessionStore) Save(ctx context.Context, cfg *core.SessionConfig) error {
	if cfg.SessionID == "" {
		return fmt.Errorf("session id is required: %w", core.ErrInvalidInput)
	}
	return s.docs.save(ctx, cfg.SessionID, meta{owner: cfg.OwnerID}, cfg)
}

// ListByOwner implements core.SessionStore.
func (s *SessionStore) ListByOwner(ctx context.Context, ownerID string) ([]*core.SessionConfig, error) {
	return s.docs.listByOwner(ctx, ownerID)
}
