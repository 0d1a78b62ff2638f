package core

import "context"

// AgencyStore persists agency configurations. Load returns an error wrapping
// ErrConfigurationNotFound for unknown ids. ListByOwner with an empty owner
// returns templates.
type AgencyStore interface {
	Load(ctx context.Context, agencyID string) (*AgencyConfig, error)
	Save(ctx context.Context, cfg *AgencyConfig) error
	ListByOwner(ctx context.Context, ownerID string) ([]*AgencyConfig, error)
	Delete(ctx context.Context, agencyID string) error
}

// ToolStore persists tool versions. Save assigns a ToolID when it is empty.
type ToolStore interface {
	Load(ctx context.Context, toolID string) (*ToolConfig, error)
	Save(ctx context.Context, cfg *ToolConfig) error
	ListByOwner(ctx context.Context, ownerID string) ([]*ToolConfig, error)
}

// SkillStore persists skill versions. Save assigns an ID when it is empty.
// LoadByTitle returns the first skill with the title in id order.
type SkillStore interface {
	Load(ctx context.Context, skillID string) (*SkillConfig, error)
	LoadByTitle(ctx context.Context, title string) (*SkillConfig, error)
	Save(ctx context.Context, cfg *SkillConfig) error
	ListByUser(ctx context.Context, userID string) ([]*SkillConfig, error)
	Delete(ctx context.Context, skillID string) error
}

// SessionStore persists session records.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (*SessionConfig, error)
	Save(ctx context.Context, cfg *SessionConfig) error
	ListByOwner(ctx context.Context, ownerID string) ([]*SessionConfig, error)
}
