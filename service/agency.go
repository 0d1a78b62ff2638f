package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hupe1980/agencyhub/agency"
	"github.com/hupe1980/agencyhub/core"
	"github.com/hupe1980/agencyhub/logging"
)

// AgencyService manages agency configurations.
type AgencyService struct {
	store   core.AgencyStore
	manager *agency.Manager
	logger  *logging.HubLogger
}

// NewAgencyService creates an AgencyService.
func NewAgencyService(store core.AgencyStore, manager *agency.Manager, optFns ...func(o *Options)) *AgencyService {
	opts := buildOptions("agency", optFns)
	return &AgencyService{store: store, manager: manager, logger: opts.Logger}
}

// List returns the agencies of user followed by the templates.
func (s *AgencyService) List(ctx context.Context, user core.User) ([]*core.AgencyConfig, error) {
	owned, err := s.store.ListByOwner(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	templates, err := s.store.ListByOwner(ctx, "")
	if err != nil {
		return nil, err
	}
	return append(owned, templates...), nil
}

// Get returns a configuration owned by user or a template.
func (s *AgencyService) Get(ctx context.Context, user core.User, agencyID string) (*core.AgencyConfig, error) {
	cfg, err := s.store.Load(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	if !canRead(user, cfg.OwnerID) {
		s.logger.Warn("agency.get.denied", "agency_id", agencyID, "user_id", user.ID)
		return nil, denied("agency", agencyID, user)
	}
	return cfg, nil
}

// UpdateOrCreate stores cfg for user and rebuilds the agency. A template
// (no owner) is saved as a new agency of user. It returns the agency id.
func (s *AgencyService) UpdateOrCreate(ctx context.Context, user core.User, cfg *core.AgencyConfig) (string, error) {
	if cfg.IsTemplate() {
		s.logger.Info("agency.create_from_template", "user_id", user.ID, "name", cfg.Name)
		cfg.AgencyID = ""
	} else if cfg.AgencyID != "" {
		existing, err := s.store.Load(ctx, cfg.AgencyID)
		if err != nil {
			return "", err
		}
		if existing.OwnerID != user.ID {
			s.logger.Warn("agency.update.denied", "agency_id", cfg.AgencyID, "user_id", user.ID)
			return "", denied("agency", cfg.AgencyID, user)
		}
	}

	if err := validateAgency(cfg); err != nil {
		return "", err
	}

	cfg.OwnerID = user.ID
	if cfg.AgencyID == "" {
		cfg.AgencyID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if err := s.store.Save(ctx, cfg); err != nil {
		return "", err
	}

	if _, _, err := s.manager.Create(ctx, cfg.AgencyID); err != nil {
		return "", err
	}
	return cfg.AgencyID, nil
}

// Delete removes an agency owned by user and drops its unthreaded cache entry.
func (s *AgencyService) Delete(ctx context.Context, user core.User, agencyID string) error {
	cfg, err := s.store.Load(ctx, agencyID)
	if err != nil {
		return err
	}
	if cfg.OwnerID != user.ID {
		return denied("agency", agencyID, user)
	}
	if err := s.store.Delete(ctx, agencyID); err != nil {
		return err
	}
	s.manager.Evict(agencyID, "")
	return nil
}

func validateAgency(cfg *core.AgencyConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("agency name is required: %w", core.ErrInvalidInput)
	}
	if len(cfg.Agents) == 0 {
		return fmt.Errorf("agency needs at least one agent: %w", core.ErrInvalidInput)
	}
	return nil
}
