package service

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/agencyhub/agency"
	"github.com/hupe1980/agencyhub/core"
	"github.com/hupe1980/agencyhub/logging"
)

// SessionService opens conversation threads on agencies and relays user
// messages to them.
type SessionService struct {
	agencies core.AgencyStore
	sessions core.SessionStore
	manager  *agency.Manager
	exec     *ExecutionService
	logger   *logging.HubLogger
}

// NewSessionService creates a SessionService.
func NewSessionService(agencies core.AgencyStore, sessions core.SessionStore, manager *agency.Manager, exec *ExecutionService, optFns ...func(o *Options)) *SessionService {
	opts := buildOptions("session", optFns)
	return &SessionService{
		agencies: agencies,
		sessions: sessions,
		manager:  manager,
		exec:     exec,
		logger:   opts.Logger,
	}
}

// List returns the sessions of user.
func (s *SessionService) List(ctx context.Context, user core.User) ([]*core.SessionConfig, error) {
	return s.sessions.ListByOwner(ctx, user.ID)
}

// Create builds a fresh instance of an agency owned by user, opens a thread
// on it and caches the instance under that thread. It returns the thread id.
func (s *SessionService) Create(ctx context.Context, user core.User, agencyID string) (string, error) {
	if err := s.authorize(ctx, user, agencyID); err != nil {
		return "", err
	}

	s.logger.Info("session.create", "agency_id", agencyID, "user_id", user.ID)

	g, _, err := s.manager.Create(ctx, agencyID)
	if err != nil {
		return "", err
	}
	if _, err := g.CreateThread(ctx); err != nil {
		return "", err
	}
	threadID, _ := s.manager.ReconcileThreadID(g, agencyID, "")

	now := time.Now().UTC()
	if err := s.sessions.Save(ctx, &core.SessionConfig{
		SessionID: threadID,
		OwnerID:   user.ID,
		AgencyID:  agencyID,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return "", err
	}
	return threadID, nil
}

// PostMessage runs one turn on the thread of an agency owned by user.
func (s *SessionService) PostMessage(ctx context.Context, user core.User, agencyID, threadID, message string) (*TurnResult, error) {
	if err := s.authorize(ctx, user, agencyID); err != nil {
		return nil, err
	}

	s.logger.Debug("session.message", "agency_id", agencyID, "thread_id", threadID, "user_id", user.ID)

	res, err := s.exec.RunTurn(ctx, agencyID, threadID, message)
	if err != nil {
		return nil, err
	}

	if err := s.touch(ctx, user, agencyID, res.ThreadID); err != nil {
		s.logger.Warn("session.touch.failed", "agency_id", agencyID, "thread_id", res.ThreadID, "error", err.Error())
	}
	return res, nil
}

// Cancel aborts the running turn on the thread of an agency owned by user.
func (s *SessionService) Cancel(ctx context.Context, user core.User, agencyID, threadID string) error {
	if err := s.authorize(ctx, user, agencyID); err != nil {
		return err
	}
	s.logger.Info("session.cancel", "agency_id", agencyID, "thread_id", threadID, "user_id", user.ID)
	return s.exec.Cancel(agencyID, threadID)
}

func (s *SessionService) authorize(ctx context.Context, user core.User, agencyID string) error {
	cfg, err := s.agencies.Load(ctx, agencyID)
	if err != nil {
		return err
	}
	if cfg.OwnerID != user.ID {
		s.logger.Warn("session.denied", "agency_id", agencyID, "user_id", user.ID)
		return denied("agency", agencyID, user)
	}
	return nil
}

// touch records activity on the session of threadID, creating the record
// when the turn moved the conversation to a new thread.
func (s *SessionService) touch(ctx context.Context, user core.User, agencyID, threadID string) error {
	if threadID == "" {
		return nil
	}
	now := time.Now().UTC()
	sess, err := s.sessions.Load(ctx, threadID)
	if err != nil {
		if !errors.Is(err, core.ErrConfigurationNotFound) {
			return err
		}
		sess = &core.SessionConfig{SessionID: threadID, OwnerID: user.ID, AgencyID: agencyID, CreatedAt: now}
	}
	sess.UpdatedAt = now
	return s.sessions.Save(ctx, sess)
}
