package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agencyhub/agency"
	"github.com/hupe1980/agencyhub/core"
	"github.com/hupe1980/agencyhub/internal/offload"
	"github.com/hupe1980/agencyhub/internal/tracing"
	"github.com/hupe1980/agencyhub/logging"
)

// TurnResult is the outcome of one conversational turn.
type TurnResult struct {
	Response      string `json:"response"`
	ThreadID      string `json:"thread_id,omitempty"`
	ThreadChanged bool   `json:"thread_changed"`
}

// ExecutionOptions configure an ExecutionService.
type ExecutionOptions struct {
	// TurnTimeout caps a single turn. Zero disables the timeout.
	TurnTimeout time.Duration
	// Pool runs turns. A private pool is created when nil.
	Pool   *offload.Pool
	Logger *logging.HubLogger
}

// ExecutionService runs user turns against cached agencies. It never builds
// an agency; a cache miss yields core.ErrAgencyNotLoaded. At most one turn
// runs per cache key at a time. Public methods are safe for concurrent use.
type ExecutionService struct {
	manager     *agency.Manager
	pool        *offload.Pool
	turnTimeout time.Duration
	logger      *logging.HubLogger

	activeTurns map[string]context.CancelFunc
	mu          sync.Mutex
}

// NewExecutionService creates an ExecutionService reading from manager.
func NewExecutionService(manager *agency.Manager, optFns ...func(o *ExecutionOptions)) *ExecutionService {
	opts := ExecutionOptions{
		TurnTimeout: 5 * time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Pool == nil {
		opts.Pool = offload.New(0)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	return &ExecutionService{
		manager:     manager,
		pool:        opts.Pool,
		turnTimeout: opts.TurnTimeout,
		logger:      opts.Logger.WithComponent("execution"),
		activeTurns: make(map[string]context.CancelFunc),
	}
}

// RunTurn sends message to the agency cached under (agencyID, threadID).
// When the turn moves the agency to another thread the cache entry follows
// it and the result reports the new thread.
func (s *ExecutionService) RunTurn(ctx context.Context, agencyID, threadID, message string) (*TurnResult, error) {
	key := agency.CacheKey(agencyID, threadID)
	ctx, span := tracing.StartSpan(ctx, "agency.turn", tracing.String("cache.key", key))

	res, err := s.runTurn(ctx, key, agencyID, threadID, message)
	if res != nil {
		span.SetAttributes(tracing.Bool("thread.changed", res.ThreadChanged))
	}
	tracing.End(span, err)
	return res, err
}

func (s *ExecutionService) runTurn(ctx context.Context, key, agencyID, threadID, message string) (*TurnResult, error) {
	start := time.Now()
	logger := s.logger.WithAgency(agencyID, threadID)

	g, ok := s.manager.Get(agencyID, threadID)
	if !ok {
		return nil, fmt.Errorf("agency %s: %w", key, core.ErrAgencyNotLoaded)
	}

	var (
		turnCtx context.Context
		cancel  context.CancelFunc
	)
	if s.turnTimeout > 0 {
		turnCtx, cancel = context.WithTimeout(ctx, s.turnTimeout)
	} else {
		turnCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	s.mu.Lock()
	if _, busy := s.activeTurns[key]; busy {
		s.mu.Unlock()
		return nil, fmt.Errorf("agency %s: %w", key, core.ErrTurnInProgress)
	}
	s.activeTurns[key] = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.activeTurns, key)
		s.mu.Unlock()
	}()

	reply, err := offload.Run(turnCtx, s.pool, func() (string, error) {
		return g.RunTurn(turnCtx, message)
	})
	if err != nil {
		logger.LogTurn(key, time.Since(start), false, err)
		return nil, err
	}

	newThreadID, changed := s.manager.ReconcileThreadID(g, agencyID, threadID)
	logger.LogTurn(key, time.Since(start), changed, nil)

	return &TurnResult{Response: reply, ThreadID: newThreadID, ThreadChanged: changed}, nil
}

// Cancel aborts the turn running under (agencyID, threadID).
func (s *ExecutionService) Cancel(agencyID, threadID string) error {
	key := agency.CacheKey(agencyID, threadID)

	s.mu.Lock()
	cancel, exists := s.activeTurns[key]
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("turn %s: %w", key, core.ErrTurnNotFound)
	}

	cancel()

	return nil
}

// Active returns the number of running turns.
func (s *ExecutionService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeTurns)
}
