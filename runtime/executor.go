package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/agencyhub/core"
	"github.com/hupe1980/agencyhub/logging"
)

// capabilityExecutor runs the capability calls of one model response. Calls
// run concurrently up to maxParallel, one at a time for sequential batches,
// and results keep the order of the calls.
// Failures never abort the turn; they become FunctionResponse errors the
// model can react to.
type capabilityExecutor struct {
	maxParallel int
	timeout     time.Duration
	logger      logging.Logger
}

func (e *capabilityExecutor) execute(ctx context.Context, agent string, caps map[string]core.Capability, calls []core.FunctionCall, sequential bool) []core.FunctionResponse {
	n := len(calls)
	results := make([]core.FunctionResponse, n)
	if n == 0 {
		return results
	}
	if n == 1 {
		results[0] = e.executeSingle(ctx, agent, caps, calls[0])
		return results
	}

	maxPar := e.maxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}
	if sequential {
		maxPar = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)
	batchStart := time.Now()

	for i := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = e.executeSingle(ctx, agent, caps, fc)
		}(i, calls[i])
	}
	wg.Wait()

	e.logger.Debug("agent.functions.batch.complete",
		"agent", agent,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
	return results
}

func (e *capabilityExecutor) executeSingle(ctx context.Context, agent string, caps map[string]core.Capability, fc core.FunctionCall) core.FunctionResponse {
	resp := core.FunctionResponse{ID: fc.ID, Name: fc.Name}
	if err := ctx.Err(); err != nil {
		resp.Error = err.Error()
		return resp
	}

	callCtx := ctx
	if e.timeout > 0 && fc.Name != sendMessageTool {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic recovered: %v", r)
				e.logger.Error("agent.function.panic", "agent", agent, "function", fc.Name, "recover", r, "stack", string(debug.Stack()))
			}
		}()
		result, err = callCapability(callCtx, caps, fc)
	}()

	e.logger.Info("agent.function.executed",
		"agent", agent,
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Response = result
	return resp
}

func callCapability(ctx context.Context, caps map[string]core.Capability, fc core.FunctionCall) (any, error) {
	impl, ok := caps[fc.Name]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", fc.Name)
	}
	args, err := decodeArgs(fc.Arguments)
	if err != nil {
		return nil, err
	}
	return impl.Call(ctx, args)
}

func decodeArgs(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	return args, nil
}
