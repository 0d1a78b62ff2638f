package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/agencyhub/core"
	"github.com/hupe1980/agencyhub/logging"
	"github.com/hupe1980/agencyhub/model"
)

// promptInvoker runs a registered capability with arguments the model derives
// from a free text prompt.
type promptInvoker struct {
	registry core.CapabilityRegistry
	model    model.Model
	logger   *logging.HubLogger
}

func (p *promptInvoker) invoke(ctx context.Context, name, prompt string) (string, error) {
	c, ok := p.registry.Resolve(name)
	if !ok {
		return "", fmt.Errorf("%s is not available: %w", name, core.ErrInvalidInput)
	}
	if p.model == nil {
		return "", fmt.Errorf("no model configured to execute %s", name)
	}

	resp, err := p.model.Generate(ctx, model.Request{
		Instructions: fmt.Sprintf("Call the %s tool once with arguments taken from the user's request.", name),
		Contents:     []core.Content{core.NewTextContent("user", prompt)},
		Tools:        []model.ToolDefinition{model.NewToolDefinition(c.Name(), c.Description(), c.Parameters())},
	})
	if err != nil {
		return "", err
	}

	calls := resp.Content.FunctionCalls()
	if len(calls) == 0 {
		return resp.Content.Text(), nil
	}

	args := map[string]any{}
	if calls[0].Arguments != "" {
		if err := json.Unmarshal([]byte(calls[0].Arguments), &args); err != nil {
			return "", fmt.Errorf("decode arguments for %s: %w", name, err)
		}
	}

	start := time.Now()
	out, err := c.Call(ctx, args)
	p.logger.LogToolCall(name, time.Since(start), err == nil, err)
	if err != nil {
		return "", err
	}
	return formatOutput(out)
}

func formatOutput(out any) (string, error) {
	switch v := out.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
