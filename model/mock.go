package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agencyhub/core"
)

// MockModel is a lightweight in-memory Model answering with canned
// completions keyed by the last user text.
type MockModel struct {
	info      Info
	mu        sync.RWMutex
	responses map[string]string
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Contents) == 0 {
		return nil, fmt.Errorf("no contents provided")
	}
	input := req.Contents[len(req.Contents)-1].Text()

	m.mu.RLock()
	full := m.responses[input]
	m.mu.RUnlock()
	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", input)
	}
	return &Response{Content: core.NewTextContent("assistant", full), FinishReason: "stop"}, nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// Step produces one scripted answer.
type Step func(req Request) (*Response, error)

// ScriptedModel replays steps in order and records every request. Once the
// script is exhausted it answers with "done".
type ScriptedModel struct {
	mu       sync.Mutex
	steps    []Step
	requests []Request
}

// NewScriptedModel creates a ScriptedModel.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{steps: steps}
}

// Generate implements Model.
func (s *ScriptedModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	var step Step
	if len(s.steps) > 0 {
		step, s.steps = s.steps[0], s.steps[1:]
	}
	s.mu.Unlock()

	if step == nil {
		return TextResponse("done"), nil
	}
	return step(req)
}

// Info implements Model.
func (s *ScriptedModel) Info() Info {
	return Info{Name: "scripted", Provider: "mock", SupportsTools: true}
}

// Requests returns a copy of the recorded requests.
func (s *ScriptedModel) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Reply is a Step answering with text.
func Reply(text string) Step {
	return func(Request) (*Response, error) { return TextResponse(text), nil }
}

// CallTool is a Step requesting a single tool call.
func CallTool(id, name, arguments string) Step {
	return func(Request) (*Response, error) {
		return &Response{
			Content: core.Content{Role: "assistant", Parts: []core.Part{
				core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: arguments}},
			}},
			FinishReason: "tool_calls",
		}, nil
	}
}

// Fail is a Step returning err.
func Fail(err error) Step {
	return func(Request) (*Response, error) { return nil, err }
}

// TextResponse builds a final assistant text response.
func TextResponse(text string) *Response {
	return &Response{Content: core.NewTextContent("assistant", text), FinishReason: "stop"}
}
