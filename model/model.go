package model

import (
	"context"
	"fmt"

	"github.com/hupe1980/agencyhub/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewToolDefinition builds a function tool definition.
func NewToolDefinition(name, description string, parameters map[string]any) ToolDefinition {
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return ToolDefinition{Type: "function", Function: FunctionDefinition{Name: name, Description: description, Parameters: parameters}}
}

// Request captures the normalized model input.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completed model answer.
type Response struct {
	ID           string       `json:"id"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "bedrock", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// Complete sends a single user prompt and returns the text answer.
func Complete(ctx context.Context, m Model, instructions, prompt string) (string, error) {
	resp, err := m.Generate(ctx, Request{
		Instructions: instructions,
		Contents:     []core.Content{core.NewTextContent("user", prompt)},
	})
	if err != nil {
		return "", err
	}
	return resp.Content.Text(), nil
}

// Catalog resolves model names to models, falling back to a default.
type Catalog struct {
	def   Model
	named map[string]Model
}

// NewCatalog creates a catalog with a default model.
func NewCatalog(def Model) *Catalog {
	return &Catalog{def: def, named: map[string]Model{}}
}

// Register adds a named model.
func (c *Catalog) Register(name string, m Model) {
	c.named[name] = m
}

// Default returns the default model.
func (c *Catalog) Default() Model { return c.def }

// Resolve returns the model registered under name or the default for an empty name.
func (c *Catalog) Resolve(name string) (Model, error) {
	if name == "" {
		if c.def == nil {
			return nil, fmt.Errorf("no default model configured")
		}
		return c.def, nil
	}
	if m, ok := c.named[name]; ok {
		return m, nil
	}
	if c.def != nil && c.def.Info().Name == name {
		return c.def, nil
	}
	return nil, fmt.Errorf("unknown model %q", name)
}
