// Package tool implements the capabilities agents invoke: a schema validated
// FunctionTool, a static name based Registry and the built-in file and code
// tools shipped with agencyhub.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agencyhub/core"
	"github.com/hupe1980/agencyhub/internal/util"
)

// Tool is a named capability with a JSON schema for its arguments. Every Tool
// satisfies core.Capability.
type Tool interface {
	// Name returns the unique identifier the model calls the tool by.
	Name() string

	// Description is shown to the model to decide when to call the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with already decoded arguments.
	Call(ctx context.Context, args map[string]any) (any, error)
}

var _ core.Capability = Tool(nil)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeForbidden  = "FORBIDDEN_PATH"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
