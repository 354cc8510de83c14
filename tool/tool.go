// Package tool implements the function calling subsystem that lets agents and
// tool servers invoke structured capabilities with schema validated
// arguments, consistent error handling and metadata for LLM guidance.
package tool

import (
	"fmt"

	"github.com/hupe1980/agentbridge/core"
	"github.com/hupe1980/agentbridge/internal/schema"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tools are collected in a Registry and exposed either to a language model via
// function calling or to remote clients through a tool server. Implementations
// must be safe for concurrent use.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is provided to the LLM to help it decide when to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with decoded arguments.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = schema.ValidationError

// Error codes carried by ToolError.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeValidation       = "VALIDATION_ERROR"
	CodeInvalidArguments = "INVALID_ARGUMENTS"
	CodeExecution        = "EXECUTION_ERROR"
	CodePanic            = "PANIC"
)

// ToolError represents errors that occur during tool lookup or execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details

	// Err is the underlying cause, if any.
	Err error `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// executionError wraps a plain error returned by a tool implementation.
func executionError(tool string, err error) *ToolError {
	return &ToolError{Tool: tool, Message: err.Error(), Code: CodeExecution, Err: err}
}
