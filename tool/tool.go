// Package tool implements the tool dispatch subsystem that lets agents invoke
// named capabilities (local functions or nested agents) with schema validated
// arguments and a uniform error taxonomy.
package tool

import (
	"errors"
	"fmt"

	"github.com/hupe1980/studymesh/core"
)

// Tool defines a named capability a model agent may call.
//
// Tools are stateless: one instance may serve many concurrent invocations
// from different parents. Implementations should:
//   - Provide clear, descriptive snake_case names
//   - Describe when to use the tool so the model can choose it
//   - Declare a JSON schema for their parameters
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns the text shown to the model.
	Description() string

	// Parameters returns a JSON schema describing the expected input object.
	Parameters() map[string]any

	// Call executes the tool with already validated arguments.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// Error codes carried by ToolError.
const (
	CodeInvalidArguments = "INVALID_ARGUMENTS"
	CodeExecutionError   = "EXECUTION_ERROR"
	CodeNestedAgentError = "NESTED_AGENT_ERROR"
)

var (
	// ErrInvalidArguments matches argument validation failures.
	ErrInvalidArguments = errors.New("invalid tool arguments")
	// ErrToolExecution matches failures raised by local functions.
	ErrToolExecution = errors.New("tool execution error")
	// ErrNestedAgent matches failures of agents invoked as tools.
	ErrNestedAgent = errors.New("nested agent error")
	// ErrToolNotFound is returned for unknown tool names.
	ErrToolNotFound = errors.New("tool not found")
	// ErrRegistrySealed is returned when registering into a sealed registry.
	ErrRegistrySealed = errors.New("tool registry is sealed")
)

// ToolError represents errors that occur during tool dispatch.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
	Err     error  `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ToolError) Unwrap() error { return e.Err }

// Is matches the sentinel that corresponds to Code.
func (e *ToolError) Is(target error) bool {
	switch target {
	case ErrInvalidArguments:
		return e.Code == CodeInvalidArguments
	case ErrToolExecution:
		return e.Code == CodeExecutionError
	case ErrNestedAgent:
		return e.Code == CodeNestedAgentError
	}
	return false
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// NewInvalidArgumentsError reports arguments that violate the declared schema.
func NewInvalidArgumentsError(tool string, err error) *ToolError {
	return &ToolError{Tool: tool, Message: err.Error(), Code: CodeInvalidArguments, Err: err}
}

// NewExecutionError reports a failing local function.
func NewExecutionError(tool string, err error) *ToolError {
	return &ToolError{Tool: tool, Message: err.Error(), Code: CodeExecutionError, Err: err}
}

// NewNestedAgentError reports a failing nested agent.
func NewNestedAgentError(tool string, err error) *ToolError {
	return &ToolError{Tool: tool, Message: err.Error(), Code: CodeNestedAgentError, Err: err}
}
