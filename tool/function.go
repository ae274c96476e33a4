package tool

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/internal/util"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a tool.
//
// Responsibilities:
//   - Holds the JSON schema of the accepted arguments (validated by the Registry
//     before Call is reached)
//   - Invokes the wrapped function with a *core.ToolContext giving access to
//     identifiers, cancellation and logging
//   - Normalizes failures: a returned *ToolError is forwarded unchanged, any
//     other error becomes a ToolExecutionError (EXECUTION_ERROR)
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	lengthTool := NewFunctionTool(
//	  "validate_post_length",
//	  "Check a post against the platform limit",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "content":  map[string]any{"type": "string"},
//	      "platform": map[string]any{"type": "string"},
//	    },
//	    "required": []string{"content", "platform"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return check(args["content"].(string), args["platform"].(string)), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewTypedTool derives the parameter schema from T and decodes arguments
// into a T before calling fn.
//
// Example:
//
//	type calendarArgs struct {
//	  DaysAhead int `json:"days_ahead,omitempty" jsonschema:"description=Days to look ahead"`
//	}
//
//	calTool := NewTypedTool("fetch_user_calendar", "Read upcoming events",
//	  func(tc *core.ToolContext, in calendarArgs) (any, error) { ... })
func NewTypedTool[T any](
	name, description string,
	fn func(toolCtx *core.ToolContext, in T) (any, error),
) *FunctionTool {
	var zero T
	return NewFunctionTool(name, description, util.SchemaFor(zero), func(tc *core.ToolContext, args map[string]any) (any, error) {
		var in T
		b, err := json.Marshal(args)
		if err != nil {
			return nil, NewInvalidArgumentsError(name, err)
		}
		if err := json.Unmarshal(b, &in); err != nil {
			return nil, NewInvalidArgumentsError(name, err)
		}
		return fn(tc, in)
	})
}

// Name returns the unique tool name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call invokes the underlying function.
//
// Logging Fields:
//
//	tool: tool name
//	fc_id: function call identifier (correlates model request & tool execution)
//	duration_ms: execution time in milliseconds
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "fc_id", toolCtx.FunctionCallID())

	result, err := t.fn(toolCtx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			logger.Error("tool.call.error", "tool", t.name, "code", toolErr.Code, "error", toolErr.Message)
			return nil, err
		}

		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return nil, NewExecutionError(t.name, err)
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

var _ Tool = (*FunctionTool)(nil)
