package tool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/internal/util"
	"github.com/hupe1980/studymesh/model"
	"github.com/hupe1980/studymesh/observability"
)

// RegistryOptions configure a Registry.
type RegistryOptions struct {
	Metrics *observability.Metrics
}

type entry struct {
	tool   Tool
	schema *util.Schema
}

// Registry maps tool names to tools and dispatches invocations. Registration
// happens during construction; once sealed the registry is read-only and
// safe for concurrent Invoke calls.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]entry
	order  []string
	sealed bool
	opts   RegistryOptions
}

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{tools: map[string]entry{}, opts: opts}
}

// Register adds t. Names must be unique; the parameter schema must compile.
func (r *Registry) Register(t Tool) error {
	if t == nil || t.Name() == "" {
		return errors.New("tool must have a name")
	}

	schema, err := util.CompileSchema(t.Name(), t.Parameters())
	if err != nil {
		return fmt.Errorf("register tool %q: %w", t.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register tool %q: %w", t.Name(), ErrRegistrySealed)
	}
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q already registered", t.Name())
	}

	r.tools[t.Name()] = entry{tool: t, schema: schema}
	r.order = append(r.order, t.Name())

	return nil
}

// Seal freezes the registry.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Resolve returns the tool registered under name.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return e.tool, nil
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.tools[n].tool)
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Definitions returns the tool manifest sent to the model.
func (r *Registry) Definitions() []model.ToolDefinition {
	tools := r.Tools()
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// Invoke decodes rawArgs, validates them against the tool schema and calls
// the tool.
//
// Error Semantics:
//
//	unknown name                 -> *ToolError{Code: EXECUTION_ERROR} wrapping ErrToolNotFound
//	undecodable / invalid args   -> *ToolError{Code: INVALID_ARGUMENTS}; the tool is not called
//	tool panic or plain error    -> *ToolError{Code: EXECUTION_ERROR}
//	*ToolError from the tool     -> forwarded unchanged (e.g. NESTED_AGENT_ERROR)
func (r *Registry) Invoke(toolCtx *core.ToolContext, name, rawArgs string) (result any, err error) {
	start := time.Now()

	_, span := observability.StartSpan(toolCtx.Context(), "tool.invoke", attribute.String("tool", name))
	defer func() {
		outcome := observability.OutcomeSuccess
		if err != nil {
			outcome = observability.OutcomeError
		}
		r.opts.Metrics.ObserveToolCall(name, outcome, time.Since(start))
		observability.EndSpan(span, err)
	}()

	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, NewExecutionError(name, fmt.Errorf("%w: %s", ErrToolNotFound, name))
	}

	args, err := util.DecodeArgs(rawArgs)
	if err != nil {
		return nil, NewInvalidArgumentsError(name, err)
	}
	if err := e.schema.Validate(args); err != nil {
		toolCtx.Logger().Warn("tool.call.validation_failed", "tool", name, "error", err.Error())
		return nil, NewInvalidArgumentsError(name, err)
	}

	return call(toolCtx, e.tool, args)
}

func call(toolCtx *core.ToolContext, t Tool, args map[string]any) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			toolCtx.Logger().Error("tool.call.panic", "tool", t.Name(), "panic", p)
			result = nil
			err = NewExecutionError(t.Name(), fmt.Errorf("panic: %v", p))
		}
	}()

	result, err = t.Call(toolCtx, args)
	if err == nil {
		return result, nil
	}

	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return nil, err
	}
	return nil, NewExecutionError(t.Name(), err)
}
