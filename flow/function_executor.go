package flow

import (
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/tool"
)

// FunctionExecutor executes a batch of function calls and returns exactly one
// function response event per call, in call order. Implementations must:
//   - Respect runCtx.Context cancellation
//   - Never panic
//   - Report ToolExecutionError / NestedAgentError as response events so the
//     model can adapt
//
// The returned error is non-nil only for failures that end the invocation
// (invalid tool arguments, cancellation).
type FunctionExecutor interface {
	Execute(runCtx *core.RunContext, agentName string, registry *tool.Registry, fnCalls []core.FunctionCall) ([]core.Event, error)
}

// FunctionExecutorConfig configures the default executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // <= 1 executes calls one after another
	LogStartEvents bool // log a start line per function
}

type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs a new executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(
	runCtx *core.RunContext,
	agentName string,
	registry *tool.Registry,
	fnCalls []core.FunctionCall,
) ([]core.Event, error) {
	n := len(fnCalls)
	if n == 0 {
		return nil, nil
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 {
		maxPar = 1
	}
	if maxPar > n {
		maxPar = n
	}

	events := make([]core.Event, n)
	errs := make([]error, n)

	batchStart := time.Now()

	if maxPar == 1 {
		for i, fc := range fnCalls {
			if err := runCtx.Err(); err != nil {
				return nil, err
			}
			events[i], errs[i] = e.executeSingle(runCtx, agentName, registry, fc)
		}
	} else {
		var wg sync.WaitGroup
		sem := make(chan struct{}, maxPar)
		for i := range fnCalls {
			wg.Add(1)
			sem <- struct{}{}
			go func(idx int, fc core.FunctionCall) {
				defer wg.Done()
				defer func() { <-sem }()
				events[idx], errs[idx] = e.executeSingle(runCtx, agentName, registry, fc)
			}(i, fnCalls[i])
		}
		wg.Wait()
	}

	runCtx.LogDebug(
		"agent.functions.batch.complete",
		"agent", agentName,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	if err := runCtx.Err(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		// Only the outermost tool error decides; a nested agent's invalid
		// arguments stay inside its NestedAgentError.
		var te *tool.ToolError
		if errors.As(err, &te) && te.Code == tool.CodeInvalidArguments {
			return nil, err
		}
	}

	return events, nil
}

func (e *parallelFunctionExecutor) executeSingle(
	runCtx *core.RunContext,
	agentName string,
	registry *tool.Registry,
	fc core.FunctionCall,
) (core.Event, error) {
	toolCtx := core.NewToolContext(runCtx, fc.ID)
	if e.cfg.LogStartEvents {
		runCtx.LogInfo("agent.function.start", "agent", agentName, "function", fc.Name, "function_call_id", fc.ID)
	}

	start := time.Now()
	result, err := registry.Invoke(toolCtx, fc.Name, fc.Arguments)

	runCtx.LogInfo(
		"agent.function.executed",
		"agent", agentName,
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	return core.NewFunctionResponseEvent(agentName, fc.ID, fc.Name, result, err), err
}
