package flow

import (
	"fmt"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/model"
)

// LLMFlow is the single-agent flow: request -> model -> (tool loop) -> final
// answer, with pluggable request processors.
type LLMFlow struct {
	agent             FlowAgent
	requestProcessors []RequestProcessor
	executor          FunctionExecutor
}

// NewLLMFlow creates the default flow for agent with the instructions,
// contents and tools processors and a sequential function executor.
func NewLLMFlow(agent FlowAgent, executor FunctionExecutor) *LLMFlow {
	if executor == nil {
		executor = NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 1})
	}
	return &LLMFlow{
		agent: agent,
		requestProcessors: []RequestProcessor{
			NewInstructionsProcessor(),
			NewContentsProcessor(),
			NewToolsProcessor(),
		},
		executor: executor,
	}
}

// AddRequestProcessor appends a request processor; registration order is
// execution order.
func (f *LLMFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// Run executes the tool loop. Every non-partial model response and every
// tool response is emitted as an event; the final text answer is the last
// event.
func (f *LLMFlow) Run(runCtx *core.RunContext) error {
	name := f.agent.Name()

	req := model.Request{Stream: f.agent.IsStreamingEnabled()}
	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, &req, f.agent); err != nil {
			return fmt.Errorf("agent %s: request processor %s failed: %w", name, processor.Name(), err)
		}
	}

	limiter := core.NewRoundLimiter(f.agent.MaxToolRounds())
	caller := f.agent.Caller()

	onPartial := func(resp model.Response) error {
		ev := core.NewEvent(runCtx.RunID, name)
		content := resp.Content
		ev.Content = &content
		partial := true
		ev.Partial = &partial
		return runCtx.Emit(ev)
	}

	for {
		resp, err := caller.Call(runCtx.Context, req, onPartial)
		if err != nil {
			return fmt.Errorf("agent %s: %w", name, err)
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			ev := core.NewEvent(runCtx.RunID, name)
			content := core.NewTextContent("assistant", resp.Content.Text())
			ev.Content = &content
			complete := true
			ev.TurnComplete = &complete
			return runCtx.Emit(ev)
		}

		if err := limiter.Increment(); err != nil {
			runCtx.LogError("agent.tool_rounds.exceeded", "agent", name, "max", f.agent.MaxToolRounds())
			return fmt.Errorf("agent %s: %w: %w", name, ErrMaxToolRounds, err)
		}

		callContent := withCallIDs(resp.Content)
		callEv := core.NewEvent(runCtx.RunID, name)
		callEv.Content = &callContent
		if err := runCtx.Emit(callEv); err != nil {
			return err
		}

		responses, err := f.executor.Execute(runCtx, name, f.agent.Registry(), callEv.GetFunctionCalls())
		if err != nil {
			return fmt.Errorf("agent %s: %w", name, err)
		}

		toolContent := core.Content{Role: "tool"}
		for _, ev := range responses {
			if err := runCtx.Emit(ev); err != nil {
				return err
			}
			toolContent.Parts = append(toolContent.Parts, ev.Content.Parts...)
		}

		req.Contents = append(req.Contents, callContent, toolContent)
	}
}

// withCallIDs returns a copy of c where every function call has an id.
func withCallIDs(c core.Content) core.Content {
	parts := make([]core.Part, len(c.Parts))
	for i, p := range c.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok && fc.FunctionCall.ID == "" {
			fc.FunctionCall.ID = "call_" + core.NewID()
			p = fc
		}
		parts[i] = p
	}
	return core.Content{Role: "assistant", Parts: parts}
}

var _ Flow = (*LLMFlow)(nil)
