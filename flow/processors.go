package flow

import (
	"fmt"

	"github.com/hupe1980/studymesh/core"
	internalutil "github.com/hupe1980/studymesh/internal/util"
	"github.com/hupe1980/studymesh/model"
)

// InstructionsProcessor renders the agent instruction against the session's
// profile facts.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets req.Instructions.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	var state map[string]any
	if runCtx.Session != nil {
		state = runCtx.Session.StateSnapshot()
	}

	req.Instructions, err = internalutil.RenderTemplate(instructions, state)
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	runCtx.LogDebug("agent.instruction.resolved", "agent", agent.Name(), "length", len(req.Instructions))

	return nil
}

// ContentsProcessor adds the bounded conversation history followed by the
// input message.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest sets req.Contents.
func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	history := conversational(runCtx.History)

	if limit := agent.MaxHistoryMessages(); limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	// A truncated window must not start in the middle of a tool exchange.
	for len(history) > 0 && history[0].Role != "user" {
		history = history[1:]
	}

	contents := make([]core.Content, 0, len(history)+1)
	contents = append(contents, history...)
	contents = append(contents, runCtx.UserContent)

	req.Contents = contents

	return nil
}

func conversational(events []core.Event) []core.Content {
	out := make([]core.Content, 0, len(events))
	for _, ev := range events {
		if ev.Content == nil || ev.IsPartial() || ev.ErrorMessage != nil || len(ev.Content.Parts) == 0 {
			continue
		}
		switch ev.Content.Role {
		case "user", "assistant", "tool":
			out = append(out, *ev.Content)
		}
	}
	return out
}

// ToolsProcessor declares the agent's tools.
type ToolsProcessor struct{}

// NewToolsProcessor creates a new tools processor.
func NewToolsProcessor() *ToolsProcessor { return &ToolsProcessor{} }

// Name returns the processor's identifier.
func (p *ToolsProcessor) Name() string { return "tools" }

// ProcessRequest sets req.Tools.
func (p *ToolsProcessor) ProcessRequest(_ *core.RunContext, req *model.Request, agent FlowAgent) error {
	if reg := agent.Registry(); reg != nil && reg.Len() > 0 {
		req.Tools = reg.Definitions()
	}
	return nil
}
