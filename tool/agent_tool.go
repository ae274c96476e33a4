package tool

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/studymesh/core"
)

// AgentTool exposes an agent as a tool. The model passes a single "request"
// string; the agent runs nested under the caller's run on an ad-hoc session
// and its final answer becomes the tool result.
type AgentTool struct {
	agent core.Agent
}

// NewAgentTool wraps agent. The tool name is the agent name.
func NewAgentTool(agent core.Agent) *AgentTool {
	return &AgentTool{agent: agent}
}

// Agent returns the wrapped agent.
func (t *AgentTool) Agent() core.Agent { return t.agent }

// Name returns the agent name.
func (t *AgentTool) Name() string { return t.agent.Name() }

// Description returns the agent description.
func (t *AgentTool) Description() string { return t.agent.Description() }

// Parameters declares the single required "request" argument.
func (t *AgentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"request": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": fmt.Sprintf("The request to send to %s.", t.agent.Name()),
			},
		},
		"required": []string{"request"},
	}
}

// Call runs the agent nested under the calling run. Failures are reported as
// NestedAgentError wrapping the agent's error.
func (t *AgentTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	request, _ := args["request"].(string)
	if request == "" {
		return nil, NewInvalidArgumentsError(t.Name(), errors.New("request must be a non-empty string"))
	}

	logger := toolCtx.Logger()
	start := time.Now()
	logger.Debug("tool.agent.start", "tool", t.Name(), "fc_id", toolCtx.FunctionCallID())

	res, err := core.RunNested(toolCtx.RunContext(), t.agent, request)
	if err != nil {
		logger.Error("tool.agent.error", "tool", t.Name(), "branch", res.Branch, "error", err)
		return nil, NewNestedAgentError(t.Name(), err)
	}

	logger.Info("tool.agent.success", "tool", t.Name(), "branch", res.Branch, "duration_ms", time.Since(start).Milliseconds())

	return res.Output, nil
}

var _ Tool = (*AgentTool)(nil)
