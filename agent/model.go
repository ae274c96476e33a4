package agent

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/studymesh/backend"
	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/flow"
	"github.com/hupe1980/studymesh/logging"
	"github.com/hupe1980/studymesh/model"
	"github.com/hupe1980/studymesh/observability"
	"github.com/hupe1980/studymesh/tool"
)

// DefaultMaxToolRounds bounds how many model responses per run may request
// tools before the run fails with flow.ErrMaxToolRounds.
const DefaultMaxToolRounds = 10

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Description string
	Instruction Instruction

	// Tools are local capabilities. SubAgents are exposed as agent tools
	// after them, in order.
	Tools     []tool.Tool
	SubAgents []core.Agent

	MaxToolRounds      int
	MaxHistoryMessages int // 0 sends the whole history
	MaxParallelTools   int // <= 1 runs tool calls of one round sequentially
	EnableStreaming    bool

	Retry       backend.RetryPolicy
	RateLimiter *rate.Limiter
	Logger      logging.Logger
	Metrics     *observability.Metrics
}

// ModelAgent is a leaf agent: one language model, an instruction and a tool
// set. Its run is the flow tool loop: call the model, dispatch requested
// tools, feed the results back and stop at the first plain text answer.
//
// The registry is sealed at construction; a ModelAgent holds no per-run
// state and may serve concurrent runs.
type ModelAgent struct {
	BaseAgent
	instruction        Instruction
	caller             *backend.Caller
	registry           *tool.Registry
	maxToolRounds      int
	maxHistoryMessages int
	enableStreaming    bool
	metrics            *observability.Metrics
	flow               flow.Flow
}

// NewModelAgent creates a leaf agent named name backed by m.
//
// Defaults: instruction "You are <name>, a helpful AI assistant.", 10 tool
// rounds, 20 history messages, DefaultRetryPolicy and no streaming.
//
// Example:
//
//	planner, err := agent.NewModelAgent("task_planner", m, func(o *agent.ModelAgentOptions) {
//	  o.Description = "Breaks goals into scheduled tasks"
//	  o.Instruction = agent.NewInstructionFromText("You plan study sessions for {{ .name }}.")
//	  o.Tools = []tool.Tool{datetimeTool, calendarTool}
//	})
func NewModelAgent(name string, m model.Model, optFns ...func(o *ModelAgentOptions)) (*ModelAgent, error) {
	if name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if m == nil {
		return nil, fmt.Errorf("agent %s: model is required", name)
	}

	opts := ModelAgentOptions{
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		MaxToolRounds:      DefaultMaxToolRounds,
		MaxHistoryMessages: 20,
		Retry:              backend.DefaultRetryPolicy(),
		Logger:             logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := opts.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("agent %s: %w", name, err)
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = DefaultMaxToolRounds
	}

	registry := tool.NewRegistry(func(o *tool.RegistryOptions) { o.Metrics = opts.Metrics })
	for _, t := range opts.Tools {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("agent %s: %w", name, err)
		}
	}
	for _, sub := range opts.SubAgents {
		if sub.Name() == name {
			return nil, &CycleError{Path: []string{name, name}}
		}
		if err := registry.Register(tool.NewAgentTool(sub)); err != nil {
			return nil, fmt.Errorf("agent %s: %w", name, err)
		}
	}
	registry.Seal()

	caller := backend.NewCaller(m, func(o *backend.Options) {
		o.Policy = opts.Retry
		o.Limiter = opts.RateLimiter
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	a := &ModelAgent{
		BaseAgent:          NewBaseAgent(name, opts.Description, opts.SubAgents...),
		instruction:        opts.Instruction,
		caller:             caller,
		registry:           registry,
		maxToolRounds:      opts.MaxToolRounds,
		maxHistoryMessages: opts.MaxHistoryMessages,
		enableStreaming:    opts.EnableStreaming,
		metrics:            opts.Metrics,
	}

	a.flow = flow.NewLLMFlow(a, flow.NewParallelFunctionExecutor(flow.FunctionExecutorConfig{
		MaxParallel: opts.MaxParallelTools,
	}))

	return a, nil
}

// Type implements core.Typed.
func (a *ModelAgent) Type() string { return "model" }

// Caller returns the backend caller.
func (a *ModelAgent) Caller() *backend.Caller { return a.caller }

// Model returns the backing model.
func (a *ModelAgent) Model() model.Model { return a.caller.Model() }

// Registry returns the sealed tool registry.
func (a *ModelAgent) Registry() *tool.Registry { return a.registry }

// MaxToolRounds returns the tool round limit per run.
func (a *ModelAgent) MaxToolRounds() int { return a.maxToolRounds }

// MaxHistoryMessages returns the maximum number of history messages sent.
func (a *ModelAgent) MaxHistoryMessages() int { return a.maxHistoryMessages }

// IsStreamingEnabled returns whether streaming responses are enabled.
func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// ResolveInstructions returns the instruction template for this run.
func (a *ModelAgent) ResolveInstructions(rc *core.RunContext) (string, error) {
	return a.instruction.Resolve(rc)
}

// Run implements core.Agent.
func (a *ModelAgent) Run(rc *core.RunContext) error {
	start := time.Now()

	rc.LogDebug("agent.run.start", "agent", a.Name(), "run", rc.RunID, "branch", rc.Branch)

	err := a.flow.Run(rc)

	outcome := observability.OutcomeSuccess
	if err != nil {
		outcome = observability.OutcomeError
		rc.LogError("agent.run.error", "agent", a.Name(), "run", rc.RunID, "error", err)
	} else {
		rc.LogDebug("agent.run.complete", "agent", a.Name(), "duration_ms", time.Since(start).Milliseconds())
	}
	a.metrics.ObserveAgentRun(a.Name(), outcome, time.Since(start))

	return err
}

var (
	_ core.Agent     = (*ModelAgent)(nil)
	_ flow.FlowAgent = (*ModelAgent)(nil)
)
