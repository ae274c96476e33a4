package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/observability"
)

// StageResult is the outcome of one completed SequentialAgent stage.
type StageResult struct {
	Agent    string
	Output   string
	Started  time.Time
	Finished time.Time
}

// SequentialError reports the stage that aborted a SequentialAgent run.
// Stages holds the outputs of every stage that completed before it.
type SequentialError struct {
	Agent  string
	Failed string
	Cause  error
	Stages []StageResult
}

func (e *SequentialError) Error() string {
	return fmt.Sprintf("sequential agent %s: stage %s failed after %d completed stage(s): %v",
		e.Agent, e.Failed, len(e.Stages), e.Cause)
}

func (e *SequentialError) Unwrap() error { return e.Cause }

// SequentialAgentOptions configures a SequentialAgent.
type SequentialAgentOptions struct {
	Description string
	Metrics     *observability.Metrics
}

// SequentialAgent runs its children strictly in declaration order. Stage
// i+1 starts only after stage i produced its final answer and receives the
// original request plus every earlier stage output. The first failure
// aborts the remaining stages. The output is the last stage's output.
type SequentialAgent struct {
	BaseAgent
	children []core.Agent
	metrics  *observability.Metrics
}

// NewSequentialAgent creates a sequential composite over children.
func NewSequentialAgent(name string, children []core.Agent, optFns ...func(o *SequentialAgentOptions)) (*SequentialAgent, error) {
	opts := SequentialAgentOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := checkChildren(name, children); err != nil {
		return nil, err
	}

	return &SequentialAgent{
		BaseAgent: NewBaseAgent(name, opts.Description, children...),
		children:  children,
		metrics:   opts.Metrics,
	}, nil
}

// Type implements core.Typed.
func (s *SequentialAgent) Type() string { return "sequential" }

// Run implements core.Agent.
func (s *SequentialAgent) Run(rc *core.RunContext) error {
	start := time.Now()
	original := rc.Input()
	stages := make([]StageResult, 0, len(s.children))

	for _, child := range s.children {
		if err := rc.Err(); err != nil {
			return &SequentialError{Agent: s.Name(), Failed: child.Name(), Cause: err, Stages: stages}
		}

		stageStart := time.Now()
		res, err := core.RunNested(rc, child, StageInput(original, stages))
		if err != nil {
			s.metrics.ObserveAgentRun(s.Name(), observability.OutcomeError, time.Since(start))
			rc.LogError("agent.sequential.stage_failed", "agent", s.Name(), "stage", child.Name(), "completed", len(stages), "error", err)
			return &SequentialError{Agent: s.Name(), Failed: child.Name(), Cause: err, Stages: stages}
		}

		stages = append(stages, StageResult{
			Agent:    child.Name(),
			Output:   res.Output,
			Started:  stageStart,
			Finished: time.Now(),
		})

		rc.LogDebug("agent.sequential.stage_complete", "agent", s.Name(), "stage", child.Name())
	}

	s.metrics.ObserveAgentRun(s.Name(), observability.OutcomeSuccess, time.Since(start))

	return rc.Emit(finalEvent(rc, s.Name(), stages[len(stages)-1].Output))
}

// StageInput builds the message for the next stage: the original request
// followed by every completed stage output.
func StageInput(original string, stages []StageResult) string {
	if len(stages) == 0 {
		return original
	}

	var b strings.Builder
	b.WriteString(original)
	b.WriteString("\n\nPrevious results:")
	for _, st := range stages {
		fmt.Fprintf(&b, "\n\n[%s]\n%s", st.Agent, st.Output)
	}
	return b.String()
}

var _ core.Agent = (*SequentialAgent)(nil)
