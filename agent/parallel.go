package agent

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/observability"
)

// ChildFailure records one failed child of a composite.
type ChildFailure struct {
	Agent string
	Err   error
}

// ParallelError reports every child that failed in a ParallelAgent run.
// Siblings that succeeded are kept in Outputs.
type ParallelError struct {
	Agent    string
	Failures []ChildFailure
	Outputs  map[string]string
}

func (e *ParallelError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Agent, f.Err)
	}
	return fmt.Sprintf("parallel agent %s: %d child(ren) failed: %s", e.Agent, len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap returns every child error.
func (e *ParallelError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// ParallelAgentOptions configures a ParallelAgent.
type ParallelAgentOptions struct {
	Description    string
	MaxConcurrency int // <= 0: every child at once
	Metrics        *observability.Metrics
}

// ParallelAgent runs its children concurrently with the same input.
//
// Every child gets its own ad-hoc session; no mutable state is shared. The
// agent waits for all children, success or failure, before deciding the
// outcome, and a failing child never cancels its siblings. Outputs are
// reassembled in declaration order as "[child]\n<text>" blocks separated by
// a blank line.
type ParallelAgent struct {
	BaseAgent
	children       []core.Agent
	maxConcurrency int
	metrics        *observability.Metrics
}

// NewParallelAgent creates a parallel composite over children.
func NewParallelAgent(name string, children []core.Agent, optFns ...func(o *ParallelAgentOptions)) (*ParallelAgent, error) {
	opts := ParallelAgentOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := checkChildren(name, children); err != nil {
		return nil, err
	}

	return &ParallelAgent{
		BaseAgent:      NewBaseAgent(name, opts.Description, children...),
		children:       children,
		maxConcurrency: opts.MaxConcurrency,
		metrics:        opts.Metrics,
	}, nil
}

// Type implements core.Typed.
func (p *ParallelAgent) Type() string { return "parallel" }

// Run implements core.Agent.
func (p *ParallelAgent) Run(rc *core.RunContext) error {
	start := time.Now()
	input := rc.Input()

	rc.LogDebug("agent.parallel.start", "agent", p.Name(), "children", len(p.children))

	results := make([]core.NestedResult, len(p.children))
	errs := make([]error, len(p.children))

	var g errgroup.Group
	if p.maxConcurrency > 0 {
		g.SetLimit(p.maxConcurrency)
	}
	for i, child := range p.children {
		g.Go(func() error {
			results[i], errs[i] = core.RunNested(rc, child, input)
			return nil
		})
	}
	_ = g.Wait()

	var (
		failures []ChildFailure
		blocks   = make([]string, 0, len(p.children))
		outputs  = make(map[string]string, len(p.children))
	)
	for i, child := range p.children {
		if errs[i] != nil {
			failures = append(failures, ChildFailure{Agent: child.Name(), Err: errs[i]})
			continue
		}
		outputs[child.Name()] = results[i].Output
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", child.Name(), results[i].Output))
	}

	if len(failures) > 0 {
		p.metrics.ObserveAgentRun(p.Name(), observability.OutcomeError, time.Since(start))
		rc.LogError("agent.parallel.failed", "agent", p.Name(), "failed", len(failures), "children", len(p.children))
		return &ParallelError{Agent: p.Name(), Failures: failures, Outputs: outputs}
	}

	p.metrics.ObserveAgentRun(p.Name(), observability.OutcomeSuccess, time.Since(start))
	rc.LogDebug("agent.parallel.complete", "agent", p.Name(), "duration_ms", time.Since(start).Milliseconds())

	return rc.Emit(finalEvent(rc, p.Name(), strings.Join(blocks, "\n\n")))
}

func finalEvent(rc *core.RunContext, author, text string) core.Event {
	ev := core.NewEvent(rc.RunID, author)
	content := core.NewTextContent("assistant", text)
	ev.Content = &content
	complete := true
	ev.TurnComplete = &complete
	return ev
}

func checkChildren(name string, children []core.Agent) error {
	if name == "" {
		return fmt.Errorf("agent name is required")
	}
	if len(children) == 0 {
		return fmt.Errorf("agent %s: at least one child is required", name)
	}
	seen := make(map[string]bool, len(children))
	for _, c := range children {
		if c.Name() == name {
			return &CycleError{Path: []string{name, name}}
		}
		if seen[c.Name()] {
			return fmt.Errorf("agent %s: duplicate child %s", name, c.Name())
		}
		seen[c.Name()] = true
	}
	return nil
}

var _ core.Agent = (*ParallelAgent)(nil)
