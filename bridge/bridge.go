package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/logging"
	"github.com/hupe1980/studymesh/observability"
	"github.com/hupe1980/studymesh/runner"
)

// ErrTimeout is returned when the bridge stops waiting for a run. The run
// itself keeps going.
var ErrTimeout = errors.New("bridge timeout")

// Options configures a Bridge.
type Options struct {
	// Timeout bounds how long RunSync waits (0: wait for ctx only).
	Timeout time.Duration
	Logger  logging.Logger
	Metrics *observability.Metrics
}

// Stats is a snapshot of bridge instrumentation.
type Stats struct {
	LoopsStarted   int64 `json:"loops_started"`
	NestedTasks    int64 `json:"nested_tasks"`
	ActiveLoops    int64 `json:"active_loops"`
	MaxActiveLoops int64 `json:"max_active_loops"`
}

// Bridge runs agents synchronously on top of a core.Runner.
type Bridge struct {
	runner  core.Runner
	timeout time.Duration
	logger  logging.Logger
	metrics *observability.Metrics

	loopsStarted   atomic.Int64
	nestedTasks    atomic.Int64
	activeLoops    atomic.Int64
	maxActiveLoops atomic.Int64
}

// New creates a Bridge over r.
func New(r core.Runner, optFns ...func(o *Options)) *Bridge {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Bridge{
		runner:  r,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
}

// RunSync runs agent for userID with message and blocks until the final
// text is available, the bridge timeout elapses or ctx is done. It returns
// either the final text or one error; it never substitutes a fallback
// answer.
//
// The work runs on a context detached from ctx's cancellation: giving up on
// waiting does not retract backend or tool calls already issued.
func (b *Bridge) RunSync(ctx context.Context, agent core.Agent, userID, message string) (string, error) {
	var (
		text string
		done <-chan error
	)

	task := func(taskCtx context.Context) error {
		sessionID, events, errs, err := b.runner.Run(taskCtx, agent, userID, message)
		if err != nil {
			return err
		}
		out, _, err := runner.Collect(taskCtx, events, errs)
		if err != nil {
			return err
		}
		b.logger.Debug("bridge.run.collected", "agent", agent.Name(), "session", sessionID, "length", len(out))
		text = out
		return nil
	}

	detached := context.WithoutCancel(ctx)
	state := Detect(ctx)

	switch state {
	case LoopRunningElsewhere:
		loop, _ := LoopFrom(ctx)
		ch, err := loop.Submit(detached, task)
		if err != nil {
			return "", err
		}
		b.nestedTasks.Add(1)
		b.metrics.IncBridgeNested()
		b.logger.Debug("bridge.task.nested", "loop", loop.ID(), "agent", agent.Name(), "user", userID)
		done = ch

	default:
		loop := NewLoop()
		b.loopStarted()
		b.logger.Debug("bridge.loop.start", "loop", loop.ID(), "agent", agent.Name(), "user", userID)

		ch := make(chan error, 1)
		go func() {
			defer b.activeLoops.Add(-1)
			ch <- loop.Drive(detached, task)
		}()
		done = ch
	}

	var timeout <-chan time.Time
	if b.timeout > 0 {
		timer := time.NewTimer(b.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err := <-done:
		if err != nil {
			return "", err
		}
		return text, nil
	case <-timeout:
		b.logger.Warn("bridge.run.timeout", "agent", agent.Name(), "user", userID, "state", state.String(), "timeout", b.timeout)
		return "", fmt.Errorf("%w after %s", ErrTimeout, b.timeout)
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
}

// Stats returns a snapshot of the bridge counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		LoopsStarted:   b.loopsStarted.Load(),
		NestedTasks:    b.nestedTasks.Load(),
		ActiveLoops:    b.activeLoops.Load(),
		MaxActiveLoops: b.maxActiveLoops.Load(),
	}
}

func (b *Bridge) loopStarted() {
	b.loopsStarted.Add(1)
	b.metrics.IncBridgeLoop()

	active := b.activeLoops.Add(1)
	for {
		peak := b.maxActiveLoops.Load()
		if active <= peak || b.maxActiveLoops.CompareAndSwap(peak, active) {
			return
		}
	}
}
