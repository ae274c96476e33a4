package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/studymesh/core"
)

// ErrReentrancyViolation is returned when a loop would be driven twice or a
// nested run would wait on a session lock its own call chain holds.
var ErrReentrancyViolation = core.ErrReentrancyViolation

// State is the outcome of Detect.
type State int

const (
	// NoActiveLoop means the caller runs outside any loop.
	NoActiveLoop State = iota
	// LoopRunningElsewhere means the caller is a task of a loop that is being driven.
	LoopRunningElsewhere
)

func (s State) String() string {
	switch s {
	case NoActiveLoop:
		return "NoActiveLoop"
	case LoopRunningElsewhere:
		return "LoopRunningElsewhere"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// TaskFunc is a unit of work scheduled on a loop.
type TaskFunc func(ctx context.Context) error

var loopIDs atomic.Uint64

type loopKey struct{}

// Loop tracks the root task of a top-level run and every task nested under
// it. Drive returns only after all of them finished.
type Loop struct {
	id      uint64
	driving atomic.Bool
	pending sync.WaitGroup
	nested  atomic.Int64

	mu       sync.Mutex
	inflight int
	closing  bool // root task returned; only running tasks may submit
}

// NewLoop creates an idle loop.
func NewLoop() *Loop {
	return &Loop{id: loopIDs.Add(1)}
}

// ID returns the process-unique loop id.
func (l *Loop) ID() uint64 { return l.id }

// Driving reports whether Drive is in progress.
func (l *Loop) Driving() bool { return l.driving.Load() }

// Nested returns how many tasks were submitted to the loop.
func (l *Loop) Nested() int64 { return l.nested.Load() }

// Drive runs fn as the loop's root task on the calling goroutine, then
// waits for every nested task. Driving a loop that is already being driven
// fails with ErrReentrancyViolation.
func (l *Loop) Drive(ctx context.Context, fn TaskFunc) error {
	if !l.driving.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: loop %d is already being driven", ErrReentrancyViolation, l.id)
	}
	defer l.driving.Store(false)

	l.mu.Lock()
	l.closing = false
	l.mu.Unlock()

	err := fn(WithLoop(ctx, l))

	l.mu.Lock()
	l.closing = true
	l.mu.Unlock()
	l.pending.Wait()

	return err
}

// Submit schedules fn as a nested task of the loop and returns a channel
// that receives its result. The loop must be driving. Once the root task
// has returned, only a task that is still running may submit more work.
func (l *Loop) Submit(ctx context.Context, fn TaskFunc) (<-chan error, error) {
	l.mu.Lock()
	if !l.Driving() {
		l.mu.Unlock()
		return nil, fmt.Errorf("loop %d is not running", l.id)
	}
	if l.closing && l.inflight == 0 {
		l.mu.Unlock()
		return nil, fmt.Errorf("loop %d is closing", l.id)
	}
	l.inflight++
	l.pending.Add(1)
	l.mu.Unlock()

	l.nested.Add(1)

	done := make(chan error, 1)
	go func() {
		defer l.pending.Done()
		defer func() {
			l.mu.Lock()
			l.inflight--
			l.mu.Unlock()
		}()
		done <- fn(WithLoop(ctx, l))
	}()

	return done, nil
}

// WithLoop returns a context marked as running inside l.
func WithLoop(ctx context.Context, l *Loop) context.Context {
	return context.WithValue(ctx, loopKey{}, l)
}

// LoopFrom returns the loop marked in ctx, if any.
func LoopFrom(ctx context.Context) (*Loop, bool) {
	l, ok := ctx.Value(loopKey{}).(*Loop)
	return l, ok && l != nil
}

// Detect reports whether ctx runs inside a loop that is being driven.
func Detect(ctx context.Context) State {
	if l, ok := LoopFrom(ctx); ok && l.Driving() {
		return LoopRunningElsewhere
	}
	return NoActiveLoop
}
