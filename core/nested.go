package core

import "sync"

// NestedResult is the outcome of running a child agent under a parent.
type NestedResult struct {
	Agent  string
	Branch string
	Output string
	Events []Event
}

// RunNested executes child inside parent with input as its message and
// returns the child's final answer. The child runs on an isolated ad-hoc
// session. Partial events are forwarded to the parent tagged with the
// child's branch; the child's other events are captured, never re-emitted as
// final events of the parent.
func RunNested(parent *RunContext, child Agent, input string) (NestedResult, error) {
	var (
		mu       sync.Mutex
		captured []Event
	)

	childCtx := parent.NewChild(child, input, nil)
	childCtx.emit = func(ev Event) error {
		if ev.IsPartial() {
			return parent.Emit(ev)
		}
		childCtx.Session.AddEvent(ev)
		mu.Lock()
		captured = append(captured, ev)
		mu.Unlock()
		return nil
	}

	err := child.Run(childCtx)

	mu.Lock()
	defer mu.Unlock()

	return NestedResult{
		Agent:  child.Name(),
		Branch: childCtx.Branch,
		Output: FinalText(captured),
		Events: captured,
	}, err
}
