// Package bridge exposes the blocking entry point of the runtime.
//
// RunSync returns the final text of an agent run, or one error, whether or
// not the caller is itself running inside a scheduler loop. Every run
// belongs to a Loop. A caller without a loop in its context (NoActiveLoop)
// starts a fresh top-level loop and drives it to completion. A caller that
// already runs as a task of a loop (LoopRunningElsewhere, for example a
// tool invoked by an agent that itself was started through the bridge)
// submits a nested task to that loop and blocks until it resolves; it never
// starts a second top-level loop and never re-enters the loop's driver.
package bridge
