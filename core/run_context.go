package core

import (
	"context"

	"github.com/hupe1980/studymesh/logging"
)

// EmitFunc receives events produced during a run. Implementations must be
// safe for concurrent use because parallel children emit from several
// goroutines.
type EmitFunc func(Event) error

// RunContext carries execution state & helpers for an agent run.
// It encapsulates the per-invocation execution scope passed to an
// Agent's Run method. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (SessionID, UserID, RunID, Agent info)
//   - Input user Content and the prior conversation History
//   - The event emission callback
//   - A Session (the user's session or an ad-hoc sub-session) for state facts
//   - Branch label for hierarchical flows
type RunContext struct {
	Context     context.Context
	SessionID   string
	UserID      string
	RunID       string
	Agent       AgentInfo
	UserContent Content
	History     []Event
	Session     *Session
	Branch      string
	Depth       int

	emit EmitFunc
	*scopedLogger
}

// NewRunContext constructs a RunContext bound to sess. history is the
// conversation prior to userContent.
func NewRunContext(
	ctx context.Context,
	sess *Session,
	runID string,
	agent AgentInfo,
	userContent Content,
	history []Event,
	emit EmitFunc,
	logger logging.Logger,
) *RunContext {
	if sess == nil {
		sess = NewSession("", "", "")
	}
	return &RunContext{
		Context:      ctx,
		SessionID:    sess.ID,
		UserID:       sess.UserID,
		RunID:        runID,
		Agent:        agent,
		UserContent:  userContent,
		History:      history,
		Session:      sess,
		emit:         emit,
		scopedLogger: newScopedLogger(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// Input returns the text of the user content.
func (rc *RunContext) Input() string { return rc.UserContent.Text() }

// Emit stamps the event with the run id and branch and hands it to the
// emission callback.
func (rc *RunContext) Emit(ev Event) error {
	if err := rc.Context.Err(); err != nil {
		return err
	}
	if ev.InvocationID == "" {
		ev.InvocationID = rc.RunID
	}
	if ev.Branch == "" {
		ev.Branch = rc.Branch
	}
	if rc.emit == nil {
		return nil
	}
	return rc.emit(ev)
}

// GetState returns a session state value.
func (rc *RunContext) GetState(k string) (any, bool) {
	return rc.Session.GetState(k)
}

// NewChild derives a context for running child with input as its message.
// The child gets an ad-hoc session (state copied, empty history) so
// concurrently running children never share mutable state.
func (rc *RunContext) NewChild(child Agent, input string, emit EmitFunc) *RunContext {
	branch := BuildBranchPath(rc.branchBase(), child.Name())

	sub := NewSession(rc.Session.AppName, rc.UserID, rc.SessionID+"/"+branch)
	sub.ApplyStateDelta(rc.Session.StateSnapshot())

	return &RunContext{
		Context:      rc.Context,
		SessionID:    sub.ID,
		UserID:       rc.UserID,
		RunID:        rc.RunID,
		Agent:        InfoOf(child),
		UserContent:  NewTextContent("user", input),
		Session:      sub,
		Branch:       branch,
		Depth:        rc.Depth + 1,
		emit:         emit,
		scopedLogger: rc.scopedLogger,
	}
}

func (rc *RunContext) branchBase() string {
	if rc.Branch != "" {
		return rc.Branch
	}
	return rc.Agent.Name
}

// BuildBranchPath composes a hierarchical branch identifier. If parent is
// empty it returns child; otherwise it returns parent + "." + child.
func BuildBranchPath(parent, child string) string {
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}
	return parent + "." + child
}
