package agent

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/studymesh/core"
)

// scriptedAgent answers after delay with reply(input) and records timing.
type scriptedAgent struct {
	BaseAgent
	delay time.Duration
	reply func(input string) (string, error)

	mu       sync.Mutex
	inputs   []string
	started  time.Time
	finished time.Time
}

func newScripted(name string, delay time.Duration, reply func(string) (string, error)) *scriptedAgent {
	if reply == nil {
		reply = func(string) (string, error) { return name + " done", nil }
	}
	return &scriptedAgent{BaseAgent: NewBaseAgent(name, ""), delay: delay, reply: reply}
}

func (a *scriptedAgent) Run(rc *core.RunContext) error {
	a.mu.Lock()
	a.started = time.Now()
	a.inputs = append(a.inputs, rc.Input())
	a.mu.Unlock()

	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-rc.Done():
			return rc.Err()
		}
	}

	out, err := a.reply(rc.Input())

	a.mu.Lock()
	a.finished = time.Now()
	a.mu.Unlock()

	if err != nil {
		return err
	}
	return rc.Emit(finalEvent(rc, a.Name(), out))
}

func (a *scriptedAgent) window() (time.Time, time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started, a.finished
}

func (a *scriptedAgent) lastInput() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.inputs) == 0 {
		return ""
	}
	return a.inputs[len(a.inputs)-1]
}

type collector struct {
	mu     sync.Mutex
	events []core.Event
}

func (c *collector) emit(ev core.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *collector) all() []core.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Event(nil), c.events...)
}

func newRunContext(root core.Agent, input string, c *collector) *core.RunContext {
	sess := core.NewSession("productivity_planner", "u1", "session_12345678")
	sess.SetState("name", "Ada")
	return core.NewRunContext(context.Background(), sess, "run-1", core.InfoOf(root),
		core.NewTextContent("user", input), nil, c.emit, nil)
}

type sessionRecorder struct {
	mu  sync.Mutex
	ids map[string]string
}

func (r *sessionRecorder) get(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ids[name]
}

// sessionProbe records the session id it runs on.
type sessionProbe struct {
	BaseAgent
	seen *sessionRecorder
}

func (p *sessionProbe) Run(rc *core.RunContext) error {
	p.seen.mu.Lock()
	p.seen.ids[p.Name()] = rc.SessionID
	p.seen.mu.Unlock()
	rc.Session.SetState("touched_by", p.Name())
	return rc.Emit(finalEvent(rc, p.Name(), "ok"))
}
