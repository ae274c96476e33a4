// Package studymesh is the high-level façade of the productivity planner
// runtime. Most applications:
//  1. create a StudyMesh with New (or NewFromConfig for the full planner
//     roster wired to configured backends),
//  2. register agents or a whole agent graph,
//  3. run agents by name, either streaming (Invoke) or blocking (RunSync).
//
// RunSync goes through the sync bridge and may be called from inside a
// running agent or tool; Invoke starts a run on the runner directly.
package studymesh

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/studymesh/agent"
	"github.com/hupe1980/studymesh/bridge"
	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/logging"
	"github.com/hupe1980/studymesh/memory"
	"github.com/hupe1980/studymesh/observability"
	"github.com/hupe1980/studymesh/runner"
	"github.com/hupe1980/studymesh/session"
)

// ErrAgentNotFound is returned when no agent is registered under a name.
var ErrAgentNotFound = errors.New("agent not found")

// Options configures a StudyMesh.
type Options struct {
	// AppName names the session namespace (default "productivity_planner").
	AppName string
	// SessionStore defaults to an in-memory store.
	SessionStore core.SessionStore
	// MemoryStore holds long-term user patterns (default in-memory).
	MemoryStore core.MemoryStore
	// Profile seeds session state before every run.
	Profile runner.ProfileFunc
	// EventBufferSize sets the runner's event channel capacity.
	EventBufferSize int
	// BridgeTimeout bounds RunSync (0: only ctx bounds it).
	BridgeTimeout time.Duration

	Logger  logging.Logger
	Metrics *observability.Metrics
}

// StudyMesh aggregates the agent registry, the runner and the sync bridge.
type StudyMesh struct {
	opts   Options
	runner *runner.Runner
	bridge *bridge.Bridge

	mu     sync.RWMutex
	agents map[string]core.Agent
}

// New creates a StudyMesh. Unset stores use in-memory implementations.
func New(optFns ...func(o *Options)) *StudyMesh {
	opts := Options{
		AppName:         session.DefaultAppName,
		MemoryStore:     memory.NewInMemoryStore(),
		EventBufferSize: 100,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore(func(o *session.Options) {
			o.AppName = opts.AppName
			o.Logger = opts.Logger
		})
	}

	r := runner.New(func(o *runner.Options) {
		o.SessionStore = opts.SessionStore
		o.Profile = opts.Profile
		o.EventBufferSize = opts.EventBufferSize
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	b := bridge.New(r, func(o *bridge.Options) {
		o.Timeout = opts.BridgeTimeout
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	return &StudyMesh{
		opts:   opts,
		runner: r,
		bridge: b,
		agents: make(map[string]core.Agent),
	}
}

// Register adds a to the registry. The agent's graph must be acyclic and
// its name unused.
func (m *StudyMesh) Register(a core.Agent) error {
	if a == nil || a.Name() == "" {
		return errors.New("agent with a name is required")
	}
	if err := agent.DetectCycle(a); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.agents[a.Name()]; ok && existing != a {
		return fmt.Errorf("agent %s is already registered", a.Name())
	}
	m.agents[a.Name()] = a

	m.opts.Logger.Debug("studymesh.agent.registered", "agent", a.Name(), "type", core.InfoOf(a).Type)
	return nil
}

// RegisterGraph registers every agent of g.
func (m *StudyMesh) RegisterGraph(g *agent.Graph) error {
	for _, name := range g.Names() {
		a, _ := g.Agent(name)
		if err := m.Register(a); err != nil {
			return err
		}
	}
	return nil
}

// Agent returns the agent registered under name.
func (m *StudyMesh) Agent(name string) (core.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return a, nil
}

// AgentSummary describes a registered agent.
type AgentSummary struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	SubAgents   []string `json:"sub_agents,omitempty"`
}

// Agents lists the registered agents sorted by name.
func (m *StudyMesh) Agents() []AgentSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]AgentSummary, 0, len(m.agents))
	for _, a := range m.agents {
		s := AgentSummary{Name: a.Name(), Type: core.InfoOf(a).Type, Description: a.Description()}
		for _, sub := range a.SubAgents() {
			s.SubAgents = append(s.SubAgents, sub.Name())
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke starts agentName for userID and returns the session id with the
// event and terminal error channels.
func (m *StudyMesh) Invoke(ctx context.Context, agentName, userID, message string) (string, <-chan core.Event, <-chan error, error) {
	a, err := m.Agent(agentName)
	if err != nil {
		return "", nil, nil, err
	}
	return m.runner.Run(ctx, a, userID, message)
}

// RunSync runs agentName for userID and returns the final text.
func (m *StudyMesh) RunSync(ctx context.Context, agentName, userID, message string) (string, error) {
	a, err := m.Agent(agentName)
	if err != nil {
		return "", err
	}
	return m.bridge.RunSync(ctx, a, userID, message)
}

// Runner returns the underlying runner.
func (m *StudyMesh) Runner() *runner.Runner { return m.runner }

// Bridge returns the sync bridge.
func (m *StudyMesh) Bridge() *bridge.Bridge { return m.bridge }

// SessionStore returns the session store.
func (m *StudyMesh) SessionStore() core.SessionStore { return m.opts.SessionStore }

// MemoryStore returns the long-term memory store.
func (m *StudyMesh) MemoryStore() core.MemoryStore { return m.opts.MemoryStore }

// Metrics returns the metrics recorder, which may be nil.
func (m *StudyMesh) Metrics() *observability.Metrics { return m.opts.Metrics }

// Logger returns the logger.
func (m *StudyMesh) Logger() logging.Logger { return m.opts.Logger }
