package runner

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/logging"
	"github.com/hupe1980/studymesh/observability"
	"github.com/hupe1980/studymesh/session"
)

// ProfileFunc returns profile facts for userID. They are merged into the
// session state before every run and rendered into agent instructions.
type ProfileFunc func(ctx context.Context, userID string) (map[string]any, error)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// SessionStore holds one active session per user.
	SessionStore core.SessionStore
	// Profile optionally seeds session state.
	Profile ProfileFunc
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	Logger          logging.Logger
	Metrics         *observability.Metrics
}

// Runner executes agents on per-user sessions. Public methods are safe for
// concurrent use.
type Runner struct {
	store           core.SessionStore
	profile         ProfileFunc
	eventBufferSize int
	logger          logging.Logger
	metrics         *observability.Metrics

	active atomic.Int64
}

// New constructs a Runner with optional overrides.
func New(optFns ...func(o *Options)) *Runner {
	opts := Options{
		EventBufferSize: 100,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore(func(o *session.Options) { o.Logger = opts.Logger })
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Runner{
		store:           opts.SessionStore,
		profile:         opts.Profile,
		eventBufferSize: opts.EventBufferSize,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
	}
}

// SessionStore returns the store runs are bound to.
func (r *Runner) SessionStore() core.SessionStore { return r.store }

// Active returns the number of runs currently executing.
func (r *Runner) Active() int { return int(r.active.Load()) }

// Run implements core.Runner. The returned session id is resolved before
// Run returns; the agent itself starts once the user's lock is acquired.
func (r *Runner) Run(ctx context.Context, agent core.Agent, userID, message string) (string, <-chan core.Event, <-chan error, error) {
	if agent == nil {
		return "", nil, nil, fmt.Errorf("agent is required")
	}
	if core.HoldsUser(ctx, userID) {
		return "", nil, nil, fmt.Errorf("%w: run for user %s started while its session is in use by the caller", core.ErrReentrancyViolation, userID)
	}

	sessionID, err := r.store.GetOrCreate(ctx, userID)
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to resolve session: %w", err)
	}

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)

	go func() {
		defer close(errorsCh)
		defer close(eventsCh)

		if err := r.execute(ctx, agent, userID, sessionID, message, eventsCh); err != nil {
			errorsCh <- err
		}
	}()

	return sessionID, eventsCh, errorsCh, nil
}

func (r *Runner) execute(ctx context.Context, agent core.Agent, userID, sessionID, message string, out chan<- core.Event) (err error) {
	unlock, err := r.store.Lock(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to acquire session lock: %w", err)
	}
	defer unlock()

	r.active.Add(1)
	r.metrics.RunStarted()
	defer func() {
		r.active.Add(-1)
		outcome := observability.OutcomeSuccess
		if err != nil {
			outcome = observability.OutcomeError
		}
		r.metrics.RunFinished(outcome)
	}()

	start := time.Now()
	runID := core.NewID()

	ctx, span := observability.StartSpan(ctx, "runner.run",
		attribute.String("agent", agent.Name()),
		attribute.String("session", sessionID),
		attribute.String("run", runID),
	)
	defer func() { observability.EndSpan(span, err) }()

	ctx = core.WithHeldUser(ctx, userID)

	if r.profile != nil {
		facts, perr := r.profile(ctx, userID)
		if perr != nil {
			r.logger.Warn("runner.profile.error", "user", userID, "error", perr)
		} else if len(facts) > 0 {
			if err := r.store.ApplyDelta(ctx, sessionID, facts); err != nil {
				return fmt.Errorf("failed to apply profile: %w", err)
			}
		}
	}

	sess, err := r.store.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	history, err := r.store.History(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if err := r.store.Append(ctx, sessionID, core.NewUserMessageEvent(runID, message)); err != nil {
		return fmt.Errorf("failed to append user event: %w", err)
	}

	emit := func(ev core.Event) error {
		if !ev.IsPartial() {
			if err := r.store.Append(ctx, sessionID, ev); err != nil {
				return fmt.Errorf("failed to append event to session: %w", err)
			}
		}
		select {
		case out <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	runCtx := core.NewRunContext(ctx, sess, runID, core.InfoOf(agent),
		core.NewTextContent("user", message), history, emit, r.logger)

	r.logger.Info("runner.run.start", "agent", agent.Name(), "user", userID, "session", sessionID, "run", runID)

	if err := agent.Run(runCtx); err != nil {
		r.logger.Error("runner.run.error", "agent", agent.Name(), "session", sessionID, "run", runID, "error", err)
		return fmt.Errorf("agent %s failed: %w", agent.Name(), err)
	}

	r.logger.Info("runner.run.complete", "agent", agent.Name(), "session", sessionID, "run", runID,
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}

// Collect drains a run's channels and returns the final answer: the text
// of every final event with content, concatenated.
func Collect(ctx context.Context, events <-chan core.Event, errs <-chan error) (string, []core.Event, error) {
	var collected []core.Event
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if err := <-errs; err != nil {
					return "", collected, err
				}
				return core.FinalText(collected), collected, nil
			}
			collected = append(collected, ev)
		case <-ctx.Done():
			return "", collected, ctx.Err()
		}
	}
}

var _ core.Runner = (*Runner)(nil)
