package backend

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/hupe1980/studymesh/logging"
	"github.com/hupe1980/studymesh/model"
	"github.com/hupe1980/studymesh/observability"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// PartialFunc receives streamed partial responses.
type PartialFunc func(model.Response) error

// Options configure a Caller.
type Options struct {
	Policy  RetryPolicy
	Limiter *rate.Limiter // nil: unlimited
	Sleep   SleepFunc
	Logger  logging.Logger
	Metrics *observability.Metrics
}

// Caller issues backend requests through a model with retries.
// It is safe for concurrent use.
type Caller struct {
	model model.Model
	opts  Options
}

// NewCaller creates a Caller for m using DefaultRetryPolicy unless overridden.
func NewCaller(m model.Model, optFns ...func(o *Options)) *Caller {
	opts := Options{
		Policy: DefaultRetryPolicy(),
		Sleep:  sleepContext,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Policy.MaxAttempts < 1 {
		opts.Policy.MaxAttempts = 1
	}
	return &Caller{model: m, opts: opts}
}

// Model returns the wrapped model.
func (c *Caller) Model() model.Model { return c.model }

// Policy returns the effective retry policy.
func (c *Caller) Policy() RetryPolicy { return c.opts.Policy }

// Call sends req and returns the final response. Partial chunks are handed
// to onPartial (may be nil) as they arrive.
//
// Transient failures are retried up to Policy.MaxAttempts total attempts,
// sleeping Policy.Delay(n) after failed attempt n. Exhaustion returns the
// last *TransientBackendError. Every other failure, cancellation included,
// returns a *FatalBackendError without further attempts.
func (c *Caller) Call(ctx context.Context, req model.Request, onPartial PartialFunc) (resp model.Response, err error) {
	name := c.model.Info().Name

	ctx, span := observability.StartSpan(ctx, "backend.call",
		attribute.String("model", name),
		attribute.String("provider", c.model.Info().Provider),
	)
	defer func() { observability.EndSpan(span, err) }()

	for attempt := 1; ; attempt++ {
		if c.opts.Limiter != nil {
			if werr := c.opts.Limiter.Wait(ctx); werr != nil {
				return model.Response{}, &FatalBackendError{Reason: "rate limiter", Err: werr}
			}
		}

		start := time.Now()
		resp, streamed, callErr := c.attempt(ctx, req, onPartial)
		if callErr == nil {
			c.opts.Metrics.ObserveBackendCall(name, observability.OutcomeSuccess, time.Since(start))
			span.SetAttributes(attribute.Int("attempts", attempt))
			return resp, nil
		}

		status := model.StatusCode(callErr)
		transient := status != 0 && c.opts.Policy.Retryable(status) && ctx.Err() == nil

		if !transient {
			c.opts.Metrics.ObserveBackendCall(name, observability.OutcomeFatal, time.Since(start))
			c.opts.Logger.Error("backend.call.fatal", "model", name, "attempt", attempt, "status", status, "error", callErr)
			return model.Response{}, &FatalBackendError{StatusCode: status, Err: callErr}
		}

		c.opts.Metrics.ObserveBackendCall(name, observability.OutcomeTransient, time.Since(start))

		if streamed > 0 {
			c.opts.Logger.Warn("backend.call.partial_failure", "model", name, "attempt", attempt, "status", status, "partials", streamed)
			return model.Response{}, &FatalBackendError{StatusCode: status, Reason: "failed after streaming partial output", Err: callErr}
		}

		if attempt >= c.opts.Policy.MaxAttempts {
			c.opts.Logger.Error("backend.call.exhausted", "model", name, "attempts", attempt, "status", status)
			return model.Response{}, &TransientBackendError{StatusCode: status, Attempts: attempt, Err: callErr}
		}

		delay := c.opts.Policy.Delay(attempt)
		c.opts.Metrics.IncBackendRetry(name)
		c.opts.Logger.Warn("backend.call.retry", "model", name, "attempt", attempt, "status", status, "delay", delay)

		if serr := c.opts.Sleep(ctx, delay); serr != nil {
			return model.Response{}, &FatalBackendError{StatusCode: status, Reason: "cancelled during backoff", Err: serr}
		}
	}
}

func (c *Caller) attempt(ctx context.Context, req model.Request, onPartial PartialFunc) (model.Response, int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	respCh, errCh := c.model.Generate(ctx, req)

	var (
		final    *model.Response
		streamed int
	)
	for r := range respCh {
		if r.Partial {
			streamed++
			if onPartial != nil {
				if err := onPartial(r); err != nil {
					go drain(respCh)
					return model.Response{}, streamed, err
				}
			}
			continue
		}
		final = &r
	}

	if err := <-errCh; err != nil {
		return model.Response{}, streamed, err
	}
	if final == nil {
		return model.Response{}, streamed, errors.New("backend returned no final response")
	}
	return *final, streamed, nil
}

func drain(ch <-chan model.Response) {
	for range ch {
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
