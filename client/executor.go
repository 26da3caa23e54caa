package client

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultMaxRetries       = 1
	defaultAttemptTimeout   = 8 * time.Second
	defaultRateLimitBackoff = time.Second
	defaultRetryDelay       = 500 * time.Millisecond
)

// Operation is a single network call against the client of one endpoint.
type Operation[T any] func(ctx context.Context, c Client) (T, error)

// Executor runs operations against a Pool, retrying on the current endpoint
// and failing over to the next ones when an endpoint keeps failing.
type Executor struct {
	pool *Pool

	maxRetries       int
	attemptTimeout   time.Duration
	rateLimitBackoff time.Duration
	retryDelay       time.Duration

	sleep   func(context.Context, time.Duration) error
	logger  zerolog.Logger
	metrics *Metrics
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMaxRetries sets how many times a failed attempt is repeated on the same
// endpoint before moving on.
func WithMaxRetries(n int) ExecutorOption {
	return func(e *Executor) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// WithAttemptTimeout bounds every single attempt.
func WithAttemptTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.attemptTimeout = d
		}
	}
}

// WithBackoff sets the base of the rate-limit backoff and the fixed pause
// after other transient failures.
func WithBackoff(rateLimitBase, retryDelay time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.rateLimitBackoff = rateLimitBase
		e.retryDelay = retryDelay
	}
}

// WithSleep replaces the function used to wait between attempts.
func WithSleep(sleep func(context.Context, time.Duration) error) ExecutorOption {
	return func(e *Executor) {
		e.sleep = sleep
	}
}

// WithLogger sets the executor logger.
func WithLogger(logger zerolog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithMetrics sets the executor metrics.
func WithMetrics(m *Metrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = m
	}
}

// NewExecutor returns an executor over pool
func NewExecutor(pool *Pool, opts ...ExecutorOption) *Executor {
	e := &Executor{
		pool:             pool,
		maxRetries:       defaultMaxRetries,
		attemptTimeout:   defaultAttemptTimeout,
		rateLimitBackoff: defaultRateLimitBackoff,
		retryDelay:       defaultRetryDelay,
		sleep:            sleepContext,
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Pool returns the endpoint pool used by the executor.
func (e *Executor) Pool() *Pool {
	return e.pool
}

// Metrics returns the metrics recorded by the executor, possibly nil.
func (e *Executor) Metrics() *Metrics {
	return e.metrics
}

// Execute runs op until it succeeds. Each endpoint gets maxRetries+1
// attempts, starting with the current one; fatal failures skip straight to
// the next endpoint. When every endpoint has failed the cursor is restored to
// where it was when Execute was called and an *ExhaustedError wrapping the
// last failure is returned. Contract reverts, rejected requests and
// cancellation of ctx end the call immediately.
func Execute[T any](ctx context.Context, e *Executor, op Operation[T]) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	start, c, err := e.pool.Current(ctx)
	index := start
	attempts := 0
	lastErr := err

	for hop := 0; hop < e.pool.Len(); hop++ {
		if hop > 0 {
			e.logger.Debug().Int("index", index).Msg("all attempts failed on rpc endpoint, trying next one")
			index, c, err = e.pool.Rotate(ctx, index)
			e.metrics.rotation()
		}
		if err != nil {
			attempts++
			lastErr = err
			e.metrics.attempt(index, ClassFatal.String())
			e.logger.Warn().Err(err).Int("index", index).Msg("rpc endpoint unavailable")
			continue
		}

		res, n, err := executeOn(ctx, e, index, c, op)
		e.pool.Release(c)
		attempts += n
		if err == nil {
			return res, nil
		}

		var stop *stopError
		if errors.As(err, &stop) {
			e.pool.Restore(start)
			return zero, stop.err
		}
		lastErr = err
	}

	e.pool.Restore(start)
	e.metrics.exhaustion()
	return zero, &ExhaustedError{
		Endpoints: e.pool.Len(),
		Attempts:  attempts,
		Err:       lastErr,
	}
}

// Do is Execute for operations without a result.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context, c Client) error) error {
	_, err := Execute(ctx, e, func(ctx context.Context, c Client) (struct{}, error) {
		return struct{}{}, op(ctx, c)
	})
	return err
}

// stopError marks failures that must not be retried anywhere.
type stopError struct {
	err error
}

func (s *stopError) Error() string { return s.err.Error() }

// executeOn runs the local retry loop against one endpoint and returns the
// number of attempts made.
func executeOn[T any](ctx context.Context, e *Executor, index int, c Client, op Operation[T]) (T, int, error) {
	var (
		zero    T
		lastErr error
	)

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		res, err := runAttempt(ctx, e, c, op)
		if err == nil {
			e.metrics.attempt(index, "ok")
			return res, attempt + 1, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, attempt + 1, &stopError{err: ctxErr}
		}

		class := Classify(err)
		e.metrics.attempt(index, class.String())
		e.logger.Debug().
			Err(err).
			Int("index", index).
			Int("attempt", attempt+1).
			Int("of", e.maxRetries+1).
			Stringer("class", class).
			Msg("rpc attempt failed")

		switch class {
		case ClassRevert, ClassRejected:
			return zero, attempt + 1, &stopError{err: err}
		case ClassFatal:
			return zero, attempt + 1, err
		}

		if attempt == e.maxRetries {
			break
		}

		delay := e.retryDelay
		if class == ClassRateLimited {
			delay = e.rateLimitBackoff << attempt
		}
		if err := e.sleep(ctx, delay); err != nil {
			return zero, attempt + 1, &stopError{err: err}
		}
	}

	return zero, e.maxRetries + 1, lastErr
}

func runAttempt[T any](ctx context.Context, e *Executor, c Client, op Operation[T]) (T, error) {
	actx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
	defer cancel()
	return op(actx, c)
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
