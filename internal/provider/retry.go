// Package provider wraps calls to external model providers (embedding, OCR, chat) with
// per-call timeouts, bounded retries with backoff, rate limiting, and error classification.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/pdfrag/internal/models"
)

const (
	defaultBaseDelay = 200 * time.Millisecond
	defaultMaxDelay  = 5 * time.Second
)

// Policy controls how a provider call is attempted.
type Policy struct {
	// Name identifies the provider in logs.
	Name string
	// Timeout bounds a single attempt. Zero means no per-attempt deadline.
	Timeout time.Duration
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Limiter, when set, is waited on before every attempt.
	Limiter *rate.Limiter
	Logger  *zap.Logger
}

// NewLimiter returns a limiter allowing perMinute calls per minute, or nil when perMinute <= 0.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	burst := perMinute / 60
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60), burst)
}

// Call runs fn under p. Failures that outlast the retries are reported as models.ErrTimeout
// when the last attempt ran out of time, and as models.ErrProviderUnavailable otherwise.
// Cancellation of ctx is returned as is.
func Call[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, p.backoff(attempt-1)); err != nil {
				return zero, callerError(err)
			}
		}
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return zero, callerError(ctx.Err())
				}
				return zero, fmt.Errorf("%w: %s: %v", models.ErrTimeout, p.Name, err)
			}
		}

		v, err := callOnce(ctx, p, fn)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, callerError(ctx.Err())
		}
		lastErr = err
		if IsPermanent(err) {
			break
		}
		if p.Logger != nil && attempt < p.MaxRetries {
			p.Logger.Debug("provider call failed, retrying",
				zap.String("provider", p.Name),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}
	}
	return zero, classify(p.Name, lastErr)
}

func callOnce[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(callCtx)
}

func (p Policy) backoff(retry int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}
	if retry > 16 {
		return maxDelay
	}
	d := base << retry
	if d > maxDelay {
		return maxDelay
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// callerError maps the caller's own deadline to models.ErrTimeout and leaves cancellation alone.
func callerError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", models.ErrTimeout, err)
	}
	return err
}

func classify(name string, err error) error {
	if errors.Is(err, models.ErrTimeout) || errors.Is(err, models.ErrProviderUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", models.ErrTimeout, name, err)
	}
	var pe *permanentError
	if errors.As(err, &pe) {
		err = pe.err
	}
	return fmt.Errorf("%w: %s: %w", models.ErrProviderUnavailable, name, err)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying (bad request, bad credentials).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
