package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/fault"
	"github.com/SacredShifter/Navigator-sub000/internal/retry"
	"golang.org/x/time/rate"
)

// #region resilient
// Resilient wraps an Embedder with a per-attempt timeout, a rate limit and
// bounded retries. It never blocks past the caller's context.
type Resilient struct {
	inner   Embedder
	timeout time.Duration
	limiter *rate.Limiter
	policy  retry.Policy
}

// NewResilient wraps inner using the timeout, rate and retry settings in cfg.
func NewResilient(inner Embedder, cfg Config) *Resilient {
	r := &Resilient{inner: inner, timeout: cfg.Timeout, policy: cfg.Retry}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return r
}

// Embed calls the wrapped embedder, classifying exhausted failures as
// collaborator failures.
func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return retry.Permanent(err)
			}
		}
		callCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		vec, err := r.inner.Embed(callCtx, text)
		if err != nil {
			return err
		}
		if len(vec) == 0 {
			return errors.New("empty embedding")
		}
		out = vec
		return nil
	})
	if err != nil {
		return nil, fault.Collaborator("embed", err)
	}
	return out, nil
}

// Close releases the wrapped embedder's connection, if any.
func (r *Resilient) Close() error {
	return closeIfCloser(r.inner)
}

// #endregion resilient
