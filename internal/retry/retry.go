// Package retry runs collaborator calls with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/fault"
	"github.com/cenkalti/backoff/v4"
)

// #region policy
// Policy bounds how often and how slowly a call is retried.
type Policy struct {
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"` // retries after the first attempt
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
}

// DefaultPolicy allows 2 retries (3 attempts total).
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      2,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

// #endregion policy

// #region do
// Do calls op until it succeeds, returns a permanent error, the retry budget
// is spent, or ctx ends. Invalid-argument errors are never retried. A deadline
// hit by a single attempt is retried; the caller's ctx ending is not.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0 // bounded by MaxRetries and ctx instead

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)

	return backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := op(ctx)
		if err == nil {
			return nil
		}
		if isTerminal(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func isTerminal(err error) bool {
	return fault.IsKind(err, fault.KindInvalidArgument) || errors.Is(err, context.Canceled)
}

// #endregion do
