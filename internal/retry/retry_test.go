package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(retries int) Policy {
	return Policy{MaxRetries: retries, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(2), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsAtRetryBudget(t *testing.T) {
	calls := 0
	boom := errors.New("down")
	err := Do(context.Background(), fastPolicy(2), func(context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestDo_InvalidArgumentNotRetried(t *testing.T) {
	calls := 0
	bad := fault.InvalidArgument("op", "bad input")
	err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return bad
	})
	require.ErrorIs(t, err, bad)
	assert.Equal(t, 1, calls)
}

func TestDo_PermanentNotRetried(t *testing.T) {
	calls := 0
	boom := errors.New("fatal")
	err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		return Permanent(boom)
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, fastPolicy(5), func(context.Context) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestDo_ZeroRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{}, func(context.Context) error {
		calls++
		return errors.New("once")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
