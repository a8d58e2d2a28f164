package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/fault"
	"github.com/SacredShifter/Navigator-sub000/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyEmbedder struct {
	failures int32
	calls    atomic.Int32
	block    bool
}

func (f *flakyEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	n := f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if n <= f.failures {
		return nil, errors.New("transient")
	}
	return []float32{1, 2}, nil
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.RatePerSecond = 0
	cfg.Timeout = 20 * time.Millisecond
	cfg.Retry = retry.Policy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
	return cfg
}

func TestResilient_RetriesTransientFailures(t *testing.T) {
	inner := &flakyEmbedder{failures: 2}
	r := NewResilient(inner, fastConfig())

	vec, err := r.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestResilient_ExhaustedIsCollaboratorFailure(t *testing.T) {
	inner := &flakyEmbedder{failures: 10}
	r := NewResilient(inner, fastConfig())

	_, err := r.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindCollaboratorFailure))
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestResilient_PerAttemptTimeoutIsRetried(t *testing.T) {
	inner := &flakyEmbedder{block: true}
	r := NewResilient(inner, fastConfig())

	start := time.Now()
	_, err := r.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(3), inner.calls.Load())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestResilient_CancelledContext(t *testing.T) {
	inner := &flakyEmbedder{}
	r := NewResilient(inner, fastConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Embed(ctx, "x")
	require.Error(t, err)
	assert.Equal(t, int32(0), inner.calls.Load())
}

func TestResilient_RateLimited(t *testing.T) {
	cfg := fastConfig()
	cfg.RatePerSecond = 1000
	cfg.Burst = 1
	r := NewResilient(&flakyEmbedder{}, cfg)
	for i := 0; i < 3; i++ {
		_, err := r.Embed(context.Background(), "x")
		require.NoError(t, err)
	}
}

func TestNew_Providers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = ProviderNone
	e, err := New(cfg)
	require.NoError(t, err)
	assert.Nil(t, e)

	cfg.Provider = ProviderOpenAI
	e, err = New(cfg)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.NoError(t, e.Close())

	cfg.Provider = ProviderGRPC
	e, err = New(cfg)
	require.NoError(t, err)
	assert.NoError(t, e.Close())

	cfg.Provider = "carrier-pigeon"
	_, err = New(cfg)
	assert.Error(t, err)
}
