package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/collective"
	"github.com/SacredShifter/Navigator-sub000/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockUpdater struct {
	calls    atomic.Int32
	updates  []collective.WeightUpdate
	failed   int
	err      error
	deadline bool
}

func (m *mockUpdater) UpdateAllWeights(ctx context.Context) ([]collective.WeightUpdate, int, error) {
	m.calls.Add(1)
	_, m.deadline = ctx.Deadline()
	return m.updates, m.failed, m.err
}

func TestRunOnce_Results(t *testing.T) {
	for name, tc := range map[string]struct {
		updater *mockUpdater
		want    string
	}{
		"ok": {&mockUpdater{updates: []collective.WeightUpdate{{InterventionID: "a", Applied: true}}}, "ok"},
		"partial": {&mockUpdater{
			updates: []collective.WeightUpdate{{InterventionID: "a"}},
			failed:  1, err: errors.New("b failed"),
		}, "partial"},
		"failed": {&mockUpdater{failed: 1, err: errors.New("store down")}, "failed"},
	} {
		t.Run(name, func(t *testing.T) {
			m := metrics.New(prometheus.NewRegistry())
			s, err := New("@every 1h", time.Minute, tc.updater, m, zerolog.Nop())
			require.NoError(t, err)

			assert.Equal(t, tc.want, s.RunOnce(context.Background()))
			assert.True(t, tc.updater.deadline, "run carries the configured timeout")
			assert.InDelta(t, 1, testutil.ToFloat64(m.SchedulerRuns.WithLabelValues(tc.want)), 1e-9)
		})
	}
}

func TestNew_RejectsBadSpec(t *testing.T) {
	_, err := New("not a schedule", time.Minute, &mockUpdater{}, nil, zerolog.Nop())
	require.Error(t, err)
}

func TestStartStop_RunsOnSchedule(t *testing.T) {
	u := &mockUpdater{}
	s, err := New("@every 1s", time.Second, u, nil, zerolog.Nop())
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return u.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}
