package crisis

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/bus"
	"github.com/SacredShifter/Navigator-sub000/internal/fault"
	"github.com/SacredShifter/Navigator-sub000/internal/field"
	"github.com/SacredShifter/Navigator-sub000/internal/retry"
	"github.com/SacredShifter/Navigator-sub000/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region mocks
var testNow = time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC)

// mockHistory serves records newest first.
type mockHistory struct {
	records []field.OutcomeRecord
	err     error
	block   bool
	calls   int
}

func (m *mockHistory) RecentOutcomes(ctx context.Context, _ string, limit int) ([]field.OutcomeRecord, error) {
	m.calls++
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	if len(m.records) > limit {
		return m.records[:limit], nil
	}
	return m.records, nil
}

type mockEntropy struct {
	value float64
	err   error
	calls int
}

func (m *mockEntropy) OverallEntropy(context.Context, string) (float64, error) {
	m.calls++
	return m.value, m.err
}

type mockClassifier struct{ harm bool }

func (m mockClassifier) HarmIndicators(context.Context, string) (bool, error) { return m.harm, nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []bus.Event
}

func (r *recordingPublisher) Publish(_ context.Context, events ...bus.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

// history builds records from oldest-first RI values, one hour apart, ending at testNow.
func history(ris ...float64) []field.OutcomeRecord {
	out := make([]field.OutcomeRecord, len(ris))
	for i, ri := range ris {
		age := time.Duration(len(ris)-1-i) * time.Hour
		out[len(ris)-1-i] = field.OutcomeRecord{UserID: "u", ResonanceIndex: ri, CreatedAt: testNow.Add(-age)}
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry = retry.Policy{MaxRetries: 0}
	return cfg
}

func newTestMonitor(h HistoryStore, e EntropySource, c HarmClassifier, p bus.Publisher, cfg Config) *Monitor {
	m := NewMonitor(h, e, c, p, cfg, zerolog.Nop())
	m.now = func() time.Time { return testNow }
	return m
}

// #endregion mocks

// #region scenario-tests
func TestDetect_HighSeverityScenario(t *testing.T) {
	h := &mockHistory{records: history(0.2, 0.2, 0.2, 0.2, 0.2, 0.6, 0.2)}
	m := newTestMonitor(h, nil, nil, nil, testConfig())

	level, err := m.Detect(context.Background(), "u")
	require.NoError(t, err)
	require.NotNil(t, level)
	assert.True(t, level.Signals.RIPlunge)
	assert.True(t, level.Signals.ProlongedLowRI)
	assert.False(t, level.Signals.IsolationPattern)
	assert.True(t, level.Severity.AtLeast(SeverityHigh))
	assert.Equal(t, SeverityHigh, level.Severity)
	assert.GreaterOrEqual(t, level.Confidence, 0.75)
	assert.Equal(t, 7, level.Points)
	assert.Equal(t, testNow, level.TriggeredAt)
}

func TestDetect_SinglePointIsNothingToReport(t *testing.T) {
	h := &mockHistory{records: history(0.1)}
	e := &mockEntropy{value: 0.99}
	m := newTestMonitor(h, e, nil, nil, testConfig())

	level, err := m.Detect(context.Background(), "u")
	require.NoError(t, err)
	assert.Nil(t, level)
	assert.Equal(t, 0, e.calls, "entropy is not consulted without history")
}

func TestDetect_CriticalWithEntropySpike(t *testing.T) {
	h := &mockHistory{records: history(0.2, 0.2, 0.2, 0.2, 0.2, 0.6, 0.2)}
	m := newTestMonitor(h, &mockEntropy{value: 0.8}, nil, nil, testConfig())

	level, err := m.Detect(context.Background(), "u")
	require.NoError(t, err)
	require.NotNil(t, level)
	assert.Equal(t, SeverityCritical, level.Severity)
	assert.InDelta(t, (0.7+0.8+0.6)/3, level.Confidence, 1e-12)
	assert.True(t, ProtocolFor(level.Severity).PauseRecommendations)
}

func TestDetect_HarmClassifierSeam(t *testing.T) {
	h := &mockHistory{records: history(0.5, 0.5, 0.5)}
	m := newTestMonitor(h, nil, mockClassifier{harm: true}, nil, testConfig())

	level, err := m.Detect(context.Background(), "u")
	require.NoError(t, err)
	require.NotNil(t, level)
	assert.True(t, level.Signals.HarmIndicators)
	assert.Equal(t, SeverityHigh, level.Severity)
	assert.InDelta(t, 0.9, level.Confidence, 1e-12)
}

func TestDetect_StableHistoryNothingToReport(t *testing.T) {
	h := &mockHistory{records: history(0.6, 0.65, 0.7)}
	m := newTestMonitor(h, &mockEntropy{value: 0.2}, nil, nil, testConfig())
	level, err := m.Detect(context.Background(), "u")
	require.NoError(t, err)
	assert.Nil(t, level)
}

func TestDetect_IsolationOnlyIsLow(t *testing.T) {
	old := []field.OutcomeRecord{
		{ResonanceIndex: 0.5, CreatedAt: testNow.Add(-10 * 24 * time.Hour)},
		{ResonanceIndex: 0.5, CreatedAt: testNow.Add(-11 * 24 * time.Hour)},
	}
	m := newTestMonitor(&mockHistory{records: old}, nil, nil, nil, testConfig())
	level, err := m.Detect(context.Background(), "u")
	require.NoError(t, err)
	require.NotNil(t, level)
	assert.Equal(t, SeverityLow, level.Severity)
	assert.True(t, level.Signals.IsolationPattern)

	cfg := testConfig()
	cfg.SuppressLowBelow = 0.55
	m = newTestMonitor(&mockHistory{records: old}, nil, nil, nil, cfg)
	level, err = m.Detect(context.Background(), "u")
	require.NoError(t, err)
	assert.Nil(t, level, "weak low-severity evidence is suppressed")
}

// #endregion scenario-tests

// #region failure-tests
func TestDetect_StoreFailureIsUndetermined(t *testing.T) {
	m := newTestMonitor(&mockHistory{err: errors.New("db locked")}, nil, nil, nil, testConfig())
	level, err := m.Detect(context.Background(), "u")
	assert.Nil(t, level)
	require.ErrorIs(t, err, ErrUndetermined)
	assert.True(t, fault.IsKind(err, fault.KindCollaboratorFailure))
	assert.Contains(t, err.Error(), "db locked")
}

func TestDetect_EntropyFailureFailsClosed(t *testing.T) {
	h := &mockHistory{records: history(0.5, 0.5)}
	m := newTestMonitor(h, &mockEntropy{err: errors.New("metric unavailable")}, nil, nil, testConfig())
	level, err := m.Detect(context.Background(), "u")
	assert.Nil(t, level)
	assert.ErrorIs(t, err, ErrUndetermined)
}

func TestDetect_TimeoutIsUndetermined(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	m := newTestMonitor(&mockHistory{block: true}, nil, nil, nil, cfg)

	start := time.Now()
	level, err := m.Detect(context.Background(), "u")
	assert.Nil(t, level)
	assert.ErrorIs(t, err, ErrUndetermined)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDetect_StoreRetried(t *testing.T) {
	cfg := testConfig()
	cfg.Retry = retry.Policy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	h := &mockHistory{err: errors.New("busy")}
	m := newTestMonitor(h, nil, nil, nil, cfg)
	_, err := m.Detect(context.Background(), "u")
	assert.ErrorIs(t, err, ErrUndetermined)
	assert.Equal(t, 3, h.calls)
}

func TestDetect_EscalatesAfterRepeatedFailures(t *testing.T) {
	pub := &recordingPublisher{}
	h := &mockHistory{err: errors.New("down")}
	m := newTestMonitor(h, nil, nil, pub, testConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := m.Detect(ctx, "u")
		require.ErrorIs(t, err, ErrUndetermined)
		assert.NotErrorIs(t, err, ErrEscalated)
	}
	m.Wait()
	assert.Empty(t, pub.events)

	_, err := m.Detect(ctx, "u")
	require.ErrorIs(t, err, ErrUndetermined)
	assert.ErrorIs(t, err, ErrEscalated)
	m.Wait()
	require.Len(t, pub.events, 1)
	assert.Equal(t, bus.TypeCrisisEscalation, pub.events[0].Type)
	assert.Equal(t, "u", pub.events[0].UserID)
	assert.Equal(t, 3, m.ConsecutiveFailures("u"))

	// recovery resets the streak
	h.err = nil
	h.records = history(0.6, 0.65)
	_, err = m.Detect(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 0, m.ConsecutiveFailures("u"))
}

// blockingPublisher holds every publish until release is closed.
type blockingPublisher struct {
	release chan struct{}
	got     chan struct{}
}

func (b *blockingPublisher) Publish(ctx context.Context, _ ...bus.Event) error {
	close(b.got)
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *blockingPublisher) Close() error { return nil }

func TestDetect_SlowEscalationPublishDoesNotDelayCaller(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 50 * time.Millisecond
	cfg.EscalateAfterFailures = 1
	pub := &blockingPublisher{release: make(chan struct{}), got: make(chan struct{})}
	m := newTestMonitor(&mockHistory{block: true}, nil, nil, pub, cfg)

	start := time.Now()
	_, err := m.Detect(context.Background(), "u")
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrUndetermined)
	assert.ErrorIs(t, err, ErrEscalated)
	assert.Less(t, elapsed, time.Second, "escalation publish must not extend the check budget")

	select {
	case <-pub.got:
	case <-time.After(time.Second):
		t.Fatal("escalation was never published")
	}
	close(pub.release)
	m.Wait()
}

// #endregion failure-tests

// #region store-integration
func TestDetect_WithSQLiteHistory(t *testing.T) {
	s, err := store.NewStore(filepath.Join(t.TempDir(), "crisis.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	for _, rec := range history(0.2, 0.2, 0.2, 0.2, 0.2, 0.6, 0.2) {
		_, err := s.AppendOutcome(ctx, rec)
		require.NoError(t, err)
	}
	m := newTestMonitor(s, nil, nil, nil, testConfig())
	level, err := m.Detect(ctx, "u")
	require.NoError(t, err)
	require.NotNil(t, level)
	assert.Equal(t, SeverityHigh, level.Severity)
}

// #endregion store-integration
