// Package crisis watches a user's resonance history for signs of
// psychological crisis and maps them to a severity and a safety protocol.
package crisis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/bus"
	"github.com/SacredShifter/Navigator-sub000/internal/field"
	"github.com/SacredShifter/Navigator-sub000/internal/retry"
	"github.com/rs/zerolog"
)

// #region monitor
// Monitor derives crisis levels. It fails closed: any collaborator failure or
// timeout yields ErrUndetermined, never a nil level.
type Monitor struct {
	history    HistoryStore
	entropy    EntropySource  // optional
	classifier HarmClassifier // optional
	publisher  bus.Publisher
	config     Config
	log        zerolog.Logger
	now        func() time.Time

	mu       sync.Mutex
	failures map[string]int // consecutive undetermined checks per user
	pending  sync.WaitGroup // escalation publishes
}

// escalationPublishTimeout bounds one background escalation publish.
const escalationPublishTimeout = 5 * time.Second

// NewMonitor creates a Monitor. entropy, classifier and publisher may be nil.
func NewMonitor(history HistoryStore, entropy EntropySource, classifier HarmClassifier, publisher bus.Publisher, config Config, log zerolog.Logger) *Monitor {
	if publisher == nil {
		publisher = bus.Nop{}
	}
	return &Monitor{
		history:    history,
		entropy:    entropy,
		classifier: classifier,
		publisher:  publisher,
		config:     config,
		log:        log.With().Str("component", "crisis").Logger(),
		now:        time.Now,
		failures:   make(map[string]int),
	}
}

// WithClock replaces the wall clock used for the history window. Replays
// pass the recorded turn time.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// #endregion monitor

// #region detect
// Detect runs one check for userID.
//
//	(level, nil)          a crisis level worth reporting
//	(nil, nil)            checked; nothing to report
//	(nil, ErrUndetermined) the check could not be completed
func (m *Monitor) Detect(ctx context.Context, userID string) (*Level, error) {
	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	signals, err := m.signals(ctx, userID)
	if err != nil {
		if m.recordFailure(ctx, userID, err) {
			return nil, fmt.Errorf("%w: %w: %w", ErrUndetermined, ErrEscalated, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrUndetermined, err)
	}
	m.resetFailures(userID)

	severity, confidence, points := Score(signals)
	if points == 0 {
		return nil, nil
	}
	if severity == SeverityLow && confidence < m.config.SuppressLowBelow {
		m.log.Debug().Str("user_id", userID).Float64("confidence", confidence).Msg("low-confidence signal suppressed")
		return nil, nil
	}

	level := &Level{
		UserID:      userID,
		Severity:    severity,
		Confidence:  confidence,
		Points:      points,
		Signals:     signals,
		TriggeredAt: m.now().UTC(),
	}
	ev := m.log.Info()
	if severity.AtLeast(SeverityHigh) {
		ev = m.log.Warn()
	}
	ev.Str("user_id", userID).Str("severity", string(severity)).
		Float64("confidence", confidence).Strs("signals", signals.Triggered()).
		Msg("crisis level detected")
	return level, nil
}

// #endregion detect

// #region signals
// signals computes the five indicators. Fewer than 2 history points means all
// are false and no collaborator is consulted.
func (m *Monitor) signals(ctx context.Context, userID string) (Signals, error) {
	var history []field.OutcomeRecord // newest first
	err := retry.Do(ctx, m.config.Retry, func(ctx context.Context) (err error) {
		history, err = m.history.RecentOutcomes(ctx, userID, m.config.HistoryLimit)
		return err
	})
	if err != nil {
		return Signals{}, fmt.Errorf("read history: %w", err)
	}

	var s Signals
	if len(history) < 2 {
		return s, nil
	}

	s.RIPlunge = history[0].ResonanceIndex-history[1].ResonanceIndex < -m.config.PlungeDelta

	since := m.now().Add(-m.config.Window)
	inWindow, lowInWindow := 0, 0
	for _, h := range history {
		if h.CreatedAt.Before(since) {
			continue
		}
		inWindow++
		if h.ResonanceIndex < m.config.LowRI {
			lowInWindow++
		}
	}
	s.ProlongedLowRI = lowInWindow >= m.config.ProlongedLowCount
	s.IsolationPattern = inWindow < m.config.IsolationMinRecords

	if m.entropy != nil {
		e, err := m.entropy.OverallEntropy(ctx, userID)
		if err != nil {
			return Signals{}, fmt.Errorf("read entropy: %w", err)
		}
		s.EntropySpike = e > m.config.EntropyThreshold
	}
	if m.classifier != nil {
		harm, err := m.classifier.HarmIndicators(ctx, userID)
		if err != nil {
			return Signals{}, fmt.Errorf("classify harm: %w", err)
		}
		s.HarmIndicators = harm
	}
	return s, ctx.Err()
}

// #endregion signals

// #region escalation
// recordFailure counts consecutive undetermined checks and hands the user to
// a human process every EscalateAfterFailures failures. It reports whether
// this failure escalated.
func (m *Monitor) recordFailure(ctx context.Context, userID string, cause error) bool {
	m.mu.Lock()
	m.failures[userID]++
	n := m.failures[userID]
	m.mu.Unlock()

	m.log.Warn().Err(cause).Str("user_id", userID).Int("consecutive_failures", n).Msg("crisis check undetermined")

	every := m.config.EscalateAfterFailures
	if every <= 0 || n%every != 0 {
		return false
	}
	m.log.Error().Str("user_id", userID).Int("consecutive_failures", n).Msg("crisis check escalated to human review")

	ev := bus.NewEvent(bus.TypeCrisisEscalation, userID, map[string]interface{}{
		"consecutive_failures": n,
		"last_error":           cause.Error(),
	})
	// off the caller's path: the check's budget may already be spent
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), escalationPublishTimeout)
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		defer cancel()
		if err := m.publisher.Publish(pubCtx, ev); err != nil {
			m.log.Error().Err(err).Str("user_id", userID).Msg("publish crisis escalation")
		}
	}()
	return true
}

// Wait blocks until in-flight escalation publishes have finished.
func (m *Monitor) Wait() {
	m.pending.Wait()
}

func (m *Monitor) resetFailures(userID string) {
	m.mu.Lock()
	delete(m.failures, userID)
	m.mu.Unlock()
}

// ConsecutiveFailures returns the current undetermined streak for userID.
func (m *Monitor) ConsecutiveFailures(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[userID]
}

// #endregion escalation
