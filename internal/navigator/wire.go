package navigator

import (
	"fmt"

	"github.com/SacredShifter/Navigator-sub000/internal/bus"
	"github.com/SacredShifter/Navigator-sub000/internal/collective"
	"github.com/SacredShifter/Navigator-sub000/internal/config"
	"github.com/SacredShifter/Navigator-sub000/internal/crisis"
	"github.com/SacredShifter/Navigator-sub000/internal/embedding"
	"github.com/SacredShifter/Navigator-sub000/internal/metrics"
	"github.com/SacredShifter/Navigator-sub000/internal/resonance"
	"github.com/SacredShifter/Navigator-sub000/internal/retry"
	"github.com/SacredShifter/Navigator-sub000/internal/selection"
	"github.com/SacredShifter/Navigator-sub000/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Open builds a Navigator from configuration. reg may be nil to disable metrics.
// No entropy source or harm classifier is wired in-process; the crisis monitor
// treats both signals as absent.
func Open(cfg config.Config, log zerolog.Logger, reg *prometheus.Registry) (*Navigator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	st, err := store.NewStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	closers := []func() error{st.Close}
	fail := func(err error) (*Navigator, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	// keep the interface nil when no provider is configured
	var embedder resonance.Embedder
	emb, err := embedding.New(cfg.Embedding)
	if err != nil {
		return fail(fmt.Errorf("embedding client: %w", err))
	}
	if emb != nil {
		embedder = emb
		closers = append(closers, emb.Close)
	}

	calc, err := resonance.NewCalculator(embedder, cfg.Resonance, log)
	if err != nil {
		return fail(fmt.Errorf("resonance calculator: %w", err))
	}

	pub, err := bus.New(cfg.Bus)
	if err != nil {
		return fail(fmt.Errorf("event bus: %w", err))
	}
	closers = append(closers, pub.Close)

	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}

	n, err := New(Deps{
		Store:      st,
		Calculator: calc,
		Matrix:     selection.NewMatrix(cfg.Selection, nil),
		Aggregator: collective.NewAggregator(st, cfg.Collective, collective.NewLaplaceNoise(nil), retry.DefaultPolicy(), log),
		Monitor:    crisis.NewMonitor(st, nil, nil, pub, cfg.Crisis, log),
		Publisher:  pub,
		Metrics:    m,
		Logger:     log,
	})
	if err != nil {
		return fail(err)
	}
	n.closers = closers
	return n, nil
}
