// Package embedding provides the text-embedding collaborators used by the
// resonance calculator.
package embedding

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/retry"
)

// #region embedder-interface
// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// #endregion embedder-interface

// #region config
// Providers accepted by New.
const (
	ProviderGRPC   = "grpc"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Config selects and tunes the embedding collaborator.
type Config struct {
	Provider      string        `mapstructure:"provider" yaml:"provider"`
	Addr          string        `mapstructure:"addr" yaml:"addr"` // grpc target
	OpenAI        OpenAIConfig  `mapstructure:"openai" yaml:"openai"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`                 // per attempt
	RatePerSecond float64       `mapstructure:"rate_per_second" yaml:"rate_per_second"` // 0 = unlimited
	Burst         int           `mapstructure:"burst" yaml:"burst"`
	Retry         retry.Policy  `mapstructure:"retry" yaml:"retry"`
}

// DefaultConfig talks to a local gRPC embedding service.
func DefaultConfig() Config {
	return Config{
		Provider:      ProviderGRPC,
		Addr:          "localhost:50051",
		OpenAI:        DefaultOpenAIConfig(),
		Timeout:       5 * time.Second,
		RatePerSecond: 20,
		Burst:         5,
		Retry:         retry.DefaultPolicy(),
	}
}

// #endregion config

// #region factory
// New builds the configured embedder wrapped in retry, timeout and rate limiting.
// ProviderNone returns (nil, nil): callers fall back to their documented defaults.
func New(cfg Config) (*Resilient, error) {
	var inner Embedder
	switch strings.ToLower(cfg.Provider) {
	case ProviderGRPC:
		c, err := NewGRPCClient(cfg.Addr)
		if err != nil {
			return nil, err
		}
		inner = c
	case ProviderOpenAI:
		inner = NewOpenAIClient(cfg.OpenAI)
	case ProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	return NewResilient(inner, cfg), nil
}

// closeIfCloser closes e when it owns a connection.
func closeIfCloser(e Embedder) error {
	if c, ok := e.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// #endregion factory
