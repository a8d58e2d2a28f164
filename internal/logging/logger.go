package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// #region logger-config
// Config selects the process logger's level and format.
type Config struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug | info | warn | error
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"` // console writer instead of JSON
}

// DefaultConfig logs JSON at info level.
func DefaultConfig() Config {
	return Config{Level: "info"}
}

// #endregion logger-config

// #region new-logger
// New builds the process logger writing to stderr.
func New(cfg Config) zerolog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter builds a logger writing to w.
func NewWithWriter(cfg Config, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Component returns a child logger tagged with a component name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// #endregion new-logger
