// Package config loads the navigator configuration from YAML and
// NAVIGATOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/SacredShifter/Navigator-sub000/internal/bus"
	"github.com/SacredShifter/Navigator-sub000/internal/collective"
	"github.com/SacredShifter/Navigator-sub000/internal/crisis"
	"github.com/SacredShifter/Navigator-sub000/internal/embedding"
	"github.com/SacredShifter/Navigator-sub000/internal/logging"
	"github.com/SacredShifter/Navigator-sub000/internal/resonance"
	"github.com/SacredShifter/Navigator-sub000/internal/selection"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. NAVIGATOR_STORE_PATH.
const EnvPrefix = "NAVIGATOR"

// #region config
// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// SchedulerConfig drives the periodic weight recompute.
type SchedulerConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Spec    string        `mapstructure:"spec" yaml:"spec"` // cron expression or @every
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// MetricsConfig exposes the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	Path string `mapstructure:"path" yaml:"path"`
}

// Config is the full process configuration.
type Config struct {
	Store      StoreConfig       `mapstructure:"store" yaml:"store"`
	Logging    logging.Config    `mapstructure:"logging" yaml:"logging"`
	Embedding  embedding.Config  `mapstructure:"embedding" yaml:"embedding"`
	Resonance  resonance.Config  `mapstructure:"resonance" yaml:"resonance"`
	Selection  selection.Config  `mapstructure:"selection" yaml:"selection"`
	Collective collective.Config `mapstructure:"collective" yaml:"collective"`
	Crisis     crisis.Config     `mapstructure:"crisis" yaml:"crisis"`
	Bus        bus.Config        `mapstructure:"bus" yaml:"bus"`
	Scheduler  SchedulerConfig   `mapstructure:"scheduler" yaml:"scheduler"`
	Metrics    MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
}

// DefaultConfig composes each package's defaults.
func DefaultConfig() Config {
	return Config{
		Store:      StoreConfig{Path: "navigator.db"},
		Logging:    logging.DefaultConfig(),
		Embedding:  embedding.DefaultConfig(),
		Resonance:  resonance.DefaultConfig(),
		Selection:  selection.DefaultConfig(),
		Collective: collective.DefaultConfig(),
		Crisis:     crisis.DefaultConfig(),
		Bus:        bus.DefaultConfig(),
		Scheduler:  SchedulerConfig{Enabled: true, Spec: "@every 1h", Timeout: 10 * time.Minute},
		Metrics:    MetricsConfig{Addr: ":9464", Path: "/metrics"},
	}
}

// #endregion config

// #region load
// Load reads configPath (optional) over the defaults, then applies environment
// overrides. A missing file at an explicit path is an error.
func Load(configPath string) (Config, error) {
	v := viper.New()
	if err := setDefaults(v); err != nil {
		return Config{}, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// keys with no default are invisible to AutomaticEnv during Unmarshal
	_ = v.BindEnv("embedding.openai.api_key", EnvPrefix+"_EMBEDDING_OPENAI_API_KEY", "OPENAI_API_KEY")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("navigator")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/navigator")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every leaf of DefaultConfig so env overrides reach Unmarshal.
func setDefaults(v *viper.Viper) error {
	raw, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	flatten("", tree, v.SetDefault)
	return nil
}

func flatten(prefix string, node map[string]interface{}, set func(string, interface{})) {
	for k, val := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := val.(map[string]interface{}); ok {
			flatten(key, child, set)
			continue
		}
		set(key, val)
	}
}

// #endregion load

// #region validate
// Validate checks every section that has invariants of its own.
func (c Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if err := c.Resonance.Validate(); err != nil {
		return fmt.Errorf("resonance: %w", err)
	}
	if err := c.Selection.Validate(); err != nil {
		return fmt.Errorf("selection: %w", err)
	}
	switch c.Embedding.Provider {
	case embedding.ProviderGRPC, embedding.ProviderOpenAI, embedding.ProviderNone:
	default:
		return fmt.Errorf("embedding.provider: unsupported %q", c.Embedding.Provider)
	}
	if c.Crisis.Timeout <= 0 {
		return fmt.Errorf("crisis.timeout must be positive")
	}
	if c.Collective.MinCohortSize < collective.KAnonymityFloor {
		return fmt.Errorf("collective.min_cohort_size must be at least %d", collective.KAnonymityFloor)
	}
	if c.Scheduler.Enabled {
		if _, err := cron.ParseStandard(c.Scheduler.Spec); err != nil {
			return fmt.Errorf("scheduler.spec: %w", err)
		}
	}
	return nil
}

// #endregion validate

// #region dump
// Dump writes the effective configuration as YAML, omitting secrets.
func (c Config) Dump(w io.Writer) error {
	c.Embedding.OpenAI.APIKey = ""
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// #endregion dump
