// Package config loads relief settings from defaults, an optional YAML file,
// a .env file, RELIEF_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vsinha/relief/pkg/domain/entities"
	"github.com/vsinha/relief/pkg/infrastructure/logging"
)

// EnvPrefix prefixes every environment variable, e.g. RELIEF_STORE_DSN
const EnvPrefix = "RELIEF"

// Supported store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the complete relief configuration
type Config struct {
	Capacity CapacityConfig `mapstructure:"capacity"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Store    StoreConfig    `mapstructure:"store"`
	Log      LogConfig      `mapstructure:"log"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

// CapacityConfig holds the utilization ratios that drive shelter status
type CapacityConfig struct {
	NearCapacity float64 `mapstructure:"near_capacity"`
	AtCapacity   float64 `mapstructure:"at_capacity"`
}

// ScoringConfig holds the urgency score weights
type ScoringConfig struct {
	PriorityWeight    float64 `mapstructure:"priority_weight"`
	UtilizationWeight float64 `mapstructure:"utilization_weight"`
	CriticalWeight    float64 `mapstructure:"critical_weight"`
	StockoutWeight    float64 `mapstructure:"stockout_weight"`
}

// StoreConfig selects the data store
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// LogConfig selects log verbosity and format
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// HTTPConfig configures the serve command
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// Thresholds converts the capacity settings to domain thresholds
func (c CapacityConfig) Thresholds() entities.CapacityThresholds {
	return entities.CapacityThresholds{
		NearCapacity: decimal.NewFromFloat(c.NearCapacity),
		AtCapacity:   decimal.NewFromFloat(c.AtCapacity),
	}
}

// Weights converts the scoring settings to domain urgency weights
func (c ScoringConfig) Weights() entities.UrgencyWeights {
	return entities.UrgencyWeights{
		Priority:    decimal.NewFromFloat(c.PriorityWeight),
		Utilization: decimal.NewFromFloat(c.UtilizationWeight),
		Critical:    decimal.NewFromFloat(c.CriticalWeight),
		Stockout:    decimal.NewFromFloat(c.StockoutWeight),
	}
}

// Logging converts the log settings for the logging package
func (c LogConfig) Logging() logging.Config {
	return logging.Config{Level: c.Level, Development: c.Development}
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if err := c.Capacity.Thresholds().Validate(); err != nil {
		return fmt.Errorf("capacity: %w", err)
	}
	if err := c.Scoring.Weights().Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store: %s driver requires a dsn", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store: unsupported driver %q", c.Store.Driver)
	}
	return nil
}

// SetDefaults registers the default value of every key
func SetDefaults(v *viper.Viper) {
	thresholds := entities.DefaultCapacityThresholds()
	weights := entities.DefaultUrgencyWeights()

	v.SetDefault("capacity.near_capacity", thresholds.NearCapacity.InexactFloat64())
	v.SetDefault("capacity.at_capacity", thresholds.AtCapacity.InexactFloat64())
	v.SetDefault("scoring.priority_weight", weights.Priority.InexactFloat64())
	v.SetDefault("scoring.utilization_weight", weights.Utilization.InexactFloat64())
	v.SetDefault("scoring.critical_weight", weights.Critical.InexactFloat64())
	v.SetDefault("scoring.stockout_weight", weights.Stockout.InexactFloat64())
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("http.addr", ":8080")
}

// Options controls where Load looks for settings
type Options struct {
	// ConfigFile is an optional YAML file
	ConfigFile string
	// EnvFiles are .env files loaded into the process environment; missing files are ignored
	EnvFiles []string
	// Flags are bound by name, so a flag named "store.dsn" overrides that key
	Flags *pflag.FlagSet
}

// Load resolves the configuration
func Load(opts Options) (*Config, error) {
	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	}

	if opts.Flags != nil {
		if err := v.BindPFlags(opts.Flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func loadEnvFiles(paths []string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}
