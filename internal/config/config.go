package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Refresh    RefreshConfig    `yaml:"refresh"`
	Health     HealthConfig     `yaml:"health"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	MarketData MarketDataConfig `yaml:"market_data"`
	APIs       []APIConfig      `yaml:"apis"`
	Journal    JournalConfig    `yaml:"journal"`
	Display    DisplayConfig    `yaml:"display"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

// RefreshConfig drives the countdown: one pass every PeriodTicks ticks of Tick length.
type RefreshConfig struct {
	PeriodTicks int           `yaml:"period_ticks"`
	Tick        time.Duration `yaml:"tick"`
}

// Period is the wall-clock refresh period.
func (r RefreshConfig) Period() time.Duration {
	return time.Duration(r.PeriodTicks) * r.Tick
}

type HealthConfig struct {
	Interval            time.Duration `yaml:"interval"`
	MaxRecoveryAttempts int           `yaml:"max_recovery_attempts"`
}

type ScoringConfig struct {
	InitDelay          time.Duration `yaml:"init_delay"`
	RetrainDelay       time.Duration `yaml:"retrain_delay"`
	BreakoutLatency    time.Duration `yaml:"breakout_latency"`
	InflowLatency      time.Duration `yaml:"inflow_latency"`
	FundamentalLatency time.Duration `yaml:"fundamental_latency"`
	Workers            int           `yaml:"workers"`
}

type MarketDataConfig struct {
	FetchLatency time.Duration `yaml:"fetch_latency"`
	FailureRate  float64       `yaml:"failure_rate"` // probability a fetch fails
	Seed         uint64        `yaml:"seed"`         // 0 = time based
	MaxHistory   int           `yaml:"max_history"`
}

// APIConfig describes one simulated auxiliary API.
type APIConfig struct {
	Name         string  `yaml:"name"`
	Availability float64 `yaml:"availability"` // probability the API probes healthy
}

type JournalConfig struct {
	DSN         string `yaml:"dsn"`
	MaxEntries  int    `yaml:"max_entries"`
	RecentLimit int    `yaml:"recent_limit"`
}

type DisplayConfig struct {
	TopN              int     `yaml:"top_n"`
	BreakoutThreshold float64 `yaml:"breakout_threshold"`
	InflowThreshold   float64 `yaml:"inflow_threshold"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Port: 8080},
		Logging: LoggingConfig{Level: "info", Encoding: "json"},
		Refresh: RefreshConfig{PeriodTicks: 60, Tick: time.Second},
		Health:  HealthConfig{Interval: 30 * time.Second, MaxRecoveryAttempts: 5},
		Scoring: ScoringConfig{
			InitDelay:          2 * time.Second,
			RetrainDelay:       3 * time.Second,
			BreakoutLatency:    10 * time.Millisecond,
			InflowLatency:      5 * time.Millisecond,
			FundamentalLatency: 5 * time.Millisecond,
			Workers:            8,
		},
		MarketData: MarketDataConfig{
			FetchLatency: time.Second,
			MaxHistory:   50,
		},
		APIs: []APIConfig{
			{Name: "coinmarketcap", Availability: 0.8},
			{Name: "twitter", Availability: 0.7},
			{Name: "news", Availability: 0.9},
		},
		Journal: JournalConfig{DSN: ":memory:", MaxEntries: 500, RecentLimit: 20},
		Display: DisplayConfig{TopN: 10, BreakoutThreshold: 0.7, InflowThreshold: 0.7},
	}
}

// Load reads the YAML file at path over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Refresh.PeriodTicks < 1 {
		return fmt.Errorf("refresh.period_ticks must be at least 1")
	}
	if c.Refresh.Tick <= 0 {
		return fmt.Errorf("refresh.tick must be positive")
	}
	if c.Health.Interval <= 0 {
		return fmt.Errorf("health.interval must be positive")
	}
	if c.Health.Interval == c.Refresh.Period() {
		return fmt.Errorf("health.interval must differ from the refresh period (%v)", c.Refresh.Period())
	}
	if c.Health.MaxRecoveryAttempts < 1 {
		return fmt.Errorf("health.max_recovery_attempts must be at least 1")
	}
	if c.Scoring.InitDelay < 0 || c.Scoring.RetrainDelay < 0 ||
		c.Scoring.BreakoutLatency < 0 || c.Scoring.InflowLatency < 0 || c.Scoring.FundamentalLatency < 0 {
		return fmt.Errorf("scoring delays must not be negative")
	}
	if c.Scoring.Workers < 1 {
		return fmt.Errorf("scoring.workers must be at least 1")
	}
	if c.MarketData.FetchLatency < 0 {
		return fmt.Errorf("market_data.fetch_latency must not be negative")
	}
	if c.MarketData.FailureRate < 0 || c.MarketData.FailureRate > 1 {
		return fmt.Errorf("market_data.failure_rate must be between 0 and 1")
	}
	if c.MarketData.MaxHistory < 1 {
		return fmt.Errorf("market_data.max_history must be at least 1")
	}
	for _, api := range c.APIs {
		if api.Name == "" {
			return fmt.Errorf("apis: name is required")
		}
		if api.Availability < 0 || api.Availability > 1 {
			return fmt.Errorf("apis.%s.availability must be between 0 and 1", api.Name)
		}
	}
	if c.Journal.DSN == "" {
		return fmt.Errorf("journal.dsn is required")
	}
	if c.Journal.MaxEntries < 1 {
		return fmt.Errorf("journal.max_entries must be at least 1")
	}
	if c.Journal.RecentLimit < 1 || c.Journal.RecentLimit > c.Journal.MaxEntries {
		return fmt.Errorf("journal.recent_limit must be between 1 and journal.max_entries")
	}
	if c.Display.TopN < 1 {
		return fmt.Errorf("display.top_n must be at least 1")
	}
	if c.Display.BreakoutThreshold < 0 || c.Display.BreakoutThreshold > 1 ||
		c.Display.InflowThreshold < 0 || c.Display.InflowThreshold > 1 {
		return fmt.Errorf("display thresholds must be between 0 and 1")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Encoding != "json" && c.Logging.Encoding != "console" {
		return fmt.Errorf("logging.encoding must be one of: json, console")
	}
	return nil
}
