// Package config loads the service configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full service configuration. Every knob is explicit;
// defaults are set in Load, never inside constructors.
type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Kafka    KafkaConfig    `mapstructure:"kafka" yaml:"kafka"`
	Matching MatchingConfig `mapstructure:"matching" yaml:"matching"`
	Backtest BacktestConfig `mapstructure:"backtest" yaml:"backtest"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic"`
}

type MatchingConfig struct {
	SnapshotDepth int `mapstructure:"snapshot_depth" yaml:"snapshot_depth"`
	EventBuffer   int `mapstructure:"event_buffer" yaml:"event_buffer"`
}

type BacktestConfig struct {
	LatencyMs      int64   `mapstructure:"latency_ms" yaml:"latency_ms"`
	SlippageRate   float64 `mapstructure:"slippage_rate" yaml:"slippage_rate"`
	CommissionRate float64 `mapstructure:"commission_rate" yaml:"commission_rate"`
	InitialCapital int64   `mapstructure:"initial_capital" yaml:"initial_capital"`
}

// Load reads path (optional), layered under EXCHANGE_* environment
// variables. A .env file in the working directory is applied first when
// present.
func Load(path string) (*Config, error) {
	// missing .env is fine
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "exchange.events")
	v.SetDefault("matching.snapshot_depth", 10)
	v.SetDefault("matching.event_buffer", 1024)
	v.SetDefault("backtest.latency_ms", 50)
	v.SetDefault("backtest.slippage_rate", 0.001)
	v.SetDefault("backtest.commission_rate", 0.0003)
	v.SetDefault("backtest.initial_capital", 1_000_000)

	v.SetEnvPrefix("EXCHANGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
