// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// GlobalConfig represents the top-level static configuration.
// Maps to the `slpd:` root key in YAML.
type GlobalConfig struct {
	BindAddr   string       `mapstructure:"bind_addr"`
	IgnoreIdle bool         `mapstructure:"ignore_idle"`
	LDNEnabled bool         `mapstructure:"ldn_enabled"`
	BlockRules []string     `mapstructure:"block_rules"`
	Log        LogConfig    `mapstructure:"log"`
	Metrics    MetricsConfig `mapstructure:"metrics"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // pattern / json
	Pattern string           `mapstructure:"pattern"`
	Time    string           `mapstructure:"time"`
	Outputs []OutputConfig   `mapstructure:"outputs"`
}

// OutputConfig configures a single log output destination.
type OutputConfig struct {
	Type       string `mapstructure:"type"` // console | file
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// configRoot is the top-level wrapper matching the YAML structure `slpd: ...`.
type configRoot struct {
	Slpd GlobalConfig `mapstructure:"slpd"`
}

// Load loads configuration from file. path may be empty, in which case
// only defaults and environment overrides apply.
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("SLPD")
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Slpd

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("slpd.bind_addr", "0.0.0.0:11451")
	v.SetDefault("slpd.ignore_idle", false)
	v.SetDefault("slpd.ldn_enabled", true)

	v.SetDefault("slpd.log.level", "info")
	v.SetDefault("slpd.log.format", "pattern")
	v.SetDefault("slpd.log.pattern", "%time [%level] %field %msg\n")
	v.SetDefault("slpd.log.time", "2006-01-02 15:04:05.000")
	v.SetDefault("slpd.log.outputs", []map[string]interface{}{{"type": "console"}})

	v.SetDefault("slpd.metrics.enabled", true)
}

// ValidateAndApplyDefaults validates configuration. It changes no fields;
// defaults are supplied by setDefaults during Load.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "pattern" && cfg.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be pattern/json)", cfg.Log.Format)
	}
	for _, r := range cfg.BlockRules {
		if _, _, err := ParseRule(r); err != nil {
			return fmt.Errorf("invalid block rule %q: %w", r, err)
		}
	}
	return nil
}

// ParseRule parses a rule string of the form "tcp:5000" or "udp:21".
func ParseRule(s string) (protocol string, port uint16, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("rule must be of the form proto:port, got %q", s)
	}
	proto := strings.ToLower(parts[0])
	if proto != "tcp" && proto != "udp" {
		return "", 0, fmt.Errorf("unsupported protocol %q (must be tcp or udp)", parts[0])
	}
	var p int
	if _, err := fmt.Sscanf(parts[1], "%d", &p); err != nil || p <= 0 || p > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", parts[1])
	}
	return proto, uint16(p), nil
}
