package threadpool

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr       = "127.0.0.1:8080"
	DefaultWorkers    = 4
	DefaultSleepDelay = 5 * time.Second
)

type Config struct {
	Addr           string
	Workers        uint
	MaxConnections int
	Root           string
	SleepDelay     time.Duration
	JournalPath    string
	MetricsAddr    string
	LogLevel       slog.Level

	// Mux overrides the default routes when set
	Mux *Mux

	// Logger overrides the logger built from LogLevel when set
	Logger *slog.Logger
}

// fileConfig is the on-disk shape of Config
type fileConfig struct {
	Addr           string `yaml:"addr"`
	Workers        int    `yaml:"workers"`
	MaxConnections int    `yaml:"max_connections"`
	Root           string `yaml:"root"`
	SleepDelay     string `yaml:"sleep_delay"`
	JournalPath    string `yaml:"journal_path"`
	MetricsAddr    string `yaml:"metrics_addr"`
	LogLevel       string `yaml:"log_level"`
}

func DefaultConfig() *Config {
	return &Config{
		Addr:       DefaultAddr,
		Workers:    DefaultWorkers,
		SleepDelay: DefaultSleepDelay,
		LogLevel:   slog.LevelInfo,
	}
}

// LoadConfig reads a YAML config file. Keys missing from the file keep
// their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err = yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return fc.toConfig()
}

func (fc *fileConfig) toConfig() (*Config, error) {
	cfg := DefaultConfig()

	if fc.Addr != "" {
		cfg.Addr = fc.Addr
	}

	if fc.Workers < 0 {
		return nil, fmt.Errorf("workers must be positive, got %d", fc.Workers)
	}
	if fc.Workers > 0 {
		cfg.Workers = uint(fc.Workers)
	}

	cfg.MaxConnections = fc.MaxConnections
	cfg.Root = fc.Root
	cfg.JournalPath = fc.JournalPath
	cfg.MetricsAddr = fc.MetricsAddr

	if fc.SleepDelay != "" {
		d, err := time.ParseDuration(fc.SleepDelay)
		if err != nil {
			return nil, fmt.Errorf("invalid sleep_delay: %w", err)
		}
		cfg.SleepDelay = d
	}

	if fc.LogLevel != "" {
		level, err := ParseLogLevel(fc.LogLevel)
		if err != nil {
			return nil, err
		}
		cfg.LogLevel = level
	}

	return cfg, nil
}

// ParseLogLevel accepts debug, info, warn or error in any case.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return level, fmt.Errorf("invalid log_level %q: %w", s, err)
	}
	return level, nil
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}

	if c.Workers == 0 {
		return errors.New("workers must be greater than zero")
	}

	if c.MaxConnections < 0 {
		return errors.New("max_connections must be non-negative")
	}

	if c.SleepDelay < 0 {
		return errors.New("sleep_delay must be non-negative")
	}

	if c.Root != "" {
		info, err := os.Stat(c.Root)
		if err != nil {
			return fmt.Errorf("invalid root: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("root %s is not a directory", c.Root)
		}
	}

	return nil
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: c.LogLevel}))
}
