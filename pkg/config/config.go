package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Sim     SimConfig     `yaml:"sim"`
	Relay   RelayConfig   `yaml:"relay"`
	Feeds   FeedsConfig   `yaml:"feeds"`
	Request RequestConfig `yaml:"request"`
	Ticker  TickerConfig  `yaml:"ticker"`
	Log     LogConfig     `yaml:"log"`
	API     APIConfig     `yaml:"api"`
}

// SimConfig holds settings for the simulator link.
type SimConfig struct {
	Provider string        `yaml:"provider"` // "fsuipc", "mock"
	Connect  RetryConfig   `yaml:"connect"`
	Mock     MockSimConfig `yaml:"mock"`
}

// RetryConfig bounds the startup connection attempts.
type RetryConfig struct {
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
	MaxAttempts int      `yaml:"max_attempts"` // 0 retries until shutdown
}

// MockSimConfig holds settings for the mock simulator.
type MockSimConfig struct {
	CenterLat       float64  `yaml:"center_lat"`
	CenterLon       float64  `yaml:"center_lon"`
	Traffic         []string `yaml:"traffic"`
	Transponder     string   `yaml:"transponder"`      // own aircraft squawk
	ConnectFailures int      `yaml:"connect_failures"` // simulated "not running" answers before connecting
}

// RelayConfig holds the controller-facing TCP settings.
type RelayConfig struct {
	Listen          string   `yaml:"listen"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	MaxSendFailures int      `yaml:"max_send_failures"`
	Welcome         string   `yaml:"welcome"`
}

// FeedsConfig holds the remote data feed endpoints and refresh intervals.
type FeedsConfig struct {
	DataURL       string   `yaml:"data_url"`
	MetarURL      string   `yaml:"metar_url"`
	DataInterval  Duration `yaml:"data_interval"`
	MetarInterval Duration `yaml:"metar_interval"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// TickerConfig holds the orchestrator cadence.
type TickerConfig struct {
	Interval  Duration `yaml:"interval"`
	SyncEvery int      `yaml:"sync_every"` // full traffic sync every N ticks
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Protocol LogSettings `yaml:"protocol"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path       string `yaml:"path"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// APIConfig holds the local status server settings. An empty address disables it.
type APIConfig struct {
	Address string `yaml:"address"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Sim: SimConfig{
			Provider: "fsuipc",
			Connect: RetryConfig{
				BaseDelay:   Duration(3 * time.Second),
				MaxDelay:    Duration(30 * time.Second),
				MaxAttempts: 0,
			},
			Mock: MockSimConfig{
				CenterLat:   51.4700,
				CenterLon:   -0.4543,
				Traffic:     []string{"BAW123", "EZY45AB", "DLH4TK"},
				Transponder: "7000",
			},
		},
		Relay: RelayConfig{
			Listen:          "127.0.0.1:6809",
			WriteTimeout:    Duration(2 * time.Second),
			MaxSendFailures: 5,
			Welcome:         "Connected to Traffic Viewer. Welcome!",
		},
		Feeds: FeedsConfig{
			DataURL:       "https://data.vatsim.net/v3/vatsim-data.json",
			MetarURL:      "https://metar.vatsim.net/metar.php?id=all",
			DataInterval:  Duration(20 * time.Second),
			MetarInterval: Duration(10 * time.Minute),
		},
		Request: RequestConfig{
			Retries: 1,
			Timeout: Duration(30 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(60 * time.Second),
			},
		},
		Ticker: TickerConfig{
			Interval:  Duration(1 * time.Second),
			SyncEvery: 4,
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:       "./logs/server.log",
				Level:      "INFO",
				MaxSizeMB:  16,
				MaxBackups: 3,
			},
			Protocol: LogSettings{
				Path:       "./logs/protocol.log",
				Level:      "INFO",
				MaxSizeMB:  32,
				MaxBackups: 1,
			},
		},
		API: APIConfig{
			Address: "127.0.0.1:6810",
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it is created with default values.
// Values from a .env file next to the config and from the environment are
// applied on top but never written back.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	if err := applyEnv(cfg, filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var reLevel = regexp.MustCompile(`^(?i)(debug|info|warn|error)$`)

// Validate checks the values that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	var errs []error

	if _, _, err := net.SplitHostPort(c.Relay.Listen); err != nil {
		errs = append(errs, fmt.Errorf("relay.listen %q: %w", c.Relay.Listen, err))
	}
	if c.API.Address != "" {
		if _, _, err := net.SplitHostPort(c.API.Address); err != nil {
			errs = append(errs, fmt.Errorf("api.address %q: %w", c.API.Address, err))
		}
	}
	if c.Feeds.DataURL == "" || c.Feeds.MetarURL == "" {
		errs = append(errs, errors.New("feeds.data_url and feeds.metar_url are required"))
	}
	if c.Feeds.DataInterval <= 0 || c.Feeds.MetarInterval <= 0 {
		errs = append(errs, errors.New("feed intervals must be positive"))
	}
	if c.Ticker.Interval <= 0 {
		errs = append(errs, errors.New("ticker.interval must be positive"))
	}
	if c.Ticker.SyncEvery < 1 {
		errs = append(errs, fmt.Errorf("ticker.sync_every must be >= 1, got %d", c.Ticker.SyncEvery))
	}
	switch strings.ToLower(c.Sim.Provider) {
	case "fsuipc", "mock":
	default:
		errs = append(errs, fmt.Errorf("sim.provider %q: must be fsuipc or mock", c.Sim.Provider))
	}
	for name, s := range map[string]LogSettings{"server": c.Log.Server, "protocol": c.Log.Protocol} {
		if s.Level != "" && !reLevel.MatchString(s.Level) {
			errs = append(errs, fmt.Errorf("log.%s.level %q: must be DEBUG, INFO, WARN or ERROR", name, s.Level))
		}
	}

	return errors.Join(errs...)
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Traffic Viewer Configuration
# ---------------------------
# Durations: ns, us, ms, s, m, h, d (day)
# Environment overrides (also read from .env next to this file):
#   TRAFFICVIEWER_DATA_URL, TRAFFICVIEWER_METAR_URL, TRAFFICVIEWER_LISTEN,
#   TRAFFICVIEWER_API, TRAFFICVIEWER_SIM

`)
	data = append(header, data...)

	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: fsuipc, mock\n${1}provider:"))

	reAPI := regexp.MustCompile(`(?m)^(\s+)address:`)
	data = reAPI.ReplaceAll(data, []byte("${1}# Empty disables the status server\n${1}address:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
