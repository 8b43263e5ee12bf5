package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. OPENMAIL_LOG_LEVEL or
// OPENMAIL_NETWORK_TIMEOUT.
const EnvPrefix = "OPENMAIL"

const appName = "openemail"

// NetworkConfig holds requester settings.
type NetworkConfig struct {
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent  string        `mapstructure:"user_agent" yaml:"user_agent"`
	Simulation bool          `mapstructure:"simulation" yaml:"simulation"`
}

// AgentsConfig holds agent discovery settings.
type AgentsConfig struct {
	// CacheTTL expires resolved agent lists; zero keeps them for the
	// lifetime of the process.
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	Max      int           `mapstructure:"max" yaml:"max"`
}

// CacheConfig selects the local cache backend.
type CacheConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
}

// SecurityConfig holds optional verification switches.
type SecurityConfig struct {
	VerifySignatures bool `mapstructure:"verify_signatures" yaml:"verify_signatures"`
}

// Config is the client configuration.
type Config struct {
	DataDir  string         `mapstructure:"data_dir" yaml:"data_dir"`
	LogLevel string         `mapstructure:"log_level" yaml:"log_level"`
	Network  NetworkConfig  `mapstructure:"network" yaml:"network"`
	Agents   AgentsConfig   `mapstructure:"agents" yaml:"agents"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Security SecurityConfig `mapstructure:"security" yaml:"security"`
}

// DefaultConfigPath returns ~/.config/openemail/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", appName, "config.yaml")
}

// DefaultDataDir returns $XDG_DATA_HOME/openemail, falling back to
// ~/.local/share/openemail.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", appName)
	}
	return filepath.Join(home, ".local", "share", appName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("log_level", "info")
	v.SetDefault("network.timeout", 30*time.Second)
	v.SetDefault("network.user_agent", "openmail/1.0")
	v.SetDefault("network.simulation", false)
	v.SetDefault("agents.cache_ttl", time.Duration(0))
	v.SetDefault("agents.max", 3)
	v.SetDefault("cache.backend", "file")
	v.SetDefault("security.verify_signatures", false)
}

// Load reads configuration from the YAML file at path, applying defaults
// and OPENMAIL_* environment overrides. A missing file yields the defaults
// (still subject to the environment).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
			logrus.WithFields(logrus.Fields{
				"function": "Load",
				"path":     path,
			}).Debug("Config file not found, using defaults")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be repaired by defaults.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.Network.Timeout <= 0 {
		return fmt.Errorf("network.timeout must be positive, got %s", c.Network.Timeout)
	}
	if c.Agents.CacheTTL < 0 {
		return fmt.Errorf("agents.cache_ttl must not be negative, got %s", c.Agents.CacheTTL)
	}
	if c.Agents.Max <= 0 {
		return fmt.Errorf("agents.max must be positive, got %d", c.Agents.Max)
	}
	switch c.Cache.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("cache.backend must be file or sqlite, got %q", c.Cache.Backend)
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// Save writes cfg as YAML to path, creating parent directories if needed.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("data_dir", cfg.DataDir)
	v.Set("log_level", cfg.LogLevel)
	v.Set("network.timeout", cfg.Network.Timeout.String())
	v.Set("network.user_agent", cfg.Network.UserAgent)
	v.Set("network.simulation", cfg.Network.Simulation)
	v.Set("agents.cache_ttl", cfg.Agents.CacheTTL.String())
	v.Set("agents.max", cfg.Agents.Max)
	v.Set("cache.backend", cfg.Cache.Backend)
	v.Set("security.verify_signatures", cfg.Security.VerifySignatures)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
