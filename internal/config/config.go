package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Travis-Britz/ddnsclient/internal/logger"
)

var AppName = "ddnsclient"

// Config represents the client configuration
type Config struct {
	Domain   string         `mapstructure:"domain"`
	TTL      int            `mapstructure:"ttl"`
	Provider string         `mapstructure:"provider"` // http or cloudflare
	Endpoint string         `mapstructure:"endpoint"` // update endpoint for the http provider
	APIKey   string         `mapstructure:"api_key"`
	KeyFile  string         `mapstructure:"key_file"`
	StateDir string         `mapstructure:"state_dir"`
	IPv4     ResolverConfig `mapstructure:"ipv4"`
	IPv6     ResolverConfig `mapstructure:"ipv6"`
	Daemon   DaemonConfig   `mapstructure:"daemon"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      logger.Config  `mapstructure:"log"`
}

// ResolverConfig represents IP detection configuration for one address family
type ResolverConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Preferred string   `mapstructure:"preferred"`
	Providers []string `mapstructure:"providers"`
	Interface string   `mapstructure:"interface"`
}

// DaemonConfig represents daemon scheduling configuration
type DaemonConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// MetricsConfig represents metrics exposition configuration
type MetricsConfig struct {
	Address string `mapstructure:"address"` // empty disables the endpoint
}

const (
	ProviderHTTP       = "http"
	ProviderCloudflare = "cloudflare"
)

// Load reads configuration from path, or from the search paths when path is empty.
// A missing config file is not an error; DDNS_* environment variables and defaults still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/" + AppName)
		v.AddConfigPath("/etc/" + AppName)
	}
	v.SetConfigType("yaml")

	v.SetEnvPrefix("DDNS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers default values; registering them also lets AutomaticEnv see every key
func setDefaults(v *viper.Viper) {
	v.SetDefault("domain", "")
	v.SetDefault("ttl", 300)
	v.SetDefault("provider", ProviderHTTP)
	v.SetDefault("endpoint", "")
	v.SetDefault("api_key", "")
	v.SetDefault("key_file", "")
	v.SetDefault("state_dir", "")
	v.SetDefault("ipv4.enabled", true)
	v.SetDefault("ipv4.preferred", "")
	v.SetDefault("ipv4.providers", []string{})
	v.SetDefault("ipv4.interface", "")
	v.SetDefault("ipv6.enabled", false)
	v.SetDefault("ipv6.preferred", "")
	v.SetDefault("ipv6.providers", []string{})
	v.SetDefault("ipv6.interface", "")
	v.SetDefault("daemon.interval", 5*time.Minute)
	v.SetDefault("metrics.address", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", false)
}

// Validate validates the configuration
func (cfg *Config) Validate() error {
	if cfg.Domain == "" {
		return errors.New("domain cannot be empty")
	}
	if !strings.Contains(cfg.Domain, ".") {
		return errors.New("domain must have at least one dot")
	}
	if cfg.TTL < 0 {
		return fmt.Errorf("ttl must not be negative: %d", cfg.TTL)
	}
	switch cfg.Provider {
	case ProviderHTTP:
		if cfg.Endpoint == "" {
			return errors.New("endpoint is required for the http provider")
		}
		if err := validateURL(cfg.Endpoint); err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
	case ProviderCloudflare:
	default:
		return fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	if !cfg.IPv4.Enabled {
		return errors.New("ipv4 cannot be disabled; only ipv6 is optional")
	}
	for _, rc := range []ResolverConfig{cfg.IPv4, cfg.IPv6} {
		for _, u := range append([]string{rc.Preferred}, rc.Providers...) {
			if u == "" {
				continue
			}
			if err := validateURL(u); err != nil {
				return fmt.Errorf("ip provider: %w", err)
			}
		}
	}
	if cfg.Daemon.Interval < time.Second {
		return fmt.Errorf("daemon.interval must be at least 1s: %s", cfg.Daemon.Interval)
	}
	return cfg.Log.Validate()
}

func validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("error parsing URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q must be an http or https URL", s)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", s)
	}
	return nil
}
