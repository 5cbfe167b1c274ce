// Package config loads the spider CLI configuration from a YAML file,
// SPIDER_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/adamwoolhether/spider/client"
)

// EnvPrefix prefixes every environment override, e.g. SPIDER_CLIENT_MAX_RETRIES.
const EnvPrefix = "SPIDER"

// Config is the full CLI configuration.
type Config struct {
	Client   client.Config  `mapstructure:"client"`
	Throttle ThrottleConfig `mapstructure:"throttle"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ThrottleConfig selects at most one throttle. A positive Step enables
// the fixed delay, otherwise a positive RPS enables the rate limiter.
type ThrottleConfig struct {
	Step  int           `mapstructure:"step"`
	Pause time.Duration `mapstructure:"pause"`
	RPS   int           `mapstructure:"rps"`
	Burst int           `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// FlagKeys maps flag names to configuration keys.
var FlagKeys = map[string]string{
	"session":     "client.session",
	"encodings":   "client.encodings",
	"retries":     "client.max_retries",
	"timeout":     "client.timeout",
	"delay-step":  "throttle.step",
	"delay-pause": "throttle.pause",
	"rps":         "throttle.rps",
	"burst":       "throttle.burst",
	"log-level":   "logging.level",
	"log-format":  "logging.format",
}

// Load reads configPath (or spider.yaml from the working directory
// and ~/.spider when empty), then applies environment variables and
// any flags in fs that were set.
func Load(configPath string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("spider")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".spider"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range FlagKeys {
			flag := fs.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Client.Headers = canonicalHeaders(cfg.Client.Headers)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// canonicalHeaders undoes viper's key lower-casing so a header set
// through a later client option replaces, rather than duplicates, it.
func canonicalHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}

	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[http.CanonicalHeaderKey(k)] = v
	}

	return out
}

func setDefaults(v *viper.Viper) {
	defaults := client.DefaultConfig()

	v.SetDefault("client.session", defaults.Session)
	v.SetDefault("client.headers", defaults.Headers)
	v.SetDefault("client.encodings", defaults.Encodings)
	v.SetDefault("client.max_retries", defaults.MaxRetries)
	v.SetDefault("client.timeout", 30*time.Second)

	v.SetDefault("throttle.step", 0)
	v.SetDefault("throttle.pause", time.Second)
	v.SetDefault("throttle.rps", 0)
	v.SetDefault("throttle.burst", 1)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func (cfg *Config) validate() error {
	if err := cfg.Client.Validate(); err != nil {
		return err
	}

	if cfg.Throttle.Step < 0 || cfg.Throttle.RPS < 0 {
		return errors.New("throttle step and rps must not be negative")
	}

	if _, err := parseLevel(cfg.Logging.Level); err != nil {
		return err
	}

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}

// Options turns the configuration into client options.
func (cfg *Config) Options() []client.Option {
	opts := []client.Option{client.WithConfig(cfg.Client)}

	switch {
	case cfg.Throttle.Step > 0:
		opts = append(opts, client.WithDelay(cfg.Throttle.Step, cfg.Throttle.Pause))
	case cfg.Throttle.RPS > 0:
		opts = append(opts, client.WithRateLimit(cfg.Throttle.RPS, max(cfg.Throttle.Burst, 1)))
	}

	return opts
}

// Logger builds the slog logger described by the logging section.
func (l LoggingConfig) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}

	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid logging level: %s", s)
	}

	return level, nil
}
