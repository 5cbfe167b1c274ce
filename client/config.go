package client

import (
	"maps"
	"slices"
	"time"
)

// DefaultUserAgent is the pseudo-browser User-Agent sent when no
// headers are configured.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_3) AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/79.0.3945.130 Safari/537.36"

const (
	DefaultMaxRetries = 3
	DefaultEncoding   = "UTF-8"
)

// Config holds the settings a [Client] is built from.
type Config struct {
	Session    bool              `mapstructure:"session" json:"session"`
	Headers    map[string]string `mapstructure:"headers" json:"headers"`
	Encodings  []string          `mapstructure:"encodings" json:"encodings" validate:"required,min=1,dive,required,charset"`
	MaxRetries int               `mapstructure:"max_retries" json:"max_retries" validate:"min=1"`
	Timeout    time.Duration     `mapstructure:"timeout" json:"timeout" validate:"min=0"`
	Extra      map[string]string `mapstructure:"extra" json:"extra,omitempty"`
}

// DefaultHeaders returns a fresh copy of the default header set.
func DefaultHeaders() map[string]string {
	return map[string]string{"User-Agent": DefaultUserAgent}
}

// DefaultConfig is a session-backed client with three attempts per
// call, UTF-8 decoding and the default headers.
func DefaultConfig() Config {
	return Config{
		Session:    true,
		Headers:    DefaultHeaders(),
		Encodings:  []string{DefaultEncoding},
		MaxRetries: DefaultMaxRetries,
	}
}

func (cfg Config) withDefaults() Config {
	if cfg.Headers == nil {
		cfg.Headers = DefaultHeaders()
	}
	if len(cfg.Encodings) == 0 {
		cfg.Encodings = []string{DefaultEncoding}
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	return cfg.clone()
}

func (cfg Config) clone() Config {
	cfg.Headers = maps.Clone(cfg.Headers)
	cfg.Encodings = slices.Clone(cfg.Encodings)
	cfg.Extra = maps.Clone(cfg.Extra)
	return cfg
}
