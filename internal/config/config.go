// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

// Package config loads service configuration from defaults, an optional
// YAML file, and command line flags, in that order of precedence.
// Secrets are taken from the environment so they never live in files.
package config

import (
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/astralx/identity/internal/identity"
)

// Server holds HTTP listener settings.
type Server struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Database holds connection settings. URL comes from the DATABASE_URL
// environment variable, never from the config file.
type Database struct {
	URL string `koanf:"-"`
}

// Auth holds token issuance settings. The signing secrets come from
// environment variables, never from the config file.
type Auth struct {
	AccessSecret  string        `koanf:"-"`
	RefreshSecret string        `koanf:"-"`
	AccessTTL     time.Duration `koanf:"access_ttl"`
	RefreshTTL    time.Duration `koanf:"refresh_ttl"`
}

// Mail holds outbound email settings. With SMTPAddr empty, emails are
// logged instead of sent.
type Mail struct {
	SMTPAddr string `koanf:"smtp_addr"`
	From     string `koanf:"from"`
	BaseURL  string `koanf:"base_url"`
}

// Observability holds the metrics/health listener settings.
type Observability struct {
	Addr string `koanf:"addr"`
}

// Log holds logging settings.
type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Config is the full service configuration.
type Config struct {
	Server        Server        `koanf:"server"`
	Database      Database      `koanf:"database"`
	Auth          Auth          `koanf:"auth"`
	Mail          Mail          `koanf:"mail"`
	Observability Observability `koanf:"observability"`
	Log           Log           `koanf:"log"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Auth: Auth{
			AccessTTL:  identity.AccessTokenExpiry,
			RefreshTTL: identity.RefreshTokenExpiry,
		},
		Mail: Mail{
			From:    "no-reply@astralx.example",
			BaseURL: "http://localhost:8080",
		},
		Observability: Observability{
			Addr: ":9090",
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at
// path (if non-empty), then flags, then environment secrets.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_INVALID").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		// Only flags the user actually set may override the file; the
		// registered flag defaults are empty placeholders.
		provider := posflag.ProviderWithValue(flags, ".", k, func(key, value string) (string, any) {
			if f := flags.Lookup(key); f == nil || !f.Changed {
				return "", nil
			}
			return key, value
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
		}
	}

	cfg := Default()
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	cfg.Database.URL = os.Getenv("DATABASE_URL")
	cfg.Auth.AccessSecret = os.Getenv("IDENTITY_ACCESS_SECRET")
	cfg.Auth.RefreshSecret = os.Getenv("IDENTITY_REFRESH_SECRET")

	return &cfg, nil
}

// Validate checks that everything required to serve traffic is present.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}
	if c.Auth.AccessSecret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("IDENTITY_ACCESS_SECRET environment variable is required")
	}
	if c.Auth.RefreshSecret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("IDENTITY_REFRESH_SECRET environment variable is required")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return oops.Code("CONFIG_INVALID").Errorf("access and refresh signing secrets must differ")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("token TTLs must be positive")
	}
	return nil
}
