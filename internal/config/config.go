package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Endpoint is a resolved pair of base URLs for one environment. It is built
// once at startup and passed into constructors explicitly; nothing reads a
// process-wide global.
type Endpoint struct {
	WS   string `yaml:"ws"`
	HTTP string `yaml:"http"`
}

type Config struct {
	Endpoint struct {
		Mode string   `yaml:"mode"` // "dev" or "prod"
		Dev  Endpoint `yaml:"dev"`
		Prod Endpoint `yaml:"prod"`
	} `yaml:"endpoint"`
	Reconnect struct {
		InitialInterval string `yaml:"initialInterval"`
		MaxInterval     string `yaml:"maxInterval"`
		MaxRetries      uint64 `yaml:"maxRetries"`
	} `yaml:"reconnect"`
	Battle struct {
		MaxTime int    `yaml:"maxTime"`
		Mode    string `yaml:"mode"`
	} `yaml:"battle"`
	Server struct {
		Port  string `yaml:"port"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			TTL      string `yaml:"ttl"`
		} `yaml:"redis"`
		Postgres struct {
			URL string `yaml:"url"`
		} `yaml:"postgres"`
	} `yaml:"server"`
}

// Default is the zero-config development setup: local endpoints, in-memory
// server stores, sixty-second rounds.
func Default() Config {
	cfg := Config{}
	cfg.Endpoint.Mode = "dev"
	cfg.Endpoint.Dev = Endpoint{WS: "ws://127.0.0.1:8080", HTTP: "http://127.0.0.1:8080"}
	cfg.Battle.MaxTime = 60
	cfg.Battle.Mode = "shared"
	cfg.Server.Port = "8080"
	return cfg
}

// Load reads YAML config from path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ResolveEndpoint selects the environment named by endpoint.mode.
func (c Config) ResolveEndpoint() Endpoint {
	if c.Endpoint.Mode == "prod" && c.Endpoint.Prod.WS != "" {
		return c.Endpoint.Prod
	}
	return c.Endpoint.Dev
}

// Duration parses a duration string or returns the fallback if empty or
// malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
