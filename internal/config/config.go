// Package config loads the httpd configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags, applied by the caller after Load
//  2. Environment variables (HTTPD_*)
//  3. Configuration file (YAML, TOML or JSON)
//  4. Default values
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the complete server configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format is text or json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output is stdout, stderr or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig holds the reactor, worker pool and connection settings.
type ServerConfig struct {
	Host string `mapstructure:"host" validate:"required,ipv4"`

	// Port 0 binds an ephemeral port.
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`

	// DocRoot is prepended verbatim to every request target.
	DocRoot string `mapstructure:"doc_root" validate:"required"`

	// MaxConnections bounds both the live connection count and the fd table.
	MaxConnections int `mapstructure:"max_connections" validate:"gt=0"`

	// MaxEvents is the epoll_wait batch size.
	MaxEvents int `mapstructure:"max_events" validate:"gt=0"`

	// Threads is the number of parse/response workers.
	Threads int `mapstructure:"threads" validate:"gt=0"`

	// MaxRequests is the work queue depth.
	MaxRequests int `mapstructure:"max_requests" validate:"gt=0"`

	// EventThreads runs the OnAccept/OnClose/OnError hooks.
	EventThreads int `mapstructure:"event_threads" validate:"gte=0"`

	ReadBuffer  int `mapstructure:"read_buffer" validate:"gte=256"`
	WriteBuffer int `mapstructure:"write_buffer" validate:"gte=256"`

	// Timeslot is the sweep period; idle connections live for three timeslots.
	Timeslot time.Duration `mapstructure:"timeslot" validate:"gt=0"`

	// DetectContentType sniffs Content-Type from file bytes instead of sending text/html.
	DetectContentType bool `mapstructure:"detect_content_type"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// Load reads configuration from file, environment and defaults, then validates it.
// An empty configPath skips the file.
func Load(configPath string) (*Config, error) {
	var v = viper.New()
	setupViper(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := decode(v.AllSettings(), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// setupViper registers every key with its default so HTTPD_* variables resolve
// even when no config file mentions the key.
func setupViper(v *viper.Viper) {
	v.SetEnvPrefix("HTTPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var d = Default()
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.doc_root", d.Server.DocRoot)
	v.SetDefault("server.max_connections", d.Server.MaxConnections)
	v.SetDefault("server.max_events", d.Server.MaxEvents)
	v.SetDefault("server.threads", d.Server.Threads)
	v.SetDefault("server.max_requests", d.Server.MaxRequests)
	v.SetDefault("server.event_threads", d.Server.EventThreads)
	v.SetDefault("server.read_buffer", d.Server.ReadBuffer)
	v.SetDefault("server.write_buffer", d.Server.WriteBuffer)
	v.SetDefault("server.timeslot", d.Server.Timeslot)
	v.SetDefault("server.detect_content_type", d.Server.DetectContentType)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.port", d.Metrics.Port)
}

// decode maps viper's settings tree onto cfg, converting "5s" style strings
// and the string values that come from the environment.
func decode(input map[string]any, cfg *Config) error {
	var decoder, err = mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           cfg,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
