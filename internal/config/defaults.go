package config

import (
	"strings"
	"time"
)

const (
	DefaultPort           = 9006
	DefaultDocRoot        = "./resources"
	DefaultMaxConnections = 65535
	DefaultMaxEvents      = 10000
	DefaultThreads        = 8
	DefaultMaxRequests    = 10000
	DefaultBufferSize     = 2048
	DefaultTimeslot       = 5 * time.Second
	DefaultMetricsPort    = 9090
)

// Default returns a fully populated configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stdout",
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           DefaultPort,
			DocRoot:        DefaultDocRoot,
			MaxConnections: DefaultMaxConnections,
			MaxEvents:      DefaultMaxEvents,
			Threads:        DefaultThreads,
			MaxRequests:    DefaultMaxRequests,
			EventThreads:   1,
			ReadBuffer:     DefaultBufferSize,
			WriteBuffer:    DefaultBufferSize,
			Timeslot:       DefaultTimeslot,
		},
		Metrics: MetricsConfig{
			Port: DefaultMetricsPort,
		},
	}
}

// ApplyDefaults fills zero values and normalizes the log level to uppercase.
func ApplyDefaults(cfg *Config) {
	var d = Default()

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = d.Logging.Output
	}

	var s = &cfg.Server
	if s.Host == "" {
		s.Host = d.Server.Host
	}
	if s.DocRoot == "" {
		s.DocRoot = d.Server.DocRoot
	}
	// a trailing slash would double up with the leading slash of every target
	s.DocRoot = strings.TrimRight(s.DocRoot, "/")
	if s.DocRoot == "" {
		s.DocRoot = "/"
	}
	if s.MaxConnections == 0 {
		s.MaxConnections = d.Server.MaxConnections
	}
	if s.MaxEvents == 0 {
		s.MaxEvents = d.Server.MaxEvents
	}
	if s.Threads == 0 {
		s.Threads = d.Server.Threads
	}
	if s.MaxRequests == 0 {
		s.MaxRequests = d.Server.MaxRequests
	}
	if s.ReadBuffer == 0 {
		s.ReadBuffer = d.Server.ReadBuffer
	}
	if s.WriteBuffer == 0 {
		s.WriteBuffer = d.Server.WriteBuffer
	}
	if s.Timeslot == 0 {
		s.Timeslot = d.Server.Timeslot
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = d.Metrics.Port
	}
}
