package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_DefaultConfig(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	var cfg = Default()
	cfg.Logging.Level = "VERBOSE"

	var err = Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oneof")
}

func TestValidate_Rejects(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"format":        func(c *Config) { c.Logging.Format = "xml" },
		"host":          func(c *Config) { c.Server.Host = "not-an-ip" },
		"port":          func(c *Config) { c.Server.Port = 70000 },
		"threads":       func(c *Config) { c.Server.Threads = -1 },
		"small buffer":  func(c *Config) { c.Server.ReadBuffer = 16 },
		"queue":         func(c *Config) { c.Server.MaxRequests = 2; c.Server.Threads = 4 },
		"event threads": func(c *Config) { c.Server.MaxRequests = 2; c.Server.Threads = 1; c.Server.EventThreads = 4 },
		"metrics clash": func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = c.Server.Port },
	} {
		t.Run(name, func(t *testing.T) {
			var cfg = Default()
			mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg = &Config{}
	cfg.Logging.Level = "debug"
	cfg.Server.DocRoot = "/srv/www/"

	ApplyDefaults(cfg)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "/srv/www", cfg.Server.DocRoot)
	assert.Equal(t, DefaultThreads, cfg.Server.Threads)
	assert.Equal(t, DefaultBufferSize, cfg.Server.ReadBuffer)
	assert.Equal(t, DefaultTimeslot, cfg.Server.Timeslot)
	assert.NoError(t, Validate(cfg))
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.Timeslot)
}

func TestLoad_FileAndEnv(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "httpd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: warn
server:
  port: 8080
  doc_root: /var/www
  threads: 4
  timeslot: 2s
`), 0644))
	t.Setenv("HTTPD_SERVER_THREADS", "16")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/var/www", cfg.Server.DocRoot)
	assert.Equal(t, 16, cfg.Server.Threads)
	assert.Equal(t, 2*time.Second, cfg.Server.Timeslot)
	assert.Equal(t, DefaultMaxRequests, cfg.Server.MaxRequests)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
