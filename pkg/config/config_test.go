package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cwerrors "github.com/yairfalse/cfgwatch/internal/errors"
	"github.com/yairfalse/cfgwatch/internal/normalizer"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfgwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
device:
  host: 192.168.0.161
  username: admin
  insecure_ignore_host_key: true
storage:
  base_dir: /var/lib/cfgwatch
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWith(viper.New(), writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "192.168.0.161", cfg.Device.ID)
	assert.Equal(t, 22, cfg.Device.Port)
	assert.Equal(t, 30*time.Second, cfg.Device.ConnectTimeout)
	assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Poll.CycleTimeout)
	assert.Equal(t, "show running-config", cfg.Commands.RunningConfig)
	assert.Len(t, cfg.Commands.Evidence, 4)
	assert.Equal(t, normalizer.DefaultVolatilePatterns, cfg.Normalizer.VolatilePatterns)
	assert.Equal(t, "/var/lib/cfgwatch", cfg.Push.RepoPath)
	assert.Equal(t, "main", cfg.Push.Branch)
	assert.Equal(t, 512, cfg.Explain.MaxTokens)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
device:
  id: core-r1
  host: r1.lab
  port: 2222
  username: ops
  insecure_ignore_host_key: true
poll:
  interval: 1m
commands:
  ping_targets: [2.2.2.2, 3.3.3.3]
normalizer:
  volatile_patterns: ["^! Last"]
mirror:
  enabled: true
  backend: gcs
  bucket: net-backups
`)
	cfg, err := LoadWith(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "core-r1", cfg.Device.ID)
	assert.Equal(t, 2222, cfg.Device.Port)
	assert.Equal(t, time.Minute, cfg.Poll.Interval)
	assert.Equal(t, []string{"2.2.2.2", "3.3.3.3"}, cfg.Commands.PingTargets)
	assert.Equal(t, []string{"^! Last"}, cfg.Normalizer.VolatilePatterns)
	assert.Equal(t, "gcs", cfg.Mirror.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("CFGWATCH_DEVICE_PASSWORD", "s3cret")
	t.Setenv("CFGWATCH_POLL_INTERVAL", "10s")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := LoadWith(viper.New(), writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Device.Password)
	assert.Equal(t, 10*time.Second, cfg.Poll.Interval)
	assert.Equal(t, "sk-test", cfg.Explain.APIKey)
}

func TestLoad_InvalidFile(t *testing.T) {
	_, err := LoadWith(viper.New(), writeConfig(t, "device: [unterminated"))
	require.Error(t, err)
	assert.True(t, cwerrors.Is(err, cwerrors.ErrInvalidConfiguration))

	_, err = LoadWith(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		param  string
	}{
		{"missing host", func(c *Config) { c.Device.Host = "" }, "device.host"},
		{"missing username", func(c *Config) { c.Device.Username = "" }, "device.username"},
		{"bad port", func(c *Config) { c.Device.Port = 70000 }, "device.port"},
		{"no host key policy", func(c *Config) {
			c.Device.InsecureIgnoreHostKey = false
			c.Device.KnownHosts = ""
		}, "device.known_hosts"},
		{"zero interval", func(c *Config) { c.Poll.Interval = 0 }, "poll.interval"},
		{"empty command", func(c *Config) { c.Commands.RunningConfig = " " }, "commands.running_config"},
		{"bad mirror backend", func(c *Config) {
			c.Mirror.Enabled = true
			c.Mirror.Backend = "ftp"
		}, "mirror.backend"},
		{"mirror without bucket", func(c *Config) { c.Mirror.Enabled = true }, "mirror.bucket"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadWith(viper.New(), writeConfig(t, minimalConfig))
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			var cerr *cwerrors.Error
			require.True(t, cwerrors.As(err, &cerr))
			assert.Equal(t, tt.param, cerr.Op)
			assert.Equal(t, 78, cwerrors.GetExitCode(err))
		})
	}
}

func TestExpandPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := &Config{}
	cfg.Storage.BaseDir = "~/backups"
	cfg.Device.KnownHosts = "~"
	cfg.Push.RepoPath = "/abs/repo"

	require.NoError(t, cfg.ExpandPaths())
	assert.Equal(t, filepath.Join(home, "backups"), cfg.Storage.BaseDir)
	assert.Equal(t, home, cfg.Device.KnownHosts)
	assert.Equal(t, "/abs/repo", cfg.Push.RepoPath)
}

func TestTarget(t *testing.T) {
	cfg, err := LoadWith(viper.New(), writeConfig(t, minimalConfig))
	require.NoError(t, err)
	cfg.Device.Password = "pw"

	target := cfg.Target()
	assert.Equal(t, "192.168.0.161:22", target.Address())
	assert.Equal(t, "pw", target.Password)
	assert.True(t, target.InsecureIgnoreHostKey)
	assert.Equal(t, 60*time.Second, target.CommandTimeout)
}

func TestInitConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, InitConfigFile(path))
	assert.Error(t, InitConfigFile(path))

	cfg, err := LoadWith(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "192.168.0.161", cfg.Device.Host)
	assert.Equal(t, []string{"2.2.2.2", "3.3.3.3"}, cfg.Commands.PingTargets)
}

func TestPromptPassword_NonInteractive(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer f.Close()

	cfg := &Config{}
	var out bytes.Buffer
	require.NoError(t, cfg.PromptPassword(f, &out))
	assert.Empty(t, cfg.Device.Password)
	assert.Empty(t, out.String())
}
