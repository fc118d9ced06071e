package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/yairfalse/cfgwatch/internal/evidence"
	"github.com/yairfalse/cfgwatch/internal/normalizer"
)

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Device defaults
	v.SetDefault("device.port", 22)
	v.SetDefault("device.device_type", "cisco_ios")
	v.SetDefault("device.connect_timeout", "30s")
	v.SetDefault("device.command_timeout", "60s")
	v.SetDefault("device.known_hosts", "~/.ssh/known_hosts")
	v.SetDefault("device.insecure_ignore_host_key", false)

	// Polling defaults
	v.SetDefault("poll.interval", "5s")
	v.SetDefault("poll.cycle_timeout", "2m")

	// Command defaults
	v.SetDefault("commands.running_config", "show running-config")
	v.SetDefault("commands.evidence", evidence.DefaultCommands)
	v.SetDefault("commands.ping_targets", []string{})

	v.SetDefault("normalizer.volatile_patterns", normalizer.DefaultVolatilePatterns)
	v.SetDefault("storage.base_dir", "~/.cfgwatch/backups")

	// Push defaults
	v.SetDefault("push.enabled", false)
	v.SetDefault("push.remote_name", "origin")
	v.SetDefault("push.branch", "main")
	v.SetDefault("push.author_name", "cfgwatch")
	v.SetDefault("push.author_email", "cfgwatch@localhost")

	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.backend", "s3")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "cfgwatch")

	v.SetDefault("explain.enabled", false)
	v.SetDefault("explain.model", "claude-3-5-haiku-latest")
	v.SetDefault("explain.max_tokens", 512)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("output.format", "table")
	v.SetDefault("output.no_color", false)
}

const exampleConfig = `# cfgwatch configuration
device:
  host: 192.168.0.161
  port: 22
  username: admin
  # password is read from CFGWATCH_DEVICE_PASSWORD or prompted when empty
  password: ""
  known_hosts: ~/.ssh/known_hosts
  insecure_ignore_host_key: false

poll:
  interval: 5s
  # upper bound for one cycle including push, mirror and explain calls
  cycle_timeout: 2m

commands:
  running_config: show running-config
  ping_targets:
    - 2.2.2.2
    - 3.3.3.3

storage:
  base_dir: ~/.cfgwatch/backups

push:
  enabled: false
  remote: ""
  branch: main

mirror:
  enabled: false
  backend: s3
  bucket: ""
  prefix: cfgwatch

metrics:
  enabled: false

explain:
  enabled: false

logging:
  level: info
  format: text
`

// InitConfigFile writes an example config file to path. An existing file
// is never overwritten.
func InitConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(exampleConfig), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
