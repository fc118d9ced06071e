package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	cwerrors "github.com/yairfalse/cfgwatch/internal/errors"
	"github.com/yairfalse/cfgwatch/internal/session"
)

// Config represents the complete cfgwatch configuration
type Config struct {
	Device     DeviceConfig     `mapstructure:"device"`
	Poll       PollConfig       `mapstructure:"poll"`
	Commands   CommandsConfig   `mapstructure:"commands"`
	Normalizer NormalizerConfig `mapstructure:"normalizer"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Push       PushConfig       `mapstructure:"push"`
	Mirror     MirrorConfig     `mapstructure:"mirror"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Explain    ExplainConfig    `mapstructure:"explain"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Output     OutputConfig     `mapstructure:"output"`
}

// DeviceConfig identifies the polled device and its credentials
type DeviceConfig struct {
	ID                    string        `mapstructure:"id"`
	Host                  string        `mapstructure:"host"`
	Port                  int           `mapstructure:"port"`
	DeviceType            string        `mapstructure:"device_type"`
	Username              string        `mapstructure:"username"`
	Password              string        `mapstructure:"password"`
	ConnectTimeout        time.Duration `mapstructure:"connect_timeout"`
	CommandTimeout        time.Duration `mapstructure:"command_timeout"`
	KnownHosts            string        `mapstructure:"known_hosts"`
	InsecureIgnoreHostKey bool          `mapstructure:"insecure_ignore_host_key"`
}

// PollConfig controls the polling loop
type PollConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	CycleTimeout time.Duration `mapstructure:"cycle_timeout"`
}

// CommandsConfig lists the device commands
type CommandsConfig struct {
	RunningConfig string   `mapstructure:"running_config"`
	Evidence      []string `mapstructure:"evidence"`
	PingTargets   []string `mapstructure:"ping_targets"`
}

// NormalizerConfig holds the volatile-line patterns
type NormalizerConfig struct {
	VolatilePatterns []string `mapstructure:"volatile_patterns"`
}

// StorageConfig contains storage configuration
type StorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// PushConfig contains git push configuration
type PushConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	RepoPath    string `mapstructure:"repo_path"`
	Remote      string `mapstructure:"remote"`
	RemoteName  string `mapstructure:"remote_name"`
	Branch      string `mapstructure:"branch"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	AuthorName  string `mapstructure:"author_name"`
	AuthorEmail string `mapstructure:"author_email"`
}

// MirrorConfig contains object storage mirror configuration
type MirrorConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Backend         string `mapstructure:"backend"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Account         string `mapstructure:"account"`
	AccountKey      string `mapstructure:"account_key"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// MetricsConfig contains CloudWatch metrics configuration
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Region    string `mapstructure:"region"`
}

// ExplainConfig contains change explanation configuration
type ExplainConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OutputConfig contains output formatting configuration
type OutputConfig struct {
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

// Load loads configuration from the global viper instance
func Load(cfgFile string) (*Config, error) {
	return LoadWith(viper.GetViper(), cfgFile)
}

// LoadWith loads configuration into v from cfgFile, or from the first of
// ConfigSearchPaths that exists, then from CFGWATCH_ environment variables.
func LoadWith(v *viper.Viper, cfgFile string) (*Config, error) {
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("CFGWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map environment variables to config keys
	v.BindEnv("explain.api_key", "CFGWATCH_EXPLAIN_API_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("device.password", "CFGWATCH_DEVICE_PASSWORD")
	v.BindEnv("push.password", "CFGWATCH_PUSH_PASSWORD")

	if cfgFile == "" {
		cfgFile = findConfigFile()
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, cwerrors.ConfigError("config", cfgFile, fmt.Errorf("failed to read config file: %w", err))
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, cwerrors.ConfigError("config", cfgFile, fmt.Errorf("failed to unmarshal config: %w", err))
	}

	config.applyDerived()
	return config, nil
}

// ConfigSearchPaths returns the locations searched when no file is given
func ConfigSearchPaths() []string {
	paths := []string{"cfgwatch.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".cfgwatch", "config.yaml"))
	}
	return paths
}

func findConfigFile() string {
	for _, p := range ConfigSearchPaths() {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// applyDerived fills values that default to other values
func (c *Config) applyDerived() {
	if c.Device.ID == "" {
		c.Device.ID = c.Device.Host
	}
	if c.Push.RepoPath == "" {
		c.Push.RepoPath = c.Storage.BaseDir
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Device.Host == "" {
		return cwerrors.ConfigError("device.host", nil, fmt.Errorf("device host is required"))
	}
	if c.Device.Username == "" {
		return cwerrors.ConfigError("device.username", nil, fmt.Errorf("device username is required"))
	}
	if c.Device.Port < 1 || c.Device.Port > 65535 {
		return cwerrors.ConfigError("device.port", c.Device.Port, fmt.Errorf("port must be between 1 and 65535"))
	}
	if !c.Device.InsecureIgnoreHostKey && c.Device.KnownHosts == "" {
		return cwerrors.ConfigError("device.known_hosts", nil,
			fmt.Errorf("known_hosts is required unless insecure_ignore_host_key is set"))
	}
	if c.Poll.Interval <= 0 {
		return cwerrors.ConfigError("poll.interval", c.Poll.Interval, fmt.Errorf("interval must be positive"))
	}
	if c.Poll.CycleTimeout < 0 {
		return cwerrors.ConfigError("poll.cycle_timeout", c.Poll.CycleTimeout, fmt.Errorf("cycle timeout must not be negative"))
	}
	if strings.TrimSpace(c.Commands.RunningConfig) == "" {
		return cwerrors.ConfigError("commands.running_config", nil, fmt.Errorf("running config command is required"))
	}
	if c.Storage.BaseDir == "" {
		return cwerrors.ConfigError("storage.base_dir", nil, fmt.Errorf("storage base dir is required"))
	}

	if c.Push.Enabled && c.Push.RepoPath == "" {
		return cwerrors.ConfigError("push.repo_path", nil, fmt.Errorf("repo path is required when push is enabled"))
	}
	if c.Mirror.Enabled {
		switch strings.ToLower(c.Mirror.Backend) {
		case "s3", "gcs", "azure":
		default:
			return cwerrors.ConfigError("mirror.backend", c.Mirror.Backend, fmt.Errorf("backend must be s3, gcs or azure"))
		}
		if c.Mirror.Bucket == "" {
			return cwerrors.ConfigError("mirror.bucket", nil, fmt.Errorf("bucket is required when mirror is enabled"))
		}
	}
	if c.Explain.Enabled && c.Explain.MaxTokens <= 0 {
		return cwerrors.ConfigError("explain.max_tokens", c.Explain.MaxTokens, fmt.Errorf("max tokens must be positive"))
	}

	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return cwerrors.ConfigError("logging.level", c.Logging.Level, err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return cwerrors.ConfigError("logging.format", c.Logging.Format, fmt.Errorf("format must be text or json"))
	}

	return nil
}

// ExpandPaths expands home directory paths
func (c *Config) ExpandPaths() error {
	paths := map[string]*string{
		"storage.base_dir":        &c.Storage.BaseDir,
		"push.repo_path":          &c.Push.RepoPath,
		"device.known_hosts":      &c.Device.KnownHosts,
		"mirror.credentials_file": &c.Mirror.CredentialsFile,
	}
	for name, p := range paths {
		expanded, err := expandPath(*p)
		if err != nil {
			return cwerrors.ConfigError(name, *p, fmt.Errorf("failed to expand path: %w", err))
		}
		*p = expanded
	}
	return nil
}

// Target returns the session target for the configured device
func (c *Config) Target() session.Target {
	return session.Target{
		Host:                  c.Device.Host,
		Port:                  c.Device.Port,
		Username:              c.Device.Username,
		Password:              c.Device.Password,
		ConnectTimeout:        c.Device.ConnectTimeout,
		CommandTimeout:        c.Device.CommandTimeout,
		KnownHostsFile:        c.Device.KnownHosts,
		InsecureIgnoreHostKey: c.Device.InsecureIgnoreHostKey,
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path, err
	}

	if len(path) == 1 {
		return home, nil
	}

	return filepath.Join(home, path[1:]), nil
}
