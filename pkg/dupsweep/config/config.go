package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/logging"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
	"github.com/spf13/viper"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// CacheConfig configures the persistent digest cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Config represents the application configuration.
type Config struct {
	Algorithm      string   `mapstructure:"algorithm"`
	ChunkSize      string   `mapstructure:"chunk_size"`
	MinSize        string   `mapstructure:"min_size"`
	DefaultPath    string   `mapstructure:"default_path"`
	Exclude        []string `mapstructure:"exclude"`
	ExcludeHidden  bool     `mapstructure:"exclude_hidden"`
	Recursive      bool     `mapstructure:"recursive"`
	FollowDirLinks bool     `mapstructure:"follow_dir_links"`
	FastWalk       bool     `mapstructure:"fast_walk"`
	PrefilterSize  bool     `mapstructure:"prefilter_size"`
	Output         string   `mapstructure:"output"`
	Workers        struct {
		Hash int `mapstructure:"hash"`
	} `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
	Cache     CacheConfig   `mapstructure:"cache"`
	Logging   LoggingConfig `mapstructure:"logging"`
}

// Configure points v at the config file, environment and defaults. An empty
// cfgFile searches $XDG_CONFIG_HOME/dupsweep and ~/.config/dupsweep for
// config.yaml. A missing config file is not an error.
func Configure(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, appName))
		}
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", appName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("algorithm", DefaultAlgorithm)
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("min_size", DefaultMinSize)
	v.SetDefault("default_path", DefaultPath)
	v.SetDefault("exclude", DefaultExclusions)
	v.SetDefault("exclude_hidden", false)
	v.SetDefault("recursive", true)
	v.SetDefault("follow_dir_links", false)
	v.SetDefault("fast_walk", false)
	v.SetDefault("prefilter_size", false)
	v.SetDefault("output", DefaultOutput)
	v.SetDefault("workers.hash", DefaultHashWorkers)
	v.SetDefault("queue_size", DefaultQueueSize)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.path", "") // Empty means DefaultCachePath

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means DefaultLogPath
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", DefaultComponentLevels)
}

// Decode unmarshals v into a Config and expands ~ in its paths.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.DefaultPath, &cfg.Cache.Path, &cfg.Logging.Path} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	return &cfg, nil
}

// Load reads configuration from the default locations and the environment.
func Load() (*Config, error) {
	v := viper.New()
	if err := Configure(v, ""); err != nil {
		return nil, err
	}
	return Decode(v)
}

// ChunkSizeBytes parses ChunkSize.
func (c *Config) ChunkSizeBytes() (int, error) {
	n, err := types.ParseSize(c.ChunkSize)
	if err != nil {
		return 0, fmt.Errorf("invalid chunk size %q: %w", c.ChunkSize, err)
	}
	return int(n), nil
}

// MinSizeBytes parses MinSize.
func (c *Config) MinSizeBytes() (int64, error) {
	n, err := types.ParseSize(c.MinSize)
	if err != nil {
		return 0, fmt.Errorf("invalid minimum size %q: %w", c.MinSize, err)
	}
	return n, nil
}

// CachePath returns the configured cache directory or the default.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return DefaultCachePath()
}

// LoggingSetup converts the logging section into a logging.Config.
func (c *Config) LoggingSetup() (logging.Config, error) {
	rotation := logging.DefaultRotationConfig()
	if c.Logging.Rotation.MaxSize != "" {
		n, err := types.ParseSize(c.Logging.Rotation.MaxSize)
		if err != nil {
			return logging.Config{}, fmt.Errorf("invalid logging.rotation.max_size: %w", err)
		}
		rotation.MaxSize = n
	}
	rotation.MaxAge = c.Logging.Rotation.MaxAge
	rotation.MaxBackups = c.Logging.Rotation.MaxBackups
	rotation.Daily = c.Logging.Rotation.Daily

	path := c.Logging.Path
	if path == "" {
		path = DefaultLogPath()
	}

	return logging.Config{
		Level:      c.Logging.Level,
		Path:       path,
		Rotation:   rotation,
		Components: c.Logging.Components,
	}, nil
}

// ConfigDir returns the configuration directory.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, appName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", appName), nil
}

// ConfigPath returns the path of the default config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// StateDir returns $XDG_STATE_HOME/dupsweep for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, appName)
}

// CacheDir returns $XDG_CACHE_HOME/dupsweep.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, appName)
}

// DefaultCachePath returns the default digest cache directory.
func DefaultCachePath() string {
	return filepath.Join(CacheDir(), "digests")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), appName+".log")
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// WriteDefault writes a commented default config file and returns its path.
// An existing file is left untouched unless force is set.
func WriteDefault(force bool) (string, error) {
	if err := EnsureConfigDir(); err != nil {
		return "", err
	}

	configPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if !force {
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to check config file: %w", err)
		}
	}

	defaultConfig := fmt.Sprintf(`# dupsweep configuration

# Digest algorithm: blake2b-256, md5, sha1, sha256, sha512, xxh3-128, xxh64
algorithm: %s

# Read buffer per hash worker
chunk_size: %s

# Skip files smaller than this (0 includes empty files)
min_size: "%s"

# Path to scan when none is given
default_path: %s

# Glob patterns or absolute path prefixes to skip
exclude:
  - /proc
  - /sys
  - /dev

# Skip dotfiles and dot-directories
exclude_hidden: false

# Descend into subdirectories
recursive: true

# Descend into symlinked directories (cycles are detected)
follow_dir_links: false

# Read directories in parallel; group order within a run is unaffected
fast_walk: false

# Only hash files whose size is shared by another file
prefilter_size: false

# Output format: pretty, plain, json, jsonl, yaml, csv, markdown, paths, null
output: %s

workers:
  # Hash workers (0 = auto)
  hash: %d

# Work queue size (0 = auto)
queue_size: %d

# Persistent digest cache keyed by path, size and mtime
cache:
  enabled: false
  # Empty means $XDG_CACHE_HOME/dupsweep/digests
  path: ""

logging:
  # Log level: debug, info, warn, error
  level: info
  # Empty means $XDG_STATE_HOME/dupsweep/dupsweep.log
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  components:
    scanner: info
    walker: info
    cache: info
    cli: info
`, DefaultAlgorithm, DefaultChunkSize, DefaultMinSize, DefaultPath, DefaultOutput, DefaultHashWorkers, DefaultQueueSize)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}
