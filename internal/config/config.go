// Package config loads the agent configuration from flags, environment and a YAML file.
package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g. EVENTFINDER_REMOTE_BASE_URL.
const EnvPrefix = "EVENTFINDER"

// Config is the complete agent configuration.
type Config struct {
	Listen  string       `mapstructure:"listen" yaml:"listen"`
	DataDir string       `mapstructure:"data_dir" yaml:"data_dir"`
	Remote  RemoteConfig `mapstructure:"remote" yaml:"remote"`
	Sync    SyncConfig   `mapstructure:"sync" yaml:"sync"`
	Log     LogConfig    `mapstructure:"log" yaml:"log"`
}

// RemoteConfig describes the event API.
type RemoteConfig struct {
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url"`
	ImagesBaseURL string        `mapstructure:"images_base_url" yaml:"images_base_url"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
}

// MarshalYAML writes durations in their readable form ("30s") rather than nanoseconds.
func (r RemoteConfig) MarshalYAML() (any, error) {
	return struct {
		BaseURL       string `yaml:"base_url"`
		ImagesBaseURL string `yaml:"images_base_url"`
		Timeout       string `yaml:"timeout"`
		ProbeTimeout  string `yaml:"probe_timeout"`
	}{r.BaseURL, r.ImagesBaseURL, r.Timeout.String(), r.ProbeTimeout.String()}, nil
}

// SyncConfig controls periodic synchronization.
type SyncConfig struct {
	// Schedule is a cron expression, an "@every" descriptor or a bare duration.
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
	OnStart  bool   `mapstructure:"on_start" yaml:"on_start"`
}

// LogConfig controls log output. An empty File logs to stderr.
type LogConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:  "127.0.0.1:8099",
		DataDir: defaultDataDir(),
		Remote: RemoteConfig{
			Timeout:      30 * time.Second,
			ProbeTimeout: 2 * time.Second,
		},
		Sync: SyncConfig{
			Schedule: "@every 15m",
			OnStart:  true,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "eventfinder")
	}
	return "data"
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	d := Default()

	c.Listen = strings.TrimSpace(c.Listen)
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	c.Remote.BaseURL = strings.TrimRight(strings.TrimSpace(c.Remote.BaseURL), "/")
	if c.Remote.ImagesBaseURL == "" && c.Remote.BaseURL != "" {
		c.Remote.ImagesBaseURL = c.Remote.BaseURL + "/"
	}
	if c.Remote.Timeout <= 0 {
		c.Remote.Timeout = d.Remote.Timeout
	}
	if c.Remote.ProbeTimeout <= 0 {
		c.Remote.ProbeTimeout = d.Remote.ProbeTimeout
	}
	if strings.TrimSpace(c.Sync.Schedule) == "" {
		c.Sync.Schedule = d.Sync.Schedule
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
	if c.Log.MaxBackups < 0 {
		c.Log.MaxBackups = 0
	}
	if c.Log.MaxAgeDays < 0 {
		c.Log.MaxAgeDays = 0
	}
}

// Validate reports configuration errors that Normalize cannot fix.
func (c Config) Validate() error {
	var errs []error
	if c.Remote.BaseURL != "" {
		if u, err := url.Parse(c.Remote.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("remote.base_url %q is not an absolute URL", c.Remote.BaseURL))
		}
	}
	if c.Remote.ImagesBaseURL != "" {
		if u, err := url.Parse(c.Remote.ImagesBaseURL); err != nil || u.Scheme == "" {
			errs = append(errs, fmt.Errorf("remote.images_base_url %q is not an absolute URL", c.Remote.ImagesBaseURL))
		}
	}
	return errors.Join(errs...)
}

// DBPath is the SQLite cache location.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "eventfinder.db")
}

// TempDir is where images are staged before upload.
func (c Config) TempDir() string {
	return filepath.Join(c.DataDir, "tmp")
}

// NewViper returns a viper instance with defaults and environment binding set up.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("listen", d.Listen)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("remote.base_url", d.Remote.BaseURL)
	v.SetDefault("remote.images_base_url", d.Remote.ImagesBaseURL)
	v.SetDefault("remote.timeout", d.Remote.Timeout)
	v.SetDefault("remote.probe_timeout", d.Remote.ProbeTimeout)
	v.SetDefault("sync.schedule", d.Sync.Schedule)
	v.SetDefault("sync.on_start", d.Sync.OnStart)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)
	return v
}

// Load reads the configuration. An explicit file must exist; without one the
// search path (./eventfinder.yaml, $HOME/.config/eventfinder/eventfinder.yaml) is optional.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigType("yaml")
		v.SetConfigName("eventfinder")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "eventfinder"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	} else {
		log.Printf("Using config file %s", v.ConfigFileUsed())
	}

	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Watch calls onChange with the reloaded configuration whenever the config
// file is written. Invalid edits are logged and ignored.
func Watch(v *viper.Viper, onChange func(Config)) {
	if v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			log.Printf("Ignoring config change in %s: %v", e.Name, err)
			return
		}
		log.Printf("Config file changed: %s", e.Name)
		onChange(cfg)
	})
	v.WatchConfig()
}

// WriteFile writes cfg as YAML. Existing files are not overwritten unless force is set.
func WriteFile(path string, cfg Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
