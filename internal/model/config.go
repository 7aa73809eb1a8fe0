package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultBaseURL is the relay the client talks to when nothing is configured.
const DefaultBaseURL = "https://emai-node.onrender.com"

// ServerConfig holds the relay connection settings.
type ServerConfig struct {
	// BaseURL is the root URL of the mail relay.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds every request, including body transfer.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxRetries is how often an idempotent GET is retried on HTTP 429.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Level string `mapstructure:"level" yaml:"level"`
}

// DedupConfig controls how refresh snapshots are merged.
type DedupConfig struct {
	// KeepUnidentified keeps every message that has no identifier instead
	// of collapsing them into one entry.
	KeepUnidentified bool `mapstructure:"keep_unidentified" yaml:"keep_unidentified"`
}

// ExportConfig controls where opened messages are saved.
type ExportConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Dedup  DedupConfig  `mapstructure:"dedup" yaml:"dedup"`
	Export ExportConfig `mapstructure:"export" yaml:"export"`
}

// configDir returns ~/.config/relaymail, or "." if the home directory is
// unavailable.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "relaymail")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/relaymail/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	exportDir := filepath.Join(".", "exports")
	if home, err := os.UserHomeDir(); err == nil {
		exportDir = filepath.Join(home, "Mail", "relaymail")
	}

	return &AppConfig{
		Server: ServerConfig{
			BaseURL:    DefaultBaseURL,
			TimeoutSec: 30,
			MaxRetries: 3,
		},
		Log: LogConfig{
			Path:  filepath.Join(configDir(), "relaymail.log"),
			Level: "info",
		},
		Export: ExportConfig{Dir: exportDir},
	}
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"base-url":  "server.base_url",
	"log-level": "log.level",
}

// LoadConfig reads configuration from the given YAML file path on the OS
// filesystem. See ReadConfig.
func LoadConfig(path string, flags *pflag.FlagSet) (*AppConfig, error) {
	return ReadConfig(afero.NewOsFs(), path, flags)
}

// ReadConfig reads configuration from the YAML file at path on fsys using
// Viper. Values are layered: defaults, then the file, then RELAYMAIL_*
// environment variables, then any changed flags (which may be nil). A
// missing file is not an error.
func ReadConfig(fsys afero.Fs, path string, flags *pflag.FlagSet) (*AppConfig, error) {
	def := defaultAppConfig()

	v := viper.New()
	v.SetFs(fsys)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RELAYMAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values and so
	// AutomaticEnv can see every key during Unmarshal.
	v.SetDefault("server.base_url", def.Server.BaseURL)
	v.SetDefault("server.timeout_sec", def.Server.TimeoutSec)
	v.SetDefault("server.max_retries", def.Server.MaxRetries)
	v.SetDefault("log.path", def.Log.Path)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("dedup.keep_unidentified", def.Dedup.KeepUnidentified)
	v.SetDefault("export.dir", def.Export.Dir)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = DefaultBaseURL
	}
	if cfg.Server.TimeoutSec <= 0 {
		cfg.Server.TimeoutSec = def.Server.TimeoutSec
	}
	if cfg.Server.MaxRetries < 0 {
		cfg.Server.MaxRetries = 0
	}
	cfg.Log.Path = ExpandHome(cfg.Log.Path)
	cfg.Export.Dir = ExpandHome(cfg.Export.Dir)

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path on
// fsys, creating parent directories if needed.
func SaveConfig(fsys afero.Fs, path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetFs(fsys)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server.base_url", cfg.Server.BaseURL)
	v.Set("server.timeout_sec", cfg.Server.TimeoutSec)
	v.Set("server.max_retries", cfg.Server.MaxRetries)
	v.Set("log.path", cfg.Log.Path)
	v.Set("log.level", cfg.Log.Level)
	v.Set("dedup.keep_unidentified", cfg.Dedup.KeepUnidentified)
	v.Set("export.dir", cfg.Export.Dir)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
