// Package config handles process settings for the hamster tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"hamster/internal/logging"
)

// Config holds the complete process configuration.
type Config struct {
	// Engine configures the decoding engine and its data directories.
	Engine EngineConfig `toml:"engine" json:"engine" yaml:"engine"`

	// Keyboard locates the keyboard document (hamster.yaml).
	Keyboard KeyboardConfig `toml:"keyboard" json:"keyboard" yaml:"keyboard"`

	// Store configures the dictionary database of the table engine.
	Store StoreConfig `toml:"store" json:"store" yaml:"store"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Notify configures desktop notifications.
	Notify NotifyConfig `toml:"notify" json:"notify" yaml:"notify"`
}

// EngineConfig holds the traits handed to the engine plus paging limits.
type EngineConfig struct {
	// SharedDataDir holds the read-only schema and dictionary sources.
	SharedDataDir string `toml:"shared_data_dir" json:"shared_data_dir" yaml:"shared_data_dir"`

	// UserDataDir holds default.custom.yaml and per-user state.
	UserDataDir string `toml:"user_data_dir" json:"user_data_dir" yaml:"user_data_dir"`

	DistributionName     string `toml:"distribution_name" json:"distribution_name" yaml:"distribution_name"`
	DistributionCodeName string `toml:"distribution_code_name" json:"distribution_code_name" yaml:"distribution_code_name"`
	DistributionVersion  string `toml:"distribution_version" json:"distribution_version" yaml:"distribution_version"`
	AppName              string `toml:"app_name" json:"app_name" yaml:"app_name"`

	// MaxCandidates caps a single candidate page.
	MaxCandidates int `toml:"max_candidates" json:"max_candidates" yaml:"max_candidates"`

	// PageSize is the number of candidates requested per page.
	PageSize int `toml:"page_size" json:"page_size" yaml:"page_size"`

	// SimplifiedOption is the engine option switching simplified and traditional output.
	SimplifiedOption string `toml:"simplified_option" json:"simplified_option" yaml:"simplified_option"`
}

// KeyboardConfig locates and governs the keyboard document.
type KeyboardConfig struct {
	// Path is the hamster.yaml document.
	Path string `toml:"path" json:"path" yaml:"path"`

	// Strict rejects unknown action verbs instead of passing them through.
	Strict bool `toml:"strict" json:"strict" yaml:"strict"`

	// Watch reloads the document when it changes on disk.
	Watch bool `toml:"watch" json:"watch" yaml:"watch"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	// Path is the sqlite database file.
	Path string `toml:"path" json:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level" yaml:"level"`
	Format     string `toml:"format" json:"format" yaml:"format"`
	Output     string `toml:"output" json:"output" yaml:"output"`
	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	Compress   bool   `toml:"compress" json:"compress" yaml:"compress"`
}

// NotifyConfig configures the desktop notification sink.
type NotifyConfig struct {
	// Desktop posts deploy results to the session bus.
	Desktop bool `toml:"desktop" json:"desktop" yaml:"desktop"`

	// TimeoutMs is the notification expiry; -1 lets the server decide.
	TimeoutMs int `toml:"timeout_ms" json:"timeout_ms" yaml:"timeout_ms"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Engine: EngineConfig{
			SharedDataDir:        filepath.Join(dir, "shared"),
			UserDataDir:          filepath.Join(dir, "rime"),
			DistributionName:     "Hamster",
			DistributionCodeName: "Hamster",
			DistributionVersion:  "1.0",
			AppName:              "rime.hamster",
			MaxCandidates:        100,
			PageSize:             10,
			SimplifiedOption:     "simplification",
		},
		Keyboard: KeyboardConfig{
			Path:   filepath.Join(xdg.ConfigHome, "hamster", "hamster.yaml"),
			Strict: true,
		},
		Store: StoreConfig{
			Path: filepath.Join(dir, "hamster.db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   logging.DefaultLogPath(),
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   true,
		},
		Notify: NotifyConfig{
			TimeoutMs: -1,
		},
	}
}

// DataDir returns the base data directory, honoring HAMSTER_DATA_DIR.
func DataDir() string {
	if envDir := os.Getenv("HAMSTER_DATA_DIR"); envDir != "" {
		return envDir
	}
	return filepath.Join(xdg.DataHome, "hamster")
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "hamster", "hamster.toml")
}

// Load reads configuration from path, applies environment overrides and validates.
// A missing file yields the defaults. The format follows the file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()

	switch filepath.Ext(path) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	}

	return cfg, nil
}

// Save writes cfg to path in the format implied by its extension.
func Save(cfg *Config, path string) error {
	var (
		data []byte
		err  error
	)

	switch filepath.Ext(path) {
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(cfg)
		data = []byte(sb.String())
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LoadOrCreate loads path, writing the defaults there first when it does not exist.
func LoadOrCreate(path string) (*Config, bool, error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := Save(cfg, path); err != nil {
			return nil, false, fmt.Errorf("create default config: %w", err)
		}
		cfg.ApplyEnvOverrides()
		return cfg, true, nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the data directories the engine and store write into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Engine.UserDataDir,
		filepath.Dir(c.Store.Path),
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies HAMSTER_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("HAMSTER_SHARED_DATA_DIR"); v != "" {
		c.Engine.SharedDataDir = v
	}
	if v := os.Getenv("HAMSTER_USER_DATA_DIR"); v != "" {
		c.Engine.UserDataDir = v
	}
	if v := os.Getenv("HAMSTER_MAX_CANDIDATES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.MaxCandidates = n
		}
	}
	if v := os.Getenv("HAMSTER_KEYBOARD_PATH"); v != "" {
		c.Keyboard.Path = v
	}
	if v := os.Getenv("HAMSTER_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("HAMSTER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("HAMSTER_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("HAMSTER_NOTIFY_DESKTOP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Notify.Desktop = b
		}
	}
}

// LoggerConfig converts the logging section into a logging.Config.
func (c *Config) LoggerConfig() (*logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Logging.Format)
	if err != nil {
		return nil, err
	}

	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = format
	lc.Output = c.Logging.Output
	lc.FilePath = c.Logging.FilePath
	lc.MaxSizeMB = int64(c.Logging.MaxSizeMB)
	lc.MaxBackups = c.Logging.MaxBackups
	lc.Compress = c.Logging.Compress
	return lc, nil
}
