package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ibeckermayer/credify/internal/retry"
)

// EndpointEnv overrides Service.Endpoint when set.
const EndpointEnv = "CREDIFY_SERVICE_ENDPOINT"

// Config holds all application configuration
type Config struct {
	Version int           `toml:"version"`
	Browser BrowserConfig `toml:"browser"`
	Service ServiceConfig `toml:"service"`
	Engine  EngineConfig  `toml:"engine"`
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
	IPC     IPCConfig     `toml:"ipc"`
}

type BrowserConfig struct {
	Headless    bool   `toml:"headless"`
	StartURL    string `toml:"start_url"`
	Host        string `toml:"host"`
	UserDataDir string `toml:"user_data_dir"`
}

type ServiceConfig struct {
	Endpoint  string `toml:"endpoint"`
	BeginDate string `toml:"begin_date"`
	EndDate   string `toml:"end_date"`
}

// EngineConfig tunes injection and rescanning. Delays are in milliseconds.
type EngineConfig struct {
	ItemAttempts          int `toml:"item_attempts"`
	ItemDelayMS           int `toml:"item_delay_ms"`
	BarAttempts           int `toml:"bar_attempts"`
	BarDelayMS            int `toml:"bar_delay_ms"`
	DebounceMS            int `toml:"debounce_ms"`
	SettleMS              int `toml:"settle_ms"`
	RescanIntervalSeconds int `toml:"rescan_interval_seconds"`
}

type StorageConfig struct {
	DatabasePath          string `toml:"database_path"`
	ExchangeDir           string `toml:"exchange_dir"`
	ExchangeRetentionDays int    `toml:"exchange_retention_days"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type IPCConfig struct {
	SocketPath string `toml:"socket_path"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Browser: BrowserConfig{
			Headless: false,
			StartURL: "https://www.reddit.com/",
			Host:     "reddit.com",
		},
		Service: ServiceConfig{
			Endpoint:  "http://localhost:8000/fact-check",
			BeginDate: "20240101",
			EndDate:   "20241231",
		},
		Engine: EngineConfig{
			ItemAttempts:          20,
			ItemDelayMS:           500,
			BarAttempts:           10,
			BarDelayMS:            200,
			DebounceMS:            500,
			SettleMS:              1000,
			RescanIntervalSeconds: 30,
		},
		Storage: StorageConfig{
			ExchangeRetentionDays: 7,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ItemPolicy is the retry policy for finding a post element.
func (e EngineConfig) ItemPolicy() retry.Policy {
	return retry.Policy{Attempts: e.ItemAttempts, Delay: ms(e.ItemDelayMS)}
}

// BarPolicy is the retry policy for finding a post's action bar.
func (e EngineConfig) BarPolicy() retry.Policy {
	return retry.Policy{Attempts: e.BarAttempts, Delay: ms(e.BarDelayMS)}
}

func (e EngineConfig) Debounce() time.Duration { return ms(e.DebounceMS) }
func (e EngineConfig) Settle() time.Duration   { return ms(e.SettleMS) }

func (e EngineConfig) RescanInterval() time.Duration {
	return time.Duration(e.RescanIntervalSeconds) * time.Second
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "credify"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory.
// On macOS this is ~/Library/Caches/credify/
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "credify"), nil
}

// DataDir holds the database, browser profile and cookies.
func DataDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data"), nil
}

// Load reads config from path, or from ConfigPath when path is empty. A
// missing file is not an error: defaults are returned with exists=false.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolvePath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config: %w", err)
		}
		if err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return cfg, resolved, exists, nil
}

func resolvePath(path string) (string, bool, error) {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return "", false, err
		}
	}
	path, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return path, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return path, true, nil
}

func expandPath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %q: %w", p, err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return filepath.Clean(p), nil
}

func (c *Config) normalize() error {
	if v := strings.TrimSpace(os.Getenv(EndpointEnv)); v != "" {
		c.Service.Endpoint = v
	}
	c.Browser.Host = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Browser.Host)), "www.")
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	dataDir, err := DataDir()
	if err != nil {
		return err
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = filepath.Join(dataDir, "credify.db")
	}
	if c.Browser.UserDataDir == "" {
		c.Browser.UserDataDir = filepath.Join(dataDir, "chrome")
	}
	if c.IPC.SocketPath == "" {
		c.IPC.SocketPath = filepath.Join(dataDir, "credify.sock")
	}
	if c.Storage.ExchangeDir == "" {
		cacheDir, err := CacheDir()
		if err != nil {
			return err
		}
		c.Storage.ExchangeDir = filepath.Join(cacheDir, "exchanges")
	}
	for _, p := range []*string{&c.Storage.DatabasePath, &c.Storage.ExchangeDir, &c.Browser.UserDataDir, &c.IPC.SocketPath} {
		if *p, err = expandPath(*p); err != nil {
			return err
		}
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Service.Endpoint == "":
		return errors.New("service.endpoint must be set")
	case c.Browser.Host == "":
		return errors.New("browser.host must be set")
	case c.Engine.ItemAttempts < 1 || c.Engine.BarAttempts < 1:
		return errors.New("engine attempts must be at least 1")
	case c.Engine.ItemDelayMS < 0 || c.Engine.BarDelayMS < 0 || c.Engine.SettleMS < 0:
		return errors.New("engine delays must not be negative")
	case c.Engine.DebounceMS < 1:
		return errors.New("engine.debounce_ms must be positive")
	case c.Engine.RescanIntervalSeconds < 0:
		return errors.New("engine.rescan_interval_seconds must not be negative")
	case c.Storage.ExchangeRetentionDays < 0:
		return errors.New("storage.exchange_retention_days must not be negative")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of console, json", c.Logging.Format)
	}
	return nil
}

// Save writes config to path, or to ConfigPath when path is empty.
func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
