package app

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ServerConfig defines how the relay backend should run. Zero values are
// filled in by applyDefaults, so a partial YAML file or environment is fine.
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	DBPath       string `yaml:"db_path"`
	UploadDir    string `yaml:"upload_dir"`
	MaxFileSize  int64  `yaml:"max_file_size"`
	HistoryLimit int    `yaml:"history_limit"`
	// MultiRoom keeps the legacy join semantics: a connection that joins a
	// second room stays a member of the first. Off by default.
	MultiRoom bool `yaml:"multi_room"`
}

// ClientConfig defines the parameters the TUI client needs.
type ClientConfig struct {
	ServerURL string
	Room      string
	Username  string
}

// LoadServerConfig reads a YAML config file, expanding ${VAR} environment
// references, and applies defaults.
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	expanded := os.ExpandEnv(string(data))

	var cfg ServerConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// ServerConfigFromEnv builds a config from RELAYCHAT_* environment variables,
// falling back to defaults.
func ServerConfigFromEnv() *ServerConfig {
	cfg := &ServerConfig{
		Addr:      os.Getenv("RELAYCHAT_ADDR"),
		DBPath:    os.Getenv("RELAYCHAT_DB_PATH"),
		UploadDir: os.Getenv("RELAYCHAT_UPLOAD_DIR"),
	}
	if v := os.Getenv("RELAYCHAT_MAX_FILE_SIZE"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil && size > 0 {
			cfg.MaxFileSize = size
		}
	}
	if v := os.Getenv("RELAYCHAT_HISTORY_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			cfg.HistoryLimit = limit
		}
	}
	if v := os.Getenv("RELAYCHAT_MULTI_ROOM"); v != "" {
		cfg.MultiRoom, _ = strconv.ParseBool(v)
	}
	cfg.applyDefaults()
	return cfg
}

func (c *ServerConfig) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath()
	}
	if c.UploadDir == "" {
		c.UploadDir = DefaultUploadDir()
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 25 * 1024 * 1024
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 100
	}
}

// DefaultDBPath returns a per-user data path for the bundled SQLite file.
func DefaultDBPath() string {
	return filepath.Join(defaultDataDir(), "relaychat.db")
}

// DefaultUploadDir returns where uploaded blobs land when not configured.
func DefaultUploadDir() string {
	return filepath.Join(defaultDataDir(), "uploads")
}

func defaultDataDir() string {
	if env := os.Getenv("RELAYCHAT_DATA_DIR"); env != "" {
		return env
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "relaychat")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Relaychat")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "Relaychat")
		}
		return filepath.Join(home, ".local", "share", "relaychat")
	}
	return filepath.Join(".", ".relaychat")
}
