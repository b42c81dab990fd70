package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Config holds application configuration.
type Config struct {
	// ListenAddr is the address the TCP server binds to.
	ListenAddr string `json:"listen_addr,omitempty"`

	// DataDir is the directory holding per-user sandbox roots.
	DataDir string `json:"data_dir,omitempty"`

	// UsersFile is the flat credential record file.
	UsersFile string `json:"users_file,omitempty"`

	// MaxSessions caps concurrent connections. 0 means unlimited.
	MaxSessions int `json:"max_sessions,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// LogFormat is "text" or "json".
	LogFormat string `json:"log_format,omitempty"`

	// DisableAudit turns off the sqlite command log.
	DisableAudit bool `json:"disable_audit,omitempty"`
}

// DefaultConfig returns the default configuration with paths resolved
// under baseDir.
func DefaultConfig(baseDir string) *Config {
	return &Config{
		ListenAddr: "localhost:8080",
		DataDir:    filepath.Join(baseDir, "usr"),
		UsersFile:  filepath.Join(baseDir, "users.csv"),
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// Load loads configuration from baseDir/config.json, merged over defaults.
// A missing file yields the defaults. The baseDir parameter allows tests
// to use t.TempDir() instead of ~/.cubby.
func Load(baseDir string) (*Config, error) {
	overlay, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(baseDir), overlay), nil
}

// loadFile reads one config file. Returns a zero config if it is missing.
func loadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge combines base and overlay configs. Overlay values win when set.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.ListenAddr = overlay.ListenAddr
	if result.ListenAddr == "" {
		result.ListenAddr = base.ListenAddr
	}

	result.DataDir = overlay.DataDir
	if result.DataDir == "" {
		result.DataDir = base.DataDir
	}

	result.UsersFile = overlay.UsersFile
	if result.UsersFile == "" {
		result.UsersFile = base.UsersFile
	}

	result.MaxSessions = overlay.MaxSessions
	if result.MaxSessions == 0 {
		result.MaxSessions = base.MaxSessions
	}

	result.LogLevel = overlay.LogLevel
	if result.LogLevel == "" {
		result.LogLevel = base.LogLevel
	}

	result.LogFormat = overlay.LogFormat
	if result.LogFormat == "" {
		result.LogFormat = base.LogFormat
	}

	result.DisableAudit = base.DisableAudit || overlay.DisableAudit

	return result
}
