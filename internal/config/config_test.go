package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	baseDir := t.TempDir()

	cfg, err := Load(baseDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != "localhost:8080" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, "localhost:8080")
	}
	if cfg.DataDir != filepath.Join(baseDir, "usr") {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, filepath.Join(baseDir, "usr"))
	}
	if cfg.UsersFile != filepath.Join(baseDir, "users.csv") {
		t.Errorf("UsersFile = %q, want %q", cfg.UsersFile, filepath.Join(baseDir, "users.csv"))
	}
	if cfg.MaxSessions != 0 {
		t.Errorf("MaxSessions = %d, want 0", cfg.MaxSessions)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	baseDir := t.TempDir()
	content := `{"listen_addr": "0.0.0.0:9000", "max_sessions": 5, "disable_audit": true}`
	if err := os.WriteFile(filepath.Join(baseDir, "config.json"), []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(baseDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != "0.0.0.0:9000" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, "0.0.0.0:9000")
	}
	if cfg.MaxSessions != 5 {
		t.Errorf("MaxSessions = %d, want 5", cfg.MaxSessions)
	}
	if !cfg.DisableAudit {
		t.Error("DisableAudit = false, want true")
	}
	// Untouched fields keep defaults.
	if cfg.DataDir != filepath.Join(baseDir, "usr") {
		t.Errorf("DataDir = %q, want default", cfg.DataDir)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	baseDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(baseDir, "config.json"), []byte("{nope"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := Load(baseDir); err == nil {
		t.Error("Load should fail on invalid JSON")
	}
}

func TestMerge(t *testing.T) {
	base := DefaultConfig("/base")
	overlay := &Config{ListenAddr: "other:1", LogLevel: "debug"}

	got := Merge(base, overlay)

	if got.ListenAddr != "other:1" {
		t.Errorf("ListenAddr = %q, want overlay value", got.ListenAddr)
	}
	if got.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want overlay value", got.LogLevel)
	}
	if got.UsersFile != base.UsersFile {
		t.Errorf("UsersFile = %q, want base value", got.UsersFile)
	}
}
