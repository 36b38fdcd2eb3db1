package app

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServerConfig(t *testing.T) {
	path := writeConfig(t, `
addr: ":9090"
db_path: /tmp/relay-test.db
upload_dir: /tmp/relay-uploads
max_file_size: 1048576
history_limit: 42
multi_room: true
`)
	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.DBPath != "/tmp/relay-test.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.MaxFileSize != 1048576 {
		t.Errorf("MaxFileSize = %d", cfg.MaxFileSize)
	}
	if cfg.HistoryLimit != 42 {
		t.Errorf("HistoryLimit = %d", cfg.HistoryLimit)
	}
	if !cfg.MultiRoom {
		t.Errorf("MultiRoom should be true")
	}
}

func TestLoadServerConfigDefaults(t *testing.T) {
	path := writeConfig(t, "addr: \":4000\"\n")

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.Addr != ":4000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.MaxFileSize != 25*1024*1024 {
		t.Errorf("MaxFileSize default = %d", cfg.MaxFileSize)
	}
	if cfg.HistoryLimit != 100 {
		t.Errorf("HistoryLimit default = %d", cfg.HistoryLimit)
	}
	if cfg.MultiRoom {
		t.Errorf("MultiRoom should default to false")
	}
	if cfg.DBPath == "" || cfg.UploadDir == "" {
		t.Errorf("paths should be defaulted, got db=%q uploads=%q", cfg.DBPath, cfg.UploadDir)
	}
}

func TestLoadServerConfigExpandsEnv(t *testing.T) {
	t.Setenv("RELAY_TEST_DIR", "/srv/relay")
	path := writeConfig(t, "upload_dir: ${RELAY_TEST_DIR}/uploads\n")

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.UploadDir != "/srv/relay/uploads" {
		t.Errorf("UploadDir = %q", cfg.UploadDir)
	}
}

func TestLoadServerConfigMissingFile(t *testing.T) {
	if _, err := LoadServerConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestServerConfigFromEnv(t *testing.T) {
	t.Setenv("RELAYCHAT_ADDR", ":5555")
	t.Setenv("RELAYCHAT_MAX_FILE_SIZE", "2048")
	t.Setenv("RELAYCHAT_HISTORY_LIMIT", "7")
	t.Setenv("RELAYCHAT_MULTI_ROOM", "true")

	cfg := ServerConfigFromEnv()
	if cfg.Addr != ":5555" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.MaxFileSize != 2048 {
		t.Errorf("MaxFileSize = %d", cfg.MaxFileSize)
	}
	if cfg.HistoryLimit != 7 {
		t.Errorf("HistoryLimit = %d", cfg.HistoryLimit)
	}
	if !cfg.MultiRoom {
		t.Errorf("MultiRoom should be true")
	}
}
