package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, mode, body string) {
	t.Helper()
	confDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(confDir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(confDir, mode+".yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoadAppliesDefaultsAndRunMode(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "development", `
logging:
  level: debug
cipher:
  aes_key: "01234567890123456789012345678901"
  certificates_path: /var/lib/docstore/certs
`)

	t.Setenv("RUN_MODE", "development")
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:5545" {
		t.Fatalf("Server.ListenAddr = %q, want default", cfg.Server.ListenAddr)
	}
	if cfg.Server.CAListenAddr != "0.0.0.0:3000" {
		t.Fatalf("Server.CAListenAddr = %q, want default", cfg.Server.CAListenAddr)
	}
	if cfg.Server.MetricsListenAddr != "127.0.0.1:9090" {
		t.Fatalf("Server.MetricsListenAddr = %q, want default", cfg.Server.MetricsListenAddr)
	}
}

func TestLoadSelectsProductionFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "production", `
logging:
  level: info
cipher:
  aes_key: "01234567890123456789012345678901"
  certificates_path: /etc/docstore/certs
server:
  listen_addr: "0.0.0.0:5545"
`)

	t.Setenv("RUN_MODE", "production")
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.ListenAddr != "0.0.0.0:5545" {
		t.Fatalf("Server.ListenAddr = %q, want 0.0.0.0:5545", cfg.Server.ListenAddr)
	}
}

func TestLoadRejectsBadAESKeyLength(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "development", `
logging:
  level: info
cipher:
  aes_key: "too-short"
  certificates_path: /tmp/certs
`)

	t.Setenv("RUN_MODE", "development")
	if _, err := Load(dir); err == nil {
		t.Fatal("Load() with short aes_key succeeded, want error")
	}
}

func TestRunModeDefaultsToDevelopment(t *testing.T) {
	t.Setenv("RUN_MODE", "")
	if got := RunMode(); got != "development" {
		t.Fatalf("RunMode() = %q, want development", got)
	}
}
