//go:build !darwin

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackend_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gemini-resume", "config.json")

	b := newFileBackend(path)
	if err := b.SetInt("server.port", 4300); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if err := b.SetString("gemini.model", "gemini-2.0-flash"); err != nil {
		t.Fatalf("SetString: %v", err)
	}

	reloaded := newFileBackend(path)
	port, ok, err := reloaded.GetInt("server.port")
	if err != nil || !ok || port != 4300 {
		t.Errorf("GetInt = %d, %v, %v", port, ok, err)
	}
	model, ok, err := reloaded.GetString("gemini.model")
	if err != nil || !ok || model != "gemini-2.0-flash" {
		t.Errorf("GetString = %q, %v, %v", model, ok, err)
	}

	if err := reloaded.Delete("gemini.model"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := newFileBackend(path).GetString("gemini.model"); ok {
		t.Error("key still present after Delete")
	}
}

func TestFileBackend_InvalidInt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server.port": 12.5}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := newFileBackend(path).GetInt("server.port"); err == nil {
		t.Error("expected error for fractional port")
	}
}

func TestLoad_FromConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_DATA_HOME", dir)

	cfgPath := filepath.Join(dir, "gemini-resume", "config.json")
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfgPath, []byte(`{"server.port": 4555, "gemini.transport": "genai"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "gemini-resume", "secrets.json"),
		[]byte(`{"gemini-resume":{"gemini_api_key":"file-secret"}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4555 || cfg.Gemini.Transport != "genai" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Gemini.APIKey != "file-secret" {
		t.Errorf("APIKey = %q, want file-secret", cfg.Gemini.APIKey)
	}
}
