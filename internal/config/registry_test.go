package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if configDir == "" {
		t.Error("GetConfigDir() returned empty string")
	}

	if !strings.Contains(configDir, "bdsc") {
		t.Errorf("GetConfigDir() = %v, should contain 'bdsc'", configDir)
	}

	switch runtime.GOOS {
	case "darwin", "linux":
		if os.Getenv("XDG_CONFIG_HOME") == "" && !strings.Contains(configDir, ".config") {
			t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := GetConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(dir, "bdsc") {
		t.Errorf("GetConfigDir() = %s, want %s", got, filepath.Join(dir, "bdsc"))
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() is invalid: %v", err)
	}

	if cfg.Server.Port != 6999 {
		t.Errorf("Server.Port = %d, want 6999", cfg.Server.Port)
	}
	if cfg.Transport.ConnectTimeout != 2*time.Second {
		t.Errorf("ConnectTimeout = %v, want 2s", cfg.Transport.ConnectTimeout)
	}
	if cfg.Transport.ReadTimeout != 500*time.Millisecond {
		t.Errorf("ReadTimeout = %v, want 500ms", cfg.Transport.ReadTimeout)
	}
	if cfg.Network.UpTimeout != 30*time.Second {
		t.Errorf("Network.UpTimeout = %v, want 30s", cfg.Network.UpTimeout)
	}
	if cfg.Transport.ReplyLength != 27 {
		t.Errorf("ReplyLength = %d, want 27", cfg.Transport.ReplyLength)
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("len(Sources) = %d, want 2", len(cfg.Sources))
	}
	if s, ok := cfg.Source("update"); !ok || s.Action != ActionToggle || s.Pin != "MB1" {
		t.Errorf("update source = %+v", s)
	}
	if s, ok := cfg.Source("inquiry"); !ok || s.Action != ActionInquiry || s.Pin != "MB0" {
		t.Errorf("inquiry source = %+v", s)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Hostname != "iotserver2" {
		t.Errorf("Hostname = %q", cfg.Server.Hostname)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `version: 1
identity: "AA:BB:CC:DD:EE:FF"
server:
  hostname: bench
  port: 7000
transport:
  read_timeout: 750ms
sources:
  - name: probe
    pin: "22"
    action: inquiry
    register: 0x2A
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Hostname != "bench" || cfg.Server.Port != 7000 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Server.Fallback != "198.51.100.3" {
		t.Errorf("Fallback = %q, default should survive", cfg.Server.Fallback)
	}
	if cfg.Transport.ReadTimeout != 750*time.Millisecond {
		t.Errorf("ReadTimeout = %v", cfg.Transport.ReadTimeout)
	}
	if cfg.Transport.ConnectTimeout != 2*time.Second {
		t.Errorf("ConnectTimeout = %v, default should survive", cfg.Transport.ConnectTimeout)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Register != 0x2A {
		t.Errorf("Sources = %+v", cfg.Sources)
	}

	id, ok, err := cfg.IdentityOverride()
	if err != nil || !ok {
		t.Fatalf("IdentityOverride() = %v, %v", ok, err)
	}
	if id.Hex() != "AABBCCDDEEFF" {
		t.Errorf("identity = %s", id.Hex())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"bad yaml", "server: [", "failed to parse"},
		{"bad version", "version: 9\n", "unsupported config version"},
		{"bad fallback", "version: 1\nserver:\n  fallback: nowhere\n", "server.fallback"},
		{"bad action", "version: 1\nsources:\n  - name: a\n    pin: MB1\n    action: blink\n", "unknown action"},
		{"duplicate source", "version: 1\nsources:\n  - {name: a, pin: MB1, action: inquiry}\n  - {name: a, pin: MB0, action: inquiry}\n", "duplicate source"},
		{"bad duration", "version: 1\ntransport:\n  read_timeout: soon\n", "failed to parse"},
		{"zero up timeout", "version: 1\nnetwork:\n  up_timeout: 0s\n", "network.up_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Server.Hostname = "lab-server"
	cfg.Transport.ReadTimeout = 300 * time.Millisecond
	cfg.Monitor.Listen = "127.0.0.1:7070"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# bdsc client configuration") {
		t.Error("saved file should start with the header comment")
	}
	if !strings.Contains(string(data), "read_timeout: 300ms") {
		t.Errorf("durations should be saved in Go syntax:\n%s", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should not remain after save")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Server.Hostname != "lab-server" || loaded.Monitor.Listen != "127.0.0.1:7070" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Transport.ReadTimeout != 300*time.Millisecond {
		t.Errorf("ReadTimeout = %v", loaded.Transport.ReadTimeout)
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	written, err := Init(path, false)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if written != path {
		t.Errorf("Init() path = %s", written)
	}

	if _, err := Init(path, false); !errors.Is(err, ErrExists) {
		t.Errorf("second Init() error = %v, want ErrExists", err)
	}
	if _, err := Init(path, true); err != nil {
		t.Errorf("forced Init() error = %v", err)
	}
}
