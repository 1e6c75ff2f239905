package confloader

import (
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	Server struct {
		Addr    string `koanf:"addr"`
		Network string `koanf:"network"`
	} `koanf:"server"`
	Storage struct {
		DataDir string `koanf:"data_dir"`
	} `koanf:"storage"`
	Manifest map[string][]string `koanf:"manifest"`
	Limits   struct {
		Burst int `koanf:"burst"`
	} `koanf:"limits"`
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corslight.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}
	if l.IsLoaded() {
		t.Error("new loader should not be loaded")
	}

	l = NewLoader(WithEnvPrefix("X_"), WithConfigFile("/etc/x.yaml"))
	if l.envPrefix != "X_" || l.FilePath() != "/etc/x.yaml" {
		t.Errorf("options not applied: %q %q", l.envPrefix, l.FilePath())
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := writeFile(t, `
server:
  addr: 127.0.0.1:7000
manifest:
  token: [a.example.com]
  theme: [a.example.com, b.example.com]
`)

	var cfg testConfig
	if err := NewLoader(WithConfigFile(path)).Load(&cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:7000" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
	if got := cfg.Manifest["theme"]; len(got) != 2 || got[1] != "b.example.com" {
		t.Errorf("manifest.theme = %v", got)
	}
}

func TestLoader_LoadFile_NotFound(t *testing.T) {
	var cfg testConfig
	if err := NewLoader(WithConfigFile("/nonexistent/corslight.yaml")).Load(&cfg); err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestLoader_KeepsDefaults(t *testing.T) {
	path := writeFile(t, "server:\n  addr: 127.0.0.1:7000\n")

	var cfg testConfig
	cfg.Server.Network = "unix"
	cfg.Limits.Burst = 20
	if err := NewLoader(WithConfigFile(path)).Load(&cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Network != "unix" || cfg.Limits.Burst != 20 {
		t.Errorf("defaults overwritten: %+v", cfg)
	}
}

func TestLoader_LoadEnv_NestedKeys(t *testing.T) {
	t.Setenv("CORSLIGHT_STORAGE__DATA_DIR", "/srv/corslight")
	t.Setenv("CORSLIGHT_SERVER__ADDR", "0.0.0.0:5380")

	var cfg testConfig
	if err := NewLoader().Load(&cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.DataDir != "/srv/corslight" {
		t.Errorf("storage.data_dir = %q", cfg.Storage.DataDir)
	}
	if cfg.Server.Addr != "0.0.0.0:5380" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
}

func TestLoader_Priority(t *testing.T) {
	path := writeFile(t, "server:\n  addr: file\n  network: tcp\nlimits:\n  burst: 5\n")
	t.Setenv("CORSLIGHT_SERVER__ADDR", "env")
	t.Setenv("CORSLIGHT_LIMITS__BURST", "7")

	var cfg testConfig
	l := NewLoader(
		WithConfigFile(path),
		WithOverrides(map[string]any{"server.addr": "flag"}),
	)
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != "flag" {
		t.Errorf("server.addr = %q, overrides should win", cfg.Server.Addr)
	}
	if cfg.Limits.Burst != 7 {
		t.Errorf("limits.burst = %d, env should beat the file", cfg.Limits.Burst)
	}
	if cfg.Server.Network != "tcp" {
		t.Errorf("server.network = %q", cfg.Server.Network)
	}
	if l.GetString("server.addr") != "flag" {
		t.Errorf("GetString = %q", l.GetString("server.addr"))
	}
}

func TestLoader_Reload(t *testing.T) {
	path := writeFile(t, "manifest:\n  token: [a.example.com]\n")
	l := NewLoader(WithConfigFile(path))

	var first testConfig
	if err := l.Load(&first); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := os.WriteFile(path, []byte("manifest:\n  theme: [b.example.com]\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	var second testConfig
	if err := l.Reload(&second); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if _, ok := second.Manifest["token"]; ok {
		t.Error("removed key survived the reload")
	}
	if len(second.Manifest["theme"]) != 1 {
		t.Errorf("manifest = %v", second.Manifest)
	}
	if !l.IsLoaded() {
		t.Error("IsLoaded should be true after Reload")
	}
}

func TestMapProvider_ExpandsDottedKeys(t *testing.T) {
	m, err := mapProvider{"a.b.c": 1, "a.d": "x", "e": true}.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	a, ok := m["a"].(map[string]any)
	if !ok {
		t.Fatalf("a = %#v", m["a"])
	}
	if b, ok := a["b"].(map[string]any); !ok || b["c"] != 1 {
		t.Errorf("a.b = %#v", a["b"])
	}
	if a["d"] != "x" || m["e"] != true {
		t.Errorf("map = %#v", m)
	}

	if _, err := (mapProvider{}).ReadBytes(); err == nil {
		t.Error("ReadBytes should fail")
	}
}
