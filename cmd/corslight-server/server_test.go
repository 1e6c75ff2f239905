package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/corslight-go/internal/channel/netport"
	"github.com/yndnr/corslight-go/internal/client"
	"github.com/yndnr/corslight-go/internal/core/domain"
	"github.com/yndnr/corslight-go/internal/infra/shutdown"
	"github.com/yndnr/corslight-go/internal/server/config"
)

const storeOrigin = "https://store.example.com"

func writeConfig(t *testing.T, path string, keys ...string) {
	t.Helper()

	var b strings.Builder
	b.WriteString(`server:
  addr: 127.0.0.1:0
  admin_addr: localhost:0
  origin: ` + storeOrigin + `
storage:
  driver: memory
  sweep_interval: 50ms
session:
  token: S1
log:
  level: warn
manifest:
`)
	for _, k := range keys {
		b.WriteString("  " + k + ": [localhost]\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatal(err)
	}
}

func startTestServer(t *testing.T, path string) (*server, *shutdown.Handler) {
	t.Helper()

	loader := newLoader(path)
	cfg, err := loadConfig(loader)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := newServer(cfg, loader, log)
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := shutdown.NewHandler(2*time.Second, log)
	if err := s.start(ctx, h); err != nil {
		cancel()
		t.Fatalf("start: %v", err)
	}

	waited := make(chan error, 1)
	go func() { waited <- h.Wait(ctx) }()
	t.Cleanup(func() {
		h.Trigger()
		if err := <-waited; err != nil {
			t.Errorf("shutdown: %v", err)
		}
		cancel()
	})
	return s, h
}

func dial(t *testing.T, s *server) *client.Client {
	t.Helper()

	d := &netport.Dialer{
		Addr:    s.frames.Addr().String(),
		Origin:  "http://localhost",
		Timeout: 2 * time.Second,
	}
	c, err := client.New(storeOrigin+"/frame.html", d)
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func wait(t *testing.T, f *client.Future) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := f.Wait(ctx)
	return err
}

func TestServer_ReloadSwapsManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	writeConfig(t, path, "prefs")
	s, _ := startTestServer(t, path)

	c := dial(t, s)
	if err := wait(t, c.Store("prefs", 1, domain.NoTTL())); err != nil {
		t.Fatalf("store prefs: %v", err)
	}
	if err := wait(t, c.Store("cart", 1, domain.NoTTL())); err == nil {
		t.Fatal("cart should be denied before reload")
	}

	writeConfig(t, path, "prefs", "cart")
	if err := s.reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	// A new connection picks up the new manifest.
	c2 := dial(t, s)
	if err := wait(t, c2.Store("cart", 2, domain.NoTTL())); err != nil {
		t.Fatalf("store cart after reload: %v", err)
	}

	if got := s.status().ManifestKeys; len(got) != 2 {
		t.Errorf("manifest keys = %v, want 2 keys", got)
	}
}

func TestServer_ScalarManifestEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	writeConfig(t, path)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("  prefs: localhost\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	s, _ := startTestServer(t, path)
	c := dial(t, s)
	if err := wait(t, c.Store("prefs", 1, domain.NoTTL())); err != nil {
		t.Fatalf("store with a scalar allow-list: %v", err)
	}
}

func TestServer_ReloadRejectsBadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	writeConfig(t, path, "prefs")
	s, _ := startTestServer(t, path)

	before := s.engine.Load()
	writeConfig(t, path) // empty manifest
	if err := s.reload(); err == nil {
		t.Fatal("reload with an empty manifest should fail")
	}
	if s.engine.Load() != before {
		t.Error("engine replaced by a rejected reload")
	}
}

func TestServer_AdminEndpoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	writeConfig(t, path, "prefs")
	s, _ := startTestServer(t, path)

	base := "http://" + s.admin.Addr().String()
	for _, p := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(base + p)
		if err != nil {
			t.Fatalf("GET %s: %v", p, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d", p, resp.StatusCode)
		}
	}

	resp, err := http.Get(base + "/admin/v1/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()

	var doc statusDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if doc.Origin != storeOrigin || doc.Namespace != "cl" || doc.Storage.Driver != "memory" {
		t.Errorf("status = %+v", doc)
	}
	if doc.Build.WireVersion != 2 {
		t.Errorf("wire version = %d, want 2", doc.Build.WireVersion)
	}
}

func TestServer_SweepRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	writeConfig(t, path, "prefs")
	s, _ := startTestServer(t, path)

	c := dial(t, s)
	if err := wait(t, c.Store("prefs", 1, domain.RelativeTTL(time.Millisecond))); err != nil {
		t.Fatalf("store: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for s.swept.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweep never removed the expired record")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte("server:\n  origin: not a url\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(newLoader(path)); err == nil {
		t.Error("expected validation error")
	}

	if _, err := loadConfig(newLoader(filepath.Join(t.TempDir(), "missing.yaml"))); err == nil {
		t.Error("expected error for a missing config file")
	}
}

func newTestConfig() *config.ServerConfig {
	cfg := config.Default()
	cfg.Server.Origin = storeOrigin
	return cfg
}

func TestOpenSessions(t *testing.T) {
	cfg := newTestConfig()
	cfg.Session.Token = "pinned"
	p, err := openSessions(cfg)
	if err != nil || p.Current() != "pinned" {
		t.Errorf("pinned token: %v, %v", p, err)
	}

	cfg = newTestConfig()
	cfg.Session.File = filepath.Join(t.TempDir(), "cl_session")
	p1, err := openSessions(cfg)
	if err != nil {
		t.Fatalf("file provider: %v", err)
	}
	p2, err := openSessions(cfg)
	if err != nil {
		t.Fatalf("file provider reopen: %v", err)
	}
	if p1.Current() != p2.Current() {
		t.Error("file provider should persist the token")
	}

	p3, err := openSessions(newTestConfig())
	if err != nil || p3.Current() == "" {
		t.Errorf("ephemeral provider: %v, %v", p3, err)
	}
}
