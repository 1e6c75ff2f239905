package command

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/corslight-go/internal/core/domain"
	"github.com/yndnr/corslight-go/internal/core/service"
	"github.com/yndnr/corslight-go/internal/server/dispatcher"
	"github.com/yndnr/corslight-go/internal/server/frameserver"
	"github.com/yndnr/corslight-go/internal/session"
	"github.com/yndnr/corslight-go/internal/storage/memory"
)

const storeOrigin = "https://store.example.com"

// startServer runs a frame server that lets localhost use the prefs and
// cart keys.
func startServer(t *testing.T) string {
	t.Helper()

	engine, err := service.NewStorageEngine(
		memory.New(),
		service.NewAccessControl(domain.NewManifest(map[string][]string{
			"prefs": {"localhost"},
			"cart":  {"localhost"},
		})),
		session.Static("S1"),
	)
	if err != nil {
		t.Fatalf("NewStorageEngine: %v", err)
	}

	cfg := frameserver.DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.Origin = storeOrigin
	s, err := frameserver.New(cfg, func() dispatcher.Engine { return engine })
	if err != nil {
		t.Fatalf("frameserver.New: %v", err)
	}
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Serve(ctx)
	}()
	t.Cleanup(func() {
		sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer scancel()
		_ = s.Shutdown(sctx)
		cancel()
		<-done
	})
	return s.Addr().String()
}

// newApp returns the CLI with an isolated config file.
func newApp(t *testing.T) *cli.App {
	t.Helper()
	t.Setenv("CORSLIGHT_CLI_CONFIG", filepath.Join(t.TempDir(), "cli.yaml"))
	return App()
}

// run executes the CLI against addr and returns stdout.
func run(t *testing.T, addr string, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := newApp(t)
	app.Writer = &stdout
	app.ErrWriter = &stderr

	full := []string{"corslight-cli",
		"--server", addr,
		"--target", storeOrigin + "/frame.html",
		"--timeout", "3s",
	}
	full = append(full, args...)
	err := app.Run(full)
	return stdout.String(), err
}

func TestApp(t *testing.T) {
	app := App()
	if app.Name != "corslight-cli" {
		t.Errorf("Name = %q, want %q", app.Name, "corslight-cli")
	}

	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, want := range []string{"store", "fetch", "remove", "version"} {
		if !names[want] {
			t.Errorf("missing command: %s", want)
		}
	}
}

func TestParseGlobalFlags_Defaults(t *testing.T) {
	app := &cli.App{
		Flags: globalFlags(),
		Action: func(c *cli.Context) error {
			flags := ParseGlobalFlags(c)
			if flags.Server != DefaultServer {
				t.Errorf("Server = %q, want %q", flags.Server, DefaultServer)
			}
			if flags.Network != "tcp" {
				t.Errorf("Network = %q, want tcp", flags.Network)
			}
			if flags.Origin != DefaultOrigin {
				t.Errorf("Origin = %q, want %q", flags.Origin, DefaultOrigin)
			}
			if flags.Namespace != "cl" {
				t.Errorf("Namespace = %q, want cl", flags.Namespace)
			}
			if flags.Timeout != DefaultTimeout {
				t.Errorf("Timeout = %v, want %v", flags.Timeout, DefaultTimeout)
			}
			if flags.Output != "table" {
				t.Errorf("Output = %q, want table", flags.Output)
			}
			if flags.Target != "" || flags.Wide || flags.Verbose {
				t.Errorf("unexpected defaults: %+v", flags)
			}
			return nil
		},
	}
	if err := app.Run([]string{"test"}); err != nil {
		t.Fatalf("app.Run: %v", err)
	}
}

func TestGlobalFlags_EnvVars(t *testing.T) {
	want := map[string]string{
		"server":    "CORSLIGHT_SERVER",
		"network":   "CORSLIGHT_NETWORK",
		"target":    "CORSLIGHT_TARGET",
		"origin":    "CORSLIGHT_ORIGIN",
		"namespace": "CORSLIGHT_NAMESPACE",
	}
	for _, flag := range globalFlags() {
		sf, ok := flag.(*cli.StringFlag)
		if !ok {
			continue
		}
		env, ok := want[sf.Name]
		if !ok {
			continue
		}
		if len(sf.EnvVars) == 0 || sf.EnvVars[0] != env {
			t.Errorf("flag %s env = %v, want %s", sf.Name, sf.EnvVars, env)
		}
		delete(want, sf.Name)
	}
	if len(want) != 0 {
		t.Errorf("flags not found: %v", want)
	}
}

func TestApp_RejectsUnknownOutput(t *testing.T) {
	app := newApp(t)
	app.Writer = &bytes.Buffer{}
	if err := app.Run([]string{"corslight-cli", "-o", "xml", "version"}); err == nil {
		t.Error("expected error for -o xml")
	}
}

func TestApp_TargetRequired(t *testing.T) {
	app := newApp(t)
	app.Writer = &bytes.Buffer{}
	err := app.Run([]string{"corslight-cli", "fetch", "prefs"})
	if err == nil || !strings.Contains(err.Error(), "--target") {
		t.Errorf("err = %v, want --target is required", err)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	app := newApp(t)
	app.Writer = &out
	if err := app.Run([]string{"corslight-cli", "-o", "json", "version"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var info map[string]any
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("version output is not JSON: %v\n%s", err, out.String())
	}
	if info["wire_version"] != float64(2) {
		t.Errorf("wire_version = %v, want 2", info["wire_version"])
	}
}

func TestStoreFetchRemove(t *testing.T) {
	addr := startServer(t)

	out, err := run(t, addr, "store", "prefs", `{"theme":"dark"}`)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if !strings.Contains(out, "stored") {
		t.Errorf("store output = %q", out)
	}

	out, err = run(t, addr, "-o", "json", "fetch", "prefs")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	var view struct {
		Key     string          `json:"key"`
		Found   bool            `json:"found"`
		Value   json.RawMessage `json:"value"`
		Expires string          `json:"expires"`
	}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("fetch output is not JSON: %v\n%s", err, out)
	}
	if !view.Found || view.Expires != "never" {
		t.Errorf("view = %+v", view)
	}
	var value map[string]string
	if err := json.Unmarshal(view.Value, &value); err != nil || value["theme"] != "dark" {
		t.Errorf("value = %s", view.Value)
	}

	if _, err := run(t, addr, "remove", "prefs"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	out, err = run(t, addr, "-o", "json", "fetch", "prefs")
	if err != nil {
		t.Fatalf("fetch after remove: %v", err)
	}
	if !strings.Contains(out, `"found": false`) {
		t.Errorf("fetch after remove = %s", out)
	}
}

func TestStore_SessionTTL(t *testing.T) {
	addr := startServer(t)

	if _, err := run(t, addr, "store", "--ttl", "session", "--string", "cart", "42"); err != nil {
		t.Fatalf("store: %v", err)
	}

	out, err := run(t, addr, "-o", "yaml", "--wide", "fetch", "cart")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	for _, want := range []string{"expires: session", "session: S1", `value: "42"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStore_AccessDenied(t *testing.T) {
	addr := startServer(t)

	_, err := run(t, addr, "store", "secret", "1")
	if err == nil {
		t.Fatal("expected error for a key outside the manifest")
	}
	if !strings.Contains(err.Error(), "store secret") {
		t.Errorf("err = %v", err)
	}
}

func TestStore_ServerUnreachable(t *testing.T) {
	_, err := run(t, "127.0.0.1:1", "store", "prefs", "1")
	if err == nil {
		t.Fatal("expected error without a server")
	}
}

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "never", false},
		{"never", "never", false},
		{"Session", "session", false},
		{"90s", "1m30s", false},
		{"0s", "0s", false},
		{"-1s", "", true},
		{"tomorrow", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTTL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTTL(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got.String() != tt.want {
				t.Errorf("ParseTTL(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	if v, ok := ParseValue(`{"a":1}`, false).(json.RawMessage); !ok || string(v) != `{"a":1}` {
		t.Errorf("JSON object not kept raw: %#v", v)
	}
	if v, ok := ParseValue("hello", false).(string); !ok || v != "hello" {
		t.Errorf("plain text not a string: %#v", v)
	}
	if v, ok := ParseValue("42", true).(string); !ok || v != "42" {
		t.Errorf("--string not honored: %#v", v)
	}
}

func TestNewRecordView(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		rec     *domain.Record
		found   bool
		expires string
	}{
		{"missing", nil, false, "-"},
		{"never", &domain.Record{Value: json.RawMessage(`1`), Expiry: domain.NeverExpires()}, true, "never"},
		{"deadline", &domain.Record{Value: json.RawMessage(`1`), Expiry: domain.ExpiresAt(at)}, true, "2026-03-01T12:00:00Z"},
		{"session", &domain.Record{Value: json.RawMessage(`1`), Expiry: domain.SessionBound("S1")}, true, "session"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRecordView("k", tt.rec)
			if v.Found != tt.found || v.Expires != tt.expires {
				t.Errorf("view = %+v", v)
			}
		})
	}
}
