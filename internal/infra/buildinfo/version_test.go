package buildinfo

import (
	"runtime"
	"strings"
	"testing"

	"github.com/yndnr/corslight-go/internal/protocol"
)

func TestGet(t *testing.T) {
	info := Get()

	tests := []struct {
		name  string
		value string
	}{
		{"Version", info.Version},
		{"Commit", info.Commit},
		{"BuildTime", info.BuildTime},
		{"GoVersion", info.GoVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value == "" {
				t.Errorf("%s should not be empty", tt.name)
			}
		})
	}

	if info.GoVersion == "unknown" {
		t.Error("GoVersion should fall back to the runtime version")
	}
	if info.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("Platform = %q", info.Platform)
	}
	if info.WireVersion != protocol.WireVersion {
		t.Errorf("WireVersion = %d", info.WireVersion)
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, Version+" ("+Commit+") built at "+BuildTime) {
		t.Errorf("String() = %q", s)
	}
	if !strings.HasSuffix(s, "protocol v2") {
		t.Errorf("String() = %q, want protocol suffix", s)
	}
}
