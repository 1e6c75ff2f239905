// Package buildinfo provides build-time version information.
//
// Values are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/corslight-go/internal/infra/buildinfo.Version=v1.0.0"
//
// The Go version is read from the binary itself when not injected.
package buildinfo
