// Package session provides the per-browser-session token used to expire
// session-scoped records.
//
// A token is minted once per session and stays stable until the session
// restarts. Records stored with a session TTL remember the token that was
// current when they were written; a different token at read time means the
// session has ended.
package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// TokenPrefix marks corslight session tokens.
const TokenPrefix = "clss-"

// FileSuffix is appended to the namespace to name the persisted token flag.
const FileSuffix = "_session"

// Provider supplies the current session token.
type Provider interface {
	// Current returns the token of the running session. It must return the
	// same value for the lifetime of the session.
	Current() string
}

// Static is a Provider with a fixed token.
type Static string

// Current implements Provider.
func (s Static) Current() string {
	return string(s)
}

// Mint creates a new random session token.
// Format: clss-{ulid_lowercase}.
func Mint() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", fmt.Errorf("mint session token: %w", err)
	}
	return TokenPrefix + strings.ToLower(id.String()), nil
}

// IsValidToken reports whether s looks like a minted token.
func IsValidToken(s string) bool {
	if !strings.HasPrefix(s, TokenPrefix) {
		return false
	}
	_, err := ulid.Parse(strings.ToUpper(s[len(TokenPrefix):]))
	return err == nil
}

// NewEphemeral returns a Provider whose session lasts as long as the process.
func NewEphemeral() (Static, error) {
	token, err := Mint()
	if err != nil {
		return "", err
	}
	return Static(token), nil
}

// FileProvider keeps the session token in a small flag file, independent of
// the key-value store. Removing the file (for example from a tmpfs that is
// cleared on reboot) starts a new session.
type FileProvider struct {
	path  string
	token string
}

// OpenFile loads the token stored at path, minting and persisting a new one
// when the file is missing or holds garbage.
func OpenFile(path string) (*FileProvider, error) {
	if path == "" {
		return nil, errors.New("session: file path is required")
	}

	token, exists, err := readToken(path)
	if err != nil {
		return nil, err
	}
	if token != "" {
		return &FileProvider{path: path, token: token}, nil
	}

	if token, err = Mint(); err != nil {
		return nil, err
	}
	if token, err = persist(path, token, exists); err != nil {
		return nil, err
	}
	return &FileProvider{path: path, token: token}, nil
}

// readToken returns the valid token stored at path, or "" when the file is
// missing or holds garbage. exists reports whether the file was there.
func readToken(path string) (token string, exists bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session: read %s: %w", path, err)
	}
	token = strings.TrimSpace(string(data))
	if !IsValidToken(token) {
		token = ""
	}
	return token, true, nil
}

// persist writes token to path through a temporary file so readers never see
// a partial token. A missing file is created with a hard link, which fails if
// another process created it first; that process's token is returned then.
// With replace set, an existing file is overwritten by rename.
func persist(path, token string, replace bool) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("session: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("session: write %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	_, err = tmp.WriteString(token + "\n")
	if err == nil {
		err = tmp.Chmod(0o600)
	}
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("session: write %s: %w", path, err)
	}

	if replace {
		if err := os.Rename(tmpPath, path); err != nil {
			return "", fmt.Errorf("session: write %s: %w", path, err)
		}
		return token, nil
	}

	if err := os.Link(tmpPath, path); err != nil {
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("session: write %s: %w", path, err)
		}
		existing, _, rerr := readToken(path)
		if rerr != nil {
			return "", rerr
		}
		if existing == "" {
			return persist(path, token, true)
		}
		return existing, nil
	}
	return token, nil
}

// FilePath returns the default flag file for namespace inside dir.
func FilePath(dir, namespace string) string {
	return filepath.Join(dir, namespace+FileSuffix)
}

// Current implements Provider.
func (p *FileProvider) Current() string {
	return p.token
}

// Path returns the flag file location.
func (p *FileProvider) Path() string {
	return p.path
}
