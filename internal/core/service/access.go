package service

import (
	"strings"

	"github.com/yndnr/corslight-go/internal/core/domain"
)

// AccessControl decides whether an origin may use a key.
type AccessControl struct {
	manifest *domain.Manifest
}

// NewAccessControl returns an AccessControl for manifest. A nil manifest
// allows nothing.
func NewAccessControl(manifest *domain.Manifest) *AccessControl {
	return &AccessControl{manifest: manifest}
}

// Validate checks a request for key coming from hostname. The first failing
// rule wins: a missing key, a key absent from the manifest, then a hostname
// absent from the key's allow-list.
func (a *AccessControl) Validate(hostname, key string) error {
	if key == "" {
		return domain.ErrKeyNotSpecified
	}
	if !a.manifest.Has(key) {
		return domain.ErrInvalidKey.WithDetails(key)
	}
	if !a.manifest.Allows(key, strings.ToLower(hostname)) {
		return domain.ErrInvalidOrigin.WithDetails(hostname)
	}
	return nil
}

// Manifest returns the table this AccessControl enforces.
func (a *AccessControl) Manifest() *domain.Manifest {
	return a.manifest
}
