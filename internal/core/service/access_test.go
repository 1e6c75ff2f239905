package service

import (
	"errors"
	"testing"

	"github.com/yndnr/corslight-go/internal/core/domain"
)

func TestAccessControl_Validate(t *testing.T) {
	ac := NewAccessControl(domain.NewManifest(map[string][]string{
		"token": {"a.example.com"},
		"theme": {"a.example.com", "B.example.com"},
	}))

	tests := []struct {
		name     string
		hostname string
		key      string
		wantErr  error
	}{
		{"allowed", "a.example.com", "token", nil},
		{"allowed second host", "b.example.com", "theme", nil},
		{"hostname case", "A.EXAMPLE.COM", "token", nil},
		{"empty key", "a.example.com", "", domain.ErrKeyNotSpecified},
		{"empty key wins over origin", "evil.example.com", "", domain.ErrKeyNotSpecified},
		{"unknown key", "a.example.com", "secret", domain.ErrInvalidKey},
		{"unknown key wins over origin", "evil.example.com", "secret", domain.ErrInvalidKey},
		{"origin not allowed", "b.example.com", "token", domain.ErrInvalidOrigin},
		{"empty hostname", "", "token", domain.ErrInvalidOrigin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ac.Validate(tt.hostname, tt.key)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
			if got := domain.WireMessage(err); got != tt.wantErr.(*domain.DomainError).Message {
				t.Errorf("wire message = %q", got)
			}
		})
	}
}

func TestAccessControl_NilManifest(t *testing.T) {
	ac := NewAccessControl(nil)
	if err := ac.Validate("a.example.com", "token"); !errors.Is(err, domain.ErrInvalidKey) {
		t.Errorf("Validate with nil manifest = %v, want ErrInvalidKey", err)
	}
}
