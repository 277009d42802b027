package auth

import (
	"errors"
	"testing"
)

func TestAdminAuthenticate(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	fromHash, err := NewAdmin("admin", hash, "ignored")
	if err != nil {
		t.Fatalf("NewAdmin(hash): %v", err)
	}
	fromPlain, err := NewAdmin(" admin ", "", "hunter2")
	if err != nil {
		t.Fatalf("NewAdmin(plain): %v", err)
	}

	for name, admin := range map[string]*Admin{"hash": fromHash, "plain": fromPlain} {
		t.Run(name, func(t *testing.T) {
			claims, err := admin.Authenticate("admin", "hunter2")
			if err != nil {
				t.Fatalf("Authenticate: %v", err)
			}
			if claims.Username != "admin" || claims.Role != RoleAdmin {
				t.Fatalf("unexpected claims %+v", claims)
			}

			for _, bad := range [][2]string{{"admin", "wrong"}, {"root", "hunter2"}, {"", ""}} {
				if _, err := admin.Authenticate(bad[0], bad[1]); !errors.Is(err, ErrInvalidCredentials) {
					t.Fatalf("Authenticate(%q,%q) = %v, want ErrInvalidCredentials", bad[0], bad[1], err)
				}
			}
		})
	}
}

func TestNewAdminRejects(t *testing.T) {
	tests := []struct {
		name, user, hash, pass string
	}{
		{"no username", "", "", "pw"},
		{"no password", "admin", "", ""},
		{"bad hash", "admin", "$2a$not-a-hash", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAdmin(tt.user, tt.hash, tt.pass); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
