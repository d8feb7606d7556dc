package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/forumgate/forumgate/internal/config"
	"github.com/forumgate/forumgate/internal/model"
)

func newTestAuth(t *testing.T) (*Authorizer, *config.Store) {
	t.Helper()
	store, err := config.NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewAuthorizer(store, "test-secret-key-for-jwt"), store
}

func insertKey(t *testing.T, store *config.Store, name, value, allowedIPs string, register, login, manage bool) model.APIKey {
	t.Helper()
	key, err := model.NewBuilder().
		Name(name).Value(value).AllowedIPs(allowedIPs).
		PermRegister(register).PermLogin(login).PermManage(manage).
		Build()
	if err != nil {
		t.Fatalf("build key: %v", err)
	}
	stored, err := store.InsertAPIKey(context.Background(), key)
	if err != nil {
		t.Fatalf("InsertAPIKey: %v", err)
	}
	return stored
}

func TestResolveKey(t *testing.T) {
	auth, store := newTestAuth(t)
	ctx := context.Background()

	stored := insertKey(t, store, "site", "token-abc", "", true, true, false)

	p := auth.ResolveKey(ctx, "token-abc", "203.0.113.9")
	if p.KeyID != stored.ID {
		t.Fatalf("got key id %d, want %d", p.KeyID, stored.ID)
	}
	if !p.Perms.Register || !p.Perms.Login || p.Perms.Manage {
		t.Errorf("unexpected permissions: %+v", p.Perms)
	}
}

func TestResolveKeyAnonymousOnFailure(t *testing.T) {
	auth, store := newTestAuth(t)
	ctx := context.Background()

	insertKey(t, store, "restricted", "token-r", "10.0.0.0/24", true, false, false)

	tests := []struct {
		name  string
		token string
		ip    string
	}{
		{"empty token", "", "10.0.0.1"},
		{"unknown token", "no-such-token", "10.0.0.1"},
		{"ip outside allowlist", "token-r", "203.0.113.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := auth.ResolveKey(ctx, tt.token, tt.ip)
			if p.KeyID != 0 || p.Perms.Register || p.Perms.Login || p.Perms.Manage {
				t.Errorf("expected anonymous principal, got %+v", p)
			}
		})
	}
}

func TestResolveKeyInsideAllowlist(t *testing.T) {
	auth, store := newTestAuth(t)

	insertKey(t, store, "restricted", "token-r", "10.0.0.0/24,192.168.1.5", true, false, false)

	p := auth.ResolveKey(context.Background(), "token-r", "10.0.0.42")
	if !p.Perms.Register {
		t.Error("address inside the allowlist should resolve permissions")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	auth, _ := newTestAuth(t)

	token, err := auth.IssueJWT(42, "admin@example.com", 1*time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	principal, err := auth.ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if principal.AdminID != 42 {
		t.Errorf("AdminID: got %d, want 42", principal.AdminID)
	}
	if principal.Email != "admin@example.com" {
		t.Errorf("Email: got %q", principal.Email)
	}
}

func TestJWTExpired(t *testing.T) {
	auth, _ := newTestAuth(t)

	token, err := auth.IssueJWT(1, "test@test.com", -1*time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}

	if _, err := auth.ValidateJWT(token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestJWTInvalidToken(t *testing.T) {
	auth, _ := newTestAuth(t)

	if _, err := auth.ValidateJWT("garbage.token.here"); err == nil {
		t.Fatal("expected error for invalid token")
	}
}

func TestLoginAdmin(t *testing.T) {
	auth, store := newTestAuth(t)
	ctx := context.Background()

	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	admin := &model.Admin{Email: "a@b.com", PasswordHash: hash, Name: "A", IsActive: true}
	if err := store.CreateAdmin(ctx, admin); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}

	got, err := auth.LoginAdmin(ctx, "a@b.com", "hunter22", "127.0.0.1")
	if err != nil {
		t.Fatalf("LoginAdmin: %v", err)
	}
	if got.ID != admin.ID {
		t.Errorf("got admin %d, want %d", got.ID, admin.ID)
	}

	// Login is audited.
	entries, err := store.ListAudit(ctx, 10)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != model.AuditAdminLogin {
		t.Errorf("expected one admin.login audit entry, got %+v", entries)
	}

	if _, err := auth.LoginAdmin(ctx, "a@b.com", "wrong", "127.0.0.1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v", err)
	}
	if _, err := auth.LoginAdmin(ctx, "nobody@b.com", "hunter22", "127.0.0.1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v", err)
	}
}

func TestLoginAdminDisabled(t *testing.T) {
	auth, store := newTestAuth(t)
	ctx := context.Background()

	hash, _ := HashPassword("pw1234")
	admin := &model.Admin{Email: "off@b.com", PasswordHash: hash, Name: "Off", IsActive: false}
	if err := store.CreateAdmin(ctx, admin); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}

	if _, err := auth.LoginAdmin(ctx, "off@b.com", "pw1234", "127.0.0.1"); !errors.Is(err, ErrAdminDisabled) {
		t.Errorf("expected ErrAdminDisabled, got %v", err)
	}
}
