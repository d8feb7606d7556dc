package config

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/forumgate/forumgate/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("") // in-memory
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustKey(t *testing.T, name, value string) model.APIKey {
	t.Helper()
	key, err := model.NewBuilder().Name(name).Value(value).PermRegister(true).Build()
	if err != nil {
		t.Fatalf("build key: %v", err)
	}
	return key
}

func TestInsertAssignsIDAndReloads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stored, err := s.InsertAPIKey(ctx, mustKey(t, "first", "aaaa"))
	if err != nil {
		t.Fatalf("InsertAPIKey: %v", err)
	}
	if stored.ID == 0 {
		t.Fatal("expected non-zero ID after insert")
	}
	if stored.Name != "first" || stored.Value != "aaaa" {
		t.Errorf("reloaded entity mismatch: %+v", stored)
	}
	if !stored.PermRegister || stored.PermLogin {
		t.Errorf("permission flags did not survive the round-trip: %+v", stored)
	}
}

func TestInsertRejectsAssignedID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := mustKey(t, "first", "aaaa")
	key.ID = 7
	_, err := s.InsertAPIKey(ctx, key)
	if !errors.Is(err, model.ErrKeyNotFound) {
		// ErrKeyNotFound doubles as the out-of-bounds id lifecycle error.
		t.Errorf("expected out-of-bounds on api_key_id, got %v", err)
	}
}

func TestUpdateRequiresID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.UpdateAPIKey(ctx, mustKey(t, "unsaved", "bbbb"))
	if !errors.Is(err, &model.FieldError{Field: "api_key_id", Reason: model.OutOfBounds}) {
		t.Errorf("expected out-of-bounds, got %v", err)
	}
}

func TestUpdatePersistsAllFieldsExceptID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stored, err := s.InsertAPIKey(ctx, mustKey(t, "before", "cccc"))
	if err != nil {
		t.Fatalf("InsertAPIKey: %v", err)
	}

	stored.Name = "after"
	stored.AllowedIPs = "127.0.0.1"
	stored.PermLogin = true
	if err := s.UpdateAPIKey(ctx, stored); err != nil {
		t.Fatalf("UpdateAPIKey: %v", err)
	}

	got, err := s.LoadAPIKey(ctx, stored.ID, "")
	if err != nil {
		t.Fatalf("LoadAPIKey: %v", err)
	}
	if got.Name != "after" || got.AllowedIPs != "127.0.0.1" || !got.PermLogin {
		t.Errorf("update did not persist: %+v", got)
	}
	if got.ID != stored.ID {
		t.Errorf("id changed across update: %d vs %d", got.ID, stored.ID)
	}
}

func TestLoadByValue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want, err := s.InsertAPIKey(ctx, mustKey(t, "lookup", "token-v"))
	if err != nil {
		t.Fatalf("InsertAPIKey: %v", err)
	}

	got, err := s.LoadAPIKey(ctx, 0, "token-v")
	if err != nil {
		t.Fatalf("LoadAPIKey by value: %v", err)
	}
	if got.ID != want.ID {
		t.Errorf("got ID %d, want %d", got.ID, want.ID)
	}

	if _, err := s.LoadAPIKey(ctx, 0, "no-such-token"); !errors.Is(err, model.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestLoadIDTakesPriority(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.InsertAPIKey(ctx, mustKey(t, "a", "value-a"))
	if _, err := s.InsertAPIKey(ctx, mustKey(t, "b", "value-b")); err != nil {
		t.Fatalf("InsertAPIKey: %v", err)
	}

	// Both selectors provided: id wins and the value is ignored.
	got, err := s.LoadAPIKey(ctx, a.ID, "value-b")
	if err != nil {
		t.Fatalf("LoadAPIKey: %v", err)
	}
	if got.Name != "a" {
		t.Errorf("id selector should win, got %q", got.Name)
	}
}

func TestValueUniqueConstraint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertAPIKey(ctx, mustKey(t, "one", "same-value")); err != nil {
		t.Fatalf("InsertAPIKey: %v", err)
	}
	_, err := s.InsertAPIKey(ctx, mustKey(t, "two", "same-value"))
	if err == nil {
		t.Fatal("expected unique constraint violation")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "unique") {
		t.Errorf("expected a storage-level unique failure, got %v", err)
	}
}

func TestListOrderedByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, n := range []string{"k1", "k2", "k3"} {
		if _, err := s.InsertAPIKey(ctx, mustKey(t, n, "v-"+n)); err != nil {
			t.Fatalf("InsertAPIKey %s: %v", n, err)
		}
	}

	keys, err := s.ListAPIKeys(ctx)
	if err != nil {
		t.Fatalf("ListAPIKeys: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("got %d keys, want 3", len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i].ID <= keys[i-1].ID {
			t.Errorf("keys not in ascending id order: %d then %d", keys[i-1].ID, keys[i].ID)
		}
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stored, err := s.InsertAPIKey(ctx, mustKey(t, "doomed", "dddd"))
	if err != nil {
		t.Fatalf("InsertAPIKey: %v", err)
	}

	removed, err := s.DeleteAPIKey(ctx, stored.ID)
	if err != nil {
		t.Fatalf("DeleteAPIKey: %v", err)
	}
	if !removed {
		t.Error("first delete should report true")
	}

	removed, err = s.DeleteAPIKey(ctx, stored.ID)
	if err != nil {
		t.Fatalf("DeleteAPIKey second call: %v", err)
	}
	if removed {
		t.Error("second delete should report false")
	}

	if _, err := s.LoadAPIKey(ctx, stored.ID, ""); !errors.Is(err, model.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestDeleteUnknownIDReportsFalse(t *testing.T) {
	s := newTestStore(t)

	removed, err := s.DeleteAPIKey(context.Background(), 424242)
	if err != nil {
		t.Fatalf("DeleteAPIKey: %v", err)
	}
	if removed {
		t.Error("deleting a non-existent id must report false, not error")
	}
}

func TestAdminCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	admin := &model.Admin{
		Email:        "admin@example.com",
		PasswordHash: "$2a$10$fakefakefakefakefakefake",
		Name:         "Admin",
		IsActive:     true,
	}
	if err := s.CreateAdmin(ctx, admin); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	if admin.ID == 0 {
		t.Fatal("expected non-zero admin ID")
	}

	got, err := s.GetAdminByEmail(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("GetAdminByEmail: %v", err)
	}
	if got.Name != "Admin" {
		t.Errorf("got name %q", got.Name)
	}

	if _, err := s.GetAdminByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := s.UpdateAdminLastLogin(ctx, admin.ID); err != nil {
		t.Fatalf("UpdateAdminLastLogin: %v", err)
	}
	got, _ = s.GetAdminByEmail(ctx, "admin@example.com")
	if got.LastLoginAt == nil {
		t.Error("expected last_login_at to be set")
	}

	admins, err := s.ListAdmins(ctx)
	if err != nil {
		t.Fatalf("ListAdmins: %v", err)
	}
	if len(admins) != 1 {
		t.Errorf("got %d admins, want 1", len(admins))
	}
}

func TestAuditAppendAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, action := range []string{model.AuditKeyCreated, model.AuditKeyDeleted} {
		entry := &model.AuditEntry{
			Actor:   "cli",
			Action:  action,
			Subject: "some key",
			IP:      "127.0.0.1",
		}
		if err := s.AppendAudit(ctx, entry); err != nil {
			t.Fatalf("AppendAudit %d: %v", i, err)
		}
		if entry.ID == 0 {
			t.Fatal("expected audit entry id")
		}
	}

	entries, err := s.ListAudit(ctx, 10)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	// Newest first.
	if entries[0].Action != model.AuditKeyDeleted {
		t.Errorf("expected newest entry first, got %q", entries[0].Action)
	}
}
