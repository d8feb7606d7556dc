package forum

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// boardSchema is a minimal copy of the board tables the gateway touches.
var boardSchema = []string{
	`CREATE TABLE phpbb_users (
		user_id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		username_clean TEXT NOT NULL UNIQUE,
		user_password TEXT NOT NULL,
		user_email TEXT NOT NULL,
		group_id INTEGER NOT NULL,
		user_type INTEGER NOT NULL DEFAULT 0,
		user_ip TEXT NOT NULL DEFAULT '',
		user_regdate INTEGER NOT NULL DEFAULT 0,
		user_actkey TEXT NOT NULL DEFAULT '',
		user_inactive_reason INTEGER NOT NULL DEFAULT 0,
		user_inactive_time INTEGER NOT NULL DEFAULT 0,
		user_lang TEXT NOT NULL DEFAULT 'en',
		user_timezone TEXT NOT NULL DEFAULT 'UTC',
		user_login_attempts INTEGER NOT NULL DEFAULT 0,
		user_lastvisit INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE phpbb_groups (
		group_id INTEGER PRIMARY KEY AUTOINCREMENT,
		group_name TEXT NOT NULL,
		group_type INTEGER NOT NULL
	)`,
	`CREATE TABLE phpbb_user_group (
		group_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		group_leader INTEGER NOT NULL DEFAULT 0,
		user_pending INTEGER NOT NULL DEFAULT 0
	)`,
	`INSERT INTO phpbb_groups (group_name, group_type) VALUES ('REGISTERED', 3)`,
	`INSERT INTO phpbb_groups (group_name, group_type) VALUES ('REGISTERED_COPPA', 3)`,
	// A non-special group with a colliding name must never be picked up.
	`INSERT INTO phpbb_groups (group_name, group_type) VALUES ('REGISTERED', 0)`,
}

func newTestForum(t *testing.T) *SQLForum {
	t.Helper()
	db, err := sqlx.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	for _, stmt := range boardSchema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("schema: %v", err)
		}
	}
	return NewSQLForum(db, "sqlite", "phpbb_")
}

func testUser(name string) *User {
	return &User{
		Username:       name,
		UsernameClean:  name,
		PasswordHash:   "$2y$10$hash",
		Email:          name + "@example.com",
		GroupID:        1,
		Type:           UserInactive,
		IP:             "203.0.113.9",
		RegDate:        time.Now().Unix(),
		ActKey:         "abc123",
		InactiveReason: InactiveRegister,
		InactiveTime:   time.Now().Unix(),
		Lang:           "en",
		Timezone:       "UTC",
	}
}

func TestSpecialGroupID(t *testing.T) {
	f := newTestForum(t)
	ctx := context.Background()

	id, err := f.SpecialGroupID(ctx, GroupRegistered)
	if err != nil {
		t.Fatalf("SpecialGroupID: %v", err)
	}
	if id != 1 {
		t.Errorf("got group id %d, want 1 (the special REGISTERED group)", id)
	}

	coppa, err := f.SpecialGroupID(ctx, GroupRegisteredCOPPA)
	if err != nil {
		t.Fatalf("SpecialGroupID coppa: %v", err)
	}
	if coppa != 2 {
		t.Errorf("got coppa group id %d, want 2", coppa)
	}

	if _, err := f.SpecialGroupID(ctx, "NO_SUCH_GROUP"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateUserAndLookup(t *testing.T) {
	f := newTestForum(t)
	ctx := context.Background()

	u := testUser("alice")
	if err := f.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("expected assigned user_id")
	}

	got, err := f.UserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("UserByUsername: %v", err)
	}
	if got.ID != u.ID || got.Email != "alice@example.com" || got.Type != UserInactive {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if got.ActKey != "abc123" {
		t.Errorf("activation key lost: %q", got.ActKey)
	}

	// Group membership row goes in with the user.
	var n int
	if err := f.DB().Get(&n,
		`SELECT COUNT(*) FROM phpbb_user_group WHERE user_id = ? AND group_id = ?`, u.ID, u.GroupID); err != nil {
		t.Fatalf("membership query: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 membership row, got %d", n)
	}
}

func TestCreateUserRollsBackOnMembershipFailure(t *testing.T) {
	f := newTestForum(t)
	ctx := context.Background()

	// Break the membership insert: the user row must not survive it.
	if _, err := f.DB().Exec(`DROP TABLE phpbb_user_group`); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	u := testUser("carol")
	if err := f.CreateUser(ctx, u); err == nil {
		t.Fatal("expected CreateUser to fail")
	}
	if u.ID != 0 {
		t.Errorf("user id assigned on failed create: %d", u.ID)
	}

	var n int
	if err := f.DB().Get(&n,
		`SELECT COUNT(*) FROM phpbb_users WHERE username_clean = ?`, "carol"); err != nil {
		t.Fatalf("user query: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 user rows after rollback, got %d", n)
	}

	// The name must still be free for a retry.
	exists, err := f.UsernameExists(ctx, "carol")
	if err != nil {
		t.Fatalf("UsernameExists: %v", err)
	}
	if exists {
		t.Error("username still taken after rolled-back create")
	}
}

func TestUserByUsernameNotFound(t *testing.T) {
	f := newTestForum(t)

	_, err := f.UserByUsername(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExistenceChecks(t *testing.T) {
	f := newTestForum(t)
	ctx := context.Background()

	if err := f.CreateUser(ctx, testUser("bob")); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	taken, err := f.UsernameExists(ctx, "bob")
	if err != nil || !taken {
		t.Errorf("UsernameExists(bob) = %v, %v; want true", taken, err)
	}
	free, err := f.UsernameExists(ctx, "carol")
	if err != nil || free {
		t.Errorf("UsernameExists(carol) = %v, %v; want false", free, err)
	}

	taken, err = f.EmailExists(ctx, "bob@example.com")
	if err != nil || !taken {
		t.Errorf("EmailExists = %v, %v; want true", taken, err)
	}
}

func TestLoginAttemptCounter(t *testing.T) {
	f := newTestForum(t)
	ctx := context.Background()

	u := testUser("dave")
	if err := f.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := f.IncrementLoginAttempts(ctx, u.ID); err != nil {
			t.Fatalf("IncrementLoginAttempts: %v", err)
		}
	}
	got, _ := f.UserByUsername(ctx, "dave")
	if got.LoginAttempts != 3 {
		t.Errorf("got %d attempts, want 3", got.LoginAttempts)
	}

	visit := time.Unix(1700000000, 0)
	if err := f.ResetLoginAttempts(ctx, u.ID, visit); err != nil {
		t.Fatalf("ResetLoginAttempts: %v", err)
	}
	got, _ = f.UserByUsername(ctx, "dave")
	if got.LoginAttempts != 0 {
		t.Errorf("attempts not reset: %d", got.LoginAttempts)
	}
	if got.LastVisit != visit.Unix() {
		t.Errorf("last visit not stamped: %d", got.LastVisit)
	}
}
