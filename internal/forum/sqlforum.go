package forum

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLForum is the shared board-database implementation used by every driver
// package. Queries are written with ? placeholders and rebound through sqlx
// into the dialect's placeholder style; only the insert-id strategy differs
// per dialect.
type SQLForum struct {
	db     *sqlx.DB
	driver string
	prefix string
}

// NewSQLForum wraps an open connection pool. driver is the database/sql
// driver name ("mysql", "pgx", "sqlite", "sqlserver"); prefix is the board's
// table name prefix, typically "phpbb_".
func NewSQLForum(db *sqlx.DB, driver, prefix string) *SQLForum {
	return &SQLForum{db: db, driver: driver, prefix: prefix}
}

func (f *SQLForum) Disconnect() error {
	if f.db != nil {
		return f.db.Close()
	}
	return nil
}

func (f *SQLForum) Ping(ctx context.Context) error {
	return f.db.PingContext(ctx)
}

func (f *SQLForum) DB() *sqlx.DB { return f.db }

func (f *SQLForum) table(name string) string { return f.prefix + name }

const userColumns = `user_id, username, username_clean, user_password, user_email,
	group_id, user_type, user_ip, user_regdate, user_actkey, user_inactive_reason,
	user_inactive_time, user_lang, user_timezone, user_login_attempts, user_lastvisit`

// SpecialGroupID resolves a predefined board group by name.
func (f *SQLForum) SpecialGroupID(ctx context.Context, name string) (int64, error) {
	q := f.db.Rebind(fmt.Sprintf(
		`SELECT group_id FROM %s WHERE group_name = ? AND group_type = ?`, f.table("groups")))

	var id int64
	err := f.db.QueryRowxContext(ctx, q, name, groupSpecial).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("group %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup group %q: %w", name, err)
	}
	return id, nil
}

// UserByUsername looks up a user by its cleaned username.
func (f *SQLForum) UserByUsername(ctx context.Context, usernameClean string) (*User, error) {
	q := f.db.Rebind(fmt.Sprintf(
		`SELECT %s FROM %s WHERE username_clean = ?`, userColumns, f.table("users")))

	var u User
	err := f.db.GetContext(ctx, &u, q, usernameClean)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user %q: %w", usernameClean, err)
	}
	return &u, nil
}

func (f *SQLForum) UsernameExists(ctx context.Context, usernameClean string) (bool, error) {
	q := f.db.Rebind(fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE username_clean = ?`, f.table("users")))

	var n int
	if err := f.db.GetContext(ctx, &n, q, usernameClean); err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return n > 0, nil
}

func (f *SQLForum) EmailExists(ctx context.Context, email string) (bool, error) {
	q := f.db.Rebind(fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE user_email = ?`, f.table("users")))

	var n int
	if err := f.db.GetContext(ctx, &n, q, email); err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return n > 0, nil
}

// CreateUser inserts the user row and its group membership. The board keeps
// membership in a separate user_group table; both rows go in one transaction
// so a failed membership insert never strands a group-less user.
func (f *SQLForum) CreateUser(ctx context.Context, u *User) error {
	insert := fmt.Sprintf(`INSERT INTO %s
		(username, username_clean, user_password, user_email, group_id, user_type,
		 user_ip, user_regdate, user_actkey, user_inactive_reason, user_inactive_time,
		 user_lang, user_timezone, user_login_attempts, user_lastvisit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, f.table("users"))

	args := []any{
		u.Username, u.UsernameClean, u.PasswordHash, u.Email, u.GroupID, u.Type,
		u.IP, u.RegDate, u.ActKey, u.InactiveReason, u.InactiveTime,
		u.Lang, u.Timezone, u.LoginAttempts, u.LastVisit,
	}

	tx, err := f.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create user %q: begin: %w", u.Username, err)
	}
	defer tx.Rollback()

	id, err := f.insertUserID(ctx, tx, insert, args)
	if err != nil {
		return fmt.Errorf("create user %q: %w", u.Username, err)
	}

	membership := tx.Rebind(fmt.Sprintf(`INSERT INTO %s (group_id, user_id, group_leader, user_pending)
		VALUES (?, ?, 0, 0)`, f.table("user_group")))
	if _, err := tx.ExecContext(ctx, membership, u.GroupID, id); err != nil {
		return fmt.Errorf("create user %q group membership: %w", u.Username, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create user %q: commit: %w", u.Username, err)
	}
	u.ID = id
	return nil
}

// insertUserID runs the users insert and returns the assigned id. MySQL and
// SQLite report it through LastInsertId; Postgres needs a RETURNING clause;
// SQL Server needs OUTPUT INSERTED mid-statement.
func (f *SQLForum) insertUserID(ctx context.Context, ext sqlx.ExtContext, insert string, args []any) (int64, error) {
	var id int64
	switch f.driver {
	case "pgx":
		q := ext.Rebind(insert + " RETURNING user_id")
		if err := ext.QueryRowxContext(ctx, q, args...).Scan(&id); err != nil {
			return 0, err
		}
	case "sqlserver":
		q := insert
		if i := strings.Index(q, "VALUES"); i >= 0 {
			q = q[:i] + "OUTPUT INSERTED.user_id " + q[i:]
		}
		if err := ext.QueryRowxContext(ctx, ext.Rebind(q), args...).Scan(&id); err != nil {
			return 0, err
		}
	default:
		res, err := ext.ExecContext(ctx, ext.Rebind(insert), args...)
		if err != nil {
			return 0, err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, err
		}
	}
	return id, nil
}

// IncrementLoginAttempts bumps the failed-attempt counter after a bad
// password.
func (f *SQLForum) IncrementLoginAttempts(ctx context.Context, userID int64) error {
	q := f.db.Rebind(fmt.Sprintf(
		`UPDATE %s SET user_login_attempts = user_login_attempts + 1 WHERE user_id = ?`,
		f.table("users")))
	if _, err := f.db.ExecContext(ctx, q, userID); err != nil {
		return fmt.Errorf("increment login attempts: %w", err)
	}
	return nil
}

// ResetLoginAttempts clears the counter and stamps the visit time after a
// successful login.
func (f *SQLForum) ResetLoginAttempts(ctx context.Context, userID int64, lastVisit time.Time) error {
	q := f.db.Rebind(fmt.Sprintf(
		`UPDATE %s SET user_login_attempts = 0, user_lastvisit = ? WHERE user_id = ?`,
		f.table("users")))
	if _, err := f.db.ExecContext(ctx, q, lastVisit.Unix(), userID); err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	return nil
}
