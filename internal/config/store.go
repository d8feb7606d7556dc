package config

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/forumgate/forumgate/internal/model"
)

// Store manages forumgate's own state backed by SQLite: the issued API keys,
// admin accounts, and the audit log. The forum's database is a separate
// collaborator and never touched from here.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new store. Pass empty string for in-memory.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "forumgate.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open gate database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate gate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---------------------------------------------------------------------------
// API keys
// ---------------------------------------------------------------------------

const apiKeyColumns = `id, name, value, allowed_ips, perm_register, perm_login, perm_manage`

// InsertAPIKey persists a not-yet-inserted key and returns a freshly
// reloaded entity, so the caller never works from in-memory state that may
// have diverged from stored defaults. A key that already carries an id is
// rejected: creation always starts from a fresh entity.
//
// Uniqueness of the value column is enforced by the storage-level UNIQUE
// constraint; a colliding insert surfaces as a generic insertion error.
func (s *Store) InsertAPIKey(ctx context.Context, key model.APIKey) (model.APIKey, error) {
	if key.ID != 0 {
		return model.APIKey{}, &model.FieldError{Field: "api_key_id", Reason: model.OutOfBounds}
	}

	const q = `INSERT INTO api_keys
		(name, value, allowed_ips, perm_register, perm_login, perm_manage)
		VALUES (?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, q,
		key.Name, key.Value, key.AllowedIPs,
		key.PermRegister, key.PermLogin, key.PermManage)
	if err != nil {
		return model.APIKey{}, fmt.Errorf("insert api key: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.APIKey{}, fmt.Errorf("get api key id: %w", err)
	}

	return s.LoadAPIKey(ctx, id, "")
}

// UpdateAPIKey persists all fields of an already-inserted key except its id.
// A key without an id must be inserted first.
func (s *Store) UpdateAPIKey(ctx context.Context, key model.APIKey) error {
	if key.ID == 0 {
		return &model.FieldError{Field: "api_key_id", Reason: model.OutOfBounds}
	}

	const q = `UPDATE api_keys
		SET name = ?, value = ?, allowed_ips = ?,
			perm_register = ?, perm_login = ?, perm_manage = ?
		WHERE id = ?`

	if _, err := s.db.ExecContext(ctx, q,
		key.Name, key.Value, key.AllowedIPs,
		key.PermRegister, key.PermLogin, key.PermManage,
		key.ID); err != nil {
		return fmt.Errorf("update api key: %w", err)
	}
	return nil
}

// LoadAPIKey fetches one key by id when id is non-zero, otherwise by value.
// Exactly one selector is honored per call and id takes priority. No match
// fails with model.ErrKeyNotFound.
func (s *Store) LoadAPIKey(ctx context.Context, id int64, value string) (model.APIKey, error) {
	var (
		q   string
		arg interface{}
	)
	if id != 0 {
		q = `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = ?`
		arg = id
	} else {
		q = `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE value = ?`
		arg = value
	}

	row := make(map[string]interface{})
	if err := s.db.QueryRowxContext(ctx, q, arg).MapScan(row); err != nil {
		if err == sql.ErrNoRows {
			return model.APIKey{}, model.ErrKeyNotFound
		}
		return model.APIKey{}, fmt.Errorf("load api key: %w", err)
	}

	key, err := model.Import(row)
	if err != nil {
		return model.APIKey{}, fmt.Errorf("materialize api key row: %w", err)
	}
	return key, nil
}

// ListAPIKeys returns all keys ordered by ascending id, each row
// materialized through model.Import.
func (s *Store) ListAPIKeys(ctx context.Context) ([]model.APIKey, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []model.APIKey
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan api key row: %w", err)
		}
		key, err := model.Import(row)
		if err != nil {
			return nil, fmt.Errorf("materialize api key row: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// DeleteAPIKey removes the key by id and reports whether a row was actually
// removed. Deleting an id that does not exist is not an error; it reports
// false, which makes the operation idempotent.
func (s *Store) DeleteAPIKey(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete api key rows affected: %w", err)
	}
	return n > 0, nil
}

// ---------------------------------------------------------------------------
// Admin accounts
// ---------------------------------------------------------------------------

// CreateAdmin inserts a new admin account. The password_hash must already be
// a bcrypt hash. ID and CreatedAt are populated after insert.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	admin.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO admins (email, password_hash, name, is_active, created_at)
		VALUES (:email, :password_hash, :name, :is_active, :created_at)`

	result, err := s.db.NamedExecContext(ctx, q, admin)
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get admin id: %w", err)
	}
	admin.ID = id
	return nil
}

// GetAdminByEmail looks up an admin account by email.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var admin model.Admin
	if err := s.db.GetContext(ctx, &admin,
		"SELECT * FROM admins WHERE email = ?", email); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return &admin, nil
}

// ListAdmins returns all admin accounts.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	var admins []model.Admin
	if err := s.db.SelectContext(ctx, &admins,
		"SELECT * FROM admins ORDER BY id ASC"); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// UpdateAdminLastLogin sets the last_login_at timestamp for an admin.
func (s *Store) UpdateAdminLastLogin(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		"UPDATE admins SET last_login_at = ? WHERE id = ?", now, id)
	if err != nil {
		return fmt.Errorf("update admin last login: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update admin last login rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Audit log
// ---------------------------------------------------------------------------

// AppendAudit writes one audit entry. CreatedAt is assigned here.
func (s *Store) AppendAudit(ctx context.Context, entry *model.AuditEntry) error {
	entry.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO audit_log (actor, action, subject, detail, ip, created_at)
		VALUES (:actor, :action, :subject, :detail, :ip, :created_at)`

	result, err := s.db.NamedExecContext(ctx, q, entry)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get audit entry id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListAudit returns the newest audit entries, capped at limit.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []model.AuditEntry
	if err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM audit_log ORDER BY id DESC LIMIT ?", limit); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
