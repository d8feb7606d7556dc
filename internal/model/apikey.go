package model

import (
	"unicode/utf8"
)

// Field length limits for an API key. Limits are in characters, not bytes,
// and are hard rejections: a value that truncation would change is refused
// rather than silently shortened.
const (
	MaxNameLen       = 200
	MaxValueLen      = 250
	MaxAllowedIPsLen = 16384
)

// Permission names accepted by Permissions.Has and the admin surface.
const (
	PermRegister = "register"
	PermLogin    = "login"
	PermManage   = "manage"
)

// APIKey is one issued bearer key. ID is assigned by the store on insert and
// never reused; Value is the bearer token itself, generated server-side as
// 128 hex characters and unique across all keys. AllowedIPs is a
// comma-separated list of IPv4/IPv6 literals and CIDR ranges; empty means
// the permission flags apply from any source address.
type APIKey struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Value        string `json:"value" db:"value"`
	AllowedIPs   string `json:"allowed_ips" db:"allowed_ips"`
	PermRegister bool   `json:"perm_register" db:"perm_register"`
	PermLogin    bool   `json:"perm_login" db:"perm_login"`
	PermManage   bool   `json:"perm_manage" db:"perm_manage"`
}

// Permissions returns the key's capability flags as a permission set.
func (k APIKey) Permissions() Permissions {
	return Permissions{
		Register: k.PermRegister,
		Login:    k.PermLogin,
		Manage:   k.PermManage,
	}
}

// Permissions is the resolved capability set for one request. The zero value
// grants nothing.
type Permissions struct {
	Register bool
	Login    bool
	Manage   bool
}

// Has reports whether the named permission is granted. Unrecognized names
// are always false.
func (p Permissions) Has(name string) bool {
	switch name {
	case PermRegister:
		return p.Register
	case PermLogin:
		return p.Login
	case PermManage:
		return p.Manage
	default:
		return false
	}
}

// Builder constructs a validated APIKey. Setters accumulate field errors
// instead of failing fast so that every problem with a submission surfaces
// at once; Build returns the immutable value or the aggregate error.
type Builder struct {
	key  APIKey
	errs ValidationErrors
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// ID sets the key id, used when rebuilding a persisted key. Negative ids
// are rejected.
func (b *Builder) ID(id int64) *Builder {
	if id < 0 {
		b.fail("api_key_id", OutOfBounds)
		return b
	}
	b.key.ID = id
	return b
}

// Name sets the human label. Required, at most 200 characters.
func (b *Builder) Name(name string) *Builder {
	if name == "" {
		b.fail("name", FieldRequired)
		return b
	}
	if utf8.RuneCountInString(name) > MaxNameLen {
		b.fail("name", FieldTooLong)
		return b
	}
	b.key.Name = name
	return b
}

// Value sets the bearer token. Required, at most 250 characters.
func (b *Builder) Value(value string) *Builder {
	if value == "" {
		b.fail("value", FieldRequired)
		return b
	}
	if utf8.RuneCountInString(value) > MaxValueLen {
		b.fail("value", FieldTooLong)
		return b
	}
	b.key.Value = value
	return b
}

// AllowedIPs sets the allowlist. Optional: the empty string means the key is
// unrestricted. At most 16384 characters.
func (b *Builder) AllowedIPs(allowedIPs string) *Builder {
	if utf8.RuneCountInString(allowedIPs) > MaxAllowedIPsLen {
		b.fail("allowed_ips", FieldTooLong)
		return b
	}
	b.key.AllowedIPs = allowedIPs
	return b
}

// PermRegister enables or disables the account registration permission.
func (b *Builder) PermRegister(allowed bool) *Builder {
	b.key.PermRegister = allowed
	return b
}

// PermLogin enables or disables the login permission.
func (b *Builder) PermLogin(allowed bool) *Builder {
	b.key.PermLogin = allowed
	return b
}

// PermManage enables or disables the key management permission.
func (b *Builder) PermManage(allowed bool) *Builder {
	b.key.PermManage = allowed
	return b
}

// Build returns the constructed key, or every accumulated field error. A key
// with all permissions false is valid, just useless.
func (b *Builder) Build() (APIKey, error) {
	if err := b.errs.ErrOrNil(); err != nil {
		return APIKey{}, err
	}
	return b.key, nil
}

func (b *Builder) fail(field string, reason FieldErrorReason) {
	b.errs = append(b.errs, &FieldError{Field: field, Reason: reason})
}

// importFields lists every column an imported record must carry.
var importFields = []string{
	"id", "name", "value", "allowed_ips",
	"perm_register", "perm_login", "perm_manage",
}

// Import rebuilds an APIKey from a raw record, typically a database row. All
// seven fields must be present; an absent field fails with FieldMissing
// naming it. Field values pass through the same validation as the Builder
// setters, so any field-level violation propagates as that field's error.
func Import(row map[string]any) (APIKey, error) {
	for _, field := range importFields {
		if _, ok := row[field]; !ok {
			return APIKey{}, &FieldError{Field: field, Reason: FieldMissing}
		}
	}

	b := NewBuilder().
		ID(asInt64(row["id"])).
		Name(asString(row["name"])).
		Value(asString(row["value"])).
		AllowedIPs(asString(row["allowed_ips"])).
		PermRegister(asBool(row["perm_register"])).
		PermLogin(asBool(row["perm_login"])).
		PermManage(asBool(row["perm_manage"]))
	return b.Build()
}

// asInt64 coerces the integer representations SQL drivers hand back.
func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// asString coerces text column values; some drivers return []byte.
func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}

// asBool coerces boolean columns, which SQLite and MySQL store as 0/1.
func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case int:
		return b != 0
	case []byte:
		return len(b) > 0 && b[0] == '1'
	case string:
		return b == "1" || b == "true"
	default:
		return false
	}
}
