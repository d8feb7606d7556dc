package model

import "time"

// Audit actions recorded by the admin surface.
const (
	AuditKeyCreated = "key.created"
	AuditKeyDeleted = "key.deleted"
	AuditAdminLogin = "admin.login"
)

// AuditEntry is one row of the administrative audit log. Subject names the
// affected resource (the key's label for key actions), Actor identifies who
// performed it (an admin email or "cli").
type AuditEntry struct {
	ID        int64     `json:"id" db:"id"`
	Actor     string    `json:"actor" db:"actor"`
	Action    string    `json:"action" db:"action"`
	Subject   string    `json:"subject" db:"subject"`
	Detail    string    `json:"detail" db:"detail"`
	IP        string    `json:"ip" db:"ip"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
