package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin  = "LOGIN"
	AuditActionLogout = "LOGOUT"
	AuditActionCreate = "CREATE"
	AuditActionUpdate = "UPDATE"
	AuditActionDelete = "DELETE"
	AuditActionImport = "IMPORT"
)

// AuditEntity constants name the record kinds covered by the trail.
const (
	AuditEntityPerson     = "person"
	AuditEntityCourse     = "course"
	AuditEntityDiscipline = "discipline"
	AuditEntityAuth       = "auth"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	UserEmail  string    `db:"user_email" json:"user_email"`
	Action     string    `db:"action" json:"action"`
	Entity     string    `db:"entity" json:"entity"`
	EntityID   *string   `db:"entity_id" json:"entity_id,omitempty"`
	EntityName string    `db:"entity_name" json:"entity_name"`
	Changes    []byte    `db:"changes" json:"changes,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter captures filtering criteria for listing audit records.
type AuditFilter struct {
	Entity   string
	Action   string
	UserID   string
	Page     int
	PageSize int
}
