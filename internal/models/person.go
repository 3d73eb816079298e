package models

import "time"

// PersonRole represents the staff role tags used across the program.
type PersonRole string

const (
	RoleProfessor     PersonRole = "Professor"
	RoleCoordenador   PersonRole = "Coordenador"
	RoleTutor         PersonRole = "Tutor"
	RoleAdministrador PersonRole = "Administrador"
)

// ValidRole reports whether the raw value matches a known role tag.
func ValidRole(raw string) bool {
	switch PersonRole(raw) {
	case RoleProfessor, RoleCoordenador, RoleTutor, RoleAdministrador:
		return true
	default:
		return false
	}
}

// Person represents a staff member stored in the people table.
type Person struct {
	ID         string     `db:"id" json:"id"`
	Role       PersonRole `db:"role" json:"role"`
	FirstName  string     `db:"first_name" json:"first_name"`
	LastName   string     `db:"last_name" json:"last_name"`
	Login      string     `db:"login" json:"login"`
	Email      string     `db:"email" json:"email"`
	Password   string     `db:"password" json:"-"`
	CourseID   *string    `db:"course_id" json:"course_id,omitempty"`
	CourseName *string    `db:"course_name" json:"course_name,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last names for display and denormalized columns.
func (p Person) FullName() string {
	if p.FirstName == "" {
		return p.LastName
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// PersonFilter captures filtering criteria for listing people.
type PersonFilter struct {
	Role      *PersonRole
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
