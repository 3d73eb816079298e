package models

import "time"

// MaxCoursesPerCoordinator bounds how many courses one coordinator may run.
const MaxCoursesPerCoordinator = 8

// Course represents a postgraduate program offering.
type Course struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	CoordinatorID   string    `db:"coordinator_id" json:"coordinator_id"`
	CoordinatorName string    `db:"coordinator_name" json:"coordinator_name"`
	TutorID         *string   `db:"tutor_id" json:"tutor_id,omitempty"`
	TutorName       *string   `db:"tutor_name" json:"tutor_name,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	Search        string
	CoordinatorID string
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
