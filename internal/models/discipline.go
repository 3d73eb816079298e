package models

import (
	"regexp"
	"strings"
	"time"
)

// MaxCoursesPerDiscipline bounds the fan-out of the course/discipline relation.
const MaxCoursesPerDiscipline = 15

// monthCodePattern matches the numeric period labels, e.g. "mes-1".
var monthCodePattern = regexp.MustCompile(`^mes-\d{1,2}$`)

// ValidMonthCode reports whether the raw value is a well-formed period label.
func ValidMonthCode(raw string) bool {
	return monthCodePattern.MatchString(raw)
}

// MonthSortKey returns a sortable key for a period label. Disciplines without
// a first month sort last. The numeric part is zero padded so "mes-10" sorts
// after "mes-2".
func MonthSortKey(month *string) string {
	if month == nil || *month == "" {
		return "9999-99"
	}
	m := *month
	if strings.HasPrefix(m, "mes-") && len(m) == len("mes-")+1 {
		return "mes-0" + m[len("mes-"):]
	}
	return m
}

// Discipline represents a subject offering linked to one or more courses.
// CourseIDs and CourseNames are parallel, position-ordered projections of the
// course_disciplines join table.
type Discipline struct {
	ID               string    `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	CourseIDs        []string  `db:"-" json:"course_ids"`
	CourseNames      []string  `db:"-" json:"course_names"`
	CoordinatorLogin *string   `db:"coordinator_login" json:"coordinator_login,omitempty"`
	ProfessorLogin   *string   `db:"professor_login" json:"professor_login,omitempty"`
	TutorLogin       *string   `db:"tutor_login" json:"tutor_login,omitempty"`
	Month1           *string   `db:"month1" json:"month1,omitempty"`
	Month2           *string   `db:"month2" json:"month2,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// LinkedTo reports whether the discipline already references the course.
func (d Discipline) LinkedTo(courseID string) bool {
	for _, id := range d.CourseIDs {
		if id == courseID {
			return true
		}
	}
	return false
}

// CourseLink is one row of the course_disciplines join table. The course name
// is denormalized so listings render without an extra join.
type CourseLink struct {
	DisciplineID string `db:"discipline_id" json:"discipline_id"`
	CourseID     string `db:"course_id" json:"course_id"`
	CourseName   string `db:"course_name" json:"course_name"`
	Position     int    `db:"position" json:"position"`
}

// DisciplineFilter captures filtering criteria for listing disciplines.
type DisciplineFilter struct {
	Search   string
	CourseID string
	SortBy   string
	Page     int
	PageSize int
}
