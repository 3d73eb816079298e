package models

import "time"

// UploadKind enumerates the three import templates.
type UploadKind string

const (
	UploadKindCourses     UploadKind = "courses"
	UploadKindDisciplines UploadKind = "disciplines"
	UploadKindPeople      UploadKind = "people"
)

// UploadHistory records one processed spreadsheet import.
type UploadHistory struct {
	ID           string     `db:"id" json:"id"`
	Kind         UploadKind `db:"kind" json:"kind"`
	FileName     string     `db:"file_name" json:"file_name"`
	UploadedBy   string     `db:"uploaded_by" json:"uploaded_by"`
	RecordsCount int        `db:"records_count" json:"records_count"`
	Month        *string    `db:"month" json:"month,omitempty"`
	UploadedAt   time.Time  `db:"uploaded_at" json:"uploaded_at"`
}

// ImportRow is one spreadsheet data row keyed by header label. Number is the
// 1-based position counting the header, so the first data row is 2.
type ImportRow struct {
	Number int
	Cells  map[string]string
}

// ImportSummary aggregates the per-row outcomes of one import batch.
type ImportSummary struct {
	Created []string `json:"created"`
	Ignored []string `json:"ignored"`
	Errors  []string `json:"errors"`
}
