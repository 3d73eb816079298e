package models

import "time"

// OverviewStats summarises the program for the administrator landing view.
type OverviewStats struct {
	Courses       int             `json:"courses"`
	Disciplines   int             `json:"disciplines"`
	People        int             `json:"people"`
	Coordinators  int             `json:"coordinators"`
	RecentUploads []UploadHistory `json:"recent_uploads"`
	RecentAudit   []AuditLog      `json:"recent_audit"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// CoordinatorOverview scopes the landing view to one coordinator's courses.
type CoordinatorOverview struct {
	Courses     []Course     `json:"courses"`
	Disciplines []Discipline `json:"disciplines"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// SystemMetricsSnapshot aggregates runtime metrics for the admin metrics view.
type SystemMetricsSnapshot struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"avg_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"avg_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
