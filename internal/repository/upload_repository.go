package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lumen-edu/posgrad-api/internal/models"
)

// UploadRepository persists the spreadsheet upload history.
type UploadRepository struct {
	db *sqlx.DB
}

// NewUploadRepository constructs an UploadRepository.
func NewUploadRepository(db *sqlx.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Create inserts an upload history record.
func (r *UploadRepository) Create(ctx context.Context, record *models.UploadHistory) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.UploadedAt.IsZero() {
		record.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO upload_history (id, kind, file_name, uploaded_by, records_count, month, uploaded_at)
		VALUES (:id, :kind, :file_name, :uploaded_by, :records_count, :month, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create upload history: %w", err)
	}
	return nil
}

// ListRecent returns the newest uploads.
func (r *UploadRepository) ListRecent(ctx context.Context, limit int) ([]models.UploadHistory, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `SELECT id, kind, file_name, uploaded_by, records_count, month, uploaded_at
		FROM upload_history ORDER BY uploaded_at DESC LIMIT $1`
	var records []models.UploadHistory
	if err := r.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("list upload history: %w", err)
	}
	return records, nil
}
