package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lumen-edu/posgrad-api/internal/models"
)

const disciplineColumns = "id, name, coordinator_login, professor_login, tutor_login, month1, month2, created_at, updated_at"

// DisciplineRepository manages persistence for disciplines and their course
// links. The legacy parallel id/name arrays live in the course_disciplines
// join table; every read hydrates them back onto the model.
type DisciplineRepository struct {
	db *sqlx.DB
}

// NewDisciplineRepository constructs a DisciplineRepository.
func NewDisciplineRepository(db *sqlx.DB) *DisciplineRepository {
	return &DisciplineRepository{db: db}
}

// List returns disciplines matching filters along with total count.
func (r *DisciplineRepository) List(ctx context.Context, filter models.DisciplineFilter) ([]models.Discipline, int, error) {
	base := "FROM disciplines d WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM course_disciplines cd WHERE cd.discipline_id = d.id AND cd.course_id = $%d)", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(LOWER(d.name) LIKE $%d OR LOWER(COALESCE(d.professor_login, '')) LIKE $%d OR EXISTS (SELECT 1 FROM course_disciplines cd WHERE cd.discipline_id = d.id AND LOWER(cd.course_name) LIKE $%d))", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, search)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	// Month ordering happens in the service; missing months must sort last
	// and the sentinel comparison does not belong in SQL.
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY d.name ASC LIMIT %d OFFSET %d", qualifyDisciplineColumns(), base, size, offset)
	var disciplines []models.Discipline
	if err := r.db.SelectContext(ctx, &disciplines, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list disciplines: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count disciplines: %w", err)
	}

	if err := r.hydrateLinks(ctx, disciplines); err != nil {
		return nil, 0, err
	}
	return disciplines, total, nil
}

// ListAll returns every discipline with hydrated course links. The
// relationship synchronizer and the importers scan the whole collection.
func (r *DisciplineRepository) ListAll(ctx context.Context) ([]models.Discipline, error) {
	query := fmt.Sprintf("SELECT %s FROM disciplines ORDER BY name", disciplineColumns)
	var disciplines []models.Discipline
	if err := r.db.SelectContext(ctx, &disciplines, query); err != nil {
		return nil, fmt.Errorf("list all disciplines: %w", err)
	}
	if err := r.hydrateLinks(ctx, disciplines); err != nil {
		return nil, err
	}
	return disciplines, nil
}

// ListByCourse returns disciplines linked to the given course.
func (r *DisciplineRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Discipline, error) {
	query := fmt.Sprintf(`SELECT %s FROM disciplines d
		WHERE EXISTS (SELECT 1 FROM course_disciplines cd WHERE cd.discipline_id = d.id AND cd.course_id = $1)
		ORDER BY d.name`, qualifyDisciplineColumns())
	var disciplines []models.Discipline
	if err := r.db.SelectContext(ctx, &disciplines, query, courseID); err != nil {
		return nil, fmt.Errorf("list disciplines by course: %w", err)
	}
	if err := r.hydrateLinks(ctx, disciplines); err != nil {
		return nil, err
	}
	return disciplines, nil
}

// FindByID fetches a discipline by ID with hydrated course links.
func (r *DisciplineRepository) FindByID(ctx context.Context, id string) (*models.Discipline, error) {
	query := fmt.Sprintf("SELECT %s FROM disciplines WHERE id = $1", disciplineColumns)
	var discipline models.Discipline
	if err := r.db.GetContext(ctx, &discipline, query, id); err != nil {
		return nil, err
	}
	list := []models.Discipline{discipline}
	if err := r.hydrateLinks(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// FindByName fetches a discipline by name, case-insensitively.
func (r *DisciplineRepository) FindByName(ctx context.Context, name string) (*models.Discipline, error) {
	query := fmt.Sprintf("SELECT %s FROM disciplines WHERE LOWER(name) = LOWER($1)", disciplineColumns)
	var discipline models.Discipline
	if err := r.db.GetContext(ctx, &discipline, query, name); err != nil {
		return nil, err
	}
	list := []models.Discipline{discipline}
	if err := r.hydrateLinks(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// ExistsByName checks if another discipline uses the same name.
func (r *DisciplineRepository) ExistsByName(ctx context.Context, name string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM disciplines WHERE LOWER(name) = LOWER($1)"
	args := []interface{}{name}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check discipline name: %w", err)
	}
	return true, nil
}

// Create inserts a new discipline row plus its course links.
func (r *DisciplineRepository) Create(ctx context.Context, discipline *models.Discipline) error {
	if discipline.ID == "" {
		discipline.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if discipline.CreatedAt.IsZero() {
		discipline.CreatedAt = now
	}
	discipline.UpdatedAt = now

	const query = `INSERT INTO disciplines (id, name, coordinator_login, professor_login, tutor_login, month1, month2, created_at, updated_at)
		VALUES (:id, :name, :coordinator_login, :professor_login, :tutor_login, :month1, :month2, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, discipline); err != nil {
		return fmt.Errorf("create discipline: %w", err)
	}
	return r.replaceLinks(ctx, discipline)
}

// Update modifies a discipline row and rewrites its course links to match the
// model's arrays.
func (r *DisciplineRepository) Update(ctx context.Context, discipline *models.Discipline) error {
	discipline.UpdatedAt = time.Now().UTC()
	const query = `UPDATE disciplines SET name = :name, coordinator_login = :coordinator_login, professor_login = :professor_login, tutor_login = :tutor_login, month1 = :month1, month2 = :month2, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, discipline); err != nil {
		return fmt.Errorf("update discipline: %w", err)
	}
	return r.replaceLinks(ctx, discipline)
}

// Delete removes a discipline and, via FK cascade, its course links.
func (r *DisciplineRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM disciplines WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete discipline: %w", err)
	}
	return nil
}

// Count returns the total number of disciplines.
func (r *DisciplineRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM disciplines"); err != nil {
		return 0, fmt.Errorf("count disciplines: %w", err)
	}
	return total, nil
}

func (r *DisciplineRepository) replaceLinks(ctx context.Context, discipline *models.Discipline) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM course_disciplines WHERE discipline_id = $1", discipline.ID); err != nil {
		return fmt.Errorf("clear discipline links: %w", err)
	}
	for i, courseID := range discipline.CourseIDs {
		name := ""
		if i < len(discipline.CourseNames) {
			name = discipline.CourseNames[i]
		}
		const insert = `INSERT INTO course_disciplines (discipline_id, course_id, course_name, position) VALUES ($1, $2, $3, $4)`
		if _, err := r.db.ExecContext(ctx, insert, discipline.ID, courseID, name, i); err != nil {
			return fmt.Errorf("insert discipline link: %w", err)
		}
	}
	return nil
}

func (r *DisciplineRepository) hydrateLinks(ctx context.Context, disciplines []models.Discipline) error {
	if len(disciplines) == 0 {
		return nil
	}
	ids := make([]string, 0, len(disciplines))
	for i := range disciplines {
		disciplines[i].CourseIDs = []string{}
		disciplines[i].CourseNames = []string{}
		ids = append(ids, disciplines[i].ID)
	}

	query, args, err := sqlx.In("SELECT discipline_id, course_id, course_name, position FROM course_disciplines WHERE discipline_id IN (?) ORDER BY discipline_id, position", ids)
	if err != nil {
		return fmt.Errorf("build link query: %w", err)
	}
	query = r.db.Rebind(query)

	var links []models.CourseLink
	if err := r.db.SelectContext(ctx, &links, query, args...); err != nil {
		return fmt.Errorf("load discipline links: %w", err)
	}

	byID := make(map[string]*models.Discipline, len(disciplines))
	for i := range disciplines {
		byID[disciplines[i].ID] = &disciplines[i]
	}
	for _, link := range links {
		d, ok := byID[link.DisciplineID]
		if !ok {
			continue
		}
		d.CourseIDs = append(d.CourseIDs, link.CourseID)
		d.CourseNames = append(d.CourseNames, link.CourseName)
	}
	return nil
}

func qualifyDisciplineColumns() string {
	parts := strings.Split(disciplineColumns, ", ")
	for i, p := range parts {
		parts[i] = "d." + p
	}
	return strings.Join(parts, ", ")
}
