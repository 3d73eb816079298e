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

const personColumns = "id, role, first_name, last_name, login, email, password, course_id, course_name, created_at, updated_at"

// PersonRepository manages persistence for staff members.
type PersonRepository struct {
	db *sqlx.DB
}

// NewPersonRepository constructs a PersonRepository.
func NewPersonRepository(db *sqlx.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

// List returns people matching filters along with total count.
func (r *PersonRepository) List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error) {
	base := "FROM people WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(LOWER(first_name || ' ' || last_name) LIKE $%d OR LOWER(login) LIKE $%d OR LOWER(email) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, search)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	allowedSorts := map[string]string{
		"first_name": "first_name",
		"login":      "login",
		"email":      "email",
		"role":       "role",
		"created_at": "created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "created_at"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", personColumns, base, column, order, size, offset)
	var people []models.Person
	if err := r.db.SelectContext(ctx, &people, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list people: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count people: %w", err)
	}

	return people, total, nil
}

// ListByRole returns every person carrying the given role tag.
func (r *PersonRepository) ListByRole(ctx context.Context, role models.PersonRole) ([]models.Person, error) {
	query := fmt.Sprintf("SELECT %s FROM people WHERE role = $1 ORDER BY first_name, last_name", personColumns)
	var people []models.Person
	if err := r.db.SelectContext(ctx, &people, query, role); err != nil {
		return nil, fmt.Errorf("list people by role: %w", err)
	}
	return people, nil
}

// ListAll returns every person. Used to preload importer lookup maps.
func (r *PersonRepository) ListAll(ctx context.Context) ([]models.Person, error) {
	query := fmt.Sprintf("SELECT %s FROM people ORDER BY created_at", personColumns)
	var people []models.Person
	if err := r.db.SelectContext(ctx, &people, query); err != nil {
		return nil, fmt.Errorf("list all people: %w", err)
	}
	return people, nil
}

// FindByID fetches a person by ID.
func (r *PersonRepository) FindByID(ctx context.Context, id string) (*models.Person, error) {
	query := fmt.Sprintf("SELECT %s FROM people WHERE id = $1", personColumns)
	var person models.Person
	if err := r.db.GetContext(ctx, &person, query, id); err != nil {
		return nil, err
	}
	return &person, nil
}

// FindByLogin fetches a person by login, case-insensitively.
func (r *PersonRepository) FindByLogin(ctx context.Context, login string) (*models.Person, error) {
	query := fmt.Sprintf("SELECT %s FROM people WHERE LOWER(login) = LOWER($1)", personColumns)
	var person models.Person
	if err := r.db.GetContext(ctx, &person, query, login); err != nil {
		return nil, err
	}
	return &person, nil
}

// ExistsByLogin checks if another person uses the same login.
func (r *PersonRepository) ExistsByLogin(ctx context.Context, login string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM people WHERE LOWER(login) = LOWER($1)"
	args := []interface{}{login}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check person login: %w", err)
	}
	return true, nil
}

// ExistsByEmail checks if another person uses the same email.
func (r *PersonRepository) ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM people WHERE LOWER(email) = LOWER($1)"
	args := []interface{}{email}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check person email: %w", err)
	}
	return true, nil
}

// Create inserts a new person record.
func (r *PersonRepository) Create(ctx context.Context, person *models.Person) error {
	if person.ID == "" {
		person.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if person.CreatedAt.IsZero() {
		person.CreatedAt = now
	}
	person.UpdatedAt = now

	const query = `INSERT INTO people (id, role, first_name, last_name, login, email, password, course_id, course_name, created_at, updated_at)
		VALUES (:id, :role, :first_name, :last_name, :login, :email, :password, :course_id, :course_name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, person); err != nil {
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

// Update modifies an existing person record.
func (r *PersonRepository) Update(ctx context.Context, person *models.Person) error {
	person.UpdatedAt = time.Now().UTC()
	const query = `UPDATE people SET role = :role, first_name = :first_name, last_name = :last_name, login = :login, email = :email, password = :password, course_id = :course_id, course_name = :course_name, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, person); err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	return nil
}

// Delete removes a person record.
func (r *PersonRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM people WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	return nil
}

// Count returns the total number of people, optionally scoped to one role.
func (r *PersonRepository) Count(ctx context.Context, role *models.PersonRole) (int, error) {
	query := "SELECT COUNT(*) FROM people"
	var args []interface{}
	if role != nil {
		query += " WHERE role = $1"
		args = append(args, *role)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count people: %w", err)
	}
	return total, nil
}
