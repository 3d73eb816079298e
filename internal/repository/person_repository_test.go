package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-edu/posgrad-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func personRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "role", "first_name", "last_name", "login", "email", "password", "course_id", "course_name", "created_at", "updated_at"})
}

func TestPersonRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPersonRepository(db)

	rows := personRows().
		AddRow("p1", "Professor", "Ana", "Silva", "ana", "ana@example.com", "ana", nil, nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, role, .+ FROM people WHERE 1=1 ORDER BY created_at DESC LIMIT 20 OFFSET 0").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM people WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.PersonFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonRepositoryListFiltersByRole(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPersonRepository(db)

	role := models.RoleCoordenador
	mock.ExpectQuery(`SELECT id, role, .+ FROM people WHERE 1=1 AND role = \$1`).
		WithArgs(role).
		WillReturnRows(personRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM people WHERE 1=1 AND role = \$1`).
		WithArgs(role).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.PersonFilter{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonRepositoryFindByLogin(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPersonRepository(db)

	rows := personRows().
		AddRow("p1", "Administrador", "Joao", "Souza", "joao", "joao@example.com", "joao", nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM people WHERE LOWER(login) = LOWER($1)")).
		WithArgs("JOAO").
		WillReturnRows(rows)

	person, err := repo.FindByLogin(context.Background(), "JOAO")
	require.NoError(t, err)
	assert.Equal(t, "joao", person.Login)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonRepositoryExistsByLoginExcludesSelf(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPersonRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM people WHERE LOWER(login) = LOWER($1) AND id <> $2 LIMIT 1")).
		WithArgs("ana", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err := repo.ExistsByLogin(context.Background(), "ana", "p1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonRepositoryCreateAndDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPersonRepository(db)

	mock.ExpectExec("INSERT INTO people").
		WithArgs(sqlmock.AnyArg(), "Tutor", "Bia", "Costa", "bia", "bia@example.com", "bia", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	person := &models.Person{Role: models.RoleTutor, FirstName: "Bia", LastName: "Costa", Login: "bia", Email: "bia@example.com", Password: "bia"}
	require.NoError(t, repo.Create(context.Background(), person))
	assert.NotEmpty(t, person.ID)

	mock.ExpectExec("DELETE FROM people").
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Delete(context.Background(), "p1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
