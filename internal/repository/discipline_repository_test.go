package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-edu/posgrad-api/internal/models"
)

func disciplineRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "coordinator_login", "professor_login", "tutor_login", "month1", "month2", "created_at", "updated_at"})
}

func linkRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"discipline_id", "course_id", "course_name", "position"})
}

func TestDisciplineRepositoryFindByIDHydratesLinks(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDisciplineRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM disciplines WHERE id = $1")).
		WithArgs("d1").
		WillReturnRows(disciplineRows().
			AddRow("d1", "IA", nil, "ana", nil, "mes-1", nil, time.Now(), time.Now()))
	mock.ExpectQuery("SELECT discipline_id, course_id, course_name, position FROM course_disciplines").
		WillReturnRows(linkRows().
			AddRow("d1", "c1", "Mestrado CC", 0).
			AddRow("d1", "c2", "MBA Mkt", 1))

	discipline, err := repo.FindByID(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, discipline.CourseIDs)
	assert.Equal(t, []string{"Mestrado CC", "MBA Mkt"}, discipline.CourseNames)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDisciplineRepositoryFindByNameCaseInsensitive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDisciplineRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM disciplines WHERE LOWER(name) = LOWER($1)")).
		WithArgs("ia").
		WillReturnRows(disciplineRows().
			AddRow("d1", "IA", nil, nil, nil, nil, nil, time.Now(), time.Now()))
	mock.ExpectQuery("FROM course_disciplines").
		WillReturnRows(linkRows())

	discipline, err := repo.FindByName(context.Background(), "ia")
	require.NoError(t, err)
	assert.Equal(t, "IA", discipline.Name)
	assert.Empty(t, discipline.CourseIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDisciplineRepositoryCreateWritesLinks(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDisciplineRepository(db)

	mock.ExpectExec("INSERT INTO disciplines").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM course_disciplines WHERE discipline_id").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO course_disciplines").
		WithArgs(sqlmock.AnyArg(), "c1", "Mestrado CC", 0).
		WillReturnResult(sqlmock.NewResult(1, 1))

	discipline := &models.Discipline{
		Name:        "IA",
		CourseIDs:   []string{"c1"},
		CourseNames: []string{"Mestrado CC"},
	}
	require.NoError(t, repo.Create(context.Background(), discipline))
	assert.NotEmpty(t, discipline.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDisciplineRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDisciplineRepository(db)

	mock.ExpectExec("DELETE FROM disciplines").
		WithArgs("d1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Delete(context.Background(), "d1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
