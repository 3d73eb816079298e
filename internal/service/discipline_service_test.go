package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lumen-edu/posgrad-api/internal/models"
	appErrors "github.com/lumen-edu/posgrad-api/pkg/errors"
)

type mockDisciplineRepo struct {
	*mockDisciplineStore
}

func (m *mockDisciplineRepo) List(ctx context.Context, filter models.DisciplineFilter) ([]models.Discipline, int, error) {
	all, err := m.ListAll(ctx)
	if err != nil {
		return nil, 0, err
	}
	return all, len(all), nil
}

func (m *mockDisciplineRepo) FindByID(ctx context.Context, id string) (*models.Discipline, error) {
	d, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *d
	cp.CourseIDs = append([]string{}, d.CourseIDs...)
	cp.CourseNames = append([]string{}, d.CourseNames...)
	return &cp, nil
}

func (m *mockDisciplineRepo) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	for _, d := range m.items {
		if d.Name == name && d.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockDisciplineRepo) Delete(ctx context.Context, id string) error {
	delete(m.items, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func newDisciplineService(repo *mockDisciplineRepo, courses map[string]*models.Course) *DisciplineService {
	return NewDisciplineService(repo, &mockCourseLookup{courses: courses}, &mockAuditStore{}, nil, nil, zap.NewNop())
}

func monthDiscipline(id, name string, month1 *string) *models.Discipline {
	return &models.Discipline{ID: id, Name: name, Month1: month1}
}

func strPtr(s string) *string { return &s }

func TestDisciplineServiceListByMonthOrdersNumerically(t *testing.T) {
	repo := &mockDisciplineRepo{newMockDisciplineStore(
		monthDiscipline("d1", "Compiladores", strPtr("mes-10")),
		monthDiscipline("d2", "IA", strPtr("mes-2")),
		monthDiscipline("d3", "Sem Periodo", nil),
		monthDiscipline("d4", "Redes", strPtr("mes-2")),
	)}
	svc := newDisciplineService(repo, nil)

	list, pagination, err := svc.List(context.Background(), models.DisciplineFilter{SortBy: "month"})
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, 4, pagination.TotalCount)

	names := []string{list[0].Name, list[1].Name, list[2].Name, list[3].Name}
	// mes-2 comes before mes-10, ties break alphabetically, and disciplines
	// without a first month sort last.
	assert.Equal(t, []string{"IA", "Redes", "Compiladores", "Sem Periodo"}, names)
}

func TestDisciplineServiceListByMonthFiltersByCourse(t *testing.T) {
	linked := disciplineWithCourses("d1", "IA", "c1")
	linked.Month1 = strPtr("mes-1")
	other := disciplineWithCourses("d2", "Redes", "c2")
	other.Month1 = strPtr("mes-1")
	repo := &mockDisciplineRepo{newMockDisciplineStore(linked, other)}
	svc := newDisciplineService(repo, nil)

	list, _, err := svc.List(context.Background(), models.DisciplineFilter{SortBy: "month", CourseID: "c1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "IA", list[0].Name)
}

func TestDisciplineServiceCreateRejectsTooManyCourses(t *testing.T) {
	courses := map[string]*models.Course{}
	ids := make([]string, models.MaxCoursesPerDiscipline+1)
	for i := range ids {
		id := fmt.Sprintf("c%d", i)
		ids[i] = id
		courses[id] = &models.Course{ID: id, Name: "Curso " + id}
	}
	repo := &mockDisciplineRepo{newMockDisciplineStore()}
	svc := newDisciplineService(repo, courses)

	_, err := svc.Create(context.Background(), models.UserInfo{}, DisciplineRequest{
		Name:      "IA",
		CourseIDs: ids,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCapacity.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.items)
}

func TestDisciplineServiceCreateValidatesMonthCode(t *testing.T) {
	repo := &mockDisciplineRepo{newMockDisciplineStore()}
	svc := newDisciplineService(repo, nil)

	_, err := svc.Create(context.Background(), models.UserInfo{}, DisciplineRequest{
		Name:   "IA",
		Month1: strPtr("março"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	discipline, err := svc.Create(context.Background(), models.UserInfo{}, DisciplineRequest{
		Name:   "IA",
		Month1: strPtr("mes-3"),
	})
	require.NoError(t, err)
	require.NotNil(t, discipline.Month1)
	assert.Equal(t, "mes-3", *discipline.Month1)
}

func TestDisciplineServiceCreateResolvesCourseNames(t *testing.T) {
	courses := map[string]*models.Course{
		"c1": {ID: "c1", Name: "Mestrado CC"},
		"c2": {ID: "c2", Name: "MBA Mkt"},
	}
	repo := &mockDisciplineRepo{newMockDisciplineStore()}
	svc := newDisciplineService(repo, courses)

	discipline, err := svc.Create(context.Background(), models.UserInfo{}, DisciplineRequest{
		Name:      "IA",
		CourseIDs: []string{"c1", "c2"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Mestrado CC", "MBA Mkt"}, discipline.CourseNames)
}

func TestMonthSortKey(t *testing.T) {
	assert.Equal(t, "9999-99", models.MonthSortKey(nil))
	assert.Equal(t, "mes-02", models.MonthSortKey(strPtr("mes-2")))
	assert.Equal(t, "mes-10", models.MonthSortKey(strPtr("mes-10")))
	assert.Less(t, models.MonthSortKey(strPtr("mes-2")), models.MonthSortKey(strPtr("mes-10")))
}
