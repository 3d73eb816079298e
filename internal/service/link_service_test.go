package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lumen-edu/posgrad-api/internal/models"
)

type mockDisciplineStore struct {
	items    map[string]*models.Discipline
	order    []string
	updates  int
	failIDs  map[string]bool
	listErr  error
}

func newMockDisciplineStore(disciplines ...*models.Discipline) *mockDisciplineStore {
	store := &mockDisciplineStore{items: map[string]*models.Discipline{}}
	for _, d := range disciplines {
		store.items[d.ID] = d
		store.order = append(store.order, d.ID)
	}
	return store
}

func (m *mockDisciplineStore) ListAll(ctx context.Context) ([]models.Discipline, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]models.Discipline, 0, len(m.order))
	for _, id := range m.order {
		d := *m.items[id]
		d.CourseIDs = append([]string{}, d.CourseIDs...)
		d.CourseNames = append([]string{}, d.CourseNames...)
		out = append(out, d)
	}
	return out, nil
}

func (m *mockDisciplineStore) Update(ctx context.Context, discipline *models.Discipline) error {
	if m.failIDs[discipline.ID] {
		return fmt.Errorf("write failed")
	}
	m.updates++
	cp := *discipline
	cp.CourseIDs = append([]string{}, discipline.CourseIDs...)
	cp.CourseNames = append([]string{}, discipline.CourseNames...)
	m.items[discipline.ID] = &cp
	return nil
}

func (m *mockDisciplineStore) linkedTo(courseID string) []string {
	var out []string
	for _, id := range m.order {
		if m.items[id].LinkedTo(courseID) {
			out = append(out, id)
		}
	}
	return out
}

func disciplineWithCourses(id, name string, courseIDs ...string) *models.Discipline {
	names := make([]string, len(courseIDs))
	for i, cid := range courseIDs {
		names[i] = "Course " + cid
	}
	return &models.Discipline{ID: id, Name: name, CourseIDs: courseIDs, CourseNames: names}
}

func TestLinkServiceSetCourseDisciplines(t *testing.T) {
	store := newMockDisciplineStore(
		disciplineWithCourses("d1", "IA", "c1"),
		disciplineWithCourses("d2", "Banco de Dados"),
		disciplineWithCourses("d3", "Redes", "c1", "c2"),
	)
	svc := NewLinkService(store, zap.NewNop())

	warnings, err := svc.SetCourseDisciplines(context.Background(), "c1", "Mestrado CC", []string{"d1", "d2"})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, []string{"d1", "d2"}, store.linkedTo("c1"))
	// d3 lost both the id and the parallel name at the same index.
	assert.Equal(t, []string{"c2"}, store.items["d3"].CourseIDs)
	assert.Equal(t, []string{"Course c2"}, store.items["d3"].CourseNames)
	// d2 gained the new pair at the tail.
	assert.Equal(t, []string{"Mestrado CC"}, store.items["d2"].CourseNames)
}

func TestLinkServiceIdempotent(t *testing.T) {
	store := newMockDisciplineStore(
		disciplineWithCourses("d1", "IA", "c1"),
		disciplineWithCourses("d2", "Banco de Dados"),
	)
	svc := NewLinkService(store, zap.NewNop())

	_, err := svc.SetCourseDisciplines(context.Background(), "c1", "Mestrado CC", []string{"d1", "d2"})
	require.NoError(t, err)
	writes := store.updates

	_, err = svc.SetCourseDisciplines(context.Background(), "c1", "Mestrado CC", []string{"d1", "d2"})
	require.NoError(t, err)
	assert.Equal(t, writes, store.updates, "second identical run must not write")
}

func TestLinkServiceSkipsDisciplineAtCapacity(t *testing.T) {
	fullCourses := make([]string, models.MaxCoursesPerDiscipline)
	for i := range fullCourses {
		fullCourses[i] = fmt.Sprintf("x%d", i)
	}
	full := disciplineWithCourses("d1", "Lotada", fullCourses...)
	open := disciplineWithCourses("d2", "Aberta")
	store := newMockDisciplineStore(full, open)
	svc := NewLinkService(store, zap.NewNop())

	warnings, err := svc.SetCourseDisciplines(context.Background(), "c1", "Mestrado CC", []string{"d1", "d2"})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Lotada")

	// The full discipline kept its prior state; the open one was attached.
	assert.Len(t, store.items["d1"].CourseIDs, models.MaxCoursesPerDiscipline)
	assert.Equal(t, []string{"c1"}, store.items["d2"].CourseIDs)
}

func TestLinkServiceAtCapacityButAlreadyLinked(t *testing.T) {
	courses := make([]string, models.MaxCoursesPerDiscipline)
	for i := range courses {
		courses[i] = fmt.Sprintf("x%d", i)
	}
	courses[0] = "c1"
	full := disciplineWithCourses("d1", "Lotada", courses...)
	store := newMockDisciplineStore(full)
	svc := NewLinkService(store, zap.NewNop())

	warnings, err := svc.SetCourseDisciplines(context.Background(), "c1", "Mestrado CC", []string{"d1"})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 0, store.updates)
}

func TestLinkServicePersistFailureIsGenericAndPartial(t *testing.T) {
	store := newMockDisciplineStore(
		disciplineWithCourses("d1", "IA"),
		disciplineWithCourses("d2", "Redes"),
	)
	store.failIDs = map[string]bool{"d1": true}
	svc := NewLinkService(store, zap.NewNop())

	_, err := svc.SetCourseDisciplines(context.Background(), "c1", "Mestrado CC", []string{"d1", "d2"})
	require.Error(t, err)
	// No rollback: d2 was still written.
	assert.Equal(t, []string{"c1"}, store.items["d2"].CourseIDs)
}

func TestLinkServiceRenameCourse(t *testing.T) {
	store := newMockDisciplineStore(
		disciplineWithCourses("d1", "IA", "c1", "c2"),
		disciplineWithCourses("d2", "Redes", "c2"),
	)
	svc := NewLinkService(store, zap.NewNop())

	require.NoError(t, svc.RenameCourse(context.Background(), "c1", "Mestrado CC 2.0"))
	assert.Equal(t, []string{"Mestrado CC 2.0", "Course c2"}, store.items["d1"].CourseNames)
	// d2 does not reference c1 and must not be rewritten.
	assert.Equal(t, 1, store.updates)
}
