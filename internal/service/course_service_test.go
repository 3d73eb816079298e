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

type mockCourseRepo struct {
	courses map[string]*models.Course
	writes  int
}

func newMockCourseRepo(courses ...*models.Course) *mockCourseRepo {
	repo := &mockCourseRepo{courses: map[string]*models.Course{}}
	for _, c := range courses {
		repo.courses[c.ID] = c
	}
	return repo
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var out []models.Course
	for _, c := range m.courses {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockCourseRepo) ListAll(ctx context.Context) ([]models.Course, error) {
	list, _, err := m.List(ctx, models.CourseFilter{})
	return list, err
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (m *mockCourseRepo) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	for _, c := range m.courses {
		if c.Name == name && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockCourseRepo) CountByCoordinator(ctx context.Context, coordinatorID, excludeID string) (int, error) {
	count := 0
	for _, c := range m.courses {
		if c.CoordinatorID == coordinatorID && c.ID != excludeID {
			count++
		}
	}
	return count, nil
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	course.ID = fmt.Sprintf("c-gen-%d", len(m.courses)+1)
	cp := *course
	m.courses[course.ID] = &cp
	m.writes++
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	cp := *course
	m.courses[course.ID] = &cp
	m.writes++
	return nil
}

func (m *mockCourseRepo) Delete(ctx context.Context, id string) error {
	delete(m.courses, id)
	m.writes++
	return nil
}

type mockPersonLookup struct {
	people map[string]*models.Person
}

func (m *mockPersonLookup) FindByID(ctx context.Context, id string) (*models.Person, error) {
	p, ok := m.people[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

type mockLinkManager struct {
	setCalls    int
	lastCourse  string
	lastDesired []string
	warnings    []string
	renames     []string
}

func (m *mockLinkManager) SetCourseDisciplines(ctx context.Context, courseID, courseName string, desiredIDs []string) ([]string, error) {
	m.setCalls++
	m.lastCourse = courseID
	m.lastDesired = desiredIDs
	return m.warnings, nil
}

func (m *mockLinkManager) RenameCourse(ctx context.Context, courseID, courseName string) error {
	m.renames = append(m.renames, courseName)
	return nil
}

func coordinator(id, first, last string) *models.Person {
	return &models.Person{ID: id, Role: models.RoleCoordenador, FirstName: first, LastName: last, Login: first}
}

type mockStatsInvalidator struct {
	calls int
}

func (m *mockStatsInvalidator) InvalidateStats(ctx context.Context) {
	m.calls++
}

func newCourseService(repo *mockCourseRepo, people map[string]*models.Person, links *mockLinkManager) *CourseService {
	return NewCourseService(repo, &mockPersonLookup{people: people}, links, &mockAuditStore{}, nil, nil, zap.NewNop())
}

func TestCourseServiceCreateDenormalizesNames(t *testing.T) {
	repo := newMockCourseRepo()
	links := &mockLinkManager{}
	people := map[string]*models.Person{
		"p1": coordinator("p1", "Joao", "Souza"),
		"p2": {ID: "p2", Role: models.RoleTutor, FirstName: "Ana", LastName: "Lima"},
	}
	svc := newCourseService(repo, people, links)

	tutorID := "p2"
	result, err := svc.Create(context.Background(), models.UserInfo{ID: "u1"}, CreateCourseRequest{
		Name:          "Mestrado CC",
		CoordinatorID: "p1",
		TutorID:       &tutorID,
		DisciplineIDs: []string{"d1", "d2"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Joao Souza", result.Course.CoordinatorName)
	require.NotNil(t, result.Course.TutorName)
	assert.Equal(t, "Ana Lima", *result.Course.TutorName)
	assert.Equal(t, []string{"d1", "d2"}, links.lastDesired)
	assert.Equal(t, result.Course.ID, links.lastCourse)
}

func TestCourseServiceRejectsNinthCourse(t *testing.T) {
	existing := make([]*models.Course, models.MaxCoursesPerCoordinator)
	for i := range existing {
		existing[i] = &models.Course{ID: fmt.Sprintf("c%d", i), Name: fmt.Sprintf("Curso %d", i), CoordinatorID: "p1"}
	}
	repo := newMockCourseRepo(existing...)
	links := &mockLinkManager{}
	svc := newCourseService(repo, map[string]*models.Person{"p1": coordinator("p1", "Joao", "Souza")}, links)

	_, err := svc.Create(context.Background(), models.UserInfo{}, CreateCourseRequest{
		Name:          "Curso Novo",
		CoordinatorID: "p1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCapacity.Code, appErrors.FromError(err).Code)
	// Rejection happens before any write.
	assert.Equal(t, 0, repo.writes)
	assert.Equal(t, 0, links.setCalls)
}

func TestCourseServiceUpdateExcludesSelfFromCapacity(t *testing.T) {
	existing := make([]*models.Course, models.MaxCoursesPerCoordinator)
	for i := range existing {
		existing[i] = &models.Course{ID: fmt.Sprintf("c%d", i), Name: fmt.Sprintf("Curso %d", i), CoordinatorID: "p1"}
	}
	repo := newMockCourseRepo(existing...)
	links := &mockLinkManager{}
	svc := newCourseService(repo, map[string]*models.Person{"p1": coordinator("p1", "Joao", "Souza")}, links)

	// Re-saving one of the coordinator's own courses stays at the cap and
	// must not be rejected.
	result, err := svc.Update(context.Background(), models.UserInfo{}, "c0", UpdateCourseRequest{
		Name:          "Curso 0 Renomeado",
		CoordinatorID: "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Curso 0 Renomeado", result.Course.Name)
	assert.Equal(t, []string{"Curso 0 Renomeado"}, links.renames)
}

func TestCourseServiceUpdateRejectsDuplicateName(t *testing.T) {
	repo := newMockCourseRepo(
		&models.Course{ID: "c1", Name: "Mestrado CC", CoordinatorID: "p1"},
		&models.Course{ID: "c2", Name: "MBA Mkt", CoordinatorID: "p1"},
	)
	svc := newCourseService(repo, map[string]*models.Person{"p1": coordinator("p1", "Joao", "Souza")}, &mockLinkManager{})

	_, err := svc.Update(context.Background(), models.UserInfo{}, "c2", UpdateCourseRequest{
		Name:          "Mestrado CC",
		CoordinatorID: "p1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceDeleteLeavesLinksAlone(t *testing.T) {
	repo := newMockCourseRepo(&models.Course{ID: "c1", Name: "Mestrado CC", CoordinatorID: "p1"})
	links := &mockLinkManager{}
	svc := newCourseService(repo, map[string]*models.Person{"p1": coordinator("p1", "Joao", "Souza")}, links)

	require.NoError(t, svc.Delete(context.Background(), models.UserInfo{}, "c1"))
	assert.Equal(t, 0, links.setCalls)
	_, err := repo.FindByID(context.Background(), "c1")
	assert.Equal(t, sql.ErrNoRows, err)
}

func TestCourseServiceWritesDropCachedOverviewStats(t *testing.T) {
	repo := newMockCourseRepo()
	stats := &mockStatsInvalidator{}
	people := map[string]*models.Person{"p1": coordinator("p1", "Joao", "Souza")}
	svc := NewCourseService(repo, &mockPersonLookup{people: people}, &mockLinkManager{}, &mockAuditStore{}, stats, nil, zap.NewNop())

	result, err := svc.Create(context.Background(), models.UserInfo{}, CreateCourseRequest{
		Name:          "Mestrado CC",
		CoordinatorID: "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.calls)

	_, err = svc.Update(context.Background(), models.UserInfo{}, result.Course.ID, UpdateCourseRequest{
		Name:          "Mestrado CC Renomeado",
		CoordinatorID: "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.calls)

	require.NoError(t, svc.Delete(context.Background(), models.UserInfo{}, result.Course.ID))
	assert.Equal(t, 3, stats.calls)
}
