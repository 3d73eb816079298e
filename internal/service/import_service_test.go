package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/lumen-edu/posgrad-api/internal/models"
)

type mockPersonStore struct {
	people  []models.Person
	created []models.Person
}

func (m *mockPersonStore) ListAll(ctx context.Context) ([]models.Person, error) {
	return append([]models.Person{}, m.people...), nil
}

func (m *mockPersonStore) Create(ctx context.Context, person *models.Person) error {
	person.ID = fmt.Sprintf("p-gen-%d", len(m.created)+1)
	m.created = append(m.created, *person)
	m.people = append(m.people, *person)
	return nil
}

type mockCourseStore struct {
	courses []models.Course
	created []models.Course
}

func (m *mockCourseStore) ListAll(ctx context.Context) ([]models.Course, error) {
	return append([]models.Course{}, m.courses...), nil
}

func (m *mockCourseStore) Create(ctx context.Context, course *models.Course) error {
	course.ID = fmt.Sprintf("c-gen-%d", len(m.created)+1)
	m.created = append(m.created, *course)
	m.courses = append(m.courses, *course)
	return nil
}

func (m *mockDisciplineStore) Create(ctx context.Context, discipline *models.Discipline) error {
	if discipline.ID == "" {
		discipline.ID = fmt.Sprintf("d-gen-%d", len(m.items)+1)
	}
	cp := *discipline
	cp.CourseIDs = append([]string{}, discipline.CourseIDs...)
	cp.CourseNames = append([]string{}, discipline.CourseNames...)
	m.items[discipline.ID] = &cp
	m.order = append(m.order, discipline.ID)
	m.updates++
	return nil
}

type mockUploadStore struct {
	uploads []models.UploadHistory
}

func (m *mockUploadStore) Create(ctx context.Context, upload *models.UploadHistory) error {
	m.uploads = append(m.uploads, *upload)
	return nil
}

func (m *mockUploadStore) ListRecent(ctx context.Context, limit int) ([]models.UploadHistory, error) {
	if limit > len(m.uploads) {
		limit = len(m.uploads)
	}
	return m.uploads[:limit], nil
}

type mockAuditStore struct {
	entries []models.AuditLog
}

func (m *mockAuditStore) Create(ctx context.Context, entry *models.AuditLog) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func buildSheet(t *testing.T, headers []string, rows [][]interface{}) io.Reader {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func disciplineHeaders() []string {
	return []string{"Curso", "Disciplina", "Login Coordenador", "Login Professor", "Login Tutor", "Mês 1", "Mês 2"}
}

func newImportService(people *mockPersonStore, courses *mockCourseStore, disciplines *mockDisciplineStore) (*ImportService, *mockUploadStore) {
	uploads := &mockUploadStore{}
	return NewImportService(people, courses, disciplines, uploads, &mockAuditStore{}, nil, zap.NewNop()), uploads
}

func TestImportDisciplinesSameNameTwoCourses(t *testing.T) {
	courses := &mockCourseStore{courses: []models.Course{
		{ID: "c1", Name: "Mestrado CC", CoordinatorID: "p1"},
		{ID: "c2", Name: "MBA Mkt", CoordinatorID: "p2"},
	}}
	disciplines := newMockDisciplineStore()
	svc, _ := newImportService(&mockPersonStore{}, courses, disciplines)

	sheet := buildSheet(t, disciplineHeaders(), [][]interface{}{
		{"Mestrado CC", "IA", "", "ana", "", "mes-1", ""},
		{"MBA Mkt", "IA", "", "ana", "", "mes-1", ""},
	})

	summary, err := svc.ImportDisciplines(context.Background(), models.UserInfo{ID: "u1"}, "disciplinas.xlsx", sheet)
	require.NoError(t, err)

	// The first row creates the discipline, the second links the existing
	// one to its course. Both report as created.
	assert.Equal(t, []string{"IA", "IA"}, summary.Created)
	assert.Empty(t, summary.Ignored)
	assert.Empty(t, summary.Errors)

	require.Len(t, disciplines.order, 1)
	created := disciplines.items[disciplines.order[0]]
	assert.Equal(t, []string{"c1", "c2"}, created.CourseIDs)
	assert.Equal(t, []string{"Mestrado CC", "MBA Mkt"}, created.CourseNames)
}

func TestImportDisciplinesSecondRunIsAllIgnored(t *testing.T) {
	courses := &mockCourseStore{courses: []models.Course{
		{ID: "c1", Name: "Mestrado CC", CoordinatorID: "p1"},
	}}
	disciplines := newMockDisciplineStore()
	svc, _ := newImportService(&mockPersonStore{}, courses, disciplines)

	rows := [][]interface{}{
		{"Mestrado CC", "IA", "", "", "", "1", ""},
		{"Mestrado CC", "Redes", "", "", "", "1", ""},
	}

	_, err := svc.ImportDisciplines(context.Background(), models.UserInfo{}, "d.xlsx", buildSheet(t, disciplineHeaders(), rows))
	require.NoError(t, err)
	writes := disciplines.updates

	summary, err := svc.ImportDisciplines(context.Background(), models.UserInfo{}, "d.xlsx", buildSheet(t, disciplineHeaders(), rows))
	require.NoError(t, err)
	assert.Empty(t, summary.Created)
	require.Len(t, summary.Ignored, 2)
	assert.Contains(t, summary.Ignored[0], "row 2")
	assert.Contains(t, summary.Ignored[0], "IA")
	assert.Contains(t, summary.Ignored[1], "row 3")
	assert.Contains(t, summary.Ignored[1], "Redes")
	assert.Equal(t, writes, disciplines.updates, "second identical run must not write")
}

func TestImportDisciplinesRowIndependence(t *testing.T) {
	courses := &mockCourseStore{courses: []models.Course{
		{ID: "c1", Name: "Mestrado CC", CoordinatorID: "p1"},
	}}
	disciplines := newMockDisciplineStore()
	svc, _ := newImportService(&mockPersonStore{}, courses, disciplines)

	sheet := buildSheet(t, disciplineHeaders(), [][]interface{}{
		{"Mestrado CC", "IA", "", "", "", "1", ""},
		{"Mestrado CC", "Redes", "", "", "", "1", ""},
		{"Curso Fantasma", "Grafos", "", "", "", "1", ""},
		{"Mestrado CC", "Compiladores", "", "", "", "1", ""},
	})

	summary, err := svc.ImportDisciplines(context.Background(), models.UserInfo{}, "d.xlsx", sheet)
	require.NoError(t, err)

	assert.Equal(t, []string{"IA", "Redes", "Compiladores"}, summary.Created)
	require.Len(t, summary.Errors, 1)
	// Row numbers count the header, so the third data row is row 4.
	assert.Contains(t, summary.Errors[0], "row 4")
	assert.Contains(t, summary.Errors[0], "Curso Fantasma")
}

func TestImportDisciplinesRespectsCourseCap(t *testing.T) {
	fullCourses := make([]string, models.MaxCoursesPerDiscipline)
	for i := range fullCourses {
		fullCourses[i] = fmt.Sprintf("x%d", i)
	}
	courses := &mockCourseStore{courses: []models.Course{
		{ID: "c1", Name: "Mestrado CC", CoordinatorID: "p1"},
	}}
	disciplines := newMockDisciplineStore(disciplineWithCourses("d1", "Lotada", fullCourses...))
	svc, _ := newImportService(&mockPersonStore{}, courses, disciplines)

	sheet := buildSheet(t, disciplineHeaders(), [][]interface{}{
		{"Mestrado CC", "Lotada", "", "", "", "1", ""},
	})

	summary, err := svc.ImportDisciplines(context.Background(), models.UserInfo{}, "d.xlsx", sheet)
	require.NoError(t, err)
	assert.Empty(t, summary.Created)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "Lotada")
	assert.Len(t, disciplines.items["d1"].CourseIDs, models.MaxCoursesPerDiscipline)
}

func TestImportDisciplinesRecordsUploadHistory(t *testing.T) {
	courses := &mockCourseStore{courses: []models.Course{
		{ID: "c1", Name: "Mestrado CC", CoordinatorID: "p1"},
	}}
	disciplines := newMockDisciplineStore()
	svc, uploads := newImportService(&mockPersonStore{}, courses, disciplines)

	sheet := buildSheet(t, disciplineHeaders(), [][]interface{}{
		{"Mestrado CC", "IA", "", "", "", "3", ""},
	})

	_, err := svc.ImportDisciplines(context.Background(), models.UserInfo{FullName: "Admin Root"}, "marco.xlsx", sheet)
	require.NoError(t, err)

	require.Len(t, uploads.uploads, 1)
	upload := uploads.uploads[0]
	assert.Equal(t, models.UploadKindDisciplines, upload.Kind)
	assert.Equal(t, "marco.xlsx", upload.FileName)
	assert.Equal(t, "Admin Root", upload.UploadedBy)
	assert.Equal(t, 1, upload.RecordsCount)
	require.NotNil(t, upload.Month)
	assert.Equal(t, "mes-3", *upload.Month)
}

func TestImportCoursesInBatchDuplicate(t *testing.T) {
	people := &mockPersonStore{people: []models.Person{
		{ID: "p1", Role: models.RoleCoordenador, FirstName: "Joao", LastName: "Souza", Login: "jsouza"},
	}}
	courses := &mockCourseStore{}
	svc, _ := newImportService(people, courses, newMockDisciplineStore())

	sheet := buildSheet(t, []string{"Nome do Curso", "Login do Coordenador", "Login do Tutor"}, [][]interface{}{
		{"Mestrado CC", "jsouza", ""},
		{"Mestrado CC", "jsouza", ""},
	})

	summary, err := svc.ImportCourses(context.Background(), models.UserInfo{}, "cursos.xlsx", sheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mestrado CC"}, summary.Created)
	require.Len(t, summary.Ignored, 1)
	assert.Contains(t, summary.Ignored[0], "row 3")
	assert.Contains(t, summary.Ignored[0], `"Mestrado CC"`)
	assert.Empty(t, summary.Errors)
	assert.Len(t, courses.created, 1)
}

func TestImportCoursesCoordinatorAtCapacity(t *testing.T) {
	people := &mockPersonStore{people: []models.Person{
		{ID: "p1", Role: models.RoleCoordenador, FirstName: "Joao", LastName: "Souza", Login: "jsouza"},
	}}
	existing := make([]models.Course, models.MaxCoursesPerCoordinator)
	for i := range existing {
		existing[i] = models.Course{ID: fmt.Sprintf("c%d", i), Name: fmt.Sprintf("Curso %d", i), CoordinatorID: "p1"}
	}
	courses := &mockCourseStore{courses: existing}
	svc, _ := newImportService(people, courses, newMockDisciplineStore())

	sheet := buildSheet(t, []string{"Nome do Curso", "Login do Coordenador", "Login do Tutor"}, [][]interface{}{
		{"Curso Novo", "jsouza", ""},
	})

	summary, err := svc.ImportCourses(context.Background(), models.UserInfo{}, "cursos.xlsx", sheet)
	require.NoError(t, err)
	assert.Empty(t, summary.Created)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "jsouza")
	assert.Empty(t, courses.created)
}

func TestImportPeopleDefaultsAndTutorCourse(t *testing.T) {
	people := &mockPersonStore{}
	courses := &mockCourseStore{courses: []models.Course{
		{ID: "c1", Name: "Mestrado CC", CoordinatorID: "p9"},
	}}
	svc, _ := newImportService(people, courses, newMockDisciplineStore())

	sheet := buildSheet(t, []string{"Tipo", "First Name", "Last Name", "Email", "Login", "Curso"}, [][]interface{}{
		{"Professor", "Ana", "Lima", "ana@uni.br", "alima", ""},
		{"Tutor", "Beto", "Cruz", "beto@uni.br", "bcruz", "Mestrado CC"},
		{"Tutor", "Caio", "Dias", "caio@uni.br", "cdias", ""},
	})

	summary, err := svc.ImportPeople(context.Background(), models.UserInfo{}, "equipe.xlsx", sheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"alima", "bcruz"}, summary.Created)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "cdias")

	require.Len(t, people.created, 2)
	assert.Equal(t, "alima", people.created[0].Password)
	require.NotNil(t, people.created[1].CourseID)
	assert.Equal(t, "c1", *people.created[1].CourseID)
}

func TestImportPeopleDuplicateLoginIgnored(t *testing.T) {
	people := &mockPersonStore{people: []models.Person{
		{ID: "p1", Role: models.RoleProfessor, FirstName: "Ana", LastName: "Lima", Login: "alima"},
	}}
	svc, _ := newImportService(people, &mockCourseStore{}, newMockDisciplineStore())

	sheet := buildSheet(t, []string{"Tipo", "First Name", "Last Name", "Email", "Login", "Curso"}, [][]interface{}{
		{"Professor", "Ana", "Lima", "ana@uni.br", "alima", ""},
	})

	summary, err := svc.ImportPeople(context.Background(), models.UserInfo{}, "equipe.xlsx", sheet)
	require.NoError(t, err)
	assert.Empty(t, summary.Created)
	require.Len(t, summary.Ignored, 1)
	assert.Contains(t, summary.Ignored[0], "row 2")
	assert.Contains(t, summary.Ignored[0], `"alima"`)
	assert.Empty(t, people.created)
}

func TestImportRejectsMissingColumns(t *testing.T) {
	svc, _ := newImportService(&mockPersonStore{}, &mockCourseStore{}, newMockDisciplineStore())

	sheet := buildSheet(t, []string{"Whatever"}, [][]interface{}{{"x"}})
	_, err := svc.ImportCourses(context.Background(), models.UserInfo{}, "cursos.xlsx", sheet)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nome do Curso")
}
