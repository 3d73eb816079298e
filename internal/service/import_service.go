package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/lumen-edu/posgrad-api/internal/models"
	appErrors "github.com/lumen-edu/posgrad-api/pkg/errors"
	"github.com/lumen-edu/posgrad-api/pkg/export"
)

// Spreadsheet header labels. The templates ship with these exact captions and
// the parser matches them case-insensitively.
const (
	headerCourseName       = "Nome do Curso"
	headerCourseCoord      = "Login do Coordenador"
	headerCourseTutor      = "Login do Tutor"
	headerPersonType       = "Tipo"
	headerPersonFirstName  = "First Name"
	headerPersonLastName   = "Last Name"
	headerPersonEmail      = "Email"
	headerPersonLogin      = "Login"
	headerPersonCourse     = "Curso"
	headerDisciplineCourse = "Curso"
	headerDisciplineName   = "Disciplina"
	headerDisciplineCoord  = "Login Coordenador"
	headerDisciplineProf   = "Login Professor"
	headerDisciplineTutor  = "Login Tutor"
	headerDisciplineMonth1 = "Mês 1"
	headerDisciplineMonth2 = "Mês 2"
)

type importPersonStore interface {
	ListAll(ctx context.Context) ([]models.Person, error)
	Create(ctx context.Context, person *models.Person) error
}

type importCourseStore interface {
	ListAll(ctx context.Context) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course) error
}

type importDisciplineStore interface {
	ListAll(ctx context.Context) ([]models.Discipline, error)
	Create(ctx context.Context, discipline *models.Discipline) error
	Update(ctx context.Context, discipline *models.Discipline) error
}

type uploadHistoryStore interface {
	Create(ctx context.Context, upload *models.UploadHistory) error
	ListRecent(ctx context.Context, limit int) ([]models.UploadHistory, error)
}

// ImportService reconciles uploaded spreadsheets against current data. Rows
// are processed one at a time and independently: a broken row lands in the
// error list and the batch keeps going. The lookup maps are loaded once per
// batch and mutated as rows create records, so an in-batch duplicate is
// created by its first row and ignored by the second.
type ImportService struct {
	people      importPersonStore
	courses     importCourseStore
	disciplines importDisciplineStore
	uploads     uploadHistoryStore
	audit       auditRecorder
	stats       statsInvalidator
	logger      *zap.Logger
}

// NewImportService constructs an ImportService.
func NewImportService(people importPersonStore, courses importCourseStore, disciplines importDisciplineStore, uploads uploadHistoryStore, audit auditRecorder, stats statsInvalidator, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{people: people, courses: courses, disciplines: disciplines, uploads: uploads, audit: audit, stats: stats, logger: logger}
}

// ImportCourses processes a course spreadsheet.
func (s *ImportService) ImportCourses(ctx context.Context, actor models.UserInfo, fileName string, file io.Reader) (*models.ImportSummary, error) {
	rows, err := parseWorkbook(file, headerCourseName, headerCourseCoord)
	if err != nil {
		return nil, err
	}

	people, err := s.people.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load people")
	}
	courses, err := s.courses.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}

	peopleByLogin := make(map[string]*models.Person, len(people))
	for i := range people {
		peopleByLogin[strings.ToLower(people[i].Login)] = &people[i]
	}
	courseNames := make(map[string]struct{}, len(courses))
	coordLoad := make(map[string]int)
	for _, c := range courses {
		courseNames[strings.ToLower(c.Name)] = struct{}{}
		coordLoad[c.CoordinatorID]++
	}

	summary := &models.ImportSummary{Created: []string{}, Ignored: []string{}, Errors: []string{}}
	for _, row := range rows {
		name := strings.TrimSpace(row.Cells[headerCourseName])
		if name == "" {
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: course name is required", row.Number))
			continue
		}
		if _, exists := courseNames[strings.ToLower(name)]; exists {
			summary.Ignored = append(summary.Ignored, fmt.Sprintf("row %d: course %q already exists", row.Number, name))
			continue
		}

		coordLogin := strings.TrimSpace(row.Cells[headerCourseCoord])
		coordinator, ok := peopleByLogin[strings.ToLower(coordLogin)]
		if !ok || coordLogin == "" {
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: coordinator %q not found", row.Number, coordLogin))
			continue
		}
		if coordLoad[coordinator.ID] >= models.MaxCoursesPerCoordinator {
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: coordinator %q already runs %d courses", row.Number, coordLogin, models.MaxCoursesPerCoordinator))
			continue
		}

		course := &models.Course{
			Name:            name,
			CoordinatorID:   coordinator.ID,
			CoordinatorName: coordinator.FullName(),
		}
		if tutorLogin := strings.TrimSpace(row.Cells[headerCourseTutor]); tutorLogin != "" {
			tutor, ok := peopleByLogin[strings.ToLower(tutorLogin)]
			if !ok {
				summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: tutor %q not found", row.Number, tutorLogin))
				continue
			}
			tutorName := tutor.FullName()
			course.TutorID = &tutor.ID
			course.TutorName = &tutorName
		}

		if err := s.courses.Create(ctx, course); err != nil {
			s.logger.Warn("failed to create imported course", zap.String("name", name), zap.Error(err))
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: failed to save course %q", row.Number, name))
			continue
		}
		courseNames[strings.ToLower(name)] = struct{}{}
		coordLoad[coordinator.ID]++
		summary.Created = append(summary.Created, name)
	}

	s.finishBatch(ctx, actor, models.UploadKindCourses, fileName, summary, nil)
	return summary, nil
}

// ImportPeople processes a staff spreadsheet.
func (s *ImportService) ImportPeople(ctx context.Context, actor models.UserInfo, fileName string, file io.Reader) (*models.ImportSummary, error) {
	rows, err := parseWorkbook(file, headerPersonType, headerPersonLogin)
	if err != nil {
		return nil, err
	}

	people, err := s.people.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load people")
	}
	courses, err := s.courses.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}

	loginSeen := make(map[string]struct{}, len(people))
	for _, p := range people {
		loginSeen[strings.ToLower(p.Login)] = struct{}{}
	}
	coursesByName := make(map[string]*models.Course, len(courses))
	for i := range courses {
		coursesByName[strings.ToLower(courses[i].Name)] = &courses[i]
	}

	summary := &models.ImportSummary{Created: []string{}, Ignored: []string{}, Errors: []string{}}
	for _, row := range rows {
		login := strings.TrimSpace(row.Cells[headerPersonLogin])
		if login == "" {
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: login is required", row.Number))
			continue
		}
		if _, exists := loginSeen[strings.ToLower(login)]; exists {
			summary.Ignored = append(summary.Ignored, fmt.Sprintf("row %d: login %q already exists", row.Number, login))
			continue
		}

		roleRaw := strings.TrimSpace(row.Cells[headerPersonType])
		if !models.ValidRole(roleRaw) {
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: unknown role %q", row.Number, roleRaw))
			continue
		}

		person := &models.Person{
			Role:      models.PersonRole(roleRaw),
			FirstName: strings.TrimSpace(row.Cells[headerPersonFirstName]),
			LastName:  strings.TrimSpace(row.Cells[headerPersonLastName]),
			Login:     login,
			Email:     strings.TrimSpace(row.Cells[headerPersonEmail]),
			Password:  login,
		}
		if person.Role == models.RoleTutor {
			courseName := strings.TrimSpace(row.Cells[headerPersonCourse])
			course, ok := coursesByName[strings.ToLower(courseName)]
			if !ok || courseName == "" {
				summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: course %q not found for tutor %q", row.Number, courseName, login))
				continue
			}
			person.CourseID = &course.ID
			person.CourseName = &course.Name
		}

		if err := s.people.Create(ctx, person); err != nil {
			s.logger.Warn("failed to create imported person", zap.String("login", login), zap.Error(err))
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: failed to save person %q", row.Number, login))
			continue
		}
		loginSeen[strings.ToLower(login)] = struct{}{}
		summary.Created = append(summary.Created, login)
	}

	s.finishBatch(ctx, actor, models.UploadKindPeople, fileName, summary, nil)
	return summary, nil
}

// ImportDisciplines processes a discipline spreadsheet. Besides the usual
// created/ignored/error outcomes a row may name an existing discipline that
// is not yet linked to the row's course; the new linkage counts as created.
func (s *ImportService) ImportDisciplines(ctx context.Context, actor models.UserInfo, fileName string, file io.Reader) (*models.ImportSummary, error) {
	rows, err := parseWorkbook(file, headerDisciplineCourse, headerDisciplineName)
	if err != nil {
		return nil, err
	}

	courses, err := s.courses.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	disciplines, err := s.disciplines.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load disciplines")
	}

	coursesByName := make(map[string]*models.Course, len(courses))
	for i := range courses {
		coursesByName[strings.ToLower(courses[i].Name)] = &courses[i]
	}
	disciplinesByName := make(map[string]*models.Discipline, len(disciplines))
	for i := range disciplines {
		disciplinesByName[strings.ToLower(disciplines[i].Name)] = &disciplines[i]
	}

	var batchMonth *string
	summary := &models.ImportSummary{Created: []string{}, Ignored: []string{}, Errors: []string{}}
	for _, row := range rows {
		name := strings.TrimSpace(row.Cells[headerDisciplineName])
		if name == "" {
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: discipline name is required", row.Number))
			continue
		}
		courseName := strings.TrimSpace(row.Cells[headerDisciplineCourse])
		course, ok := coursesByName[strings.ToLower(courseName)]
		if !ok || courseName == "" {
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: course %q not found", row.Number, courseName))
			continue
		}

		month1, err := normalizeMonth(row.Cells[headerDisciplineMonth1])
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: %v", row.Number, err))
			continue
		}
		month2, err := normalizeMonth(row.Cells[headerDisciplineMonth2])
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: %v", row.Number, err))
			continue
		}
		if batchMonth == nil && month1 != nil {
			batchMonth = month1
		}

		existing, found := disciplinesByName[strings.ToLower(name)]
		if found {
			if existing.LinkedTo(course.ID) {
				summary.Ignored = append(summary.Ignored, fmt.Sprintf("row %d: discipline %q already linked to %q", row.Number, name, course.Name))
				continue
			}
			if len(existing.CourseIDs) >= models.MaxCoursesPerDiscipline {
				summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: discipline %q already has %d courses", row.Number, name, models.MaxCoursesPerDiscipline))
				continue
			}
			existing.CourseIDs = append(existing.CourseIDs, course.ID)
			existing.CourseNames = append(existing.CourseNames, course.Name)
			if err := s.disciplines.Update(ctx, existing); err != nil {
				s.logger.Warn("failed to link imported discipline", zap.String("name", name), zap.Error(err))
				summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: failed to save discipline %q", row.Number, name))
				continue
			}
			summary.Created = append(summary.Created, name)
			continue
		}

		discipline := &models.Discipline{
			Name:             name,
			CourseIDs:        []string{course.ID},
			CourseNames:      []string{course.Name},
			CoordinatorLogin: trimPtr(cellPtr(row, headerDisciplineCoord)),
			ProfessorLogin:   trimPtr(cellPtr(row, headerDisciplineProf)),
			TutorLogin:       trimPtr(cellPtr(row, headerDisciplineTutor)),
			Month1:           month1,
			Month2:           month2,
		}
		if err := s.disciplines.Create(ctx, discipline); err != nil {
			s.logger.Warn("failed to create imported discipline", zap.String("name", name), zap.Error(err))
			summary.Errors = append(summary.Errors, fmt.Sprintf("row %d: failed to save discipline %q", row.Number, name))
			continue
		}
		disciplinesByName[strings.ToLower(name)] = discipline
		summary.Created = append(summary.Created, name)
	}

	s.finishBatch(ctx, actor, models.UploadKindDisciplines, fileName, summary, batchMonth)
	return summary, nil
}

// History lists the most recent import batches, newest first.
func (s *ImportService) History(ctx context.Context, limit int) ([]models.UploadHistory, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.uploads.ListRecent(ctx, limit)
}

// Template renders an empty spreadsheet with the expected captions for the
// kind, ready to be filled in and uploaded.
func (s *ImportService) Template(kind models.UploadKind) ([]byte, string, error) {
	var headers []string
	var filename string
	switch kind {
	case models.UploadKindCourses:
		headers = []string{headerCourseName, headerCourseCoord, headerCourseTutor}
		filename = "modelo_cursos.xlsx"
	case models.UploadKindPeople:
		headers = []string{headerPersonType, headerPersonFirstName, headerPersonLastName, headerPersonEmail, headerPersonLogin, headerPersonCourse}
		filename = "modelo_equipe.xlsx"
	case models.UploadKindDisciplines:
		headers = []string{headerDisciplineCourse, headerDisciplineName, headerDisciplineCoord, headerDisciplineProf, headerDisciplineTutor, headerDisciplineMonth1, headerDisciplineMonth2}
		filename = "modelo_disciplinas.xlsx"
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unknown template kind")
	}
	payload, err := export.NewXLSXExporter().Render(export.Dataset{Headers: headers}, "Modelo")
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render template")
	}
	return payload, filename, nil
}

func (s *ImportService) finishBatch(ctx context.Context, actor models.UserInfo, kind models.UploadKind, fileName string, summary *models.ImportSummary, month *string) {
	if s.uploads != nil {
		upload := &models.UploadHistory{
			Kind:         kind,
			FileName:     fileName,
			UploadedBy:   actor.FullName,
			RecordsCount: len(summary.Created),
			Month:        month,
		}
		if err := s.uploads.Create(ctx, upload); err != nil {
			s.logger.Warn("failed to record upload history", zap.String("file", fileName), zap.Error(err))
		}
	}
	if s.audit != nil {
		entry := &models.AuditLog{
			UserID:     actor.ID,
			UserEmail:  actor.Email,
			Action:     models.AuditActionImport,
			Entity:     string(kind),
			EntityName: fileName,
		}
		if err := s.audit.Create(ctx, entry); err != nil {
			s.logger.Warn("failed to record import audit log", zap.Error(err))
		}
	}
	if len(summary.Created) > 0 {
		notifyStats(ctx, s.stats)
	}
}

// parseWorkbook reads the first sheet of an xlsx file into rows keyed by the
// header captions. Row numbers count the header, so the first data row is 2.
func parseWorkbook(file io.Reader, requiredHeaders ...string) ([]models.ImportRow, error) {
	workbook, err := excelize.OpenReader(file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "file is not a valid spreadsheet")
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "spreadsheet has no sheets")
	}
	raw, err := workbook.GetRows(sheets[0])
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read spreadsheet rows")
	}
	if len(raw) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "spreadsheet is empty")
	}

	headers := make([]string, len(raw[0]))
	headerSet := make(map[string]struct{}, len(raw[0]))
	for i, h := range raw[0] {
		headers[i] = canonicalHeader(strings.TrimSpace(h))
		headerSet[strings.ToLower(headers[i])] = struct{}{}
	}
	for _, required := range requiredHeaders {
		if _, ok := headerSet[strings.ToLower(required)]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("missing column %q", required))
		}
	}

	var rows []models.ImportRow
	for i, cells := range raw[1:] {
		row := models.ImportRow{Number: i + 2, Cells: map[string]string{}}
		empty := true
		for j, value := range cells {
			if j >= len(headers) || headers[j] == "" {
				continue
			}
			row.Cells[headers[j]] = value
			if strings.TrimSpace(value) != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// canonicalHeader maps a raw header cell onto the template caption, ignoring
// case differences introduced by hand-edited sheets.
func canonicalHeader(raw string) string {
	known := []string{
		headerCourseName, headerCourseCoord, headerCourseTutor,
		headerPersonType, headerPersonFirstName, headerPersonLastName,
		headerPersonEmail, headerPersonLogin, headerPersonCourse,
		headerDisciplineName, headerDisciplineCoord, headerDisciplineProf,
		headerDisciplineTutor, headerDisciplineMonth1, headerDisciplineMonth2,
	}
	for _, k := range known {
		if strings.EqualFold(raw, k) {
			return k
		}
	}
	return raw
}

// normalizeMonth turns a sheet cell into a period label. Plain numbers are
// accepted and rewritten into the mes-N form.
func normalizeMonth(raw string) (*string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	if models.ValidMonthCode(trimmed) {
		return &trimmed, nil
	}
	if n, err := strconv.Atoi(trimmed); err == nil && n > 0 && n < 100 {
		code := fmt.Sprintf("mes-%d", n)
		return &code, nil
	}
	return nil, fmt.Errorf("invalid period label %q", raw)
}

func cellPtr(row models.ImportRow, header string) *string {
	value, ok := row.Cells[header]
	if !ok {
		return nil
	}
	return &value
}
