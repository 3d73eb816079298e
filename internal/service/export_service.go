package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lumen-edu/posgrad-api/internal/models"
	"github.com/lumen-edu/posgrad-api/pkg/export"
	"github.com/lumen-edu/posgrad-api/pkg/storage"
)

type exportCourseSource interface {
	ListAll(ctx context.Context) ([]models.Course, error)
}

type exportDisciplineSource interface {
	ListAll(ctx context.Context) ([]models.Discipline, error)
}

type exportPersonSource interface {
	ListByRole(ctx context.Context, role models.PersonRole) ([]models.Person, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheetName string) ([]byte, error)
	RenderWorkbook(sheets []export.Sheet) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	courses     exportCourseSource
	disciplines exportDisciplineSource
	people      exportPersonSource
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	xlsx        xlsxRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(courses exportCourseSource, disciplines exportDisciplineSource, people exportPersonSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		courses:     courses,
		disciplines: disciplines,
		people:      people,
		storage:     store,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		xlsx:        export.NewXLSXExporter(),
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds the dataset for the job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}

	var payload []byte
	var err error
	if job.Type == models.ReportTypeFull {
		payload, err = s.renderFullWorkbook(ctx, job)
	} else {
		payload, err = s.renderSingle(ctx, job)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *ExportService) renderSingle(ctx context.Context, job *models.ReportJob) ([]byte, error) {
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}
	switch job.Params.Format {
	case models.ReportFormatCSV:
		return s.csv.Render(dataset)
	case models.ReportFormatPDF:
		return s.pdf.Render(dataset, title)
	case models.ReportFormatXLSX:
		return s.xlsx.Render(dataset, title)
	default:
		return nil, fmt.Errorf("unsupported format %s", job.Params.Format)
	}
}

// renderFullWorkbook emits the whole program as one xlsx workbook with a tab
// per view.
func (s *ExportService) renderFullWorkbook(ctx context.Context, job *models.ReportJob) ([]byte, error) {
	if job.Params.Format != models.ReportFormatXLSX {
		return nil, fmt.Errorf("full report requires xlsx format")
	}
	coursesData, _, err := s.buildCoursesDataset(ctx)
	if err != nil {
		return nil, err
	}
	disciplinesData, _, err := s.buildDisciplinesDataset(ctx, job.Params)
	if err != nil {
		return nil, err
	}
	periodData, _, err := s.buildPeriodDataset(ctx, job.Params)
	if err != nil {
		return nil, err
	}
	return s.xlsx.RenderWorkbook([]export.Sheet{
		{Name: "Cursos", Data: coursesData},
		{Name: "Disciplinas", Data: disciplinesData},
		{Name: "Por Período", Data: periodData},
	})
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s.%s", strings.ToLower(string(job.Type)), timestamp, job.Params.Format)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeCourses:
		return s.buildCoursesDataset(ctx)
	case models.ReportTypeDisciplines:
		return s.buildDisciplinesDataset(ctx, job.Params)
	case models.ReportTypeProfessors:
		return s.buildPeopleDataset(ctx, models.RoleProfessor, "Professores")
	case models.ReportTypeCoordinators:
		return s.buildCoordinatorsDataset(ctx)
	case models.ReportTypePeriod:
		return s.buildPeriodDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildCoursesDataset(ctx context.Context) (export.Dataset, string, error) {
	courses, err := s.courses.ListAll(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(courses))
	for _, c := range courses {
		rows = append(rows, map[string]string{
			"Curso":       c.Name,
			"Coordenador": c.CoordinatorName,
			"Tutor":       derefString(c.TutorName),
			"Criado em":   c.CreatedAt.UTC().Format("2006-01-02"),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Curso", "Coordenador", "Tutor", "Criado em"},
		Rows:    rows,
	}
	return dataset, "Cursos", nil
}

func (s *ExportService) buildDisciplinesDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	disciplines, err := s.disciplines.ListAll(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(disciplines))
	for _, d := range disciplines {
		if params.CourseID != nil && *params.CourseID != "" && !d.LinkedTo(*params.CourseID) {
			continue
		}
		if !withinRange(d.CreatedAt, params.DateFrom, params.DateTo) {
			continue
		}
		rows = append(rows, map[string]string{
			"Disciplina":  d.Name,
			"Cursos":      strings.Join(d.CourseNames, "; "),
			"Coordenador": derefString(d.CoordinatorLogin),
			"Professor":   derefString(d.ProfessorLogin),
			"Tutor":       derefString(d.TutorLogin),
			"Mês 1":       derefString(d.Month1),
			"Mês 2":       derefString(d.Month2),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Disciplina", "Cursos", "Coordenador", "Professor", "Tutor", "Mês 1", "Mês 2"},
		Rows:    rows,
	}
	return dataset, "Disciplinas", nil
}

func (s *ExportService) buildPeopleDataset(ctx context.Context, role models.PersonRole, title string) (export.Dataset, string, error) {
	people, err := s.people.ListByRole(ctx, role)
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(people))
	for _, p := range people {
		rows = append(rows, map[string]string{
			"Nome":  p.FullName(),
			"Login": p.Login,
			"Email": p.Email,
			"Curso": derefString(p.CourseName),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Nome", "Login", "Email", "Curso"},
		Rows:    rows,
	}
	return dataset, title, nil
}

func (s *ExportService) buildCoordinatorsDataset(ctx context.Context) (export.Dataset, string, error) {
	people, err := s.people.ListByRole(ctx, models.RoleCoordenador)
	if err != nil {
		return export.Dataset{}, "", err
	}
	courses, err := s.courses.ListAll(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}
	load := map[string]int{}
	for _, c := range courses {
		load[c.CoordinatorID]++
	}
	rows := make([]map[string]string, 0, len(people))
	for _, p := range people {
		rows = append(rows, map[string]string{
			"Nome":   p.FullName(),
			"Login":  p.Login,
			"Email":  p.Email,
			"Cursos": fmt.Sprintf("%d", load[p.ID]),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Nome", "Login", "Email", "Cursos"},
		Rows:    rows,
	}
	return dataset, "Coordenadores", nil
}

// buildPeriodDataset lists disciplines in period order so the sheet reads as
// the program calendar.
func (s *ExportService) buildPeriodDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	disciplines, err := s.disciplines.ListAll(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}
	filtered := disciplines[:0:0]
	for _, d := range disciplines {
		if params.CourseID != nil && *params.CourseID != "" && !d.LinkedTo(*params.CourseID) {
			continue
		}
		if !withinRange(d.CreatedAt, params.DateFrom, params.DateTo) {
			continue
		}
		filtered = append(filtered, d)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		ki, kj := models.MonthSortKey(filtered[i].Month1), models.MonthSortKey(filtered[j].Month1)
		if ki != kj {
			return ki < kj
		}
		return strings.ToLower(filtered[i].Name) < strings.ToLower(filtered[j].Name)
	})

	rows := make([]map[string]string, 0, len(filtered))
	for _, d := range filtered {
		rows = append(rows, map[string]string{
			"Mês":        derefString(d.Month1),
			"Disciplina": d.Name,
			"Cursos":     strings.Join(d.CourseNames, "; "),
			"Professor":  derefString(d.ProfessorLogin),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Mês", "Disciplina", "Cursos", "Professor"},
		Rows:    rows,
	}
	return dataset, "Por Período", nil
}

// withinRange checks an inclusive date window. Nil bounds are open.
func withinRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
