package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lumen-edu/posgrad-api/internal/models"
	appErrors "github.com/lumen-edu/posgrad-api/pkg/errors"
)

type disciplineRepository interface {
	List(ctx context.Context, filter models.DisciplineFilter) ([]models.Discipline, int, error)
	ListAll(ctx context.Context) ([]models.Discipline, error)
	FindByID(ctx context.Context, id string) (*models.Discipline, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, discipline *models.Discipline) error
	Update(ctx context.Context, discipline *models.Discipline) error
	Delete(ctx context.Context, id string) error
}

type disciplineCourseLookup interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// DisciplineRequest represents payload for creating or updating disciplines.
type DisciplineRequest struct {
	Name             string   `json:"name" validate:"required"`
	CourseIDs        []string `json:"course_ids"`
	CoordinatorLogin *string  `json:"coordinator_login"`
	ProfessorLogin   *string  `json:"professor_login"`
	TutorLogin       *string  `json:"tutor_login"`
	Month1           *string  `json:"month1"`
	Month2           *string  `json:"month2"`
}

// DisciplineService orchestrates discipline management.
type DisciplineService struct {
	repo      disciplineRepository
	courses   disciplineCourseLookup
	audit     auditRecorder
	stats     statsInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDisciplineService constructs a DisciplineService.
func NewDisciplineService(repo disciplineRepository, courses disciplineCourseLookup, audit auditRecorder, stats statsInvalidator, validate *validator.Validate, logger *zap.Logger) *DisciplineService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DisciplineService{repo: repo, courses: courses, audit: audit, stats: stats, validator: validate, logger: logger}
}

// List returns disciplines plus pagination data. Alphabetical order comes
// straight from the repository; period order needs the whole collection
// because the sort key lives outside SQL.
func (s *DisciplineService) List(ctx context.Context, filter models.DisciplineFilter) ([]models.Discipline, *models.Pagination, error) {
	if filter.SortBy == "month" {
		return s.listByMonth(ctx, filter)
	}
	disciplines, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list disciplines")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return disciplines, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *DisciplineService) listByMonth(ctx context.Context, filter models.DisciplineFilter) ([]models.Discipline, *models.Pagination, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list disciplines")
	}

	filtered := all[:0:0]
	for _, d := range all {
		if filter.CourseID != "" && !d.LinkedTo(filter.CourseID) {
			continue
		}
		if filter.Search != "" && !disciplineMatches(d, filter.Search) {
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

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	total := len(filtered)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return filtered[start:end], &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a discipline by id.
func (s *DisciplineService) Get(ctx context.Context, id string) (*models.Discipline, error) {
	discipline, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "discipline not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load discipline")
	}
	return discipline, nil
}

// Create registers a new discipline with at most MaxCoursesPerDiscipline
// linked courses.
func (s *DisciplineService) Create(ctx context.Context, actor models.UserInfo, req DisciplineRequest) (*models.Discipline, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	exists, err := s.repo.ExistsByName(ctx, name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check discipline name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "discipline name already used")
	}

	discipline := &models.Discipline{
		Name:             name,
		CoordinatorLogin: trimPtr(req.CoordinatorLogin),
		ProfessorLogin:   trimPtr(req.ProfessorLogin),
		TutorLogin:       trimPtr(req.TutorLogin),
		Month1:           trimPtr(req.Month1),
		Month2:           trimPtr(req.Month2),
	}
	if err := s.resolveCourses(ctx, discipline, req.CourseIDs); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, discipline); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create discipline")
	}
	s.recordAudit(ctx, actor, models.AuditActionCreate, discipline, nil)
	notifyStats(ctx, s.stats)
	return discipline, nil
}

// Update modifies an existing discipline.
func (s *DisciplineService) Update(ctx context.Context, actor models.UserInfo, id string, req DisciplineRequest) (*models.Discipline, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	discipline, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "discipline not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load discipline")
	}

	name := strings.TrimSpace(req.Name)
	exists, err := s.repo.ExistsByName(ctx, name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check discipline name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "discipline name already used")
	}

	before := map[string]string{"name": discipline.Name}

	discipline.Name = name
	discipline.CoordinatorLogin = trimPtr(req.CoordinatorLogin)
	discipline.ProfessorLogin = trimPtr(req.ProfessorLogin)
	discipline.TutorLogin = trimPtr(req.TutorLogin)
	discipline.Month1 = trimPtr(req.Month1)
	discipline.Month2 = trimPtr(req.Month2)
	if err := s.resolveCourses(ctx, discipline, req.CourseIDs); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, discipline); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update discipline")
	}
	s.recordAudit(ctx, actor, models.AuditActionUpdate, discipline, before)
	notifyStats(ctx, s.stats)
	return discipline, nil
}

// Delete removes a discipline and its course links.
func (s *DisciplineService) Delete(ctx context.Context, actor models.UserInfo, id string) error {
	discipline, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "discipline not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load discipline")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete discipline")
	}
	s.recordAudit(ctx, actor, models.AuditActionDelete, discipline, nil)
	notifyStats(ctx, s.stats)
	return nil
}

func (s *DisciplineService) validateRequest(req DisciplineRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid discipline payload")
	}
	for _, month := range []*string{req.Month1, req.Month2} {
		if month == nil || strings.TrimSpace(*month) == "" {
			continue
		}
		if !models.ValidMonthCode(strings.TrimSpace(*month)) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid period label %q", *month))
		}
	}
	if len(req.CourseIDs) > models.MaxCoursesPerDiscipline {
		return appErrors.Clone(appErrors.ErrCapacity,
			fmt.Sprintf("a discipline may belong to at most %d courses", models.MaxCoursesPerDiscipline))
	}
	return nil
}

func (s *DisciplineService) resolveCourses(ctx context.Context, discipline *models.Discipline, courseIDs []string) error {
	discipline.CourseIDs = make([]string, 0, len(courseIDs))
	discipline.CourseNames = make([]string, 0, len(courseIDs))
	for _, id := range courseIDs {
		course, err := s.courses.FindByID(ctx, id)
		if err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrValidation, "course "+id+" not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		discipline.CourseIDs = append(discipline.CourseIDs, course.ID)
		discipline.CourseNames = append(discipline.CourseNames, course.Name)
	}
	return nil
}

func (s *DisciplineService) recordAudit(ctx context.Context, actor models.UserInfo, action string, discipline *models.Discipline, before map[string]string) {
	if s.audit == nil {
		return
	}
	var changes []byte
	if before != nil {
		changes, _ = json.Marshal(before)
	}
	entry := &models.AuditLog{
		UserID:     actor.ID,
		UserEmail:  actor.Email,
		Action:     action,
		Entity:     models.AuditEntityDiscipline,
		EntityID:   &discipline.ID,
		EntityName: discipline.Name,
		Changes:    changes,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record discipline audit log", zap.Error(err))
	}
}

func disciplineMatches(d models.Discipline, search string) bool {
	needle := strings.ToLower(search)
	if strings.Contains(strings.ToLower(d.Name), needle) {
		return true
	}
	if d.ProfessorLogin != nil && strings.Contains(strings.ToLower(*d.ProfessorLogin), needle) {
		return true
	}
	for _, name := range d.CourseNames {
		if strings.Contains(strings.ToLower(name), needle) {
			return true
		}
	}
	return false
}

func trimPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
