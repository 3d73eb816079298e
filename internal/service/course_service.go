package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lumen-edu/posgrad-api/internal/models"
	appErrors "github.com/lumen-edu/posgrad-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	ListAll(ctx context.Context) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	CountByCoordinator(ctx context.Context, coordinatorID, excludeID string) (int, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

type coursePersonLookup interface {
	FindByID(ctx context.Context, id string) (*models.Person, error)
}

type courseLinkManager interface {
	SetCourseDisciplines(ctx context.Context, courseID, courseName string, desiredIDs []string) ([]string, error)
	RenameCourse(ctx context.Context, courseID, courseName string) error
}

// CreateCourseRequest represents payload for creating courses.
type CreateCourseRequest struct {
	Name          string   `json:"name" validate:"required"`
	CoordinatorID string   `json:"coordinator_id" validate:"required"`
	TutorID       *string  `json:"tutor_id"`
	DisciplineIDs []string `json:"discipline_ids"`
}

// UpdateCourseRequest represents payload for updating courses.
type UpdateCourseRequest struct {
	Name          string   `json:"name" validate:"required"`
	CoordinatorID string   `json:"coordinator_id" validate:"required"`
	TutorID       *string  `json:"tutor_id"`
	DisciplineIDs []string `json:"discipline_ids"`
}

// CourseResult carries a saved course plus non-fatal warnings collected while
// reconciling its discipline links.
type CourseResult struct {
	Course   *models.Course `json:"course"`
	Warnings []string       `json:"warnings,omitempty"`
}

// CourseService orchestrates course management.
type CourseService struct {
	repo      courseRepository
	people    coursePersonLookup
	links     courseLinkManager
	audit     auditRecorder
	stats     statsInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseRepository, people coursePersonLookup, links courseLinkManager, audit auditRecorder, stats statsInvalidator, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, people: people, links: links, audit: audit, stats: stats, validator: validate, logger: logger}
}

// List returns courses plus pagination data.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a course by id.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create registers a new course. The coordinator may run at most
// MaxCoursesPerCoordinator courses; the check happens before any write.
func (s *CourseService) Create(ctx context.Context, actor models.UserInfo, req CreateCourseRequest) (*CourseResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	name := strings.TrimSpace(req.Name)
	exists, err := s.repo.ExistsByName(ctx, name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course name already used")
	}

	coordinator, err := s.resolveCoordinator(ctx, req.CoordinatorID, "")
	if err != nil {
		return nil, err
	}

	course := &models.Course{
		Name:            name,
		CoordinatorID:   coordinator.ID,
		CoordinatorName: coordinator.FullName(),
	}
	if err := s.applyTutor(ctx, course, req.TutorID); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	warnings, err := s.links.SetCourseDisciplines(ctx, course.ID, course.Name, req.DisciplineIDs)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, models.AuditActionCreate, course, nil)
	notifyStats(ctx, s.stats)
	return &CourseResult{Course: course, Warnings: warnings}, nil
}

// Update modifies an existing course and reconciles its discipline links.
func (s *CourseService) Update(ctx context.Context, actor models.UserInfo, id string, req UpdateCourseRequest) (*CourseResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	name := strings.TrimSpace(req.Name)
	exists, err := s.repo.ExistsByName(ctx, name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course name already used")
	}

	coordinator, err := s.resolveCoordinator(ctx, req.CoordinatorID, id)
	if err != nil {
		return nil, err
	}

	before := map[string]string{"name": course.Name, "coordinator_id": course.CoordinatorID}
	renamed := course.Name != name

	course.Name = name
	course.CoordinatorID = coordinator.ID
	course.CoordinatorName = coordinator.FullName()
	if err := s.applyTutor(ctx, course, req.TutorID); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	if renamed {
		if err := s.links.RenameCourse(ctx, course.ID, course.Name); err != nil {
			return nil, err
		}
	}
	warnings, err := s.links.SetCourseDisciplines(ctx, course.ID, course.Name, req.DisciplineIDs)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, models.AuditActionUpdate, course, before)
	notifyStats(ctx, s.stats)
	return &CourseResult{Course: course, Warnings: warnings}, nil
}

// Delete removes a course. Discipline rows keep their references; they are
// cleaned up lazily when each discipline is next edited.
func (s *CourseService) Delete(ctx context.Context, actor models.UserInfo, id string) error {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.recordAudit(ctx, actor, models.AuditActionDelete, course, nil)
	notifyStats(ctx, s.stats)
	return nil
}

func (s *CourseService) resolveCoordinator(ctx context.Context, coordinatorID, excludeCourseID string) (*models.Person, error) {
	coordinator, err := s.people.FindByID(ctx, coordinatorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, "coordinator not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load coordinator")
	}
	if coordinator.Role != models.RoleCoordenador && coordinator.Role != models.RoleAdministrador {
		return nil, appErrors.Clone(appErrors.ErrValidation, "person is not a coordinator")
	}

	count, err := s.repo.CountByCoordinator(ctx, coordinator.ID, excludeCourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count coordinator courses")
	}
	if count >= models.MaxCoursesPerCoordinator {
		return nil, appErrors.Clone(appErrors.ErrCapacity,
			fmt.Sprintf("coordinator %s already runs %d courses", coordinator.FullName(), models.MaxCoursesPerCoordinator))
	}
	return coordinator, nil
}

func (s *CourseService) applyTutor(ctx context.Context, course *models.Course, tutorID *string) error {
	if tutorID == nil || strings.TrimSpace(*tutorID) == "" {
		course.TutorID = nil
		course.TutorName = nil
		return nil
	}
	tutor, err := s.people.FindByID(ctx, *tutorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrValidation, "tutor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}
	name := tutor.FullName()
	course.TutorID = &tutor.ID
	course.TutorName = &name
	return nil
}

func (s *CourseService) recordAudit(ctx context.Context, actor models.UserInfo, action string, course *models.Course, before map[string]string) {
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
		Entity:     models.AuditEntityCourse,
		EntityID:   &course.ID,
		EntityName: course.Name,
		Changes:    changes,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record course audit log", zap.Error(err))
	}
}
