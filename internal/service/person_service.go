package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lumen-edu/posgrad-api/internal/models"
	appErrors "github.com/lumen-edu/posgrad-api/pkg/errors"
)

type personRepository interface {
	List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error)
	ListByRole(ctx context.Context, role models.PersonRole) ([]models.Person, error)
	FindByID(ctx context.Context, id string) (*models.Person, error)
	ExistsByLogin(ctx context.Context, login, excludeID string) (bool, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, person *models.Person) error
	Update(ctx context.Context, person *models.Person) error
	Delete(ctx context.Context, id string) error
}

type personCourseLookup interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type auditRecorder interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

// CreatePersonRequest represents payload for creating people.
type CreatePersonRequest struct {
	Role      string  `json:"role" validate:"required"`
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name" validate:"required"`
	Login     string  `json:"login" validate:"required"`
	Email     string  `json:"email" validate:"required,email"`
	Password  *string `json:"password" validate:"omitempty,min=1"`
	CourseID  *string `json:"course_id"`
}

// UpdatePersonRequest represents payload for updating people.
type UpdatePersonRequest struct {
	Role      string  `json:"role" validate:"required"`
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name" validate:"required"`
	Login     string  `json:"login" validate:"required"`
	Email     string  `json:"email" validate:"required,email"`
	Password  *string `json:"password" validate:"omitempty,min=1"`
	CourseID  *string `json:"course_id"`
}

// PersonService orchestrates staff management.
type PersonService struct {
	repo      personRepository
	courses   personCourseLookup
	audit     auditRecorder
	stats     statsInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPersonService constructs a PersonService.
func NewPersonService(repo personRepository, courses personCourseLookup, audit auditRecorder, stats statsInvalidator, validate *validator.Validate, logger *zap.Logger) *PersonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersonService{repo: repo, courses: courses, audit: audit, stats: stats, validator: validate, logger: logger}
}

// List returns people plus pagination data.
func (s *PersonService) List(ctx context.Context, filter models.PersonFilter) ([]models.Person, *models.Pagination, error) {
	people, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list people")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return people, pagination, nil
}

// Get returns a person by id.
func (s *PersonService) Get(ctx context.Context, id string) (*models.Person, error) {
	person, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "person not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
	}
	return person, nil
}

// Create registers a new staff member. The password defaults to the login
// when omitted; professors carry no password of their own and always get the
// default. Tutors must be tied to a course.
func (s *PersonService) Create(ctx context.Context, actor models.UserInfo, req CreatePersonRequest) (*models.Person, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid person payload")
	}
	if !models.ValidRole(req.Role) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role "+req.Role)
	}
	if err := s.ensureUniqueFields(ctx, req.Login, req.Email, ""); err != nil {
		return nil, err
	}

	person := &models.Person{
		Role:      models.PersonRole(req.Role),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Login:     strings.TrimSpace(req.Login),
		Email:     strings.TrimSpace(req.Email),
	}
	person.Password = defaultPassword(person.Role, req.Password, person.Login)

	if err := s.applyCourseLink(ctx, person, req.CourseID); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, person); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create person")
	}
	s.recordAudit(ctx, actor, models.AuditActionCreate, person, nil)
	notifyStats(ctx, s.stats)
	return person, nil
}

// Update modifies an existing staff member.
func (s *PersonService) Update(ctx context.Context, actor models.UserInfo, id string, req UpdatePersonRequest) (*models.Person, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid person payload")
	}
	if !models.ValidRole(req.Role) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role "+req.Role)
	}

	person, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "person not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
	}

	if err := s.ensureUniqueFields(ctx, req.Login, req.Email, id); err != nil {
		return nil, err
	}

	before := map[string]string{"login": person.Login, "email": person.Email, "role": string(person.Role)}

	person.Role = models.PersonRole(req.Role)
	person.FirstName = strings.TrimSpace(req.FirstName)
	person.LastName = strings.TrimSpace(req.LastName)
	person.Login = strings.TrimSpace(req.Login)
	person.Email = strings.TrimSpace(req.Email)
	if person.Role == models.RoleProfessor {
		person.Password = person.Login
	} else if req.Password != nil && strings.TrimSpace(*req.Password) != "" {
		person.Password = strings.TrimSpace(*req.Password)
	}
	if person.Password == "" {
		person.Password = person.Login
	}

	if err := s.applyCourseLink(ctx, person, req.CourseID); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, person); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update person")
	}
	s.recordAudit(ctx, actor, models.AuditActionUpdate, person, before)
	notifyStats(ctx, s.stats)
	return person, nil
}

// Delete removes a staff member.
func (s *PersonService) Delete(ctx context.Context, actor models.UserInfo, id string) error {
	person, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "person not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete person")
	}
	s.recordAudit(ctx, actor, models.AuditActionDelete, person, nil)
	notifyStats(ctx, s.stats)
	return nil
}

func (s *PersonService) ensureUniqueFields(ctx context.Context, login, email, excludeID string) error {
	exists, err := s.repo.ExistsByLogin(ctx, login, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check login uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "login already used")
	}
	exists, err = s.repo.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "email already used")
	}
	return nil
}

func (s *PersonService) applyCourseLink(ctx context.Context, person *models.Person, courseID *string) error {
	if person.Role != models.RoleTutor {
		person.CourseID = nil
		person.CourseName = nil
		return nil
	}
	if courseID == nil || strings.TrimSpace(*courseID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "tutors must be linked to a course")
	}
	course, err := s.courses.FindByID(ctx, *courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrValidation, "linked course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load linked course")
	}
	person.CourseID = &course.ID
	person.CourseName = &course.Name
	return nil
}

func (s *PersonService) recordAudit(ctx context.Context, actor models.UserInfo, action string, person *models.Person, before map[string]string) {
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
		Entity:     models.AuditEntityPerson,
		EntityID:   &person.ID,
		EntityName: person.FullName(),
		Changes:    changes,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record person audit log", zap.Error(err))
	}
}

func defaultPassword(role models.PersonRole, provided *string, login string) string {
	if role != models.RoleProfessor && provided != nil {
		trimmed := strings.TrimSpace(*provided)
		if trimmed != "" {
			return trimmed
		}
	}
	return login
}
