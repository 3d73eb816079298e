package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lumen-edu/posgrad-api/internal/models"
	appErrors "github.com/lumen-edu/posgrad-api/pkg/errors"
)

const overviewCacheKey = "overview:stats"

type overviewCourseSource interface {
	Count(ctx context.Context) (int, error)
	ListByCoordinator(ctx context.Context, coordinatorID string) ([]models.Course, error)
}

type overviewDisciplineSource interface {
	Count(ctx context.Context) (int, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Discipline, error)
}

type overviewPersonSource interface {
	Count(ctx context.Context, role *models.PersonRole) (int, error)
}

type overviewUploadSource interface {
	ListRecent(ctx context.Context, limit int) ([]models.UploadHistory, error)
}

type overviewAuditSource interface {
	ListRecent(ctx context.Context, limit int) ([]models.AuditLog, error)
}

// OverviewService assembles the landing view for admins and coordinators.
type OverviewService struct {
	courses     overviewCourseSource
	disciplines overviewDisciplineSource
	people      overviewPersonSource
	uploads     overviewUploadSource
	audit       overviewAuditSource
	cache       *CacheService
	logger      *zap.Logger
}

// NewOverviewService constructs an OverviewService.
func NewOverviewService(courses overviewCourseSource, disciplines overviewDisciplineSource, people overviewPersonSource, uploads overviewUploadSource, audit overviewAuditSource, cache *CacheService, logger *zap.Logger) *OverviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverviewService{
		courses:     courses,
		disciplines: disciplines,
		people:      people,
		uploads:     uploads,
		audit:       audit,
		cache:       cache,
		logger:      logger,
	}
}

// AdminStats returns program-wide counts plus recent activity.
func (s *OverviewService) AdminStats(ctx context.Context) (*models.OverviewStats, error) {
	var cached models.OverviewStats
	if hit, _ := s.cache.Get(ctx, overviewCacheKey, &cached); hit {
		return &cached, nil
	}

	courseCount, err := s.courses.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count courses")
	}
	disciplineCount, err := s.disciplines.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count disciplines")
	}
	peopleCount, err := s.people.Count(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count people")
	}
	coordRole := models.RoleCoordenador
	coordinatorCount, err := s.people.Count(ctx, &coordRole)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count coordinators")
	}

	uploads, err := s.uploads.ListRecent(ctx, 5)
	if err != nil {
		s.logger.Warn("failed to load recent uploads", zap.Error(err))
		uploads = []models.UploadHistory{}
	}
	audit, err := s.audit.ListRecent(ctx, 10)
	if err != nil {
		s.logger.Warn("failed to load recent audit entries", zap.Error(err))
		audit = []models.AuditLog{}
	}

	stats := &models.OverviewStats{
		Courses:       courseCount,
		Disciplines:   disciplineCount,
		People:        peopleCount,
		Coordinators:  coordinatorCount,
		RecentUploads: uploads,
		RecentAudit:   audit,
		GeneratedAt:   time.Now().UTC(),
	}
	_ = s.cache.Set(ctx, overviewCacheKey, stats, 0)
	return stats, nil
}

// CoordinatorOverview scopes the landing view to one coordinator's courses
// and the disciplines linked to them, in period order.
func (s *OverviewService) CoordinatorOverview(ctx context.Context, coordinatorID string) (*models.CoordinatorOverview, error) {
	courses, err := s.courses.ListByCoordinator(ctx, coordinatorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load coordinator courses")
	}

	seen := map[string]struct{}{}
	var disciplines []models.Discipline
	for _, course := range courses {
		linked, err := s.disciplines.ListByCourse(ctx, course.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course disciplines")
		}
		for _, d := range linked {
			if _, ok := seen[d.ID]; ok {
				continue
			}
			seen[d.ID] = struct{}{}
			disciplines = append(disciplines, d)
		}
	}

	sort.SliceStable(disciplines, func(i, j int) bool {
		ki, kj := models.MonthSortKey(disciplines[i].Month1), models.MonthSortKey(disciplines[j].Month1)
		if ki != kj {
			return ki < kj
		}
		return strings.ToLower(disciplines[i].Name) < strings.ToLower(disciplines[j].Name)
	})

	return &models.CoordinatorOverview{
		Courses:     courses,
		Disciplines: disciplines,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// statsInvalidator lets the mutating services drop the cached admin stats
// without depending on the overview service directly.
type statsInvalidator interface {
	InvalidateStats(ctx context.Context)
}

// InvalidateStats drops the cached admin stats after data changes.
func (s *OverviewService) InvalidateStats(ctx context.Context) {
	if s == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, overviewCacheKey); err != nil {
		s.logger.Warn("failed to invalidate overview cache", zap.Error(err))
	}
}

// notifyStats is the nil-tolerant helper call sites use after a successful write.
func notifyStats(ctx context.Context, stats statsInvalidator) {
	if stats != nil {
		stats.InvalidateStats(ctx)
	}
}
