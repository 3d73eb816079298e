package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lumen-edu/posgrad-api/internal/models"
	appErrors "github.com/lumen-edu/posgrad-api/pkg/errors"
)

type linkDisciplineStore interface {
	ListAll(ctx context.Context) ([]models.Discipline, error)
	Update(ctx context.Context, discipline *models.Discipline) error
}

// LinkService keeps the course/discipline relation consistent after a
// course's discipline membership is edited. It scans the whole discipline
// collection once, detaches the course from disciplines that left the desired
// set, then attaches it to the new ones, respecting the per-discipline cap.
type LinkService struct {
	disciplines linkDisciplineStore
	logger      *zap.Logger
}

// NewLinkService constructs a LinkService.
func NewLinkService(disciplines linkDisciplineStore, logger *zap.Logger) *LinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkService{disciplines: disciplines, logger: logger}
}

// SetCourseDisciplines rewrites the relation so that exactly the desired
// disciplines reference the course. Disciplines already at the cap are left
// untouched and reported in the returned warnings. Writes are per discipline
// with no rollback; a persistence failure is logged and surfaced as a single
// generic error after the remaining disciplines have been processed.
func (s *LinkService) SetCourseDisciplines(ctx context.Context, courseID, courseName string, desiredIDs []string) ([]string, error) {
	all, err := s.disciplines.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load disciplines")
	}

	desired := make(map[string]struct{}, len(desiredIDs))
	for _, id := range desiredIDs {
		desired[id] = struct{}{}
	}

	byID := make(map[string]*models.Discipline, len(all))
	for i := range all {
		byID[all[i].ID] = &all[i]
	}

	var warnings []string
	failed := false

	// Detach pass: drop the course from disciplines that left the set,
	// removing the id and the parallel name at the same index.
	for i := range all {
		d := &all[i]
		if _, keep := desired[d.ID]; keep {
			continue
		}
		if !d.LinkedTo(courseID) {
			continue
		}
		removeCourseAt(d, courseID)
		if err := s.disciplines.Update(ctx, d); err != nil {
			s.logger.Warn("failed to detach course from discipline",
				zap.String("discipline_id", d.ID),
				zap.String("course_id", courseID),
				zap.Error(err))
			failed = true
		}
	}

	// Attach pass: respect input order of the desired set.
	for _, id := range desiredIDs {
		d, ok := byID[id]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("discipline %s not found", id))
			continue
		}
		if d.LinkedTo(courseID) {
			continue
		}
		if len(d.CourseIDs) >= models.MaxCoursesPerDiscipline {
			warnings = append(warnings, fmt.Sprintf("discipline %q already has %d courses and was skipped", d.Name, models.MaxCoursesPerDiscipline))
			continue
		}
		d.CourseIDs = append(d.CourseIDs, courseID)
		d.CourseNames = append(d.CourseNames, courseName)
		if err := s.disciplines.Update(ctx, d); err != nil {
			s.logger.Warn("failed to attach course to discipline",
				zap.String("discipline_id", d.ID),
				zap.String("course_id", courseID),
				zap.Error(err))
			failed = true
		}
	}

	if failed {
		return warnings, appErrors.Clone(appErrors.ErrInternal, "failed to update one or more disciplines")
	}
	return warnings, nil
}

// RenameCourse rewrites the denormalized course name on every discipline that
// references the course.
func (s *LinkService) RenameCourse(ctx context.Context, courseID, courseName string) error {
	all, err := s.disciplines.ListAll(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load disciplines")
	}
	failed := false
	for i := range all {
		d := &all[i]
		changed := false
		for j, id := range d.CourseIDs {
			if id == courseID && j < len(d.CourseNames) && d.CourseNames[j] != courseName {
				d.CourseNames[j] = courseName
				changed = true
			}
		}
		if !changed {
			continue
		}
		if err := s.disciplines.Update(ctx, d); err != nil {
			s.logger.Warn("failed to rename course on discipline",
				zap.String("discipline_id", d.ID),
				zap.String("course_id", courseID),
				zap.Error(err))
			failed = true
		}
	}
	if failed {
		return appErrors.Clone(appErrors.ErrInternal, "failed to update one or more disciplines")
	}
	return nil
}

func removeCourseAt(d *models.Discipline, courseID string) {
	for i, id := range d.CourseIDs {
		if id != courseID {
			continue
		}
		d.CourseIDs = append(d.CourseIDs[:i], d.CourseIDs[i+1:]...)
		if i < len(d.CourseNames) {
			d.CourseNames = append(d.CourseNames[:i], d.CourseNames[i+1:]...)
		}
		return
	}
}
