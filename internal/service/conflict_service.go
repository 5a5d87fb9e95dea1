package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/traininjapan/booking-api/internal/dto"
	"github.com/traininjapan/booking-api/internal/models"
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
)

type scheduledSessionReader interface {
	ListScheduledAtLocation(ctx context.Context, exec sqlx.ExtContext, locationID, startDate, endDate string) ([]models.CourseSession, error)
	ListScheduledForInstructor(ctx context.Context, exec sqlx.ExtContext, instructorID, startDate, endDate string) ([]models.CourseSession, error)
}

// ConflictService reports location and instructor double-booking. Its result is advisory.
type ConflictService struct {
	sessions  scheduledSessionReader
	validator *validator.Validate
}

// NewConflictService constructs the detector.
func NewConflictService(sessions scheduledSessionReader, validate *validator.Validate) *ConflictService {
	if validate == nil {
		validate = validator.New()
	}
	return &ConflictService{sessions: sessions, validator: validate}
}

// Check looks for scheduled sessions overlapping the requested window. Both resource checks run
// independently when both ids are present.
func (s *ConflictService) Check(ctx context.Context, query dto.ConflictQuery) (*models.ConflictReport, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict query")
	}
	if query.LocationID == "" && query.InstructorID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "location_id or instructor_id is required")
	}
	if err := validateWindow(query.StartTime, query.EndTime); err != nil {
		return nil, err
	}
	start, err := parseDate(query.StartDate)
	if err != nil {
		return nil, invalidSchedule("start_date must be YYYY-MM-DD")
	}
	end, err := parseDate(query.EndDate)
	if err != nil {
		return nil, invalidSchedule("end_date must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return nil, invalidSchedule("end_date must not be before start_date")
	}
	return s.check(ctx, nil, query)
}

func (s *ConflictService) check(ctx context.Context, exec sqlx.ExtContext, query dto.ConflictQuery) (*models.ConflictReport, error) {
	var dates map[string]struct{}
	if len(query.Dates) > 0 {
		dates = make(map[string]struct{}, len(query.Dates))
		for _, d := range query.Dates {
			dates[d] = struct{}{}
		}
	}

	report := &models.ConflictReport{
		LocationConflicts:   []models.SessionConflict{},
		InstructorConflicts: []models.SessionConflict{},
	}
	if query.LocationID != "" {
		sessions, err := s.sessions.ListScheduledAtLocation(ctx, exec, query.LocationID, query.StartDate, query.EndDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load location sessions")
		}
		report.LocationConflicts = collectConflicts(sessions, query, dates, func(c *models.SessionConflict, sess models.CourseSession) {
			c.LocationID = sess.LocationID
		})
	}
	if query.InstructorID != "" {
		sessions, err := s.sessions.ListScheduledForInstructor(ctx, exec, query.InstructorID, query.StartDate, query.EndDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor sessions")
		}
		report.InstructorConflicts = collectConflicts(sessions, query, dates, func(c *models.SessionConflict, sess models.CourseSession) {
			c.InstructorID = sess.InstructorID
		})
	}
	report.HasConflicts = len(report.LocationConflicts) > 0 || len(report.InstructorConflicts) > 0
	return report, nil
}

func collectConflicts(sessions []models.CourseSession, query dto.ConflictQuery, dates map[string]struct{}, decorate func(*models.SessionConflict, models.CourseSession)) []models.SessionConflict {
	conflicts := []models.SessionConflict{}
	for _, sess := range sessions {
		if sess.Status != models.SessionStatusScheduled {
			continue
		}
		if dates != nil {
			if _, ok := dates[sess.Date]; !ok {
				continue
			}
		}
		if !windowsOverlap(query.StartTime, query.EndTime, sess.StartTime, sess.EndTime) {
			continue
		}
		conflict := models.SessionConflict{
			SessionID: sess.ID,
			CourseID:  sess.CourseID,
			Date:      sess.Date,
			StartTime: sess.StartTime,
			EndTime:   sess.EndTime,
		}
		decorate(&conflict, sess)
		conflicts = append(conflicts, conflict)
	}
	return conflicts
}
