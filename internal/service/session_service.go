package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/traininjapan/booking-api/internal/dto"
	"github.com/traininjapan/booking-api/internal/models"
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
)

type courseFinder interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error)
}

type scheduleStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, schedule *models.CourseSchedule) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseSchedule, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.CourseSchedule, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type sessionStore interface {
	CreateBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.CourseSession) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseSession, error)
	FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.CourseSession, error)
	ListByCourse(ctx context.Context, filter models.SessionFilter) ([]models.CourseSession, error)
	Update(ctx context.Context, id string, status *models.SessionStatus, maxCapacity *int) error
	AdjustEnrollment(ctx context.Context, exec sqlx.ExtContext, id string, delta int) (bool, error)
	DeleteBySchedule(ctx context.Context, exec sqlx.ExtContext, scheduleID string) (int64, error)
}

// SessionService expands schedules into sessions and guards the per-session enrollment counter.
type SessionService struct {
	courses   courseFinder
	schedules scheduleStore
	sessions  sessionStore
	conflicts *ConflictService
	cache     *CacheService
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService wires the session store.
func NewSessionService(
	courses courseFinder,
	schedules scheduleStore,
	sessions sessionStore,
	conflicts *ConflictService,
	cache *CacheService,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		courses:   courses,
		schedules: schedules,
		sessions:  sessions,
		conflicts: conflicts,
		cache:     cache,
		tx:        tx,
		validator: validate,
		logger:    logger,
	}
}

// GenerateSessions stores a schedule and one session per expanded date in a single transaction.
// Overlaps with existing sessions are reported alongside the result but never block generation.
func (s *SessionService) GenerateSessions(ctx context.Context, courseID string, req dto.ScheduleRequest, actor *models.JWTClaims) (*models.GeneratedSchedule, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	if err := validateWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	interval := 1
	if req.RecurrenceInterval != nil {
		interval = *req.RecurrenceInterval
		if interval < 1 {
			return nil, invalidSchedule("recurrence_interval must be at least 1")
		}
	}
	dates, err := ExpandRecurrence(RecurrenceRule{
		Type:      req.RecurrenceType,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Days:      req.RecurrenceDays,
		Interval:  interval,
	})
	if err != nil {
		return nil, err
	}

	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := requireSchoolOwner(actor, course.SchoolID, "courses"); err != nil {
		return nil, err
	}

	dateStrings := make([]string, len(dates))
	for i, d := range dates {
		dateStrings[i] = d.Format(dateLayout)
	}
	report := s.advisoryConflicts(ctx, course, req, dateStrings)

	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	days := make(pq.Int64Array, len(req.RecurrenceDays))
	for i, d := range req.RecurrenceDays {
		days[i] = int64(d)
	}
	schedule := &models.CourseSchedule{
		CourseID:           course.ID,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		RecurrenceType:     req.RecurrenceType,
		RecurrenceDays:     days,
		RecurrenceInterval: interval,
	}
	if err = s.schedules.Create(ctx, tx, schedule); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
		return nil, err
	}

	sessions := make([]models.CourseSession, len(dateStrings))
	for i, date := range dateStrings {
		sessions[i] = models.CourseSession{
			CourseID:     course.ID,
			ScheduleID:   schedule.ID,
			Date:         date,
			StartTime:    req.StartTime,
			EndTime:      req.EndTime,
			LocationID:   course.LocationID,
			InstructorID: course.InstructorID,
			MaxCapacity:  course.Capacity,
			Status:       models.SessionStatusScheduled,
		}
	}
	if len(sessions) > 0 {
		if err = s.sessions.CreateBatch(ctx, tx, sessions); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create sessions")
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit schedule")
		return nil, err
	}
	s.invalidate(ctx, course.ID)

	ids := make([]string, len(sessions))
	for i := range sessions {
		ids[i] = sessions[i].ID
	}
	result := &models.GeneratedSchedule{
		ScheduleID:      schedule.ID,
		SessionsCreated: len(sessions),
		SessionIDs:      ids,
	}
	if report != nil && report.HasConflicts {
		result.Conflicts = report
	}
	s.logger.Info("schedule generated",
		zap.String("course_id", course.ID),
		zap.String("schedule_id", schedule.ID),
		zap.Int("sessions", len(sessions)))
	return result, nil
}

func (s *SessionService) advisoryConflicts(ctx context.Context, course *models.Course, req dto.ScheduleRequest, dates []string) *models.ConflictReport {
	if s.conflicts == nil || len(dates) == 0 {
		return nil
	}
	report, err := s.conflicts.check(ctx, nil, dto.ConflictQuery{
		LocationID:   course.LocationID,
		InstructorID: course.InstructorID,
		StartDate:    dates[0],
		EndDate:      dates[len(dates)-1],
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Dates:        dates,
	})
	if err != nil {
		s.logger.Warn("advisory conflict check failed", zap.String("course_id", course.ID), zap.Error(err))
		return nil
	}
	return report
}

// ListSchedules returns the schedules of a course.
func (s *SessionService) ListSchedules(ctx context.Context, courseID string) ([]models.CourseSchedule, error) {
	schedules, err := s.schedules.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	if schedules == nil {
		schedules = []models.CourseSchedule{}
	}
	return schedules, nil
}

// ListSessions returns a course's sessions, served from cache when possible. The bool reports a cache hit.
func (s *SessionService) ListSessions(ctx context.Context, courseID string, status models.SessionStatus) ([]models.CourseSession, bool, error) {
	if status != "" && !status.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown session status %q", status))
	}
	key := sessionListKey(courseID, status)
	var cached []models.CourseSession
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, true, nil
	}
	sessions, err := s.sessions.ListByCourse(ctx, models.SessionFilter{CourseID: courseID, Status: status})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	if sessions == nil {
		sessions = []models.CourseSession{}
	}
	_ = s.cache.Set(ctx, key, sessions, 0)
	return sessions, false, nil
}

// GetSession returns one session.
func (s *SessionService) GetSession(ctx context.Context, id string) (*models.CourseSession, error) {
	session, err := s.sessions.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// UpdateSession applies a partial change to status and/or capacity.
func (s *SessionService) UpdateSession(ctx context.Context, id string, patch dto.SessionPatch, actor *models.JWTClaims) (*models.CourseSession, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(patch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown session status %q", *patch.Status))
	}
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	course, err := s.loadCourse(ctx, session.CourseID)
	if err != nil {
		return nil, err
	}
	if err := requireSchoolOwner(actor, course.SchoolID, "sessions"); err != nil {
		return nil, err
	}
	if patch.Status == nil && patch.MaxCapacity == nil {
		return session, nil
	}
	if err := s.sessions.Update(ctx, id, patch.Status, patch.MaxCapacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("max_capacity cannot be below current enrollment (%d)", session.CurrentEnrollment))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	s.invalidate(ctx, session.CourseID)
	return s.GetSession(ctx, id)
}

// DeleteSchedule removes a schedule together with every session generated from it.
func (s *SessionService) DeleteSchedule(ctx context.Context, id string, actor *models.JWTClaims) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	schedule, err := s.schedules.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	course, err := s.loadCourse(ctx, schedule.CourseID)
	if err != nil {
		return err
	}
	if err := requireSchoolOwner(actor, course.SchoolID, "schedules"); err != nil {
		return err
	}
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	removed, err := s.sessions.DeleteBySchedule(ctx, tx, id)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete sessions")
		return err
	}
	if err = s.schedules.Delete(ctx, tx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
			return err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit schedule deletion")
		return err
	}
	s.invalidate(ctx, schedule.CourseID)
	s.logger.Info("schedule deleted", zap.String("schedule_id", id), zap.Int64("sessions_removed", removed))
	return nil
}

// AdjustEnrollment moves a session's enrollment by delta with a single conditional update, so
// concurrent callers can never push it below zero or above max_capacity. When nothing changed the
// session is reloaded to tell a missing session from a full or empty one.
func (s *SessionService) AdjustEnrollment(ctx context.Context, exec sqlx.ExtContext, id string, delta int) error {
	changed, err := s.sessions.AdjustEnrollment(ctx, exec, id, delta)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to adjust enrollment")
	}
	if changed {
		return nil
	}
	session, err := s.sessions.FindByID(ctx, exec, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if delta > 0 {
		return appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("Session on %s is full", session.Date))
	}
	return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("Session on %s has no enrollment to release", session.Date))
}

func (s *SessionService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, nil, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *SessionService) invalidate(ctx context.Context, courseID string) {
	_ = s.cache.Invalidate(ctx, sessionListPattern(courseID))
}
