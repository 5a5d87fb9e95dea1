package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/traininjapan/booking-api/internal/dto"
	"github.com/traininjapan/booking-api/internal/models"
	"github.com/traininjapan/booking-api/internal/repository"
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
)

const (
	defaultCoursePageSize = 20
	maxCoursePageSize     = 100
)

type courseStore interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error)
	CountBySchool(ctx context.Context, exec sqlx.ExtContext, schoolID string) (int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error
	Update(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error
	UpdateStatus(ctx context.Context, id string, status models.CourseStatus, instructorConfirmed bool) error
	Delete(ctx context.Context, id string) error
}

type instructorReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Instructor, error)
}

type capacityChecker interface {
	Validate(ctx context.Context, exec sqlx.ExtContext, check CapacityCheck) error
}

// CourseService manages course lifecycle and keeps location capacity consistent on every write.
type CourseService struct {
	courses     courseStore
	locations   locationReader
	instructors instructorReader
	capacity    capacityChecker
	tx          txProvider
	lock        lockFunc
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseService wires the course service.
func NewCourseService(
	courses courseStore,
	locations locationReader,
	instructors instructorReader,
	capacity capacityChecker,
	tx txProvider,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		courses:     courses,
		locations:   locations,
		instructors: instructors,
		capacity:    capacity,
		tx:          tx,
		lock:        repository.AcquireXactLock,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// List returns bookable courses matching the filters.
func (s *CourseService) List(ctx context.Context, query dto.CourseListQuery) ([]models.Course, *models.Pagination, error) {
	page := query.Page
	if page <= 0 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = defaultCoursePageSize
	}
	if size > maxCoursePageSize {
		size = maxCoursePageSize
	}
	courses, total, err := s.courses.List(ctx, models.CourseFilter{
		SchoolID:        query.SchoolID,
		LocationID:      query.LocationID,
		InstructorID:    query.InstructorID,
		Style:           query.Style,
		ExperienceLevel: query.ExperienceLevel,
		Page:            page,
		PageSize:        size,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	if courses == nil {
		courses = []models.Course{}
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a course by id.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	return s.load(ctx, nil, id)
}

// Create stores a course for the caller's school. A school's first course waits for admin
// approval, later ones are confirmed immediately.
func (s *CourseService) Create(ctx context.Context, req dto.CourseRequest, actor *models.JWTClaims) (*models.Course, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
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

	schoolID, err := s.checkResources(ctx, tx, req, actor)
	if err != nil {
		return nil, err
	}
	if err = s.lock(ctx, tx, repository.LocationLockKey(req.LocationID)); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock location")
		return nil, err
	}
	if err = s.capacity.Validate(ctx, tx, CapacityCheck{
		LocationID: req.LocationID,
		Capacity:   req.Capacity,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
	}); err != nil {
		s.recordCapacityRejection(err)
		return nil, err
	}

	existing, err := s.courses.CountBySchool(ctx, tx, schoolID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count school courses")
		return nil, err
	}
	course := courseFromRequest(req)
	course.SchoolID = schoolID
	course.Status = models.CourseStatusConfirmed
	if existing == 0 {
		course.Status = models.CourseStatusPendingFirstApproval
	}
	if err = s.courses.Create(ctx, tx, course); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit course")
		return nil, err
	}
	s.logger.Info("course created",
		zap.String("course_id", course.ID),
		zap.String("school_id", schoolID),
		zap.String("status", string(course.Status)))
	return course, nil
}

// Update replaces the editable fields of a course. Capacity is re-validated excluding the course
// itself.
func (s *CourseService) Update(ctx context.Context, id string, req dto.CourseRequest, actor *models.JWTClaims) (*models.Course, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
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

	existing, err := s.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err = requireSchoolOwner(actor, existing.SchoolID, "courses"); err != nil {
		return nil, err
	}
	if _, err = s.checkResources(ctx, tx, req, actor); err != nil {
		return nil, err
	}
	if err = s.lock(ctx, tx, repository.LocationLockKey(req.LocationID)); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock location")
		return nil, err
	}
	if err = s.capacity.Validate(ctx, tx, CapacityCheck{
		CourseID:   id,
		LocationID: req.LocationID,
		Capacity:   req.Capacity,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
	}); err != nil {
		s.recordCapacityRejection(err)
		return nil, err
	}

	course := courseFromRequest(req)
	course.ID = existing.ID
	course.SchoolID = existing.SchoolID
	course.Status = existing.Status
	course.InstructorConfirmed = existing.InstructorConfirmed
	course.CreatedAt = existing.CreatedAt
	if err = s.courses.Update(ctx, tx, course); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "course not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit course")
		return nil, err
	}
	return course, nil
}

// Delete removes a course owned by the caller's school.
func (s *CourseService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	course, err := s.authorize(ctx, id, actor)
	if err != nil {
		return err
	}
	if err := s.courses.Delete(ctx, course.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.logger.Info("course deleted", zap.String("course_id", id))
	return nil
}

// Confirm lets the owning school confirm a course directly.
func (s *CourseService) Confirm(ctx context.Context, id string, actor *models.JWTClaims) (*models.Course, error) {
	course, err := s.authorize(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, course, models.CourseStatusConfirmed, true)
}

// ApproveFirst is the admin approval of a school's first course.
func (s *CourseService) ApproveFirst(ctx context.Context, id string, actor *models.JWTClaims) (*models.Course, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	course, err := s.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if course.Status != models.CourseStatusPendingFirstApproval {
		return nil, appErrors.Clone(appErrors.ErrValidation, "This course is not pending first approval")
	}
	return s.transition(ctx, course, models.CourseStatusConfirmed, true)
}

// InstructorConfirm records that the assigned instructor accepted the course.
func (s *CourseService) InstructorConfirm(ctx context.Context, id string, actor *models.JWTClaims) (*models.Course, error) {
	course, err := s.authorizeInstructor(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, course, models.CourseStatusConfirmed, true)
}

// InstructorDecline returns the course to pending_instructor until a new instructor is assigned.
func (s *CourseService) InstructorDecline(ctx context.Context, id string, actor *models.JWTClaims) (*models.Course, error) {
	course, err := s.authorizeInstructor(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, course, models.CourseStatusPendingInstructor, false)
}

func (s *CourseService) transition(ctx context.Context, course *models.Course, status models.CourseStatus, instructorConfirmed bool) (*models.Course, error) {
	if err := s.courses.UpdateStatus(ctx, course.ID, status, instructorConfirmed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course status")
	}
	s.logger.Info("course status changed",
		zap.String("course_id", course.ID),
		zap.String("from", string(course.Status)),
		zap.String("to", string(status)))
	course.Status = status
	course.InstructorConfirmed = instructorConfirmed
	return course, nil
}

func (s *CourseService) authorize(ctx context.Context, id string, actor *models.JWTClaims) (*models.Course, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	course, err := s.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if err := requireSchoolOwner(actor, course.SchoolID, "courses"); err != nil {
		return nil, err
	}
	return course, nil
}

// authorizeInstructor admits admins and the instructor whose email matches the identity.
func (s *CourseService) authorizeInstructor(ctx context.Context, id string, actor *models.JWTClaims) (*models.Course, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	course, err := s.load(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return course, nil
	}
	instructor, err := s.instructors.FindByID(ctx, nil, course.InstructorID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	if instructor == nil || actor.Email == "" || !strings.EqualFold(instructor.Email, actor.Email) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "You are not the assigned instructor")
	}
	return course, nil
}

// checkResources verifies the location and instructor exist and belong to the school the course
// will be created under. Admins inherit the location's school.
func (s *CourseService) checkResources(ctx context.Context, exec sqlx.ExtContext, req dto.CourseRequest, actor *models.JWTClaims) (string, error) {
	location, err := s.locations.FindByID(ctx, exec, req.LocationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "location not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load location")
	}
	instructor, err := s.instructors.FindByID(ctx, exec, req.InstructorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	schoolID := actor.SchoolID
	if actor.IsAdmin() {
		schoolID = location.SchoolID
	}
	if location.SchoolID != schoolID {
		return "", appErrors.Clone(appErrors.ErrForbidden, "location belongs to another school")
	}
	if instructor.SchoolID != schoolID {
		return "", appErrors.Clone(appErrors.ErrForbidden, "instructor belongs to another school")
	}
	return schoolID, nil
}

func (s *CourseService) validateRequest(req dto.CourseRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "start_date must be YYYY-MM-DD")
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "end_date must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}
	if req.DailyStartTime != "" || req.DailyEndTime != "" {
		if err := validateWindow(req.DailyStartTime, req.DailyEndTime); err != nil {
			return err
		}
	}
	return nil
}

func (s *CourseService) recordCapacityRejection(err error) {
	if errors.Is(err, appErrors.ErrCapacityExceeded) {
		s.metrics.CapacityRejected("location")
	}
}

func (s *CourseService) load(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, exec, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func courseFromRequest(req dto.CourseRequest) *models.Course {
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "JPY"
	}
	return &models.Course{
		LocationID:      req.LocationID,
		InstructorID:    req.InstructorID,
		Title:           req.Title,
		Description:     req.Description,
		Style:           req.Style,
		Category:        req.Category,
		ExperienceLevel: req.ExperienceLevel,
		Capacity:        req.Capacity,
		Price:           req.Price,
		Currency:        currency,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		DailyStartTime:  req.DailyStartTime,
		DailyEndTime:    req.DailyEndTime,
	}
}

func mapCourseLoadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
}
