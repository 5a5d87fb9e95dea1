package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/traininjapan/booking-api/internal/dto"
	"github.com/traininjapan/booking-api/internal/models"
	"github.com/traininjapan/booking-api/internal/repository"
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
)

type bookingStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.BookingStatus) error
	ListByUser(ctx context.Context, userID string) ([]models.Booking, error)
	ListBySchool(ctx context.Context, schoolID string) ([]models.Booking, error)
	CountActiveByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) (int, error)
}

type sessionLookup interface {
	FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.CourseSession, error)
}

type enrollmentAdjuster interface {
	AdjustEnrollment(ctx context.Context, exec sqlx.ExtContext, id string, delta int) error
}

type waitlistPromoter interface {
	PromoteNext(ctx context.Context, courseID string) (*models.WaitlistEntry, error)
}

type lockFunc func(ctx context.Context, exec sqlx.ExtContext, key string) error

// BookingService coordinates seat reservations with session enrollment counters.
type BookingService struct {
	bookings   bookingStore
	courses    courseFinder
	sessions   sessionLookup
	enrollment enrollmentAdjuster
	waitlist   waitlistPromoter
	cache      *CacheService
	tx         txProvider
	lock       lockFunc
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewBookingService wires the booking coordinator.
func NewBookingService(
	bookings bookingStore,
	courses courseFinder,
	sessions sessionLookup,
	enrollment enrollmentAdjuster,
	waitlist waitlistPromoter,
	cache *CacheService,
	tx txProvider,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		bookings:   bookings,
		courses:    courses,
		sessions:   sessions,
		enrollment: enrollment,
		waitlist:   waitlist,
		cache:      cache,
		tx:         tx,
		lock:       repository.AcquireXactLock,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
}

// BookSessions reserves one seat in each requested session. Either every session is incremented
// and the booking stored, or nothing changes.
func (s *BookingService) BookSessions(ctx context.Context, req dto.BookSessionsRequest, actor *models.JWTClaims) (*models.SessionBookingResult, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if len(req.SessionIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "No sessions selected")
	}
	if err := s.validator.Struct(req.StudentInfo); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	seen := make(map[string]struct{}, len(req.SessionIDs))
	for _, id := range req.SessionIDs {
		if _, dup := seen[id]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Session %s selected more than once", id))
		}
		seen[id] = struct{}{}
	}

	sessions, err := s.sessions.FindByIDs(ctx, nil, req.SessionIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}
	if len(sessions) != len(req.SessionIDs) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Some sessions not found")
	}
	sortSessionsForLocking(sessions)

	courseID := sessions[0].CourseID
	for _, session := range sessions {
		if session.CourseID != courseID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "All sessions must belong to the same course")
		}
		if session.Status != models.SessionStatusScheduled {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("Session on %s is %s and cannot be booked", session.Date, session.Status))
		}
		if session.Full() {
			s.metrics.CapacityRejected("session")
			return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("Session on %s is full", session.Date))
		}
	}
	course, err := s.loadCourse(ctx, nil, courseID)
	if err != nil {
		return nil, err
	}

	n := len(sessions)
	pricePerSession := course.Price
	if n > 1 {
		pricePerSession = course.Price / float64(n)
	}
	total := pricePerSession * float64(n)

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

	ids := make(pq.StringArray, n)
	for i, session := range sessions {
		ids[i] = session.ID
		if err = s.enrollment.AdjustEnrollment(ctx, tx, session.ID, 1); err != nil {
			if errors.Is(err, appErrors.ErrCapacityExceeded) {
				s.metrics.CapacityRejected("session")
			}
			return nil, err
		}
	}
	booking := &models.Booking{
		CourseID:        courseID,
		UserID:          actor.UserID,
		StudentName:     req.StudentName,
		StudentEmail:    req.StudentEmail,
		StudentPhone:    req.StudentPhone,
		Message:         req.Message,
		Status:          models.BookingStatusPending,
		PaymentStatus:   models.PaymentStatusUnpaid,
		SessionIDs:      ids,
		TotalSessions:   n,
		PricePerSession: &pricePerSession,
		Amount:          &total,
	}
	if err = s.bookings.Create(ctx, tx, booking); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit booking")
		return nil, err
	}

	s.invalidate(ctx, courseID)
	s.metrics.BookingCreated("sessions")
	s.logger.Info("sessions booked",
		zap.String("booking_id", booking.ID),
		zap.String("course_id", courseID),
		zap.Int("sessions", n))
	return &models.SessionBookingResult{BookingID: booking.ID, TotalPrice: total, SessionsBooked: n}, nil
}

// CreateCourseBooking books a whole course. Bookings of the same course are serialized by an
// advisory lock so the active booking count cannot pass the course capacity.
func (s *BookingService) CreateCourseBooking(ctx context.Context, courseID string, req dto.CourseBookingRequest, actor *models.JWTClaims) (*models.Booking, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
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

	if err = s.lock(ctx, tx, repository.CourseLockKey(courseID)); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock course")
		return nil, err
	}
	course, err := s.loadCourse(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.Status.Bookable() {
		err = appErrors.Clone(appErrors.ErrPreconditionFailed, "Course is not open for booking")
		return nil, err
	}
	active, err := s.bookings.CountActiveByCourse(ctx, tx, courseID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count bookings")
		return nil, err
	}
	if active >= course.Capacity {
		s.metrics.CapacityRejected("course")
		err = appErrors.Clone(appErrors.ErrCapacityExceeded, "Course is full")
		return nil, err
	}

	amount := course.Price
	booking := &models.Booking{
		CourseID:      courseID,
		UserID:        actor.UserID,
		StudentName:   req.StudentName,
		StudentEmail:  req.StudentEmail,
		StudentPhone:  req.StudentPhone,
		Message:       req.Message,
		Status:        models.BookingStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
		SessionIDs:    pq.StringArray{},
		Amount:        &amount,
	}
	if err = s.bookings.Create(ctx, tx, booking); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit booking")
		return nil, err
	}
	s.metrics.BookingCreated("course")
	s.logger.Info("course booked", zap.String("booking_id", booking.ID), zap.String("course_id", courseID))
	return booking, nil
}

// CancelBooking releases every seat held by the booking and offers one freed seat to the waitlist.
// Cancelling twice fails so seats are never released twice.
func (s *BookingService) CancelBooking(ctx context.Context, id string, actor *models.JWTClaims) (*models.Booking, error) {
	if err := requireIdentity(actor); err != nil {
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

	booking, err := s.bookings.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "booking not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
		return nil, err
	}
	if err = s.authorizeBooking(ctx, tx, booking, actor, true); err != nil {
		return nil, err
	}
	if booking.Status == models.BookingStatusCancelled {
		err = appErrors.Clone(appErrors.ErrPreconditionFailed, "Booking is already cancelled")
		return nil, err
	}
	if err = s.bookings.UpdateStatus(ctx, tx, booking.ID, models.BookingStatusCancelled); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
		return nil, err
	}
	for _, sessionID := range booking.SessionIDs {
		if err = s.enrollment.AdjustEnrollment(ctx, tx, sessionID, -1); err != nil {
			if errors.Is(err, appErrors.ErrNotFound) {
				s.logger.Warn("cancelled booking references a removed session",
					zap.String("booking_id", booking.ID), zap.String("session_id", sessionID))
				err = nil
				continue
			}
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit cancellation")
		return nil, err
	}
	booking.Status = models.BookingStatusCancelled

	s.invalidate(ctx, booking.CourseID)
	s.metrics.BookingCancelled()
	s.logger.Info("booking cancelled",
		zap.String("booking_id", booking.ID),
		zap.Int("sessions_released", len(booking.SessionIDs)))

	if s.waitlist != nil {
		if _, perr := s.waitlist.PromoteNext(ctx, booking.CourseID); perr != nil {
			s.logger.Warn("waitlist promotion after cancellation failed",
				zap.String("course_id", booking.CourseID), zap.Error(perr))
		}
	}
	return booking, nil
}

// ConfirmBooking moves a pending booking to confirmed.
func (s *BookingService) ConfirmBooking(ctx context.Context, id string, actor *models.JWTClaims) (*models.Booking, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	booking, err := s.bookings.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	if err := s.authorizeBooking(ctx, nil, booking, actor, false); err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusPending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("Only pending bookings can be confirmed (current status: %s)", booking.Status))
	}
	if err := s.bookings.UpdateStatus(ctx, nil, booking.ID, models.BookingStatusConfirmed); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm booking")
	}
	booking.Status = models.BookingStatusConfirmed
	s.logger.Info("booking confirmed", zap.String("booking_id", booking.ID))
	return booking, nil
}

// ListMine returns the caller's bookings.
func (s *BookingService) ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.Booking, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	bookings, err := s.bookings.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return bookings, nil
}

// ListBySchool returns the bookings of every course a school runs.
func (s *BookingService) ListBySchool(ctx context.Context, schoolID string, actor *models.JWTClaims) ([]models.Booking, error) {
	if err := requireSchoolOwner(actor, schoolID, "bookings"); err != nil {
		return nil, err
	}
	bookings, err := s.bookings.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return bookings, nil
}

// authorizeBooking lets staff of the course's school through. The student who made the booking
// passes too when allowOwner is set.
func (s *BookingService) authorizeBooking(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking, actor *models.JWTClaims, allowOwner bool) error {
	if allowOwner && booking.UserID == actor.UserID {
		return nil
	}
	if !actor.IsStaff() {
		return appErrors.Clone(appErrors.ErrForbidden, "you can only manage your own bookings")
	}
	course, err := s.loadCourse(ctx, exec, booking.CourseID)
	if err != nil {
		return err
	}
	return requireSchoolOwner(actor, course.SchoolID, "bookings")
}

func (s *BookingService) loadCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, exec, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *BookingService) invalidate(ctx context.Context, courseID string) {
	_ = s.cache.Invalidate(ctx, sessionListPattern(courseID))
}

// sortSessionsForLocking orders sessions by date, start time and id. Row locks on
// course_sessions are taken in this order, so two overlapping requests never wait on each other
// in opposite directions.
func sortSessionsForLocking(sessions []models.CourseSession) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Date != sessions[j].Date {
			return sessions[i].Date < sessions[j].Date
		}
		if sessions[i].StartTime != sessions[j].StartTime {
			return sessions[i].StartTime < sessions[j].StartTime
		}
		return sessions[i].ID < sessions[j].ID
	})
}
