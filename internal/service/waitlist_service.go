package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/traininjapan/booking-api/internal/dto"
	"github.com/traininjapan/booking-api/internal/models"
	"github.com/traininjapan/booking-api/internal/repository"
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
)

const defaultOfferTTL = 24 * time.Hour

type waitlistStore interface {
	Insert(ctx context.Context, entry *models.WaitlistEntry) error
	ListByCourse(ctx context.Context, courseID string) ([]models.WaitlistEntry, error)
	DeleteOwned(ctx context.Context, id, studentID string) error
	NextCandidate(ctx context.Context, exec sqlx.ExtContext, courseID string) (*models.WaitlistEntry, error)
	MarkNotified(ctx context.Context, exec sqlx.ExtContext, id string, expiresAt time.Time) error
	ListExpiredOffers(ctx context.Context, now time.Time) ([]models.WaitlistEntry, error)
	MarkExpired(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error)
}

type offerNotifier interface {
	NotifyWaitlistOffer(ctx context.Context, offer models.WaitlistOffer) error
}

// WaitlistService keeps the ordered queue of students waiting for a full course.
type WaitlistService struct {
	entries   waitlistStore
	courses   courseFinder
	notifier  offerNotifier
	tx        txProvider
	offerTTL  time.Duration
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewWaitlistService wires the waitlist manager.
func NewWaitlistService(
	entries waitlistStore,
	courses courseFinder,
	notifier offerNotifier,
	tx txProvider,
	offerTTL time.Duration,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *WaitlistService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if offerTTL <= 0 {
		offerTTL = defaultOfferTTL
	}
	return &WaitlistService{
		entries:   entries,
		courses:   courses,
		notifier:  notifier,
		tx:        tx,
		offerTTL:  offerTTL,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Join appends the caller to the course waitlist and returns the assigned position.
func (s *WaitlistService) Join(ctx context.Context, courseID string, req dto.JoinWaitlistRequest, actor *models.JWTClaims) (*dto.JoinWaitlistResponse, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid waitlist payload")
	}
	if _, err := s.loadCourse(ctx, courseID); err != nil {
		return nil, err
	}

	entry := &models.WaitlistEntry{
		CourseID:     courseID,
		SessionID:    req.SessionID,
		StudentID:    actor.UserID,
		StudentName:  req.StudentName,
		StudentEmail: req.StudentEmail,
	}
	if err := s.entries.Insert(ctx, entry); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Course not found")
		case repository.IsUniqueViolation(err):
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "waitlist position already taken")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join waitlist")
	}
	s.metrics.WaitlistEvent("joined")
	s.logger.Info("waitlist joined",
		zap.String("course_id", courseID),
		zap.String("waitlist_id", entry.ID),
		zap.Int("position", entry.Position))
	return &dto.JoinWaitlistResponse{WaitlistID: entry.ID, Position: entry.Position}, nil
}

// Leave removes the caller's own entry.
func (s *WaitlistService) Leave(ctx context.Context, waitlistID string, actor *models.JWTClaims) error {
	if err := requireIdentity(actor); err != nil {
		return err
	}
	if err := s.entries.DeleteOwned(ctx, waitlistID, actor.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Waitlist entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to leave waitlist")
	}
	s.metrics.WaitlistEvent("left")
	return nil
}

// List returns the course waitlist in join order. Callers who do not manage the course's school
// only see contact details on their own entries.
func (s *WaitlistService) List(ctx context.Context, courseID string, actor *models.JWTClaims) ([]models.WaitlistEntry, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	entries, err := s.entries.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list waitlist")
	}
	if entries == nil {
		entries = []models.WaitlistEntry{}
	}
	assignRanks(entries)

	if actor.IsStaff() && actor.OwnsSchool(course.SchoolID) {
		return entries, nil
	}
	for i := range entries {
		if entries[i].StudentID != actor.UserID {
			entries[i].StudentName = ""
			entries[i].StudentEmail = ""
		}
	}
	return entries, nil
}

// assignRanks numbers the entries still waiting for an offer 1..n in position order. Entries that
// hold or have lost an offer get rank 0.
func assignRanks(entries []models.WaitlistEntry) {
	rank := 0
	for i := range entries {
		if entries[i].Notified || entries[i].OfferExpired {
			entries[i].Rank = 0
			continue
		}
		rank++
		entries[i].Rank = rank
	}
}

// PromoteNext offers the freed seat to the first entry that has not been offered one yet. It
// returns nil when nobody is waiting.
func (s *WaitlistService) PromoteNext(ctx context.Context, courseID string) (*models.WaitlistEntry, error) {
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

	entry, err := s.entries.NextCandidate(ctx, tx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist candidate")
		return nil, err
	}
	expiresAt := s.now().Add(s.offerTTL)
	if err = s.entries.MarkNotified(ctx, tx, entry.ID, expiresAt); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record waitlist offer")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit waitlist offer")
		return nil, err
	}
	entry.Notified = true
	entry.OfferExpiresAt = &expiresAt
	s.metrics.WaitlistEvent("promoted")
	s.logger.Info("waitlist entry promoted",
		zap.String("course_id", courseID),
		zap.String("waitlist_id", entry.ID),
		zap.Time("offer_expires_at", expiresAt))

	s.notify(ctx, entry)
	return entry, nil
}

func (s *WaitlistService) notify(ctx context.Context, entry *models.WaitlistEntry) {
	if s.notifier == nil {
		return
	}
	offer := models.WaitlistOffer{
		WaitlistID:   entry.ID,
		CourseID:     entry.CourseID,
		StudentName:  entry.StudentName,
		StudentEmail: entry.StudentEmail,
	}
	if entry.OfferExpiresAt != nil {
		offer.ExpiresAt = *entry.OfferExpiresAt
	}
	if course, err := s.courses.FindByID(ctx, nil, entry.CourseID); err == nil {
		offer.CourseTitle = course.Title
	}
	if err := s.notifier.NotifyWaitlistOffer(ctx, offer); err != nil {
		s.logger.Warn("waitlist offer notification failed",
			zap.String("waitlist_id", entry.ID),
			zap.Error(err))
	}
}

// ExpireOffers marks every offer past its deadline as expired and hands each freed seat to the
// next entry of the same course. It returns the number of offers expired.
func (s *WaitlistService) ExpireOffers(ctx context.Context) (int, error) {
	expired, err := s.entries.ListExpiredOffers(ctx, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list expired offers")
	}
	count := 0
	for _, entry := range expired {
		changed, err := s.entries.MarkExpired(ctx, nil, entry.ID)
		if err != nil {
			s.logger.Warn("failed to expire waitlist offer", zap.String("waitlist_id", entry.ID), zap.Error(err))
			continue
		}
		if !changed {
			continue
		}
		count++
		s.metrics.WaitlistEvent("expired")
		if _, err := s.PromoteNext(ctx, entry.CourseID); err != nil {
			s.logger.Warn("promotion after expiry failed", zap.String("course_id", entry.CourseID), zap.Error(err))
		}
	}
	return count, nil
}

func (s *WaitlistService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, nil, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}
