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
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
)

type instructorStore interface {
	List(ctx context.Context, schoolID string) ([]models.Instructor, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Instructor, error)
	Create(ctx context.Context, instructor *models.Instructor) error
	Update(ctx context.Context, instructor *models.Instructor) error
	Delete(ctx context.Context, id string) error
}

// InstructorService manages a school's instructors.
type InstructorService struct {
	repo      instructorStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInstructorService constructs the service.
func NewInstructorService(repo instructorStore, validate *validator.Validate, logger *zap.Logger) *InstructorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstructorService{repo: repo, validator: validate, logger: logger}
}

// List returns instructors, optionally restricted to one school.
func (s *InstructorService) List(ctx context.Context, schoolID string) ([]models.Instructor, error) {
	instructors, err := s.repo.List(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructors")
	}
	if instructors == nil {
		instructors = []models.Instructor{}
	}
	return instructors, nil
}

// Get returns an instructor by id.
func (s *InstructorService) Get(ctx context.Context, id string) (*models.Instructor, error) {
	instructor, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	return instructor, nil
}

// Create stores an instructor under the caller's school.
func (s *InstructorService) Create(ctx context.Context, req dto.InstructorRequest, actor *models.JWTClaims) (*models.Instructor, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	req.Email = normaliseEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}
	if actor.SchoolID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "identity carries no school")
	}
	instructor := &models.Instructor{SchoolID: actor.SchoolID, Available: true}
	applyInstructorRequest(instructor, req)
	if err := s.repo.Create(ctx, instructor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create instructor")
	}
	s.logger.Info("instructor created", zap.String("instructor_id", instructor.ID), zap.String("school_id", instructor.SchoolID))
	return instructor, nil
}

// Update replaces an instructor's fields.
func (s *InstructorService) Update(ctx context.Context, id string, req dto.InstructorRequest, actor *models.JWTClaims) (*models.Instructor, error) {
	req.Email = normaliseEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}
	instructor, err := s.Owned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	applyInstructorRequest(instructor, req)
	if err := s.repo.Update(ctx, instructor); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update instructor")
	}
	return instructor, nil
}

// Delete removes an instructor.
func (s *InstructorService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if _, err := s.Owned(ctx, id, actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete instructor")
	}
	return nil
}

// Owned loads an instructor the caller is allowed to manage.
func (s *InstructorService) Owned(ctx context.Context, id string, actor *models.JWTClaims) (*models.Instructor, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	instructor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireSchoolOwner(actor, instructor.SchoolID, "instructors"); err != nil {
		return nil, err
	}
	return instructor, nil
}

func applyInstructorRequest(instructor *models.Instructor, req dto.InstructorRequest) {
	instructor.Name = req.Name
	instructor.Email = normaliseEmail(req.Email)
	instructor.Phone = req.Phone
	instructor.Rank = req.Rank
	instructor.Bio = req.Bio
	if req.Available != nil {
		instructor.Available = *req.Available
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
