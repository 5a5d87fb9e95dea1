package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/traininjapan/booking-api/internal/dto"
	"github.com/traininjapan/booking-api/internal/models"
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
)

type availabilityStore interface {
	Create(ctx context.Context, block *models.InstructorAvailability) error
	ListByInstructor(ctx context.Context, instructorID string) ([]models.InstructorAvailability, error)
	FindByID(ctx context.Context, id string) (*models.InstructorAvailability, error)
	Delete(ctx context.Context, id string) error
}

type instructorOwnership interface {
	Get(ctx context.Context, id string) (*models.Instructor, error)
	Owned(ctx context.Context, id string, actor *models.JWTClaims) (*models.Instructor, error)
}

// AvailabilityService records the weekly blocks an instructor can teach.
type AvailabilityService struct {
	repo        availabilityStore
	instructors instructorOwnership
	validator   *validator.Validate
}

// NewAvailabilityService constructs the service.
func NewAvailabilityService(repo availabilityStore, instructors instructorOwnership, validate *validator.Validate) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	return &AvailabilityService{repo: repo, instructors: instructors, validator: validate}
}

// Create adds a block for an instructor of the caller's school.
func (s *AvailabilityService) Create(ctx context.Context, instructorID string, req dto.AvailabilityRequest, actor *models.JWTClaims) (*models.InstructorAvailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if err := validateWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if _, err := s.instructors.Owned(ctx, instructorID, actor); err != nil {
		return nil, err
	}
	block := &models.InstructorAvailability{
		InstructorID: instructorID,
		DayOfWeek:    req.DayOfWeek,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		IsAvailable:  true,
	}
	if req.IsAvailable != nil {
		block.IsAvailable = *req.IsAvailable
	}
	if err := s.repo.Create(ctx, block); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create availability")
	}
	return block, nil
}

// List returns an instructor's blocks ordered by weekday and start time.
func (s *AvailabilityService) List(ctx context.Context, instructorID string) ([]models.InstructorAvailability, error) {
	if _, err := s.instructors.Get(ctx, instructorID); err != nil {
		return nil, err
	}
	blocks, err := s.repo.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}
	if blocks == nil {
		blocks = []models.InstructorAvailability{}
	}
	return blocks, nil
}

// Delete removes a block.
func (s *AvailabilityService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	block, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "availability not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	if _, err := s.instructors.Owned(ctx, block.InstructorID, actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "availability not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete availability")
	}
	return nil
}
