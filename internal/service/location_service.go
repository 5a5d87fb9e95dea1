package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/traininjapan/booking-api/internal/dto"
	"github.com/traininjapan/booking-api/internal/models"
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
)

type locationStore interface {
	List(ctx context.Context, schoolID string) ([]models.Location, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Location, error)
	Create(ctx context.Context, location *models.Location) error
	Update(ctx context.Context, location *models.Location) error
	Delete(ctx context.Context, id string) error
}

// LocationService manages school venues.
type LocationService struct {
	repo      locationStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLocationService constructs the service.
func NewLocationService(repo locationStore, validate *validator.Validate, logger *zap.Logger) *LocationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocationService{repo: repo, validator: validate, logger: logger}
}

// List returns locations, optionally restricted to one school.
func (s *LocationService) List(ctx context.Context, schoolID string) ([]models.Location, error) {
	locations, err := s.repo.List(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list locations")
	}
	if locations == nil {
		locations = []models.Location{}
	}
	return locations, nil
}

// Get returns a location by id.
func (s *LocationService) Get(ctx context.Context, id string) (*models.Location, error) {
	location, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "location not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load location")
	}
	return location, nil
}

// Create stores a location under the caller's school.
func (s *LocationService) Create(ctx context.Context, req dto.LocationRequest, actor *models.JWTClaims) (*models.Location, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid location payload")
	}
	if actor.SchoolID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "identity carries no school")
	}
	location := &models.Location{
		SchoolID:    actor.SchoolID,
		Name:        req.Name,
		Address:     req.Address,
		City:        req.City,
		Prefecture:  req.Prefecture,
		Capacity:    req.Capacity,
		Description: req.Description,
	}
	if err := s.repo.Create(ctx, location); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create location")
	}
	s.logger.Info("location created", zap.String("location_id", location.ID), zap.String("school_id", location.SchoolID))
	return location, nil
}

// Update replaces a location's fields.
func (s *LocationService) Update(ctx context.Context, id string, req dto.LocationRequest, actor *models.JWTClaims) (*models.Location, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid location payload")
	}
	location, err := s.owned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	location.Name = req.Name
	location.Address = req.Address
	location.City = req.City
	location.Prefecture = req.Prefecture
	location.Capacity = req.Capacity
	location.Description = req.Description
	if err := s.repo.Update(ctx, location); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "location not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update location")
	}
	return location, nil
}

// Delete removes a location.
func (s *LocationService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if _, err := s.owned(ctx, id, actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "location not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete location")
	}
	return nil
}

func (s *LocationService) owned(ctx context.Context, id string, actor *models.JWTClaims) (*models.Location, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	location, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireSchoolOwner(actor, location.SchoolID, "locations"); err != nil {
		return nil, err
	}
	return location, nil
}
