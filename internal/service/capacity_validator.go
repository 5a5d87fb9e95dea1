package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/traininjapan/booking-api/internal/models"
	appErrors "github.com/traininjapan/booking-api/pkg/errors"
)

type capacityCourseReader interface {
	ListOverlapping(ctx context.Context, exec sqlx.ExtContext, locationID, startDate, endDate, excludeID string) ([]models.CapacityOverlap, error)
}

type locationReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Location, error)
}

// CapacityCheck is a candidate course footprint at a location.
type CapacityCheck struct {
	CourseID   string
	LocationID string
	Capacity   int
	StartDate  string
	EndDate    string
}

// CapacityValidator ensures courses sharing a location over overlapping dates never add up to more
// than the location holds. Only date ranges are compared; time of day is ignored.
type CapacityValidator struct {
	courses   capacityCourseReader
	locations locationReader
}

// NewCapacityValidator constructs the validator.
func NewCapacityValidator(courses capacityCourseReader, locations locationReader) *CapacityValidator {
	return &CapacityValidator{courses: courses, locations: locations}
}

// Validate runs the check against exec. Callers hold the location advisory lock for the duration
// of the surrounding transaction so the result stays true until commit.
func (v *CapacityValidator) Validate(ctx context.Context, exec sqlx.ExtContext, check CapacityCheck) error {
	location, err := v.locations.FindByID(ctx, exec, check.LocationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "location not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load location")
	}
	if check.Capacity > location.Capacity {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("Course capacity (%d) cannot exceed location capacity (%d)", check.Capacity, location.Capacity))
	}

	overlaps, err := v.courses.ListOverlapping(ctx, exec, check.LocationID, check.StartDate, check.EndDate, check.CourseID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load overlapping courses")
	}
	total := check.Capacity
	for _, o := range overlaps {
		total += o.Capacity
	}
	if total <= location.Capacity {
		return nil
	}

	breakdown := models.CapacityBreakdown{
		LocationID:       location.ID,
		LocationName:     location.Name,
		LocationCapacity: location.Capacity,
		RequestedStart:   check.StartDate,
		RequestedEnd:     check.EndDate,
		Requested:        check.Capacity,
		Overlapping:      overlaps,
		Total:            total,
	}
	return appErrors.WithDetails(appErrors.ErrCapacityExceeded, capacityMessage(breakdown), breakdown)
}

func capacityMessage(b models.CapacityBreakdown) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Location capacity exceeded. %s can accommodate %d students maximum. Overlapping courses:", b.LocationName, b.LocationCapacity)
	for _, o := range b.Overlapping {
		fmt.Fprintf(&sb, "\n- %s (%s to %s): %d students", o.Title, o.StartDate, o.EndDate, o.Capacity)
	}
	fmt.Fprintf(&sb, "\nTotal with your course: %d students", b.Total)
	return sb.String()
}
