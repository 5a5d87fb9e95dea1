package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/traininjapan/booking-api/internal/models"
)

// AvailabilityRepository persists instructor availability blocks.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// Create inserts a block.
func (r *AvailabilityRepository) Create(ctx context.Context, block *models.InstructorAvailability) error {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	if block.CreatedAt.IsZero() {
		block.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO instructor_availability (id, instructor_id, day_of_week, start_time, end_time, is_available, created_at)
VALUES (:id, :instructor_id, :day_of_week, :start_time, :end_time, :is_available, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, block); err != nil {
		return fmt.Errorf("create availability: %w", err)
	}
	return nil
}

// ListByInstructor returns blocks ordered by weekday and start time.
func (r *AvailabilityRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.InstructorAvailability, error) {
	const query = `SELECT id, instructor_id, day_of_week, start_time, end_time, is_available, created_at
FROM instructor_availability WHERE instructor_id = $1 ORDER BY day_of_week ASC, start_time ASC`
	var blocks []models.InstructorAvailability
	if err := r.db.SelectContext(ctx, &blocks, query, instructorID); err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return blocks, nil
}

// FindByID returns a block by id.
func (r *AvailabilityRepository) FindByID(ctx context.Context, id string) (*models.InstructorAvailability, error) {
	const query = `SELECT id, instructor_id, day_of_week, start_time, end_time, is_available, created_at
FROM instructor_availability WHERE id = $1`
	var block models.InstructorAvailability
	if err := sqlx.GetContext(ctx, r.db, &block, query, id); err != nil {
		return nil, err
	}
	return &block, nil
}

// Delete removes a block.
func (r *AvailabilityRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM instructor_availability WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete availability: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("availability rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
