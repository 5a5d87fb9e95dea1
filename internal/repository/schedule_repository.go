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

const scheduleColumns = `id, course_id, to_char(start_date, 'YYYY-MM-DD') AS start_date, to_char(end_date, 'YYYY-MM-DD') AS end_date,
start_time, end_time, recurrence_type, recurrence_days, recurrence_interval, created_at`

// ScheduleRepository persists course recurrence rules.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a schedule.
func (r *ScheduleRepository) Create(ctx context.Context, exec sqlx.ExtContext, schedule *models.CourseSchedule) error {
	if schedule == nil {
		return fmt.Errorf("schedule payload is nil")
	}
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO course_schedules (id, course_id, start_date, end_date, start_time, end_time, recurrence_type,
recurrence_days, recurrence_interval, created_at)
VALUES (:id, :course_id, :start_date, :end_date, :start_time, :end_time, :recurrence_type,
:recurrence_days, :recurrence_interval, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, schedule); err != nil {
		return fmt.Errorf("insert course schedule: %w", err)
	}
	return nil
}

// FindByID loads a schedule.
func (r *ScheduleRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseSchedule, error) {
	const query = `SELECT ` + scheduleColumns + ` FROM course_schedules WHERE id = $1`
	var schedule models.CourseSchedule
	if err := sqlx.GetContext(ctx, r.exec(exec), &schedule, query, id); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// ListByCourse returns schedules for a course, oldest first.
func (r *ScheduleRepository) ListByCourse(ctx context.Context, courseID string) ([]models.CourseSchedule, error) {
	const query = `SELECT ` + scheduleColumns + ` FROM course_schedules WHERE course_id = $1 ORDER BY start_date ASC, created_at ASC`
	var schedules []models.CourseSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, courseID); err != nil {
		return nil, fmt.Errorf("list course schedules: %w", err)
	}
	return schedules, nil
}

// Delete removes a schedule row. Sessions must be removed by the caller first.
func (r *ScheduleRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	result, err := r.exec(exec).ExecContext(ctx, `DELETE FROM course_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("course schedule rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
