package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/traininjapan/booking-api/internal/models"
)

const courseColumns = `id, school_id, location_id, instructor_id, title, description, style, category, experience_level,
capacity, price, currency, to_char(start_date, 'YYYY-MM-DD') AS start_date, to_char(end_date, 'YYYY-MM-DD') AS end_date,
daily_start_time, daily_end_time, status, instructor_confirmed, created_at, updated_at`

// CourseRepository persists courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns courses matching the filter with the total count.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var conditions []string
	var args []interface{}

	statuses := filter.Statuses
	if len(statuses) == 0 {
		statuses = []models.CourseStatus{models.CourseStatusConfirmed, models.CourseStatusActive}
	}
	conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)+1))
	args = append(args, pq.Array(statusStrings(statuses)))

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.LocationID != "" {
		conditions = append(conditions, fmt.Sprintf("location_id = $%d", len(args)+1))
		args = append(args, filter.LocationID)
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.Style != "" {
		conditions = append(conditions, fmt.Sprintf("style = $%d", len(args)+1))
		args = append(args, filter.Style)
	}
	if filter.ExperienceLevel != "" {
		conditions = append(conditions, fmt.Sprintf("experience_level = $%d", len(args)+1))
		args = append(args, filter.ExperienceLevel)
	}
	clause := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM courses%s ORDER BY start_date ASC, title ASC LIMIT %d OFFSET %d`, courseColumns, clause, size, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM courses`+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course by id.
func (r *CourseRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	var course models.Course
	if err := sqlx.GetContext(ctx, r.exec(exec), &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// CountBySchool returns how many courses a school has created.
func (r *CourseRepository) CountBySchool(ctx context.Context, exec sqlx.ExtContext, schoolID string) (int, error) {
	var total int
	if err := sqlx.GetContext(ctx, r.exec(exec), &total, `SELECT COUNT(*) FROM courses WHERE school_id = $1`, schoolID); err != nil {
		return 0, fmt.Errorf("count school courses: %w", err)
	}
	return total, nil
}

// ListOverlapping returns capacity-holding courses at a location whose date range intersects
// [startDate, endDate] inclusively. excludeID skips the course being edited.
func (r *CourseRepository) ListOverlapping(ctx context.Context, exec sqlx.ExtContext, locationID, startDate, endDate, excludeID string) ([]models.CapacityOverlap, error) {
	query := `SELECT id, title, to_char(start_date, 'YYYY-MM-DD') AS start_date, to_char(end_date, 'YYYY-MM-DD') AS end_date, capacity
FROM courses WHERE location_id = $1 AND status = ANY($2) AND start_date <= $3 AND end_date >= $4`
	args := []interface{}{locationID, pq.Array(statusStrings(models.CapacityHoldingStatuses)), endDate, startDate}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " ORDER BY start_date ASC"
	var overlaps []models.CapacityOverlap
	if err := sqlx.SelectContext(ctx, r.exec(exec), &overlaps, query, args...); err != nil {
		return nil, fmt.Errorf("list overlapping courses: %w", err)
	}
	return overlaps, nil
}

// Create inserts a course.
func (r *CourseRepository) Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, school_id, location_id, instructor_id, title, description, style, category,
experience_level, capacity, price, currency, start_date, end_date, daily_start_time, daily_end_time, status,
instructor_confirmed, created_at, updated_at)
VALUES (:id, :school_id, :location_id, :instructor_id, :title, :description, :style, :category,
:experience_level, :capacity, :price, :currency, :start_date, :end_date, :daily_start_time, :daily_end_time, :status,
:instructor_confirmed, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update overwrites the editable fields of a course.
func (r *CourseRepository) Update(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET location_id = :location_id, instructor_id = :instructor_id, title = :title,
description = :description, style = :style, category = :category, experience_level = :experience_level,
capacity = :capacity, price = :price, currency = :currency, start_date = :start_date, end_date = :end_date,
daily_start_time = :daily_start_time, daily_end_time = :daily_end_time, updated_at = :updated_at WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("course rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus moves a course through its approval lifecycle.
func (r *CourseRepository) UpdateStatus(ctx context.Context, id string, status models.CourseStatus, instructorConfirmed bool) error {
	const query = `UPDATE courses SET status = $2, instructor_confirmed = $3, updated_at = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, instructorConfirmed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update course status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("course status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a course.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("course rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func statusStrings(statuses []models.CourseStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
