package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/traininjapan/booking-api/internal/models"
)

const sessionColumns = `id, course_id, schedule_id, to_char(date, 'YYYY-MM-DD') AS date, start_time, end_time,
location_id, instructor_id, max_capacity, current_enrollment, status, created_at`

// SessionRepository persists generated course sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateBatch inserts the sessions in order, assigning ids where missing.
func (r *SessionRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, sessions []models.CourseSession) error {
	const query = `INSERT INTO course_sessions (id, course_id, schedule_id, date, start_time, end_time, location_id,
instructor_id, max_capacity, current_enrollment, status, created_at)
VALUES (:id, :course_id, :schedule_id, :date, :start_time, :end_time, :location_id,
:instructor_id, :max_capacity, :current_enrollment, :status, :created_at)`
	target := r.exec(exec)
	now := time.Now().UTC()
	for i := range sessions {
		if sessions[i].ID == "" {
			sessions[i].ID = uuid.NewString()
		}
		if sessions[i].Status == "" {
			sessions[i].Status = models.SessionStatusScheduled
		}
		if sessions[i].CreatedAt.IsZero() {
			sessions[i].CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, sessions[i]); err != nil {
			return fmt.Errorf("insert course session %s: %w", sessions[i].Date, err)
		}
	}
	return nil
}

// FindByID returns a session by id.
func (r *SessionRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseSession, error) {
	const query = `SELECT ` + sessionColumns + ` FROM course_sessions WHERE id = $1`
	var session models.CourseSession
	if err := sqlx.GetContext(ctx, r.exec(exec), &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByIDs returns the sessions matching ids ordered by date. Missing ids are simply absent.
func (r *SessionRepository) FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.CourseSession, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT ` + sessionColumns + ` FROM course_sessions WHERE id = ANY($1) ORDER BY date ASC, start_time ASC, id ASC`
	var sessions []models.CourseSession
	if err := sqlx.SelectContext(ctx, r.exec(exec), &sessions, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find course sessions: %w", err)
	}
	return sessions, nil
}

// ListByCourse returns sessions of a course ordered chronologically.
func (r *SessionRepository) ListByCourse(ctx context.Context, filter models.SessionFilter) ([]models.CourseSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM course_sessions WHERE course_id = $1`
	args := []interface{}{filter.CourseID}
	if filter.Status != "" {
		query += ` AND status = $2`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY date ASC, start_time ASC`
	var sessions []models.CourseSession
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list course sessions: %w", err)
	}
	return sessions, nil
}

// ListScheduledAtLocation returns scheduled sessions at a location within the inclusive date range.
func (r *SessionRepository) ListScheduledAtLocation(ctx context.Context, exec sqlx.ExtContext, locationID, startDate, endDate string) ([]models.CourseSession, error) {
	return r.listScheduled(ctx, exec, "location_id", locationID, startDate, endDate)
}

// ListScheduledForInstructor returns scheduled sessions taught by an instructor within the inclusive date range.
func (r *SessionRepository) ListScheduledForInstructor(ctx context.Context, exec sqlx.ExtContext, instructorID, startDate, endDate string) ([]models.CourseSession, error) {
	return r.listScheduled(ctx, exec, "instructor_id", instructorID, startDate, endDate)
}

func (r *SessionRepository) listScheduled(ctx context.Context, exec sqlx.ExtContext, column, value, startDate, endDate string) ([]models.CourseSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM course_sessions WHERE %s = $1 AND status = $2 AND date BETWEEN $3 AND $4
ORDER BY date ASC, start_time ASC`, sessionColumns, column)
	var sessions []models.CourseSession
	if err := sqlx.SelectContext(ctx, r.exec(exec), &sessions, query, value, models.SessionStatusScheduled, startDate, endDate); err != nil {
		return nil, fmt.Errorf("list scheduled sessions by %s: %w", column, err)
	}
	return sessions, nil
}

// Update applies a partial change. A capacity below the current enrollment matches no rows and
// yields sql.ErrNoRows.
func (r *SessionRepository) Update(ctx context.Context, id string, status *models.SessionStatus, maxCapacity *int) error {
	const query = `UPDATE course_sessions SET status = COALESCE($2, status), max_capacity = COALESCE($3, max_capacity)
WHERE id = $1 AND COALESCE($3, max_capacity) >= current_enrollment`
	var statusArg, capacityArg interface{}
	if status != nil {
		statusArg = string(*status)
	}
	if maxCapacity != nil {
		capacityArg = *maxCapacity
	}
	result, err := r.db.ExecContext(ctx, query, id, statusArg, capacityArg)
	if err != nil {
		return fmt.Errorf("update course session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("course session rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AdjustEnrollment moves current_enrollment by delta only when the result stays within
// [0, max_capacity]. It reports whether a row changed.
func (r *SessionRepository) AdjustEnrollment(ctx context.Context, exec sqlx.ExtContext, id string, delta int) (bool, error) {
	const query = `UPDATE course_sessions SET current_enrollment = current_enrollment + $2
WHERE id = $1 AND current_enrollment + $2 BETWEEN 0 AND max_capacity`
	result, err := r.exec(exec).ExecContext(ctx, query, id, delta)
	if err != nil {
		return false, fmt.Errorf("adjust session enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("session enrollment rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteBySchedule removes every session generated from a schedule.
func (r *SessionRepository) DeleteBySchedule(ctx context.Context, exec sqlx.ExtContext, scheduleID string) (int64, error) {
	result, err := r.exec(exec).ExecContext(ctx, `DELETE FROM course_sessions WHERE schedule_id = $1`, scheduleID)
	if err != nil {
		return 0, fmt.Errorf("delete schedule sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("schedule sessions rows affected: %w", err)
	}
	return affected, nil
}
