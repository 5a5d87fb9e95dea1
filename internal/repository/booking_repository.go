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

const bookingColumns = `id, course_id, user_id, student_name, student_email, student_phone, message, status,
payment_status, session_ids, total_sessions, price_per_session, amount, booking_date`

// BookingRepository persists bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a booking.
func (r *BookingRepository) Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.BookingDate.IsZero() {
		booking.BookingDate = time.Now().UTC()
	}
	if booking.Status == "" {
		booking.Status = models.BookingStatusPending
	}
	if booking.PaymentStatus == "" {
		booking.PaymentStatus = models.PaymentStatusUnpaid
	}
	if booking.SessionIDs == nil {
		booking.SessionIDs = pq.StringArray{}
	}
	const query = `INSERT INTO bookings (id, course_id, user_id, student_name, student_email, student_phone, message, status,
payment_status, session_ids, total_sessions, price_per_session, amount, booking_date)
VALUES (:id, :course_id, :user_id, :student_name, :student_email, :student_phone, :message, :status,
:payment_status, :session_ids, :total_sessions, :price_per_session, :amount, :booking_date)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// FindByID returns a booking by id.
func (r *BookingRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error) {
	const query = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	var booking models.Booking
	if err := sqlx.GetContext(ctx, r.exec(exec), &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindByIDForUpdate row-locks a booking for the rest of the transaction.
func (r *BookingRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Booking, error) {
	const query = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	var booking models.Booking
	if err := sqlx.GetContext(ctx, r.exec(exec), &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// UpdateStatus sets the booking status.
func (r *BookingRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.BookingStatus) error {
	result, err := r.exec(exec).ExecContext(ctx, `UPDATE bookings SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("booking rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByUser returns the bookings made by a user, newest first.
func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	const query = `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY booking_date DESC`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, userID); err != nil {
		return nil, fmt.Errorf("list user bookings: %w", err)
	}
	return bookings, nil
}

// ListBySchool returns bookings for every course of a school, newest first.
func (r *BookingRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.Booking, error) {
	query := `SELECT ` + prefixColumns("b", bookingColumns) + ` FROM bookings b
JOIN courses c ON c.id = b.course_id WHERE c.school_id = $1 ORDER BY b.booking_date DESC`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, schoolID); err != nil {
		return nil, fmt.Errorf("list school bookings: %w", err)
	}
	return bookings, nil
}

// ListBySession returns non-cancelled bookings holding a seat in the session.
func (r *BookingRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Booking, error) {
	const query = `SELECT ` + bookingColumns + ` FROM bookings WHERE $1 = ANY(session_ids) AND status <> $2
ORDER BY booking_date ASC`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, sessionID, models.BookingStatusCancelled); err != nil {
		return nil, fmt.Errorf("list session bookings: %w", err)
	}
	return bookings, nil
}

// CountActiveByCourse counts pending and confirmed bookings of a course.
func (r *BookingRepository) CountActiveByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM bookings WHERE course_id = $1 AND status = ANY($2)`
	statuses := pq.Array([]string{string(models.BookingStatusPending), string(models.BookingStatusConfirmed)})
	var total int
	if err := sqlx.GetContext(ctx, r.exec(exec), &total, query, courseID, statuses); err != nil {
		return 0, fmt.Errorf("count course bookings: %w", err)
	}
	return total, nil
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
