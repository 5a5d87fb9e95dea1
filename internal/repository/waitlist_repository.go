package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/traininjapan/booking-api/internal/models"
)

const waitlistColumns = `id, course_id, session_id, student_id, student_name, student_email, position, notified,
offer_expires_at, offer_expired, created_at`

// WaitlistRepository persists waitlist entries.
type WaitlistRepository struct {
	db *sqlx.DB
}

// NewWaitlistRepository constructs the repository.
func NewWaitlistRepository(db *sqlx.DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

func (r *WaitlistRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Insert appends an entry at the course's next waitlist sequence number. The counter on the
// course row only ever grows, so positions are never handed out twice even after the tail leaves;
// the row lock taken by the UPDATE serialises concurrent joins on one course. Returns
// sql.ErrNoRows when the course does not exist.
func (r *WaitlistRepository) Insert(ctx context.Context, entry *models.WaitlistEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `WITH seq AS (
UPDATE courses SET waitlist_seq = waitlist_seq + 1 WHERE id = $2 RETURNING waitlist_seq
)
INSERT INTO waitlist_entries (id, course_id, session_id, student_id, student_name, student_email,
position, notified, offer_expired, created_at)
SELECT $1, $2, $3, $4, $5, $6, seq.waitlist_seq, FALSE, FALSE, $7 FROM seq
RETURNING position`
	row := r.db.QueryRowxContext(ctx, query, entry.ID, entry.CourseID, entry.SessionID, entry.StudentID,
		entry.StudentName, entry.StudentEmail, entry.CreatedAt)
	if err := row.Scan(&entry.Position); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("insert waitlist entry: %w", err)
	}
	return nil
}

// ListByCourse returns entries ordered by join position.
func (r *WaitlistRepository) ListByCourse(ctx context.Context, courseID string) ([]models.WaitlistEntry, error) {
	const query = `SELECT ` + waitlistColumns + ` FROM waitlist_entries WHERE course_id = $1 ORDER BY position ASC`
	var entries []models.WaitlistEntry
	if err := r.db.SelectContext(ctx, &entries, query, courseID); err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	return entries, nil
}

// DeleteOwned removes an entry only when it belongs to studentID.
func (r *WaitlistRepository) DeleteOwned(ctx context.Context, id, studentID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM waitlist_entries WHERE id = $1 AND student_id = $2`, id, studentID)
	if err != nil {
		return fmt.Errorf("delete waitlist entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("waitlist rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// NextCandidate locks the lowest-position entry that has not been offered a seat yet.
func (r *WaitlistRepository) NextCandidate(ctx context.Context, exec sqlx.ExtContext, courseID string) (*models.WaitlistEntry, error) {
	const query = `SELECT ` + waitlistColumns + ` FROM waitlist_entries
WHERE course_id = $1 AND notified = FALSE AND offer_expired = FALSE
ORDER BY position ASC LIMIT 1 FOR UPDATE SKIP LOCKED`
	var entry models.WaitlistEntry
	if err := sqlx.GetContext(ctx, r.exec(exec), &entry, query, courseID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarkNotified records that an offer was made and when it lapses.
func (r *WaitlistRepository) MarkNotified(ctx context.Context, exec sqlx.ExtContext, id string, expiresAt time.Time) error {
	const query = `UPDATE waitlist_entries SET notified = TRUE, offer_expires_at = $2 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, expiresAt); err != nil {
		return fmt.Errorf("mark waitlist entry notified: %w", err)
	}
	return nil
}

// ListExpiredOffers returns offered entries whose window closed before now.
func (r *WaitlistRepository) ListExpiredOffers(ctx context.Context, now time.Time) ([]models.WaitlistEntry, error) {
	const query = `SELECT ` + waitlistColumns + ` FROM waitlist_entries
WHERE notified = TRUE AND offer_expired = FALSE AND offer_expires_at < $1
ORDER BY offer_expires_at ASC`
	var entries []models.WaitlistEntry
	if err := r.db.SelectContext(ctx, &entries, query, now); err != nil {
		return nil, fmt.Errorf("list expired waitlist offers: %w", err)
	}
	return entries, nil
}

// MarkExpired flags an open offer as lapsed. It reports false when another sweep got there first.
func (r *WaitlistRepository) MarkExpired(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	const query = `UPDATE waitlist_entries SET offer_expired = TRUE WHERE id = $1 AND offer_expired = FALSE`
	result, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("expire waitlist offer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("waitlist offer rows affected: %w", err)
	}
	return affected > 0, nil
}

// IsUniqueViolation reports whether err is a PostgreSQL unique_violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
