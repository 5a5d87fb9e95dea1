package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// AcquireXactLock takes a transaction-scoped advisory lock keyed by the hash of key. The lock is
// released when the surrounding transaction commits or rolls back.
func AcquireXactLock(ctx context.Context, exec sqlx.ExtContext, key string) error {
	const query = `SELECT pg_advisory_xact_lock(hashtext($1))`
	if _, err := exec.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("acquire advisory lock %s: %w", key, err)
	}
	return nil
}

// LocationLockKey namespaces advisory locks guarding location capacity.
func LocationLockKey(locationID string) string {
	return "location:" + locationID
}

// CourseLockKey namespaces advisory locks guarding whole-course bookings and waitlist promotion.
func CourseLockKey(courseID string) string {
	return "course:" + courseID
}
