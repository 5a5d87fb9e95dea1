package models

import "time"

// WaitlistEntry is a student's place in line for a full course. Position records join order
// and is never reused; Rank is the display order among the entries still present.
type WaitlistEntry struct {
	ID             string     `db:"id" json:"id"`
	CourseID       string     `db:"course_id" json:"course_id"`
	SessionID      *string    `db:"session_id" json:"session_id,omitempty"`
	StudentID      string     `db:"student_id" json:"student_id"`
	StudentName    string     `db:"student_name" json:"student_name"`
	StudentEmail   string     `db:"student_email" json:"student_email"`
	Position       int        `db:"position" json:"position"`
	Rank           int        `db:"-" json:"rank"`
	Notified       bool       `db:"notified" json:"notified"`
	OfferExpiresAt *time.Time `db:"offer_expires_at" json:"offer_expires_at,omitempty"`
	OfferExpired   bool       `db:"offer_expired" json:"offer_expired"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// WaitlistOffer is the notification payload sent to a promoted student.
type WaitlistOffer struct {
	WaitlistID   string    `json:"waitlist_id"`
	CourseID     string    `json:"course_id"`
	CourseTitle  string    `json:"course_title"`
	StudentName  string    `json:"student_name"`
	StudentEmail string    `json:"student_email"`
	ExpiresAt    time.Time `json:"expires_at"`
	ClaimToken   string    `json:"-"`
}
