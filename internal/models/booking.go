package models

import (
	"time"

	"github.com/lib/pq"
)

// BookingStatus tracks a booking through confirmation and cancellation.
type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusWaitlisted BookingStatus = "waitlisted"
	BookingStatusCancelled  BookingStatus = "cancelled"
	BookingStatusCompleted  BookingStatus = "completed"
)

// PaymentStatus is owned by the external payment collaborator.
type PaymentStatus string

const (
	PaymentStatusUnpaid    PaymentStatus = "unpaid"
	PaymentStatusInitiated PaymentStatus = "initiated"
	PaymentStatusPaid      PaymentStatus = "paid"
)

// Booking holds seats in one or more sessions of a course, or the whole course when SessionIDs is empty.
type Booking struct {
	ID              string         `db:"id" json:"id"`
	CourseID        string         `db:"course_id" json:"course_id"`
	UserID          string         `db:"user_id" json:"user_id"`
	StudentName     string         `db:"student_name" json:"student_name"`
	StudentEmail    string         `db:"student_email" json:"student_email"`
	StudentPhone    *string        `db:"student_phone" json:"student_phone,omitempty"`
	Message         *string        `db:"message" json:"message,omitempty"`
	Status          BookingStatus  `db:"status" json:"status"`
	PaymentStatus   PaymentStatus  `db:"payment_status" json:"payment_status"`
	SessionIDs      pq.StringArray `db:"session_ids" json:"session_ids"`
	TotalSessions   int            `db:"total_sessions" json:"total_sessions"`
	PricePerSession *float64       `db:"price_per_session" json:"price_per_session,omitempty"`
	Amount          *float64       `db:"amount" json:"amount,omitempty"`
	BookingDate     time.Time      `db:"booking_date" json:"booking_date"`
}

// SessionBookingResult summarises a successful session booking.
type SessionBookingResult struct {
	BookingID      string  `json:"booking_id"`
	TotalPrice     float64 `json:"total_price"`
	SessionsBooked int     `json:"sessions_booked"`
}
