package models

import (
	"time"

	"github.com/lib/pq"
)

// RecurrenceType selects how a schedule expands into dates.
type RecurrenceType string

const (
	RecurrenceOnce   RecurrenceType = "once"
	RecurrenceDaily  RecurrenceType = "daily"
	RecurrenceWeekly RecurrenceType = "weekly"
	RecurrenceCustom RecurrenceType = "custom"
)

// CourseSchedule is a recurrence rule attached to a course.
type CourseSchedule struct {
	ID                 string         `db:"id" json:"id"`
	CourseID           string         `db:"course_id" json:"course_id"`
	StartDate          string         `db:"start_date" json:"start_date"`
	EndDate            string         `db:"end_date" json:"end_date"`
	StartTime          string         `db:"start_time" json:"start_time"`
	EndTime            string         `db:"end_time" json:"end_time"`
	RecurrenceType     RecurrenceType `db:"recurrence_type" json:"recurrence_type"`
	RecurrenceDays     pq.Int64Array  `db:"recurrence_days" json:"recurrence_days"`
	RecurrenceInterval int            `db:"recurrence_interval" json:"recurrence_interval"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
}

// SessionStatus is the lifecycle of one concrete class meeting.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusCancelled SessionStatus = "cancelled"
	SessionStatusCompleted SessionStatus = "completed"
)

// Valid reports whether the status is known.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusCancelled, SessionStatusCompleted:
		return true
	}
	return false
}

// CourseSession is a single dated meeting generated from a schedule. Location, instructor and
// capacity are copied from the course at generation time.
type CourseSession struct {
	ID                string        `db:"id" json:"id"`
	CourseID          string        `db:"course_id" json:"course_id"`
	ScheduleID        string        `db:"schedule_id" json:"schedule_id"`
	Date              string        `db:"date" json:"date"`
	StartTime         string        `db:"start_time" json:"start_time"`
	EndTime           string        `db:"end_time" json:"end_time"`
	LocationID        string        `db:"location_id" json:"location_id"`
	InstructorID      string        `db:"instructor_id" json:"instructor_id"`
	MaxCapacity       int           `db:"max_capacity" json:"max_capacity"`
	CurrentEnrollment int           `db:"current_enrollment" json:"current_enrollment"`
	Status            SessionStatus `db:"status" json:"status"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
}

// Full reports whether the session has no seats left.
func (s CourseSession) Full() bool {
	return s.CurrentEnrollment >= s.MaxCapacity
}

// SessionFilter narrows session listings.
type SessionFilter struct {
	CourseID string
	Status   SessionStatus
}

// SessionConflict is an existing scheduled session that overlaps a proposed slot.
type SessionConflict struct {
	SessionID    string `json:"session_id"`
	CourseID     string `json:"course_id"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	LocationID   string `json:"location_id,omitempty"`
	InstructorID string `json:"instructor_id,omitempty"`
}

// ConflictReport groups overlaps per resource. It is advisory only.
type ConflictReport struct {
	LocationConflicts   []SessionConflict `json:"location_conflicts"`
	InstructorConflicts []SessionConflict `json:"instructor_conflicts"`
	HasConflicts        bool              `json:"has_conflicts"`
}

// GeneratedSchedule is the result of expanding a schedule into sessions.
type GeneratedSchedule struct {
	ScheduleID      string          `json:"schedule_id"`
	SessionsCreated int             `json:"sessions_created"`
	SessionIDs      []string        `json:"session_ids"`
	Conflicts       *ConflictReport `json:"conflicts,omitempty"`
}
