package models

import "time"

// CourseStatus tracks the approval lifecycle of a course.
type CourseStatus string

const (
	CourseStatusPending              CourseStatus = "pending"
	CourseStatusPendingFirstApproval CourseStatus = "pending_first_approval"
	CourseStatusPendingInstructor    CourseStatus = "pending_instructor"
	CourseStatusConfirmed            CourseStatus = "confirmed"
	CourseStatusActive               CourseStatus = "active"
	CourseStatusCancelled            CourseStatus = "cancelled"
)

// CapacityHoldingStatuses are the statuses whose capacity counts against a location.
var CapacityHoldingStatuses = []CourseStatus{
	CourseStatusConfirmed,
	CourseStatusActive,
	CourseStatusPendingFirstApproval,
}

// Bookable reports whether students may book the course.
func (s CourseStatus) Bookable() bool {
	return s == CourseStatusConfirmed || s == CourseStatusActive
}

// Course is a school's offering held at one location by one instructor over a date range.
type Course struct {
	ID                  string       `db:"id" json:"id"`
	SchoolID            string       `db:"school_id" json:"school_id"`
	LocationID          string       `db:"location_id" json:"location_id"`
	InstructorID        string       `db:"instructor_id" json:"instructor_id"`
	Title               string       `db:"title" json:"title"`
	Description         string       `db:"description" json:"description"`
	Style               string       `db:"style" json:"style"`
	Category            string       `db:"category" json:"category"`
	ExperienceLevel     string       `db:"experience_level" json:"experience_level"`
	Capacity            int          `db:"capacity" json:"capacity"`
	Price               float64      `db:"price" json:"price"`
	Currency            string       `db:"currency" json:"currency"`
	StartDate           string       `db:"start_date" json:"start_date"`
	EndDate             string       `db:"end_date" json:"end_date"`
	DailyStartTime      string       `db:"daily_start_time" json:"daily_start_time"`
	DailyEndTime        string       `db:"daily_end_time" json:"daily_end_time"`
	Status              CourseStatus `db:"status" json:"status"`
	InstructorConfirmed bool         `db:"instructor_confirmed" json:"instructor_confirmed"`
	CreatedAt           time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time    `db:"updated_at" json:"updated_at"`
}

// CourseFilter narrows course listings. Empty Statuses means bookable courses only.
type CourseFilter struct {
	SchoolID        string
	LocationID      string
	InstructorID    string
	Style           string
	ExperienceLevel string
	Statuses        []CourseStatus
	Page            int
	PageSize        int
}

// CapacityOverlap describes an existing course sharing a location during the requested dates.
type CapacityOverlap struct {
	CourseID  string `db:"id" json:"course_id"`
	Title     string `db:"title" json:"title"`
	StartDate string `db:"start_date" json:"start_date"`
	EndDate   string `db:"end_date" json:"end_date"`
	Capacity  int    `db:"capacity" json:"capacity"`
}

// CapacityBreakdown is returned to clients when a location would be overbooked.
type CapacityBreakdown struct {
	LocationID       string            `json:"location_id"`
	LocationName     string            `json:"location_name"`
	LocationCapacity int               `json:"location_capacity"`
	RequestedStart   string            `json:"requested_start"`
	RequestedEnd     string            `json:"requested_end"`
	Requested        int               `json:"requested"`
	Overlapping      []CapacityOverlap `json:"overlapping"`
	Total            int               `json:"total"`
}
