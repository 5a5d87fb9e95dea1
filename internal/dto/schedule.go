package dto

import "github.com/traininjapan/booking-api/internal/models"

// ScheduleRequest describes a recurrence rule to expand into sessions.
type ScheduleRequest struct {
	StartDate          string                `json:"start_date" validate:"required"`
	EndDate            string                `json:"end_date" validate:"required"`
	StartTime          string                `json:"start_time" validate:"required"`
	EndTime            string                `json:"end_time" validate:"required"`
	RecurrenceType     models.RecurrenceType `json:"recurrence_type" validate:"required,oneof=once daily weekly custom"`
	RecurrenceDays     []int                 `json:"recurrence_days" validate:"omitempty,dive,min=1,max=7"`
	RecurrenceInterval *int                  `json:"recurrence_interval,omitempty"`
}

// SessionPatch is a partial session update. Nil fields are left untouched.
type SessionPatch struct {
	Status      *models.SessionStatus `json:"status,omitempty"`
	MaxCapacity *int                  `json:"max_capacity,omitempty" validate:"omitempty,min=0"`
}

// ConflictQuery asks whether a time window collides with scheduled sessions at a location or
// for an instructor. Dates narrows the range to specific days when set.
type ConflictQuery struct {
	LocationID   string   `json:"location_id,omitempty"`
	InstructorID string   `json:"instructor_id,omitempty"`
	StartDate    string   `json:"start_date" validate:"required"`
	EndDate      string   `json:"end_date" validate:"required"`
	StartTime    string   `json:"start_time" validate:"required"`
	EndTime      string   `json:"end_time" validate:"required"`
	Dates        []string `json:"dates,omitempty"`
}
