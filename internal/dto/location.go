package dto

// LocationRequest creates or replaces a location.
type LocationRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Address     string  `json:"address"`
	City        string  `json:"city"`
	Prefecture  string  `json:"prefecture"`
	Capacity    int     `json:"capacity" validate:"required,min=1"`
	Description *string `json:"description,omitempty"`
}

// InstructorRequest creates or replaces an instructor.
type InstructorRequest struct {
	Name      string  `json:"name" validate:"required,max=200"`
	Email     string  `json:"email" validate:"required,email"`
	Phone     *string `json:"phone,omitempty"`
	Rank      *string `json:"rank,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	Available *bool   `json:"available,omitempty"`
}

// AvailabilityRequest declares a weekly availability block.
type AvailabilityRequest struct {
	DayOfWeek   int    `json:"day_of_week" validate:"required,min=1,max=7"`
	StartTime   string `json:"start_time" validate:"required"`
	EndTime     string `json:"end_time" validate:"required"`
	IsAvailable *bool  `json:"is_available,omitempty"`
}
