package dto

// CourseRequest creates or replaces a course.
type CourseRequest struct {
	LocationID      string  `json:"location_id" validate:"required"`
	InstructorID    string  `json:"instructor_id" validate:"required"`
	Title           string  `json:"title" validate:"required,max=200"`
	Description     string  `json:"description"`
	Style           string  `json:"style"`
	Category        string  `json:"category"`
	ExperienceLevel string  `json:"experience_level"`
	Capacity        int     `json:"capacity" validate:"required,min=1"`
	Price           float64 `json:"price" validate:"min=0"`
	Currency        string  `json:"currency" validate:"omitempty,len=3"`
	StartDate       string  `json:"start_date" validate:"required"`
	EndDate         string  `json:"end_date" validate:"required"`
	DailyStartTime  string  `json:"daily_start_time"`
	DailyEndTime    string  `json:"daily_end_time"`
}

// CourseListQuery are the supported listing filters.
type CourseListQuery struct {
	SchoolID        string `form:"school_id"`
	LocationID      string `form:"location_id"`
	InstructorID    string `form:"instructor_id"`
	Style           string `form:"style"`
	ExperienceLevel string `form:"experience_level"`
	Page            int    `form:"page"`
	PageSize        int    `form:"page_size"`
}
