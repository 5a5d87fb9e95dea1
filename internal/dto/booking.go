package dto

// StudentInfo is the contact data attached to a booking.
type StudentInfo struct {
	StudentName  string  `json:"student_name" validate:"required,max=200"`
	StudentEmail string  `json:"student_email" validate:"required,email"`
	StudentPhone *string `json:"student_phone,omitempty" validate:"omitempty,max=50"`
	Message      *string `json:"message,omitempty" validate:"omitempty,max=2000"`
}

// BookSessionsRequest books seats in specific sessions of one course.
type BookSessionsRequest struct {
	SessionIDs []string `json:"session_ids"`
	StudentInfo
}

// CourseBookingRequest books a whole course.
type CourseBookingRequest struct {
	StudentInfo
}
