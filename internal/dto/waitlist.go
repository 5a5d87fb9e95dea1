package dto

// JoinWaitlistRequest adds the caller to a course waitlist.
type JoinWaitlistRequest struct {
	StudentName  string  `json:"student_name" validate:"required,max=200"`
	StudentEmail string  `json:"student_email" validate:"required,email"`
	SessionID    *string `json:"session_id,omitempty"`
}

// JoinWaitlistResponse reports the assigned join position.
type JoinWaitlistResponse struct {
	WaitlistID string `json:"waitlist_id"`
	Position   int    `json:"position"`
}
