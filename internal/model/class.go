package model

import "time"

// Class represents a class group taught by one teacher.
type Class struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Section    string    `json:"section"`
	Subject    string    `json:"subject"`
	Room       string    `json:"room"`
	Color      string    `json:"color"`
	TeacherID  string    `json:"teacher_id"`
	StudentIDs []string  `json:"student_ids"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateClassRequest is the payload for creating a class.
type CreateClassRequest struct {
	Name    string `json:"name" binding:"required,min=1,max=100"`
	Section string `json:"section" binding:"max=50"`
	Subject string `json:"subject" binding:"required,max=100"`
	Room    string `json:"room" binding:"max=50"`
	Color   string `json:"color" binding:"omitempty,hexcolor"`
}

// EnrollRequest adds a student to a class.
type EnrollRequest struct {
	StudentID string `json:"student_id" binding:"required,max=128"`
}
