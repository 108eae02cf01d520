package model

import "time"

// DefaultAssignmentPoints is applied when an assignment is created without points.
const DefaultAssignmentPoints = 100

// Assignment is class work with a due date. Feeds order them by due date ascending.
type Assignment struct {
	ID          string    `json:"id"`
	ClassID     string    `json:"class_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
	Points      int       `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateAssignmentRequest is the payload for creating an assignment.
type CreateAssignmentRequest struct {
	Title       string    `json:"title" binding:"required,min=1,max=200"`
	Description string    `json:"description" binding:"max=5000"`
	DueDate     time.Time `json:"due_date" binding:"required"`
	Points      int       `json:"points" binding:"min=0,max=1000"`
}
