package model

import "time"

// Announcement is a post on a class stream. Feeds order them newest first.
type Announcement struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateAnnouncementRequest is the payload for posting an announcement.
type CreateAnnouncementRequest struct {
	Content string `json:"content" binding:"required,min=1,max=5000"`
}
