package feed

import (
	"time"

	"github.com/stemsi/classroom-client/internal/docstore"
	"github.com/stemsi/classroom-client/internal/model"
)

func announcementFields(a *model.Announcement) map[string]any {
	return map[string]any{
		"author_id": a.AuthorID,
		"content":   a.Content,
	}
}

func announcementFromRecord(classID string, r *docstore.Record) model.Announcement {
	return model.Announcement{
		ID:        r.ID,
		ClassID:   classID,
		AuthorID:  r.String("author_id"),
		Content:   r.String("content"),
		CreatedAt: r.CreateTime,
		UpdatedAt: r.UpdateTime,
	}
}

// due_date is stored as unix milliseconds so it orders numerically.
func assignmentFields(a *model.Assignment) map[string]any {
	return map[string]any{
		"title":       a.Title,
		"description": a.Description,
		"due_date":    a.DueDate.UnixMilli(),
		"points":      a.Points,
	}
}

func assignmentFromRecord(classID string, r *docstore.Record) model.Assignment {
	return model.Assignment{
		ID:          r.ID,
		ClassID:     classID,
		Title:       r.String("title"),
		Description: r.String("description"),
		DueDate:     time.UnixMilli(r.Int64("due_date")).UTC(),
		Points:      int(r.Int64("points")),
		CreatedAt:   r.CreateTime,
		UpdatedAt:   r.UpdateTime,
	}
}
