package classroom

import (
	"github.com/stemsi/classroom-client/internal/docstore"
	"github.com/stemsi/classroom-client/internal/model"
)

// UserFields is the stored shape of a user profile under users/<uid>.
func UserFields(u *model.User) map[string]any {
	subjects := make([]string, 0, len(u.Subjects))
	for _, s := range u.Subjects {
		subjects = append(subjects, string(s))
	}
	departments := u.Departments
	if departments == nil {
		departments = []string{}
	}
	return map[string]any{
		"username":    u.Username,
		"email":       u.Email,
		"folio":       u.Folio,
		"curp":        u.CURP,
		"departments": departments,
		"role":        string(u.Role),
		"subjects":    subjects,
	}
}

// UserFromRecord maps a users/<uid> record. Unknown roles fall back to student.
func UserFromRecord(r *docstore.Record) *model.User {
	u := &model.User{
		ID:          r.ID,
		Username:    r.String("username"),
		Email:       r.String("email"),
		Folio:       r.String("folio"),
		CURP:        r.String("curp"),
		Departments: r.Strings("departments"),
		Role:        model.Role(r.String("role")),
		CreatedAt:   r.CreateTime,
		UpdatedAt:   r.UpdateTime,
	}
	if !u.Role.Valid() {
		u.Role = model.RoleStudent
	}
	for _, s := range r.Strings("subjects") {
		u.Subjects = append(u.Subjects, model.Subject(s))
	}
	return u
}

// ClassFields is the stored shape of a class under classes/<id>.
func ClassFields(c *model.Class) map[string]any {
	students := c.StudentIDs
	if students == nil {
		students = []string{}
	}
	return map[string]any{
		"name":        c.Name,
		"section":     c.Section,
		"subject":     c.Subject,
		"room":        c.Room,
		"color":       c.Color,
		"teacher_id":  c.TeacherID,
		"student_ids": students,
	}
}

// ClassFromRecord maps a classes/<id> record.
func ClassFromRecord(r *docstore.Record) *model.Class {
	return &model.Class{
		ID:         r.ID,
		Name:       r.String("name"),
		Section:    r.String("section"),
		Subject:    r.String("subject"),
		Room:       r.String("room"),
		Color:      r.String("color"),
		TeacherID:  r.String("teacher_id"),
		StudentIDs: r.Strings("student_ids"),
		CreatedAt:  r.CreateTime,
		UpdatedAt:  r.UpdateTime,
	}
}
