// Package classroom reads and maintains classes, their rosters and user profiles.
package classroom

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stemsi/classroom-client/internal/apperr"
	"github.com/stemsi/classroom-client/internal/docstore"
	"github.com/stemsi/classroom-client/internal/model"
	"github.com/stemsi/classroom-client/internal/validator"
)

// Documents hands out the document store once it is available.
type Documents interface {
	Documents(ctx context.Context) (docstore.Store, error)
}

// Directory is the class directory over the document store.
type Directory struct {
	docs Documents
	log  zerolog.Logger
}

// NewDirectory creates a Directory.
func NewDirectory(docs Documents, log zerolog.Logger) *Directory {
	return &Directory{docs: docs, log: log.With().Str("component", "classroom").Logger()}
}

var newestFirst = docstore.OrderBy{Field: docstore.CreateTimeField, Desc: true}

// UserClasses lists the classes a user teaches (teachers) or is enrolled in
// (everyone else), newest first.
func (d *Directory) UserClasses(ctx context.Context, user *model.User) ([]model.Class, error) {
	store, err := d.docs.Documents(ctx)
	if err != nil {
		return nil, err
	}

	filter := docstore.Filter{Field: "student_ids", Op: docstore.OpArrayContains, Value: user.ID}
	if user.Role == model.RoleTeacher {
		filter = docstore.Filter{Field: "teacher_id", Op: docstore.OpEqual, Value: user.ID}
	}
	records, err := store.QueryWhere(ctx, docstore.ClassesPath, filter, newestFirst)
	if err != nil {
		return nil, fmt.Errorf("query user classes: %w", err)
	}

	classes := make([]model.Class, 0, len(records))
	for i := range records {
		classes = append(classes, *ClassFromRecord(&records[i]))
	}
	return classes, nil
}

// ClassByID returns the class or CLASS_NOT_FOUND.
func (d *Directory) ClassByID(ctx context.Context, id string) (*model.Class, error) {
	store, err := d.docs.Documents(ctx)
	if err != nil {
		return nil, err
	}
	return classByID(ctx, store, id)
}

func classByID(ctx context.Context, store docstore.Store, id string) (*model.Class, error) {
	if id == "" {
		return nil, apperr.New(apperr.CodeClassNotFound, "classroom.class_by_id", nil)
	}
	r, err := store.GetDocument(ctx, docstore.ClassesPath, id)
	if err != nil {
		return nil, fmt.Errorf("get class: %w", err)
	}
	if r == nil {
		return nil, apperr.New(apperr.CodeClassNotFound, "classroom.class_by_id", fmt.Errorf("class %s", id))
	}
	return ClassFromRecord(r), nil
}

// Students returns the profiles of a class's students. Students whose profile
// is missing are skipped.
func (d *Directory) Students(ctx context.Context, classID string) ([]model.User, error) {
	store, err := d.docs.Documents(ctx)
	if err != nil {
		return nil, err
	}
	class, err := classByID(ctx, store, classID)
	if err != nil {
		return nil, err
	}

	students := make([]model.User, 0, len(class.StudentIDs))
	for _, uid := range class.StudentIDs {
		r, err := store.GetDocument(ctx, docstore.UsersPath, uid)
		if err != nil {
			return nil, fmt.Errorf("get student %s: %w", uid, err)
		}
		if r == nil {
			d.log.Warn().Str("class_id", classID).Str("uid", uid).Msg("Enrolled student has no profile")
			continue
		}
		students = append(students, *UserFromRecord(r))
	}
	return students, nil
}

// Enroll adds a student to a class. Enrolling twice is a no-op.
func (d *Directory) Enroll(ctx context.Context, classID, studentID string) error {
	const op = "classroom.enroll"
	if studentID == "" {
		return apperr.Validation(op, map[string]string{"student_id": "student_id is a required field"})
	}
	store, err := d.docs.Documents(ctx)
	if err != nil {
		return err
	}
	class, err := classByID(ctx, store, classID)
	if err != nil {
		return err
	}
	profile, err := store.GetDocument(ctx, docstore.UsersPath, studentID)
	if err != nil {
		return fmt.Errorf("get student: %w", err)
	}
	if profile == nil {
		return apperr.New(apperr.CodeUserNotFound, op, fmt.Errorf("user %s", studentID))
	}

	for _, id := range class.StudentIDs {
		if id == studentID {
			return nil
		}
	}
	students := append(class.StudentIDs, studentID)
	if err := store.UpdateDocument(ctx, docstore.ClassesPath, classID, map[string]any{"student_ids": students}); err != nil {
		return fmt.Errorf("update roster: %w", err)
	}
	d.log.Info().Str("class_id", classID).Str("uid", studentID).Msg("Student enrolled")
	return nil
}

// CreateClass creates a class taught by teacher.
func (d *Directory) CreateClass(ctx context.Context, teacher *model.User, req model.CreateClassRequest) (*model.Class, error) {
	const op = "classroom.create_class"
	if err := validator.Struct(op, &req); err != nil {
		return nil, err
	}
	store, err := d.docs.Documents(ctx)
	if err != nil {
		return nil, err
	}

	class := &model.Class{
		Name:       req.Name,
		Section:    req.Section,
		Subject:    req.Subject,
		Room:       req.Room,
		Color:      req.Color,
		TeacherID:  teacher.ID,
		StudentIDs: []string{},
	}
	id, err := store.CreateDocument(ctx, docstore.ClassesPath, ClassFields(class))
	if err != nil {
		return nil, fmt.Errorf("create class: %w", err)
	}
	return classByID(ctx, store, id)
}
