package validator

import (
	"errors"
	"testing"
	"time"

	"github.com/stemsi/classroom-client/internal/apperr"
	"github.com/stemsi/classroom-client/internal/model"
)

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct("session.login", &model.LoginRequest{Identifier: "not-an-email", Password: "secret"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := apperr.FieldsOf(err)
	if fields["identifier"] == "" {
		t.Fatalf("expected identifier field message, got %v", fields)
	}
	if _, ok := fields["password"]; ok {
		t.Fatalf("password is valid and should not be reported")
	}
}

func TestStructAcceptsValidInput(t *testing.T) {
	req := &model.CreateAssignmentRequest{
		Title:   "Ensayo",
		DueDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := Struct("feed.create_assignment", req); err != nil {
		t.Fatalf("expected valid assignment, got %v", err)
	}
}

func TestStructRequiresDueDate(t *testing.T) {
	err := Struct("feed.create_assignment", &model.CreateAssignmentRequest{Title: "Ensayo"})
	if apperr.FieldsOf(err)["due_date"] == "" {
		t.Fatalf("expected due_date to be required, got %v", err)
	}
}

func TestTranslateErrorsNonValidation(t *testing.T) {
	fields := TranslateErrors(errors.New("unexpected EOF"))
	if fields["detail"] != "unexpected EOF" {
		t.Fatalf("expected detail passthrough, got %v", fields)
	}
}
