package model

import "time"

// Role is the platform role carried on a user. It never changes after registration.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// Subject is a subject a teacher can teach.
type Subject string

const (
	SubjectSocialSciences          Subject = "CIENCIAS SOCIALES"
	SubjectEnglish                 Subject = "ENGLISH"
	SubjectChemicalReactions       Subject = "REACCIONES QUÍMICAS"
	SubjectOrientation             Subject = "Orientación"
	SubjectHistoricalConsciousness Subject = "Conciencia Histórica"
	SubjectSelectedMathTopics      Subject = "TEMAS SELECTOS DE MATEMATICAS"
	SubjectProgramming             Subject = "Programación"
)

// Subjects lists every known subject in display order.
var Subjects = []Subject{
	SubjectSocialSciences,
	SubjectEnglish,
	SubjectChemicalReactions,
	SubjectOrientation,
	SubjectHistoricalConsciousness,
	SubjectSelectedMathTopics,
	SubjectProgramming,
}

// Valid reports whether s is a known subject.
func (s Subject) Valid() bool {
	for _, known := range Subjects {
		if s == known {
			return true
		}
	}
	return false
}

// User is a platform user (student, teacher or admin).
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Folio       string    `json:"folio"`
	CURP        string    `json:"curp"`
	Departments []string  `json:"departments"`
	Role        Role      `json:"role"`
	Subjects    []Subject `json:"subjects,omitempty"` // Teacher only
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LoginRequest is the payload for signing in.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required,email,max=255"`
	Password   string `json:"password" binding:"required,min=1,max=128"`
}

// RegisterRequest is the payload for creating a new account.
type RegisterRequest struct {
	Username    string    `json:"username" binding:"required,min=3,max=50"`
	Email       string    `json:"email" binding:"required,email,max=255"`
	Folio       string    `json:"folio" binding:"required,min=1,max=30"`
	CURP        string    `json:"curp" binding:"required,len=18,alphanum"`
	Departments []string  `json:"departments" binding:"omitempty,dive,required,max=100"`
	Password    string    `json:"password" binding:"required,min=6,max=128"`
	Role        Role      `json:"role" binding:"required,oneof=student teacher admin"`
	Subjects    []Subject `json:"subjects" binding:"omitempty,dive,required"`
}

// PasswordResetRequest starts the recovery flow.
type PasswordResetRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email,max=255"`
}

// VerifyResetCodeRequest carries the one-time recovery code.
type VerifyResetCodeRequest struct {
	Code string `json:"code" binding:"required,len=4,number"`
}

// NewPasswordRequest completes the recovery flow.
type NewPasswordRequest struct {
	Password string `json:"password" binding:"required,min=6,max=128"`
}
