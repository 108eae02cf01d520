package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/classroom-client/internal/classroom"
	"github.com/stemsi/classroom-client/internal/middleware"
	"github.com/stemsi/classroom-client/internal/model"
	"github.com/stemsi/classroom-client/internal/response"
	"github.com/stemsi/classroom-client/internal/validator"
)

// ClassHandler handles class directory endpoints.
type ClassHandler struct {
	dir *classroom.Directory
}

// NewClassHandler creates a new ClassHandler.
func NewClassHandler(dir *classroom.Directory) *ClassHandler {
	return &ClassHandler{dir: dir}
}

// List godoc
// GET /api/v1/classes
// Lists the classes the user teaches or attends, newest first.
func (h *ClassHandler) List(c *gin.Context) {
	classes, err := h.dir.UserClasses(c.Request.Context(), middleware.GetUser(c))
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, classes)
}

// Get godoc
// GET /api/v1/classes/:class_id
func (h *ClassHandler) Get(c *gin.Context) {
	class, err := h.dir.ClassByID(c.Request.Context(), c.Param("class_id"))
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, class)
}

// Students godoc
// GET /api/v1/classes/:class_id/students
func (h *ClassHandler) Students(c *gin.Context) {
	students, err := h.dir.Students(c.Request.Context(), c.Param("class_id"))
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, students)
}

// Create godoc
// POST /api/v1/classes
// Creates a class taught by the signed-in teacher.
func (h *ClassHandler) Create(c *gin.Context) {
	var req model.CreateClassRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	class, err := h.dir.CreateClass(c.Request.Context(), middleware.GetUser(c), req)
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, class)
}

// Enroll godoc
// POST /api/v1/classes/:class_id/students
// Adds a student to the class. Enrolling twice is a no-op.
func (h *ClassHandler) Enroll(c *gin.Context) {
	var req model.EnrollRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.dir.Enroll(c.Request.Context(), c.Param("class_id"), req.StudentID); err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"enrolled": true})
}
