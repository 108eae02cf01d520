package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/classroom-client/internal/model"
	"github.com/stemsi/classroom-client/internal/response"
	"github.com/stemsi/classroom-client/internal/session"
	"github.com/stemsi/classroom-client/internal/validator"
)

// RecoveryHandler handles the three-step password recovery.
type RecoveryHandler struct {
	mgr *session.Manager
}

// NewRecoveryHandler creates a new RecoveryHandler.
func NewRecoveryHandler(mgr *session.Manager) *RecoveryHandler {
	return &RecoveryHandler{mgr: mgr}
}

// Request godoc
// POST /api/v1/recovery/request
// Issues a 4-digit code for username + email and delivers it.
func (h *RecoveryHandler) Request(c *gin.Context) {
	var req model.PasswordResetRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.mgr.RequestPasswordReset(c.Request.Context(), req.Username, req.Email); err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"sent": true})
}

// Verify godoc
// POST /api/v1/recovery/verify
// Checks the code against the outstanding one.
func (h *RecoveryHandler) Verify(c *gin.Context) {
	var req model.VerifyResetCodeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if !h.mgr.VerifyResetCode(req.Code) {
		response.FailError(c, h.mgr.LastError())
		return
	}
	response.Success(c, http.StatusOK, gin.H{"verified": true})
}

// SetPassword godoc
// POST /api/v1/recovery/password
// Sets the new password once the code was verified.
func (h *RecoveryHandler) SetPassword(c *gin.Context) {
	var req model.NewPasswordRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.mgr.SetNewPassword(c.Request.Context(), req.Password); err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": true})
}
