package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/classroom-client/internal/apperr"
	"github.com/stemsi/classroom-client/internal/bootstrap"
	"github.com/stemsi/classroom-client/internal/response"
)

// Readiness is the part of the coordinator the system endpoints report on.
type Readiness interface {
	Status() bootstrap.Status
	Retry(ctx context.Context) bootstrap.Status
}

// SystemHandler serves liveness, readiness and manual re-initialization.
type SystemHandler struct {
	coord Readiness
	log   zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(coord Readiness, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		coord: coord,
		log:   log.With().Str("component", "system_handler").Logger(),
	}
}

func readinessView(st bootstrap.Status) gin.H {
	view := gin.H{"state": st.State.String(), "attempts": st.Attempts}
	if st.LastError != nil {
		view["error"] = string(apperr.CodeOf(st.LastError))
	}
	return view
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"status": "ok"})
}

// Ready godoc
// GET /ready
// 200 once initialization settled Ready; degraded mode reports 503 with the
// cause while auth-only operations keep working.
func (h *SystemHandler) Ready(c *gin.Context) {
	st := h.coord.Status()
	status := http.StatusOK
	if st.State != bootstrap.Ready {
		status = http.StatusServiceUnavailable
	}
	response.Success(c, status, readinessView(st))
}

// Retry godoc
// POST /api/v1/system/retry
// Starts a fresh initialization when the previous one settled degraded.
func (h *SystemHandler) Retry(c *gin.Context) {
	st := h.coord.Retry(c.Request.Context())
	h.log.Info().Str("state", st.State.String()).Int("attempts", st.Attempts).Msg("Manual re-initialization")
	response.Success(c, http.StatusOK, readinessView(st))
}
