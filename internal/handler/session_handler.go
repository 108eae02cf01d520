package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/classroom-client/internal/config"
	"github.com/stemsi/classroom-client/internal/model"
	"github.com/stemsi/classroom-client/internal/response"
	"github.com/stemsi/classroom-client/internal/session"
	"github.com/stemsi/classroom-client/internal/validator"
	"github.com/stemsi/classroom-client/internal/worker"
)

// SnapshotReader exposes the persisted session snapshot as stored.
type SnapshotReader interface {
	Raw() ([]byte, bool)
}

// SessionHandler handles sign-in, registration, sign-out and session upkeep.
type SessionHandler struct {
	mgr          *session.Manager
	snap         SnapshotReader
	keeper       *worker.SessionKeeper
	cookie       string
	secureCookie bool
	log          zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(mgr *session.Manager, snap SnapshotReader, keeper *worker.SessionKeeper, secureCookie bool, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		mgr:          mgr,
		snap:         snap,
		keeper:       keeper,
		cookie:       config.CacheKey.SessionSnapshotKey(),
		secureCookie: secureCookie,
		log:          log.With().Str("component", "session_handler").Logger(),
	}
}

func sessionView(st session.Status) gin.H {
	view := gin.H{
		"state":         st.State.String(),
		"authenticated": st.Authenticated(time.Now()),
		"user":          st.User,
	}
	if st.Token != nil {
		view["expires_at"] = st.Token.ExpiresAt.UnixMilli()
	}
	return view
}

// Current godoc
// GET /api/v1/session
// Returns the session state, expiring it first when the token has lapsed.
func (h *SessionHandler) Current(c *gin.Context) {
	h.mgr.CheckSession()
	response.Success(c, http.StatusOK, sessionView(h.mgr.Current()))
}

// Login godoc
// POST /api/v1/session/login
// Signs in with email + password and mints an 8h session token.
func (h *SessionHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if _, err := h.mgr.Login(c.Request.Context(), req.Identifier, req.Password); err != nil {
		response.FailError(c, err)
		return
	}
	h.writeCookie(c)
	response.Success(c, http.StatusOK, sessionView(h.mgr.Current()))
}

// Register godoc
// POST /api/v1/session/register
// Creates the account and profile, then signs in.
func (h *SessionHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	if _, err := h.mgr.Register(c.Request.Context(), req); err != nil {
		response.FailError(c, err)
		return
	}
	h.writeCookie(c)
	response.Success(c, http.StatusCreated, sessionView(h.mgr.Current()))
}

// Logout godoc
// POST /api/v1/session/logout
// Clears the session locally; remote sign-out is best effort.
func (h *SessionHandler) Logout(c *gin.Context) {
	h.mgr.Logout(c.Request.Context())
	c.SetCookie(h.cookie, "", -1, "/", "", h.secureCookie, true)
	response.Success(c, http.StatusOK, sessionView(h.mgr.Current()))
}

// Focus godoc
// POST /api/v1/session/focus
// Called when the client regains focus: checks the session and refreshes it.
func (h *SessionHandler) Focus(c *gin.Context) {
	valid := h.keeper.Touch()
	if valid {
		h.writeCookie(c)
	} else {
		c.SetCookie(h.cookie, "", -1, "/", "", h.secureCookie, true)
	}
	response.Success(c, http.StatusOK, gin.H{"valid": valid, "session": sessionView(h.mgr.Current())})
}

// Refresh godoc
// POST /api/v1/session/refresh
// Extends the session; ignored within a minute of the previous refresh.
func (h *SessionHandler) Refresh(c *gin.Context) {
	refreshed := h.mgr.RefreshSession()
	if !refreshed && !h.mgr.CheckSession() {
		response.Fail(c, http.StatusUnauthorized, response.ErrSessionExpired)
		return
	}
	h.writeCookie(c)
	response.Success(c, http.StatusOK, gin.H{"refreshed": refreshed, "session": sessionView(h.mgr.Current())})
}

// writeCookie mirrors the persisted snapshot to the browser so page requests
// can pass the session gate.
func (h *SessionHandler) writeCookie(c *gin.Context) {
	raw, ok := h.snap.Raw()
	if !ok {
		return
	}
	maxAge := 0
	if st := h.mgr.Current(); st.Token != nil {
		maxAge = int(time.Until(st.Token.ExpiresAt).Seconds())
	}
	if maxAge <= 0 {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie, string(raw), maxAge, "/", "", h.secureCookie, true)
}
