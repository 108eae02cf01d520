package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/classroom-client/internal/feed"
	"github.com/stemsi/classroom-client/internal/model"
	"github.com/stemsi/classroom-client/internal/response"
	"github.com/stemsi/classroom-client/internal/validator"
)

// FeedHandler serves the announcement and assignment feeds of a class.
type FeedHandler struct {
	sync *feed.Synchronizer
}

// NewFeedHandler creates a new FeedHandler.
func NewFeedHandler(sync *feed.Synchronizer) *FeedHandler {
	return &FeedHandler{sync: sync}
}

func sendView[T any](c *gin.Context, v feed.View[T], err error) {
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, v.Items, &response.Pagination{
		Count:   len(v.Items),
		HasMore: v.HasMore,
		Loading: v.Loading,
	})
}

// Announcements godoc
// GET /api/v1/classes/:class_id/announcements
// Reloads the feed from its newest page.
func (h *FeedHandler) Announcements(c *gin.Context) {
	v, err := h.sync.LoadAnnouncements(c.Request.Context(), c.Param("class_id"))
	sendView(c, v, err)
}

// MoreAnnouncements godoc
// POST /api/v1/classes/:class_id/announcements/more
// Appends the next page; returns the unchanged feed while a page is in flight
// or once it is exhausted.
func (h *FeedHandler) MoreAnnouncements(c *gin.Context) {
	v, err := h.sync.MoreAnnouncements(c.Request.Context(), c.Param("class_id"))
	sendView(c, v, err)
}

// CreateAnnouncement godoc
// POST /api/v1/classes/:class_id/announcements
func (h *FeedHandler) CreateAnnouncement(c *gin.Context) {
	var req model.CreateAnnouncementRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	a, err := h.sync.CreateAnnouncement(c.Request.Context(), c.Param("class_id"), req)
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, a)
}

// Assignments godoc
// GET /api/v1/classes/:class_id/assignments
// Reloads the feed from the earliest due date.
func (h *FeedHandler) Assignments(c *gin.Context) {
	v, err := h.sync.LoadAssignments(c.Request.Context(), c.Param("class_id"))
	sendView(c, v, err)
}

// MoreAssignments godoc
// POST /api/v1/classes/:class_id/assignments/more
func (h *FeedHandler) MoreAssignments(c *gin.Context) {
	v, err := h.sync.MoreAssignments(c.Request.Context(), c.Param("class_id"))
	sendView(c, v, err)
}

// CreateAssignment godoc
// POST /api/v1/classes/:class_id/assignments
func (h *FeedHandler) CreateAssignment(c *gin.Context) {
	var req model.CreateAssignmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	a, err := h.sync.CreateAssignment(c.Request.Context(), c.Param("class_id"), req)
	if err != nil {
		response.FailError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, a)
}
