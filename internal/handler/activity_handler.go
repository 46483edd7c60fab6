package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-activity-api/internal/models"
	"github.com/noah-isme/campus-activity-api/internal/service"
	appErrors "github.com/noah-isme/campus-activity-api/pkg/errors"
	"github.com/noah-isme/campus-activity-api/pkg/response"
)

// ActivityHandler exposes activity lifecycle endpoints.
type ActivityHandler struct {
	activities *service.ActivityService
}

// NewActivityHandler constructs ActivityHandler.
func NewActivityHandler(activities *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activities: activities}
}

// List godoc
// @Summary List activities
// @Tags Activities
// @Produce json
// @Param category query string false "Filter by category"
// @Param status query string false "Filter by status"
// @Param q query string false "Keyword search on title and location"
// @Param upcoming query bool false "Only activities that have not started yet"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /activities [get]
func (h *ActivityHandler) List(c *gin.Context) {
	var filter models.ActivityFilter
	filter.Category = c.Query("category")
	filter.Status = models.ActivityStatus(strings.ToUpper(c.Query("status")))
	filter.Keyword = c.Query("q")
	filter.Creator = c.Query("creator")
	if c.Query("upcoming") == "true" {
		filter.StartsAfter = time.Now().UTC()
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	activities, pagination, err := h.activities.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activities, pagination)
}

// Get godoc
// @Summary Get one activity with its enrollment count
// @Tags Activities
// @Produce json
// @Param id path string true "Activity ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /activities/{id} [get]
func (h *ActivityHandler) Get(c *gin.Context) {
	activity, err := h.activities.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activity, nil)
}

// Create godoc
// @Summary Submit a new activity for approval
// @Tags Activities
// @Accept json
// @Produce json
// @Param payload body service.CreateActivityRequest true "Activity payload"
// @Success 201 {object} response.Envelope
// @Router /activities [post]
// @Security BearerAuth
func (h *ActivityHandler) Create(c *gin.Context) {
	var req service.CreateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil {
		req.Creator = claims.UserID
	}

	activity, err := h.activities.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, activity)
}

// Update godoc
// @Summary Edit a pending activity
// @Tags Activities
// @Accept json
// @Produce json
// @Param id path string true "Activity ID"
// @Param payload body service.UpdateActivityRequest true "Activity payload"
// @Success 200 {object} response.Envelope
// @Router /activities/{id} [put]
// @Security BearerAuth
func (h *ActivityHandler) Update(c *gin.Context) {
	var req service.UpdateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	editor := ""
	if claims := claimsFromContext(c); claims != nil {
		editor = claims.UserID
	}

	activity, err := h.activities.Update(c.Request.Context(), c.Param("id"), editor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activity, nil)
}

// Approve godoc
// @Summary Approve a pending activity
// @Tags Activities
// @Produce json
// @Param id path string true "Activity ID"
// @Success 200 {object} response.Envelope
// @Router /activities/{id}/approve [post]
// @Security BearerAuth
func (h *ActivityHandler) Approve(c *gin.Context) {
	h.transition(c, h.activities.Approve)
}

// Reject godoc
// @Summary Reject a pending activity
// @Tags Activities
// @Produce json
// @Param id path string true "Activity ID"
// @Success 200 {object} response.Envelope
// @Router /activities/{id}/reject [post]
// @Security BearerAuth
func (h *ActivityHandler) Reject(c *gin.Context) {
	h.transition(c, h.activities.Reject)
}

// Cancel godoc
// @Summary Cancel an activity
// @Tags Activities
// @Produce json
// @Param id path string true "Activity ID"
// @Success 200 {object} response.Envelope
// @Router /activities/{id}/cancel [post]
// @Security BearerAuth
func (h *ActivityHandler) Cancel(c *gin.Context) {
	h.transition(c, h.activities.Cancel)
}

// Categories godoc
// @Summary List activity categories in use
// @Tags Activities
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /activities/categories [get]
func (h *ActivityHandler) Categories(c *gin.Context) {
	categories, err := h.activities.Categories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}

func (h *ActivityHandler) transition(c *gin.Context, fn func(ctx context.Context, id, actor string) (*models.Activity, error)) {
	actor := ""
	if claims := claimsFromContext(c); claims != nil {
		actor = claims.UserID
	}
	activity, err := fn(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activity, nil)
}
