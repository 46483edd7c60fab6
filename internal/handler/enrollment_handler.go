package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-activity-api/internal/models"
	"github.com/noah-isme/campus-activity-api/internal/service"
	appErrors "github.com/noah-isme/campus-activity-api/pkg/errors"
	"github.com/noah-isme/campus-activity-api/pkg/response"
)

// EnrollmentHandler exposes enrollment engine endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	exporter    *service.ExportService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, exporter *service.ExportService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, exporter: exporter}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param activityId query string false "Filter by activity"
// @Param student query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
// @Security BearerAuth
func (h *EnrollmentHandler) List(c *gin.Context) {
	var filter models.EnrollmentFilter
	filter.ActivityID = c.Query("activityId")
	filter.Student = c.Query("student")
	filter.Status = models.EnrollmentStatus(strings.ToUpper(c.Query("status")))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	// Students only see their own rows.
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		filter.Student = claims.UserID
	}

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Enroll godoc
// @Summary Enroll in an activity, waitlisting when full
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enrollments [post]
// @Security BearerAuth
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}
	result, err := h.enrollments.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// JoinWaitlist godoc
// @Summary Join an activity's waitlist directly
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Waitlist payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments/waitlist [post]
// @Security BearerAuth
func (h *EnrollmentHandler) JoinWaitlist(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}
	result, err := h.enrollments.JoinWaitlist(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Cancel godoc
// @Summary Cancel an enrollment, promoting the next waiter if a seat frees
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [delete]
// @Security BearerAuth
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	enrollmentID := c.Param("id")

	// Students may only cancel their own enrollment.
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		enrollment, err := h.enrollments.Get(c.Request.Context(), enrollmentID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if enrollment.Student != claims.UserID {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
	}

	result, err := h.enrollments.Cancel(c.Request.Context(), enrollmentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ExportCSV godoc
// @Summary Export enrollments as CSV
// @Tags Enrollments
// @Produce text/csv
// @Param activityId query string false "Restrict to one activity (staff only)"
// @Success 200 {string} string "CSV payload"
// @Router /enrollments/export [get]
// @Security BearerAuth
func (h *EnrollmentHandler) ExportCSV(c *gin.Context) {
	activityID := c.Query("activityId")
	student := ""
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		student = claims.UserID
		activityID = ""
	}

	payload, err := h.exporter.EnrollmentsCSV(c.Request.Context(), activityID, student)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="enrollments.csv"`)
	c.Data(http.StatusOK, "text/csv", payload)
}

func (h *EnrollmentHandler) bindRequest(c *gin.Context) (service.EnrollRequest, bool) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return req, false
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return req, false
	}
	req.Student = claims.UserID
	return req, true
}
