package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/osei-labs/schoolmate-api/internal/service"
	appErrors "github.com/osei-labs/schoolmate-api/pkg/errors"
	"github.com/osei-labs/schoolmate-api/pkg/response"
)

// ClassSubjectHandler exposes class-subject assignment endpoints.
type ClassSubjectHandler struct {
	service *service.ClassSubjectService
}

// NewClassSubjectHandler constructs a class subject handler.
func NewClassSubjectHandler(svc *service.ClassSubjectService) *ClassSubjectHandler {
	return &ClassSubjectHandler{service: svc}
}

// ListByClass godoc
// @Summary List subjects assigned to a class
// @Tags ClassSubjects
// @Produce json
// @Param id path string true "Class level ID"
// @Param academicYearId query string true "Academic year ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /classes/{id}/subjects [get]
func (h *ClassSubjectHandler) ListByClass(c *gin.Context) {
	academicYearID := c.Query("academicYearId")
	if academicYearID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "academicYearId is required"))
		return
	}
	assignments, err := h.service.ListByClass(c.Request.Context(), c.Param("id"), academicYearID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// ListByTeacher godoc
// @Summary List a teacher's assignments
// @Tags ClassSubjects
// @Produce json
// @Param id path string true "Teacher ID"
// @Param academicYearId query string false "Academic year ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /teachers/{id}/assignments [get]
func (h *ClassSubjectHandler) ListByTeacher(c *gin.Context) {
	assignments, err := h.service.ListByTeacher(c.Request.Context(), c.Param("id"), c.Query("academicYearId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// Assign godoc
// @Summary Assign a subject to a class
// @Tags ClassSubjects
// @Accept json
// @Produce json
// @Param payload body service.AssignSubjectRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /class-subjects [post]
func (h *ClassSubjectHandler) Assign(c *gin.Context) {
	var req service.AssignSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.service.Assign(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// SetTeacher godoc
// @Summary Set the teacher on an assignment
// @Tags ClassSubjects
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body service.SetTeacherRequest true "Teacher payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /class-subjects/{id}/teacher [put]
func (h *ClassSubjectHandler) SetTeacher(c *gin.Context) {
	var req service.SetTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.service.SetTeacher(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, nil, "teacher assignment updated")
}

// Delete godoc
// @Summary Remove an assignment
// @Tags ClassSubjects
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 204
// @Security BearerAuth
// @Router /class-subjects/{id} [delete]
func (h *ClassSubjectHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
