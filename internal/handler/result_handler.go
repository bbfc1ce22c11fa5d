package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/osei-labs/schoolmate-api/internal/models"
	"github.com/osei-labs/schoolmate-api/internal/service"
	appErrors "github.com/osei-labs/schoolmate-api/pkg/errors"
	"github.com/osei-labs/schoolmate-api/pkg/response"
)

// ResultHandler exposes result upload and publication endpoints.
type ResultHandler struct {
	service *service.ResultService
	exports *service.ExportService
}

// NewResultHandler constructs a result handler.
func NewResultHandler(svc *service.ResultService, exports *service.ExportService) *ResultHandler {
	return &ResultHandler{service: svc, exports: exports}
}

func resultFilterFromQuery(c *gin.Context) models.ResultFilter {
	var filter models.ResultFilter
	filter.StudentID = c.Query("studentId")
	filter.SubjectID = c.Query("subjectId")
	filter.ClassLevelID = c.Query("classLevelId")
	filter.TermID = c.Query("termId")
	filter.UploadedBy = c.Query("uploadedBy")
	if isPublished := c.Query("isPublished"); isPublished != "" {
		if val, err := strconv.ParseBool(isPublished); err == nil {
			filter.IsPublished = &val
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}

// List godoc
// @Summary List results
// @Tags Results
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param subjectId query string false "Filter by subject"
// @Param classLevelId query string false "Filter by class level"
// @Param termId query string false "Filter by term"
// @Param isPublished query bool false "Filter by publication state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /results [get]
func (h *ResultHandler) List(c *gin.Context) {
	results, pagination, err := h.service.List(c.Request.Context(), resultFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, pagination)
}

// MyResults godoc
// @Summary List own published results
// @Description Students see only their own published results
// @Tags Results
// @Produce json
// @Param termId query string false "Filter by term"
// @Param subjectId query string false "Filter by subject"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /results/me [get]
func (h *ResultHandler) MyResults(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	results, pagination, err := h.service.ListForStudent(c.Request.Context(), claims.UserID, resultFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, pagination)
}

// Get godoc
// @Summary Get result
// @Tags Results
// @Produce json
// @Param id path string true "Result ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /results/{id} [get]
func (h *ResultHandler) Get(c *gin.Context) {
	result, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Upload godoc
// @Summary Upload a result
// @Description Upserts one score entry; a repeated (student, subject, term) updates in place
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body service.UploadResultRequest true "Result payload"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /results [post]
func (h *ResultHandler) Upload(c *gin.Context) {
	var req service.UploadResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	outcome, err := h.service.Upload(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if outcome.Created {
		response.Message(c, http.StatusCreated, outcome.Result, "result created")
		return
	}
	response.Message(c, http.StatusOK, outcome.Result, "result updated")
}

// BulkUpload godoc
// @Summary Upload results in bulk
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body service.BulkUploadRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /results/bulk [post]
func (h *ResultHandler) BulkUpload(c *gin.Context) {
	var req service.BulkUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	summary, err := h.service.BulkUpload(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, summary, fmt.Sprintf("%d created, %d updated", summary.Created, summary.Updated))
}

// Publish godoc
// @Summary Publish a result
// @Description Makes a result visible to its student; first publication stamps the date
// @Tags Results
// @Produce json
// @Param id path string true "Result ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /results/{id}/publish [post]
func (h *ResultHandler) Publish(c *gin.Context) {
	result, err := h.service.Publish(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, result, "result published")
}

// Unpublish godoc
// @Summary Unpublish a result
// @Description Withdraws a result from student view; the first-publication date is retained
// @Tags Results
// @Produce json
// @Param id path string true "Result ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /results/{id}/unpublish [post]
func (h *ResultHandler) Unpublish(c *gin.Context) {
	result, err := h.service.Unpublish(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, result, "result unpublished")
}

// BulkPublish godoc
// @Summary Publish results in bulk
// @Description Non-admin callers are restricted to results they uploaded
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body service.BulkPublishRequest true "Result IDs"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /results/bulk-publish [post]
func (h *ResultHandler) BulkPublish(c *gin.Context) {
	h.bulkTransition(c, true)
}

// BulkUnpublish godoc
// @Summary Unpublish results in bulk
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body service.BulkPublishRequest true "Result IDs"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /results/bulk-unpublish [post]
func (h *ResultHandler) BulkUnpublish(c *gin.Context) {
	h.bulkTransition(c, false)
}

func (h *ResultHandler) bulkTransition(c *gin.Context, publish bool) {
	var req service.BulkPublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	summary, err := h.service.BulkPublish(c.Request.Context(), req, claimsFromContext(c), publish)
	if err != nil {
		response.Error(c, err)
		return
	}
	verb := "published"
	if !publish {
		verb = "unpublished"
	}
	response.Message(c, http.StatusOK, summary, fmt.Sprintf("%d of %d results %s", summary.Affected, summary.Requested, verb))
}

// Delete godoc
// @Summary Delete result
// @Tags Results
// @Produce json
// @Param id path string true "Result ID"
// @Success 204
// @Security BearerAuth
// @Router /results/{id} [delete]
func (h *ResultHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export results
// @Description Streams the filtered result listing as CSV or PDF
// @Tags Results
// @Produce text/csv
// @Produce application/pdf
// @Param format query string true "csv or pdf"
// @Param termId query string false "Filter by term"
// @Param classLevelId query string false "Filter by class level"
// @Param subjectId query string false "Filter by subject"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /results/export [get]
func (h *ResultHandler) Export(c *gin.Context) {
	file, err := h.exports.Results(c.Request.Context(), resultFilterFromQuery(c), c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Header("X-Total-Count", strconv.Itoa(file.TotalRows))
	if file.Truncated {
		c.Header("X-Export-Truncated", "true")
	}
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
