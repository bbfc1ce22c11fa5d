package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/osei-labs/schoolmate-api/internal/models"
	"github.com/osei-labs/schoolmate-api/internal/service"
	"github.com/osei-labs/schoolmate-api/pkg/response"
)

// AnalyticsHandler exposes the results analysis endpoint.
type AnalyticsHandler struct {
	service *service.AnalyticsService
}

// NewAnalyticsHandler constructs an analytics handler.
func NewAnalyticsHandler(svc *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: svc}
}

// Analysis godoc
// @Summary Results analysis
// @Description Aggregated totals, grade distribution and top performers for a scope
// @Tags Analytics
// @Produce json
// @Param classLevelId query string false "Filter by class level"
// @Param subjectId query string false "Filter by subject"
// @Param termId query string false "Filter by term"
// @Param topN query int false "Number of top performers"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /analytics/results [get]
func (h *AnalyticsHandler) Analysis(c *gin.Context) {
	var filter models.AnalysisFilter
	filter.ClassLevelID = c.Query("classLevelId")
	filter.SubjectID = c.Query("subjectId")
	filter.TermID = c.Query("termId")
	if topN, err := strconv.Atoi(c.DefaultQuery("topN", "10")); err == nil {
		filter.TopN = topN
	}

	analysis, cached, err := h.service.Analyze(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analysis, nil, map[string]interface{}{"cached": cached})
}
