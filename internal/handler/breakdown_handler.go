package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atz-edu/enroll-api/internal/models"
	"github.com/atz-edu/enroll-api/internal/service"
	appErrors "github.com/atz-edu/enroll-api/pkg/errors"
	"github.com/atz-edu/enroll-api/pkg/response"
)

// BreakdownHandler serves the payment breakdown read path.
type BreakdownHandler struct {
	breakdown *service.BreakdownService
}

// NewBreakdownHandler constructs BreakdownHandler.
func NewBreakdownHandler(breakdown *service.BreakdownService) *BreakdownHandler {
	return &BreakdownHandler{breakdown: breakdown}
}

// Get godoc
// @Summary Per-student payment breakdown with totals
// @Tags Breakdown
// @Produce json
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param month query int false "Month (1-12, with year)"
// @Param year query int false "Year"
// @Param stage query string false "Stage presence filter"
// @Param status query string false "Student status filter"
// @Param studentId query string false "Single student"
// @Param sort query string false "payment_date or status"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /payments/breakdown [get]
func (h *BreakdownHandler) Get(c *gin.Context) {
	filter, err := breakdownFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.breakdown.Compute(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func breakdownFilterFromQuery(c *gin.Context) (models.BreakdownFilter, error) {
	var filter models.BreakdownFilter

	parseDate := func(param string) (*time.Time, error) {
		raw := c.Query(param)
		if raw == "" {
			return nil, nil
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, param+" must be YYYY-MM-DD")
		}
		return &t, nil
	}

	var err error
	if filter.From, err = parseDate("from"); err != nil {
		return filter, err
	}
	if filter.To, err = parseDate("to"); err != nil {
		return filter, err
	}
	if raw := c.Query("month"); raw != "" {
		if filter.Month, err = strconv.Atoi(raw); err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "month must be an integer")
		}
	}
	if raw := c.Query("year"); raw != "" {
		if filter.Year, err = strconv.Atoi(raw); err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "year must be an integer")
		}
	}
	filter.Stage = c.Query("stage")
	if status := c.Query("status"); status != "" {
		parsed, ok := models.ParseStudentStatus(status)
		if !ok {
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown status "+status)
		}
		filter.Status = parsed
	}
	filter.StudentID = c.Query("studentId")
	filter.SortBy = models.BreakdownSort(c.DefaultQuery("sort", string(models.BreakdownSortPaymentDate)))
	filter.SortOrder = c.DefaultQuery("order", "asc")
	return filter, nil
}
