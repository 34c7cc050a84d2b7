package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/atz-edu/enroll-api/internal/models"
	"github.com/atz-edu/enroll-api/internal/service"
	appErrors "github.com/atz-edu/enroll-api/pkg/errors"
	"github.com/atz-edu/enroll-api/pkg/response"
)

// ExportHandler enqueues breakdown exports and serves signed downloads.
type ExportHandler struct {
	reports *service.ReportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(reports *service.ReportService) *ExportHandler {
	return &ExportHandler{reports: reports}
}

type exportRequest struct {
	Format string `json:"format" binding:"required"`
}

// Enqueue godoc
// @Summary Queue a breakdown export (CSV or PDF)
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body exportRequest true "Export format"
// @Success 202 {object} response.Envelope
// @Router /payments/breakdown/export [post]
func (h *ExportHandler) Enqueue(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	filter, err := breakdownFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	job, err := h.reports.Enqueue(models.ExportFormat(req.Format), filter, CurrentOperatorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Poll an export job
// @Tags Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/jobs/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	job, err := h.reports.Job(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a finished export via its signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	f, name, err := h.reports.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Disposition", `attachment; filename="`+filepath.Base(name)+`"`)
	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", f, nil)
}
