package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/atz-edu/enroll-api/internal/service"
	appErrors "github.com/atz-edu/enroll-api/pkg/errors"
	"github.com/atz-edu/enroll-api/pkg/response"
)

// ImportHandler drives the bulk enrollment import flow: template
// download, file upload into a staging session, row edits, and commit.
type ImportHandler struct {
	imports *service.ImportService
}

// NewImportHandler constructs ImportHandler.
func NewImportHandler(imports *service.ImportService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// Template godoc
// @Summary Download the import template workbook
// @Tags Imports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} binary
// @Router /imports/template [get]
func (h *ImportHandler) Template(c *gin.Context) {
	payload, err := h.imports.Template(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="enrollment-import-template.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", payload)
}

// Upload godoc
// @Summary Upload an enrollment spreadsheet and open a staging session
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Spreadsheet (.xlsx or .csv)"
// @Success 201 {object} response.Envelope
// @Router /imports [post]
func (h *ImportHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "missing file upload"))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload"))
		return
	}
	defer f.Close()

	session, err := h.imports.ParseAndStage(c.Request.Context(), f, fileHeader.Filename)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Session godoc
// @Summary Get a staging session with rows and readiness
// @Tags Imports
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /imports/{id} [get]
func (h *ImportHandler) Session(c *gin.Context) {
	session, err := h.imports.Session(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

type editRowRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

// EditRow godoc
// @Summary Edit one field of a staged row and re-validate it
// @Tags Imports
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param index path int true "Row index (0-based)"
// @Param payload body editRowRequest true "Field edit"
// @Success 200 {object} response.Envelope
// @Router /imports/{id}/rows/{index} [patch]
func (h *ImportHandler) EditRow(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "row index must be an integer"))
		return
	}
	var req editRowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	fieldErrors, err := h.imports.EditRow(c.Param("id"), index, req.Field, req.Value)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"errors": fieldErrors}, nil)
}

// Commit godoc
// @Summary Commit a staging session
// @Tags Imports
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /imports/{id}/commit [post]
func (h *ImportHandler) Commit(c *gin.Context) {
	outcome, err := h.imports.Commit(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}
