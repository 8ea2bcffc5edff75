package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edt-scheduler/internal/dto"
	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/service"
	appErrors "github.com/noah-isme/edt-scheduler/pkg/errors"
	"github.com/noah-isme/edt-scheduler/pkg/response"
)

type timetableExporter interface {
	Timetable(ctx context.Context, query dto.ExportQuery) (*service.ExportResult, error)
	SessionsCSV(ctx context.Context) (*service.ExportResult, error)
	ImportSessionsCSV(ctx context.Context, in io.Reader) (*models.OperationResult, []string, error)
}

// ExportHandler serves timetable files.
type ExportHandler struct {
	service timetableExporter
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Timetable godoc
// @Summary Download the weekly timetable
// @Tags Export
// @Produce text/csv
// @Produce application/pdf
// @Param filiere query string false "Restrict to one filière"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /export/timetable [get]
func (h *ExportHandler) Timetable(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "export"))
		return
	}
	result, err := h.service.Timetable(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveFile(c, result)
}

// SessionsCSV godoc
// @Summary Download the sessions of the active term as CSV
// @Tags Export
// @Produce text/csv
// @Success 200 {file} file
// @Router /export/sessions.csv [get]
func (h *ExportHandler) SessionsCSV(c *gin.Context) {
	result, err := h.service.SessionsCSV(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	serveFile(c, result)
}

// ImportSessionsCSV godoc
// @Summary Replace the sessions of the active term from a CSV upload
// @Tags Export
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "seances.csv"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /import/sessions [post]
func (h *ExportHandler) ImportSessionsCSV(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.CloneWrap(appErrors.ErrValidation, err, "file unreadable"))
		return
	}
	defer file.Close() //nolint:errcheck

	result, warnings, err := h.service.ImportSessionsCSV(c.Request.Context(), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result, map[string]interface{}{"warnings": warnings})
}

func serveFile(c *gin.Context, result *service.ExportResult) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}
