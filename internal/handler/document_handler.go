package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-scheduler/internal/dto"
	"github.com/noah-isme/edt-scheduler/internal/importer"
	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/service"
	appErrors "github.com/noah-isme/edt-scheduler/pkg/errors"
	"github.com/noah-isme/edt-scheduler/pkg/response"
)

// maxDocumentBytes bounds uploaded project documents.
const maxDocumentBytes = 16 << 20

type documentManager interface {
	Info(ctx context.Context) service.DocumentInfo
	Save(ctx context.Context) error
	Reset(ctx context.Context) error
	SwitchTerm(ctx context.Context, req dto.SwitchTermRequest) (models.Term, error)
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, raw []byte, force bool) (*importer.Report, error)
	Subjects(ctx context.Context) map[string]models.SubjectConfig
	PutSubject(ctx context.Context, req dto.SubjectRequest) error
	RemoveSubject(ctx context.Context, name string) error
	Teachers(ctx context.Context) []string
	AddTeacher(ctx context.Context, req dto.TeacherRequest) error
	RemoveTeacher(ctx context.Context, name string) error
	Rooms(ctx context.Context) models.RoomCatalog
	PutRoom(ctx context.Context, req dto.RoomRequest) error
	RemoveRoom(ctx context.Context, name string) error
	Coverage(ctx context.Context) []models.SubjectCoverage
	Volumes(ctx context.Context) map[string]float64
}

// DocumentHandler exposes the project document and its shared collections.
type DocumentHandler struct {
	service documentManager
	logger  *zap.Logger
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(svc *service.DocumentService, logger *zap.Logger) *DocumentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentHandler{service: svc, logger: logger}
}

// Info godoc
// @Summary Document summary
// @Tags Document
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /document [get]
func (h *DocumentHandler) Info(c *gin.Context) {
	response.OK(c, h.service.Info(c.Request.Context()))
}

// Save godoc
// @Summary Persist the whole document
// @Tags Document
// @Success 204
// @Router /document/save [post]
func (h *DocumentHandler) Save(c *gin.Context) {
	if err := h.service.Save(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reset godoc
// @Summary Wipe the store and start from an empty document
// @Tags Document
// @Success 204
// @Router /document [delete]
func (h *DocumentHandler) Reset(c *gin.Context) {
	if err := h.service.Reset(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Warn("document reset", zap.String("actor", actor(c)))
	response.NoContent(c)
}

// SwitchTerm godoc
// @Summary Activate the autumn or spring term
// @Tags Document
// @Accept json
// @Produce json
// @Param payload body dto.SwitchTermRequest true "Term"
// @Success 200 {object} response.Envelope
// @Router /document/term [put]
func (h *DocumentHandler) SwitchTerm(c *gin.Context) {
	var req dto.SwitchTermRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "term"))
		return
	}
	term, err := h.service.SwitchTerm(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"term": term, "session": term.HeaderLabel()})
}

// Export godoc
// @Summary Download the canonical project document
// @Tags Document
// @Produce json
// @Success 200 {file} file
// @Router /document/export [get]
func (h *DocumentHandler) Export(c *gin.Context) {
	raw, err := h.service.Export(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("edt_%s.json", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/json", raw)
}

// Import godoc
// @Summary Validate and install a project document
// @Description The validation report is returned in every case. force=true installs documents carrying errors.
// @Tags Document
// @Accept json
// @Produce json
// @Param force query bool false "Install despite validation errors"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /document/import [post]
func (h *DocumentHandler) Import(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDocumentBytes))
	if err != nil {
		response.Error(c, invalidPayload(err, "document"))
		return
	}
	force, _ := strconv.ParseBool(c.Query("force"))
	report, err := h.service.Import(c.Request.Context(), raw, force)
	if err != nil {
		appErr := appErrors.FromError(err)
		c.JSON(appErr.Status, response.Envelope{
			Data:  dto.ImportResponse{Imported: false, Report: report},
			Error: appErr,
		})
		return
	}
	h.logger.Info("document imported", zap.String("actor", actor(c)), zap.Bool("forced", !report.OK))
	response.OK(c, dto.ImportResponse{Imported: true, Report: report})
}

// Subjects godoc
// @Summary Subject configurations
// @Tags Document
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *DocumentHandler) Subjects(c *gin.Context) {
	response.OK(c, h.service.Subjects(c.Request.Context()))
}

// PutSubject godoc
// @Summary Add or replace a subject configuration
// @Tags Document
// @Accept json
// @Param payload body dto.SubjectRequest true "Subject"
// @Success 204
// @Router /subjects [put]
func (h *DocumentHandler) PutSubject(c *gin.Context) {
	var req dto.SubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "subject"))
		return
	}
	if err := h.service.PutSubject(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveSubject godoc
// @Summary Remove a subject configuration
// @Tags Document
// @Param name path string true "Subject name"
// @Success 204
// @Router /subjects/{name} [delete]
func (h *DocumentHandler) RemoveSubject(c *gin.Context) {
	if err := h.service.RemoveSubject(c.Request.Context(), c.Param("name")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Teachers godoc
// @Summary Teacher roster
// @Tags Document
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *DocumentHandler) Teachers(c *gin.Context) {
	response.OK(c, h.service.Teachers(c.Request.Context()))
}

// AddTeacher godoc
// @Summary Add a teacher
// @Tags Document
// @Accept json
// @Param payload body dto.TeacherRequest true "Teacher"
// @Success 204
// @Router /teachers [post]
func (h *DocumentHandler) AddTeacher(c *gin.Context) {
	var req dto.TeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "teacher"))
		return
	}
	if err := h.service.AddTeacher(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveTeacher godoc
// @Summary Remove a teacher
// @Tags Document
// @Param name path string true "Teacher name"
// @Success 204
// @Router /teachers/{name} [delete]
func (h *DocumentHandler) RemoveTeacher(c *gin.Context) {
	if err := h.service.RemoveTeacher(c.Request.Context(), c.Param("name")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Volumes godoc
// @Summary Autumn hTP total per teacher
// @Tags Document
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teachers/volumes [get]
func (h *DocumentHandler) Volumes(c *gin.Context) {
	response.OK(c, h.service.Volumes(c.Request.Context()))
}

// Rooms godoc
// @Summary Room catalog
// @Tags Document
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rooms [get]
func (h *DocumentHandler) Rooms(c *gin.Context) {
	response.OK(c, h.service.Rooms(c.Request.Context()))
}

// PutRoom godoc
// @Summary Add or replace a catalog room
// @Tags Document
// @Accept json
// @Param payload body dto.RoomRequest true "Room"
// @Success 204
// @Router /rooms [put]
func (h *DocumentHandler) PutRoom(c *gin.Context) {
	var req dto.RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "room"))
		return
	}
	if err := h.service.PutRoom(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveRoom godoc
// @Summary Remove a catalog room
// @Tags Document
// @Param name path string true "Room name"
// @Success 204
// @Router /rooms/{name} [delete]
func (h *DocumentHandler) RemoveRoom(c *gin.Context) {
	if err := h.service.RemoveRoom(c.Request.Context(), c.Param("name")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Coverage godoc
// @Summary Expected versus scheduled sessions per subject
// @Tags Document
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /subjects/coverage [get]
func (h *DocumentHandler) Coverage(c *gin.Context) {
	response.OK(c, h.service.Coverage(c.Request.Context()))
}
