package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edt-scheduler/internal/dto"
	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/service"
	"github.com/noah-isme/edt-scheduler/internal/timegrid"
	"github.com/noah-isme/edt-scheduler/pkg/response"
)

type examManager interface {
	List(ctx context.Context) []models.Exam
	Get(ctx context.Context, id string) (*models.Exam, error)
	Create(ctx context.Context, req dto.ExamRequest) (*models.Exam, error)
	Update(ctx context.Context, id string, req dto.ExamRequest) (*models.Exam, error)
	Delete(ctx context.Context, id string) error
	AllocateRooms(ctx context.Context, id string) (*models.AllocationResult, error)
	Conflicts(ctx context.Context, id string) ([]models.ExamConflict, error)
	RoomConfigs(ctx context.Context) []models.ExamRoomConfig
	UpdateRoomConfigs(ctx context.Context, req dto.RoomConfigsRequest) ([]models.ExamRoomConfig, error)
	Slots() []timegrid.Slot
}

// ExamHandler exposes exams and exam room allocation.
type ExamHandler struct {
	service examManager
}

// NewExamHandler constructs the handler.
func NewExamHandler(svc *service.ExamService) *ExamHandler {
	return &ExamHandler{service: svc}
}

// List godoc
// @Summary List exams
// @Tags Exams
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /exams [get]
func (h *ExamHandler) List(c *gin.Context) {
	exams := h.service.List(c.Request.Context())
	response.OK(c, exams, map[string]interface{}{"total": len(exams)})
}

// Get godoc
// @Summary Get an exam
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id} [get]
func (h *ExamHandler) Get(c *gin.Context) {
	exam, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, exam)
}

// Create godoc
// @Summary Create an exam
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body dto.ExamRequest true "Exam"
// @Success 201 {object} response.Envelope
// @Router /exams [post]
func (h *ExamHandler) Create(c *gin.Context) {
	var req dto.ExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "exam"))
		return
	}
	exam, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exam)
}

// Update godoc
// @Summary Replace an exam
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body dto.ExamRequest true "Exam"
// @Success 200 {object} response.Envelope
// @Router /exams/{id} [put]
func (h *ExamHandler) Update(c *gin.Context) {
	var req dto.ExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "exam"))
		return
	}
	exam, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, exam)
}

// Delete godoc
// @Summary Delete an exam
// @Tags Exams
// @Param id path string true "Exam ID"
// @Success 204
// @Router /exams/{id} [delete]
func (h *ExamHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Allocate godoc
// @Summary Allocate rooms to an exam, largest rooms first
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/allocate [post]
func (h *ExamHandler) Allocate(c *gin.Context) {
	result, err := h.service.AllocateRooms(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result, map[string]interface{}{"complete": result.Remaining == 0})
}

// Conflicts godoc
// @Summary Rooms the exam shares with overlapping exams
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/conflicts [get]
func (h *ExamHandler) Conflicts(c *gin.Context) {
	conflicts, err := h.service.Conflicts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, conflicts)
}

// RoomConfigs godoc
// @Summary Exam room configuration
// @Tags Exams
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /exams/rooms [get]
func (h *ExamHandler) RoomConfigs(c *gin.Context) {
	response.OK(c, h.service.RoomConfigs(c.Request.Context()))
}

// UpdateRoomConfigs godoc
// @Summary Replace the exam room configuration
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body dto.RoomConfigsRequest true "Room configs"
// @Success 200 {object} response.Envelope
// @Router /exams/rooms [put]
func (h *ExamHandler) UpdateRoomConfigs(c *gin.Context) {
	var req dto.RoomConfigsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "room configs"))
		return
	}
	configs, err := h.service.UpdateRoomConfigs(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, configs)
}

// Slots godoc
// @Summary Canonical exam windows
// @Tags Exams
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /exams/slots [get]
func (h *ExamHandler) Slots(c *gin.Context) {
	response.OK(c, h.service.Slots())
}
