package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-scheduler/internal/dto"
	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/service"
	"github.com/noah-isme/edt-scheduler/pkg/response"
)

type sessionController interface {
	List(ctx context.Context, query dto.SessionQuery) []models.Session
	Get(ctx context.Context, id int) (*models.Session, error)
	Create(ctx context.Context, form dto.SessionForm) (*models.OperationResult, error)
	Update(ctx context.Context, id int, form dto.SessionForm) (*models.OperationResult, error)
	Delete(ctx context.Context, id int) (*models.OperationResult, error)
	Move(ctx context.Context, id int, req dto.MoveSessionRequest) (*models.MoveOutcome, error)
	ConfirmMove(ctx context.Context, id int) (*models.MoveOutcome, error)
	CancelMove(ctx context.Context, id int) (*models.MoveOutcome, error)
	Undo(ctx context.Context) (*models.OperationResult, error)
	UndoLabels() []string
	Check(ctx context.Context, form dto.SessionForm, exclude ...int) ([]models.Conflict, error)
}

// SessionHandler exposes the session controller.
type SessionHandler struct {
	service sessionController
	logger  *zap.Logger
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(svc *service.SessionService, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{service: svc, logger: logger}
}

// List godoc
// @Summary List sessions of the active term
// @Tags Sessions
// @Produce json
// @Param day query string false "Day (Lundi..Samedi)"
// @Param filiere query string false "Filière"
// @Param teacher query string false "Teacher name"
// @Param room query string false "Room"
// @Param type query string false "Cours, TD or TP"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	var query dto.SessionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "query"))
		return
	}
	sessions := h.service.List(c.Request.Context(), query)
	response.OK(c, sessions, map[string]interface{}{"total": len(sessions)})
}

// Get godoc
// @Summary Get a session
// @Tags Sessions
// @Produce json
// @Param id path int true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	id, err := sessionID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	session, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// Create godoc
// @Summary Create a session; a TP in a coupling slot also creates its second half
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.SessionForm true "Session form"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var form dto.SessionForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Error(c, invalidPayload(err, "session"))
		return
	}
	result, err := h.service.Create(c.Request.Context(), form)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, "create", result)
	response.Created(c, result)
}

// Update godoc
// @Summary Update a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path int true "Session ID"
// @Param payload body dto.SessionForm true "Session form"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id} [put]
func (h *SessionHandler) Update(c *gin.Context) {
	id, err := sessionID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var form dto.SessionForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Error(c, invalidPayload(err, "session"))
		return
	}
	result, err := h.service.Update(c.Request.Context(), id, form)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, "update", result)
	response.OK(c, result)
}

// Delete godoc
// @Summary Delete a session and its coupled partner
// @Tags Sessions
// @Produce json
// @Param id path int true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	id, err := sessionID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Delete(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, "delete", result)
	response.OK(c, result)
}

// Move godoc
// @Summary Move a session to another cell; a room clash may return a suggestion awaiting confirmation
// @Description TP sessions are refused; the optimizer moves coupled TPs as one unit.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path int true "Session ID"
// @Param payload body dto.MoveSessionRequest true "Target cell"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /sessions/{id}/move [post]
func (h *SessionHandler) Move(c *gin.Context) {
	id, err := sessionID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.MoveSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "move"))
		return
	}
	outcome, err := h.service.Move(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respondMove(c, outcome)
}

// ConfirmMove godoc
// @Summary Accept the suggested room of a pending move
// @Tags Sessions
// @Produce json
// @Param id path int true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/move/confirm [post]
func (h *SessionHandler) ConfirmMove(c *gin.Context) {
	id, err := sessionID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	outcome, err := h.service.ConfirmMove(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respondMove(c, outcome)
}

// CancelMove godoc
// @Summary Discard a pending move
// @Tags Sessions
// @Produce json
// @Param id path int true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/move [delete]
func (h *SessionHandler) CancelMove(c *gin.Context) {
	id, err := sessionID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	outcome, err := h.service.CancelMove(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, outcome)
}

// Undo godoc
// @Summary Undo the last committed mutation of the active term
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /sessions/undo [post]
func (h *SessionHandler) Undo(c *gin.Context) {
	result, err := h.service.Undo(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("session undo", zap.String("actor", actor(c)), zap.String("message", result.Message))
	response.OK(c, result)
}

// UndoHistory godoc
// @Summary List undo labels, most recent last
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sessions/undo [get]
func (h *SessionHandler) UndoHistory(c *gin.Context) {
	response.OK(c, h.service.UndoLabels())
}

// Check godoc
// @Summary Dry-run conflict detection for a form
// @Tags Sessions
// @Accept json
// @Produce json
// @Param exclude query int false "Session ID ignored by the check"
// @Param payload body dto.SessionForm true "Session form"
// @Success 200 {object} response.Envelope
// @Router /sessions/check [post]
func (h *SessionHandler) Check(c *gin.Context) {
	var form dto.SessionForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Error(c, invalidPayload(err, "session"))
		return
	}
	var exclude []int
	if raw := c.Query("exclude"); raw != "" {
		if id, err := strconv.Atoi(raw); err == nil {
			exclude = append(exclude, id)
		}
	}
	conflicts, err := h.service.Check(c.Request.Context(), form, exclude...)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, conflicts, map[string]interface{}{"total": len(conflicts)})
}

func (h *SessionHandler) respondMove(c *gin.Context, outcome *models.MoveOutcome) {
	if outcome.Status == models.MoveAwaitingConfirmation {
		response.Accepted(c, outcome)
		return
	}
	if outcome.Status == models.MoveCommitted {
		h.audit(c, "move", &outcome.OperationResult)
	}
	response.OK(c, outcome)
}

func (h *SessionHandler) audit(c *gin.Context, op string, result *models.OperationResult) {
	ids := make([]int, 0, len(result.Sessions)+1)
	if result.Session != nil {
		ids = append(ids, result.Session.ID)
	}
	for _, s := range result.Sessions {
		ids = append(ids, s.ID)
	}
	h.logger.Info("session "+op, zap.String("actor", actor(c)), zap.Ints("session_ids", ids))
}
