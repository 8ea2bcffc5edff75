package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-scheduler/internal/dto"
	"github.com/noah-isme/edt-scheduler/internal/optimizer"
	"github.com/noah-isme/edt-scheduler/internal/service"
	"github.com/noah-isme/edt-scheduler/pkg/response"
)

type scheduleOptimizer interface {
	Optimize(ctx context.Context, opts optimizer.Options) (*dto.ProposalResponse, error)
	Submit(ctx context.Context, opts optimizer.Options) (*dto.ProposalResponse, error)
	Proposal(ctx context.Context, id string) (*dto.ProposalResponse, error)
	Apply(ctx context.Context, req dto.ApplyProposalRequest) (*dto.ApplyProposalResponse, error)
}

type optimizePreviewResponse struct {
	Mode     string                `json:"mode"`
	Proposal *dto.ProposalResponse `json:"proposal"`
}

// OptimizerHandler exposes optimization proposals.
type OptimizerHandler struct {
	service scheduleOptimizer
	logger  *zap.Logger
}

// NewOptimizerHandler constructs the handler.
func NewOptimizerHandler(svc *service.OptimizationService, logger *zap.Logger) *OptimizerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OptimizerHandler{service: svc, logger: logger}
}

// Optimize godoc
// @Summary Compute an optimization proposal for the active term
// @Description With async=true the run is queued and the pending proposal is returned with 202.
// @Tags Optimizer
// @Accept json
// @Produce json
// @Param payload body dto.OptimizeRequest false "Optimizer options"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /optimizer/proposals [post]
func (h *OptimizerHandler) Optimize(c *gin.Context) {
	var req dto.OptimizeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, invalidPayload(err, "optimize"))
			return
		}
	}
	if req.Async {
		proposal, err := h.service.Submit(c.Request.Context(), req.Options)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, optimizePreviewResponse{Mode: "queued", Proposal: proposal})
		return
	}
	proposal, err := h.service.Optimize(c.Request.Context(), req.Options)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, optimizePreviewResponse{Mode: "preview", Proposal: proposal})
}

// Proposal godoc
// @Summary Get an optimization proposal
// @Tags Optimizer
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /optimizer/proposals/{id} [get]
func (h *OptimizerHandler) Proposal(c *gin.Context) {
	proposal, err := h.service.Proposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, proposal)
}

// Apply godoc
// @Summary Commit a ready proposal as one undoable step
// @Tags Optimizer
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param payload body dto.ApplyProposalRequest false "Apply options"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /optimizer/proposals/{id}/apply [post]
func (h *OptimizerHandler) Apply(c *gin.Context) {
	var req dto.ApplyProposalRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, invalidPayload(err, "apply"))
			return
		}
	}
	req.ProposalID = c.Param("id")
	result, err := h.service.Apply(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("optimization applied",
		zap.String("actor", actor(c)),
		zap.String("proposal_id", result.ProposalID),
		zap.String("backup_key", result.BackupKey),
	)
	response.OK(c, result)
}

// Defaults godoc
// @Summary Default optimizer options
// @Tags Optimizer
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /optimizer/defaults [get]
func (h *OptimizerHandler) Defaults(c *gin.Context) {
	response.OK(c, optimizer.DefaultOptions())
}
