package dto

import (
	"time"

	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/optimizer"
)

// OptimizeRequest carries optimizer options; zero values take defaults.
type OptimizeRequest struct {
	Options optimizer.Options `json:"options"`
	Async   bool              `json:"async"`
}

// ProposalStatus tracks an optimization proposal.
type ProposalStatus string

const (
	ProposalPending ProposalStatus = "pending"
	ProposalReady   ProposalStatus = "ready"
	ProposalFailed  ProposalStatus = "failed"
	ProposalApplied ProposalStatus = "applied"
)

// ProposalResponse describes an optimization run awaiting review.
type ProposalResponse struct {
	ProposalID  string            `json:"proposalId"`
	Term        models.Term       `json:"term"`
	Status      ProposalStatus    `json:"status"`
	Error       string            `json:"error,omitempty"`
	RequestedAt time.Time         `json:"requestedAt"`
	Result      *optimizer.Result `json:"result,omitempty"`
}

// ApplyProposalRequest commits a ready proposal.
type ApplyProposalRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
	Backup     *bool  `json:"backup"`
}

// ApplyProposalResponse reports what was committed.
type ApplyProposalResponse struct {
	ProposalID string          `json:"proposalId"`
	Term       models.Term     `json:"term"`
	Sessions   int             `json:"sessions"`
	BackupKey  string          `json:"backupKey,omitempty"`
	BackupFile string          `json:"backupFile,omitempty"`
	Stats      optimizer.Stats `json:"stats"`
}
