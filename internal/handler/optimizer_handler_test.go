package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-scheduler/internal/dto"
	"github.com/noah-isme/edt-scheduler/internal/optimizer"
)

type optimizerMock struct {
	scheduleOptimizer
	submitted *optimizer.Options
	optimized *optimizer.Options
	applied   dto.ApplyProposalRequest
}

func (m *optimizerMock) Optimize(ctx context.Context, opts optimizer.Options) (*dto.ProposalResponse, error) {
	m.optimized = &opts
	return &dto.ProposalResponse{ProposalID: "p-1", Status: dto.ProposalReady}, nil
}

func (m *optimizerMock) Submit(ctx context.Context, opts optimizer.Options) (*dto.ProposalResponse, error) {
	m.submitted = &opts
	return &dto.ProposalResponse{ProposalID: "p-2", Status: dto.ProposalPending}, nil
}

func (m *optimizerMock) Apply(ctx context.Context, req dto.ApplyProposalRequest) (*dto.ApplyProposalResponse, error) {
	m.applied = req
	return &dto.ApplyProposalResponse{ProposalID: req.ProposalID}, nil
}

func optimizerRouter(mock *optimizerMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	Routes{Optimizer: &OptimizerHandler{service: mock, logger: zap.NewNop()}}.Register(router.Group(""))
	return router
}

func TestOptimizeWithoutBodyRunsPreview(t *testing.T) {
	mock := &optimizerMock{}
	w := httptest.NewRecorder()
	optimizerRouter(mock).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/optimizer/proposals", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mock.optimized)
	assert.Nil(t, mock.submitted)
	assert.Contains(t, string(decode(t, w).Data), `"mode":"preview"`)
}

func TestOptimizeAsyncQueues(t *testing.T) {
	mock := &optimizerMock{}
	w := httptest.NewRecorder()
	optimizerRouter(mock).ServeHTTP(w, jsonRequest(http.MethodPost, "/optimizer/proposals", `{"async":true,"options":{"maxIterations":250}}`))

	require.Equal(t, http.StatusAccepted, w.Code)
	require.NotNil(t, mock.submitted)
	assert.Equal(t, 250, mock.submitted.MaxIterations)
	assert.Nil(t, mock.submitted.MinBreak)
	assert.Equal(t, 15, mock.submitted.Normalize().Break())
}

func TestApplyTakesProposalFromPath(t *testing.T) {
	mock := &optimizerMock{}
	w := httptest.NewRecorder()
	optimizerRouter(mock).ServeHTTP(w, jsonRequest(http.MethodPost, "/optimizer/proposals/p-9/apply", `{"proposalId":"ignored","backup":false}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p-9", mock.applied.ProposalID)
	require.NotNil(t, mock.applied.Backup)
	assert.False(t, *mock.applied.Backup)
}
